package irfmt

import (
	"fmt"

	"github.com/segmentio/encoding/json"

	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/symbol"
)

// ============================================================================
// JSON 导出
// ============================================================================

// Function 函数的 JSON 表示
type Function struct {
	Name       string   `json:"name"`
	Class      string   `json:"class"`
	Descriptor string   `json:"descriptor,omitempty"`
	Slots      int      `json:"slots"`
	ParamSlots []int    `json:"paramSlots"`
	Blocks     []Block  `json:"blocks"`
	Labels     []string `json:"labels,omitempty"`
}

// Block 基本块的 JSON 表示
type Block struct {
	ID    int    `json:"id"`
	Label string `json:"label,omitempty"`
	Insts []Inst `json:"insts"`
}

// Inst 指令的 JSON 表示，操作数使用文本形式
type Inst struct {
	Op   string   `json:"op"`
	Dst  string   `json:"dst,omitempty"`
	Args []string `json:"args,omitempty"`
}

// Export 把函数转换为可序列化的结构
func Export(tab *symbol.Table, fn *ir.Function) *Function {
	p := newPrinter(tab, fn)
	out := &Function{
		Name:       fn.Name,
		Class:      fn.Class,
		Slots:      fn.Slots,
		ParamSlots: fn.ParamSlots,
		Blocks:     make([]Block, 0, len(fn.Blocks)),
	}
	if out.ParamSlots == nil {
		out.ParamSlots = []int{}
	}
	if tab != nil {
		if m := tab.Method(fn.Symbol); m != nil {
			out.Descriptor = m.Descriptor()
		}
	}

	for _, b := range fn.Blocks {
		jb := Block{ID: b.ID, Insts: make([]Inst, 0, len(b.Insts))}
		if n, ok := p.labels[b.ID]; ok {
			jb.Label = fmt.Sprintf("label%d", n)
			out.Labels = append(out.Labels, jb.Label)
		}
		for _, inst := range b.Insts {
			ji := Inst{Op: inst.Kind.String()}
			if inst.HasDst() {
				ji.Dst = p.arg(inst.Dst)
			}
			for _, a := range inst.Args {
				ji.Args = append(ji.Args, p.arg(a))
			}
			jb.Insts = append(jb.Insts, ji)
		}
		out.Blocks = append(out.Blocks, jb)
	}
	return out
}

// MarshalJSON 返回函数的 JSON 编码
func MarshalJSON(tab *symbol.Table, fn *ir.Function) ([]byte, error) {
	data, err := json.Marshal(Export(tab, fn))
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", fn.Name, err)
	}
	return data, nil
}

// MarshalIndent 返回带缩进的 JSON 编码
func MarshalIndent(tab *symbol.Table, fns []*ir.Function) ([]byte, error) {
	out := make([]*Function, len(fns))
	for i, fn := range fns {
		out[i] = Export(tab, fn)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal functions: %w", err)
	}
	return data, nil
}
