// Package irfmt 把降级后的 IR 渲染为文本、JSON 和内容指纹。
package irfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/symbol"
)

// ============================================================================
// 文本格式
// ============================================================================
//
//	slots=2
//	  b0 flags = Icmp r0 0
//	  b0 JumpGtEq label0 flags
//	  b1 r1 = Ineg r0
//	  b1 Iret r1
//	label0:
//	  b2 Iret r0
//
// 只有作为跳转目标的块带有标签，标签按块顺序编号。
// 同一个类中的调用目标只打印方法名，其他类打印 Class.name。
//
// ============================================================================

// Sprint 返回函数的文本形式
func Sprint(tab *symbol.Table, fn *ir.Function) string {
	var sb strings.Builder
	sb.Grow(fn.NumInsts() * 24)
	p := newPrinter(tab, fn)
	p.print(&sb)
	return sb.String()
}

// Fprint 把函数的文本形式写入 w
func Fprint(w io.Writer, tab *symbol.Table, fn *ir.Function) error {
	_, err := io.WriteString(w, Sprint(tab, fn))
	return err
}

type printer struct {
	tab    *symbol.Table
	fn     *ir.Function
	labels map[int]int // 块编号 -> 标签编号
}

func newPrinter(tab *symbol.Table, fn *ir.Function) *printer {
	p := &printer{tab: tab, fn: fn, labels: make(map[int]int)}
	targets := fn.Targets()
	for _, b := range fn.Blocks {
		if targets[b.ID] {
			p.labels[b.ID] = len(p.labels)
		}
	}
	return p
}

func (p *printer) print(sb *strings.Builder) {
	fmt.Fprintf(sb, "slots=%d\n", p.fn.Slots)
	for _, b := range p.fn.Blocks {
		if n, ok := p.labels[b.ID]; ok {
			fmt.Fprintf(sb, "label%d:\n", n)
		}
		for _, inst := range b.Insts {
			fmt.Fprintf(sb, "  b%d %s\n", b.ID, p.inst(inst))
		}
	}
}

func (p *printer) inst(inst ir.Inst) string {
	var sb strings.Builder
	if inst.HasDst() {
		sb.WriteString(p.arg(inst.Dst))
		sb.WriteString(" = ")
	}
	sb.WriteString(inst.Kind.String())
	for _, a := range inst.Args {
		sb.WriteByte(' ')
		sb.WriteString(p.arg(a))
	}
	return sb.String()
}

func (p *printer) arg(a ir.Arg) string {
	switch a.Kind {
	case ir.ArgBranch:
		if n, ok := p.labels[int(a.Value)]; ok {
			return fmt.Sprintf("label%d", n)
		}
	case ir.ArgSymbol:
		return p.symbolName(a.SymbolID())
	}
	return a.String()
}

// symbolName 返回调用目标的可读名称
func (p *printer) symbolName(id symbol.ID) string {
	if p.tab == nil {
		return id.String()
	}
	m := p.tab.Method(id)
	if m == nil {
		return id.String()
	}
	if sameClass(m.ID, p.fn.Symbol) {
		return m.Name
	}
	return m.Class.Name + "." + m.Name
}

func sameClass(a, b symbol.ID) bool {
	return a.PackageIndex() == b.PackageIndex() && a.ClassIndex() == b.ClassIndex()
}
