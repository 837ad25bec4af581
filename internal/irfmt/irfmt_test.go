package irfmt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/segmentio/encoding/json"

	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/types"
)

// abs 对应 static int abs(int x) { if (x < 0) { return -x; } return x; }
func abs() *ir.Function {
	return &ir.Function{
		Name:       "abs",
		Class:      "lower/C1",
		Params:     []types.Type{types.Int},
		Result:     types.Int,
		Slots:      2,
		ParamSlots: []int{0},
		Blocks: []*ir.Block{
			{ID: 0, Insts: []ir.Inst{
				{Kind: ir.Icmp, Dst: ir.Flags(), Args: []ir.Arg{ir.Reg(0), ir.IntConst(0)}},
				{Kind: ir.JumpGtEq, Args: []ir.Arg{ir.Branch(2), ir.Flags()}},
			}},
			{ID: 1, Insts: []ir.Inst{
				{Kind: ir.Ineg, Dst: ir.Reg(1), Args: []ir.Arg{ir.Reg(0)}},
				{Kind: ir.Iret, Args: []ir.Arg{ir.Reg(1)}},
			}},
			{ID: 2, Insts: []ir.Inst{
				{Kind: ir.Iret, Args: []ir.Arg{ir.Reg(0)}},
			}},
		},
	}
}

const absText = `slots=2
  b0 flags = Icmp r0 0
  b0 JumpGtEq label0 flags
  b1 r1 = Ineg r0
  b1 Iret r1
label0:
  b2 Iret r0
`

func TestSprint(t *testing.T) {
	if got := Sprint(nil, abs()); got != absText {
		t.Errorf("Sprint:\n%s\nwant:\n%s", got, absText)
	}

	var buf bytes.Buffer
	if err := Fprint(&buf, nil, abs()); err != nil {
		t.Fatal(err)
	}
	if buf.String() != absText {
		t.Errorf("Fprint:\n%s", buf.String())
	}
}

func TestSprintLabels(t *testing.T) {
	// 两个跳转指向同一个块时只生成一个标签
	fn := &ir.Function{
		Name:  "loop",
		Slots: 1,
		Blocks: []*ir.Block{
			{ID: 0, Insts: []ir.Inst{
				{Kind: ir.Iload, Dst: ir.Reg(0), Args: []ir.Arg{ir.IntConst(0)}},
			}},
			{ID: 1, Insts: []ir.Inst{
				{Kind: ir.Icmp, Dst: ir.Flags(), Args: []ir.Arg{ir.Reg(0), ir.IntConst(10)}},
				{Kind: ir.JumpGtEq, Args: []ir.Arg{ir.Branch(3), ir.Flags()}},
			}},
			{ID: 2, Insts: []ir.Inst{
				{Kind: ir.Iadd, Dst: ir.Reg(0), Args: []ir.Arg{ir.Reg(0), ir.IntConst(1)}},
				{Kind: ir.Jump, Args: []ir.Arg{ir.Branch(1)}},
			}},
			{ID: 3, Insts: []ir.Inst{
				{Kind: ir.Ret},
			}},
		},
	}
	want := `slots=1
  b0 r0 = Iload 0
label0:
  b1 flags = Icmp r0 10
  b1 JumpGtEq label1 flags
  b2 r0 = Iadd r0 1
  b2 Jump label0
label1:
  b3 Ret
`
	if got := Sprint(nil, fn); got != want {
		t.Errorf("Sprint:\n%s\nwant:\n%s", got, want)
	}
}

func TestExport(t *testing.T) {
	want := &Function{
		Name:       "abs",
		Class:      "lower/C1",
		Slots:      2,
		ParamSlots: []int{0},
		Labels:     []string{"label0"},
		Blocks: []Block{
			{ID: 0, Insts: []Inst{
				{Op: "Icmp", Dst: "flags", Args: []string{"r0", "0"}},
				{Op: "JumpGtEq", Args: []string{"label0", "flags"}},
			}},
			{ID: 1, Insts: []Inst{
				{Op: "Ineg", Dst: "r1", Args: []string{"r0"}},
				{Op: "Iret", Args: []string{"r1"}},
			}},
			{ID: 2, Label: "label0", Insts: []Inst{
				{Op: "Iret", Args: []string{"r0"}},
			}},
		},
	}
	if diff := cmp.Diff(want, Export(nil, abs())); diff != "" {
		t.Errorf("Export mismatch (-want +got):\n%s", diff)
	}

	data, err := MarshalJSON(nil, abs())
	if err != nil {
		t.Fatal(err)
	}
	var decoded Function
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, data)
	}
	if diff := cmp.Diff(want, &decoded); diff != "" {
		t.Errorf("JSON round trip mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(string(data), "descriptor") {
		t.Errorf("descriptor emitted without a symbol table: %s", data)
	}
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(nil, []*ir.Function{abs(), {Name: "empty", Class: "lower/C1"}})
	if err != nil {
		t.Fatal(err)
	}
	var decoded []Function
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 || decoded[1].Name != "empty" {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded[1].ParamSlots == nil || decoded[1].Blocks == nil {
		t.Errorf("empty slices should encode as []: %s", data)
	}
	if !strings.Contains(string(data), "\n  {") {
		t.Errorf("output is not indented:\n%s", data)
	}
}

func TestFingerprint(t *testing.T) {
	a, b := Fingerprint(nil, abs()), Fingerprint(nil, abs())
	if a != b {
		t.Errorf("fingerprints differ: %s %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint %q is not a hex BLAKE2b-256 digest", a)
	}

	changed := abs()
	changed.Blocks[1].Insts[0].Kind = ir.Lneg
	if Fingerprint(nil, changed) == a {
		t.Error("changing an opcode kept the fingerprint")
	}

	renamed := abs()
	renamed.Name = "abs2"
	if Fingerprint(nil, renamed) == a {
		t.Error("renaming the function kept the fingerprint")
	}
}
