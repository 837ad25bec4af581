package irexec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	diag "github.com/tangzhangming/lowir/internal/errors"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/types"
)

func loadC1(t *testing.T) *Machine {
	t.Helper()
	table, fns := compile(t, readSource(t, filepath.Join("testdata", "lower", "C1.java")))
	m := New(table, nil)
	m.Load(fns...)
	return m
}

func runtimeErr(t *testing.T, err error) *diag.RuntimeError {
	t.Helper()
	var rerr *diag.RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("want *errors.RuntimeError, got %T: %v", err, err)
	}
	return rerr
}

func TestRoundTrip(t *testing.T) {
	m := loadC1(t)

	tests := []struct {
		method string
		args   []Value
		want   Value
	}{
		{"m1", nil, IntValue(10)},
		{"abs", []Value{IntValue(-1)}, IntValue(1)},
		{"abs", []Value{IntValue(5)}, IntValue(5)},
		{"labs", []Value{LongValue(-120)}, LongValue(120)},
		{"labs", []Value{LongValue(math.MaxInt32 + 1)}, LongValue(math.MaxInt32 + 1)},
		{"fib", []Value{IntValue(4)}, IntValue(3)},
		{"factorial", []Value{IntValue(5)}, IntValue(120)},
		{"sqrt", []Value{IntValue(96)}, IntValue(9)},
		{"div", []Value{IntValue(-7), IntValue(2)}, IntValue(-3)},
		{"div", []Value{IntValue(math.MinInt32), IntValue(-1)}, IntValue(math.MinInt32)},
		{"lrem", []Value{LongValue(-7), LongValue(3)}, LongValue(-1)},
		{"truncate", []Value{DoubleValue(-2.7)}, IntValue(-2)},
		{"truncate", []Value{DoubleValue(3e10)}, IntValue(math.MaxInt32)},
		{"truncate", []Value{DoubleValue(math.NaN())}, IntValue(0)},
		{"bits", []Value{IntValue(-1), LongValue(1)}, LongValue(4294967311)},
		{"bits", []Value{IntValue(0x10000000), LongValue(-1)}, LongValue(-4563402754)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s%v", tt.method, tt.args), func(t *testing.T) {
			g := NewWithT(t)
			got, err := m.Call("lower/C1."+tt.method, tt.args...)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}

func loadOrder(t *testing.T) *Machine {
	t.Helper()
	table, fns := compile(t, readSource(t, filepath.Join("testdata", "lower", "Order.java")))
	m := New(table, nil)
	m.Load(fns...)
	return m
}

// 操作数严格从左到右求值：后面的操作数改写局部变量不影响前面已经读出的值
func TestEvaluationOrder(t *testing.T) {
	m := loadOrder(t)

	tests := []struct {
		method string
		args   []Value
		want   Value
	}{
		{"postAdd", []Value{IntValue(1)}, IntValue(2)},
		{"preAdd", []Value{IntValue(1)}, IntValue(4)},
		{"assignAdd", []Value{IntValue(1)}, IntValue(6)},
		{"callArgs", []Value{IntValue(1)}, IntValue(11)},
		{"compound", []Value{IntValue(1)}, IntValue(4)},
		{"cmp", []Value{IntValue(5)}, IntValue(1)},
		{"cmp", []Value{IntValue(200)}, IntValue(0)},
		{"less", []Value{IntValue(5)}, BoolValue(true)},
		{"keep", []Value{IntValue(4)}, IntValue(4)},
		{"index", []Value{ArrayValue(IntArrayOf(10, 20, 30)), ArrayValue(IntArrayOf(2))}, IntValue(30)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s%v", tt.method, tt.args), func(t *testing.T) {
			g := NewWithT(t)
			got, err := m.Call("lower/Order."+tt.method, tt.args...)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}

func TestEvaluationOrderArrayStore(t *testing.T) {
	g := NewWithT(t)
	m := loadOrder(t)

	v, err := m.Call("lower/Order.store", IntValue(1))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.Array().Ints()).To(Equal([]int32{0, 1, 0}))

	v, err = m.Call("lower/Order.bump", IntValue(1))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.Array().Ints()).To(Equal([]int32{7, 8, 7}))
}

// 复合赋值按 x = (T)(x op y) 计算
func TestCompoundNarrowing(t *testing.T) {
	m := loadOrder(t)

	tests := []struct {
		method string
		args   []Value
		want   Value
	}{
		{"wrap", []Value{IntValue(1), LongValue(4294967297)}, IntValue(2)},
		{"scale", []Value{IntValue(1), LongValue(2)}, IntValue(6)},
		{"scale", []Value{IntValue(1), LongValue(math.MaxInt32)}, IntValue(0)},
		{"ushr", []Value{IntValue(-2), LongValue(33)}, IntValue(math.MaxInt32)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s%v", tt.method, tt.args), func(t *testing.T) {
			g := NewWithT(t)
			got, err := m.Call("lower/Order."+tt.method, tt.args...)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}

	g := NewWithT(t)
	v, err := m.Call("lower/Order.narrow", LongValue(7))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.Array().Ints()).To(Equal([]int32{-2}))
}

func TestArrays(t *testing.T) {
	g := NewWithT(t)
	m := loadC1(t)

	v, err := m.Call("lower/C1.newIarray")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.Array().Len()).To(Equal(10))
	g.Expect(v.Array().Elem).To(Equal(types.KindInt))

	v, err = m.Call("lower/C1.newDarray")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.Array().Len()).To(Equal(128))
	g.Expect(v.Array().Elem).To(Equal(types.KindDouble))

	xs := NewArray(types.KindDouble, 3)
	xs.Set(0, DoubleValue(0.5))
	xs.Set(2, DoubleValue(-2.25))
	v, err = m.Call("lower/C1.pick", ArrayValue(xs), IntValue(2))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.Double()).To(Equal(-2.25))

	v, err = m.Call("lower/C1.at", ArrayValue(IntArrayOf(4, 5, 6)), IntValue(1))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.Int()).To(Equal(int32(5)))
	g.Expect(m.Stats().Allocations).To(Equal(uint64(2)))
}

func TestArrayString(t *testing.T) {
	g := NewWithT(t)
	g.Expect(IntArrayOf().String()).To(Equal("[]"))
	g.Expect(IntArrayOf(1, -2, 3).String()).To(Equal("[1, -2, 3]"))
	g.Expect(IntArrayOf(1, -2, 3).Ints()).To(Equal([]int32{1, -2, 3}))

	bs := NewArray(types.KindBoolean, 2)
	bs.Set(1, BoolValue(true))
	g.Expect(bs.String()).To(Equal("[false, true]"))

	var nilArray *Array
	g.Expect(nilArray.String()).To(Equal("null"))
}

// ============================================================================
// 条件跳转
// ============================================================================

var relOps = []struct {
	name string
	op   string
	eval func(a, b int64) bool
}{
	{"lt", "<", func(a, b int64) bool { return a < b }},
	{"le", "<=", func(a, b int64) bool { return a <= b }},
	{"gt", ">", func(a, b int64) bool { return a > b }},
	{"ge", ">=", func(a, b int64) bool { return a >= b }},
	{"eq", "==", func(a, b int64) bool { return a == b }},
	{"ne", "!=", func(a, b int64) bool { return a != b }},
}

// condSource 为每个关系运算符生成各种形式的条件
func condSource() string {
	var sb strings.Builder
	sb.WriteString("package cond;\n\npublic class Cond {\n")
	for _, op := range relOps {
		fmt.Fprintf(&sb, "    static int if_%s(int x) { if (x %s 0) { return 1; } return 0; }\n", op.name, op.op)
		fmt.Fprintf(&sb, "    static int rev_%s(int x) { if (0 %s x) { return 1; } return 0; }\n", op.name, op.op)
		fmt.Fprintf(&sb, "    static int long_%s(long x) { if (x %s 0) { return 1; } return 0; }\n", op.name, op.op)
		fmt.Fprintf(&sb, "    static int not_%s(int x) { if (!(x %s 0)) { return 0; } return 1; }\n", op.name, op.op)
		fmt.Fprintf(&sb, "    static boolean val_%s(int x) { return x %s 0; }\n", op.name, op.op)
		fmt.Fprintf(&sb, "    static int tern_%s(int x) { return x %s 0 ? 1 : 0; }\n", op.name, op.op)
		fmt.Fprintf(&sb, "    static int do_%s(int x) { int n = 0; do { n++; } while (n < 2 && x %s 0); return n - 1; }\n", op.name, op.op)
		fmt.Fprintf(&sb, "    static int while_%s(int x) { int n = 0; while (x %s 0) { n++; break; } return n; }\n", op.name, op.op)
	}
	sb.WriteString("}\n")
	return sb.String()
}

// TestBranchInversion 对每个运算符和 x ∈ {-1, 0, 1}，执行结果与源语义一致
func TestBranchInversion(t *testing.T) {
	table, fns := compile(t, source{name: "Cond.java", text: condSource()})
	m := New(table, nil)
	m.Load(fns...)

	forms := []string{"if", "rev", "long", "not", "val", "tern", "do", "while"}
	for _, op := range relOps {
		for _, form := range forms {
			for _, x := range []int64{-1, 0, 1} {
				name := fmt.Sprintf("%s_%s", form, op.name)
				want := op.eval(x, 0)
				if form == "rev" {
					want = op.eval(0, x)
				}

				arg := IntValue(int32(x))
				if form == "long" {
					arg = LongValue(x)
				}
				got, err := m.Call("cond/Cond."+name, arg)
				if err != nil {
					t.Fatalf("%s(%d): %v", name, x, err)
				}
				if (got.Int() == 1) != want {
					t.Errorf("%s(%d) = %d, want %v", name, x, got.Int(), want)
				}
			}
		}
	}
}

func TestTaken(t *testing.T) {
	tests := []struct {
		kind ir.InstKind
		want [3]bool // flags = -1, 0, 1
	}{
		{ir.Jump, [3]bool{true, true, true}},
		{ir.JumpEqual, [3]bool{false, true, false}},
		{ir.JumpNotEqual, [3]bool{true, false, true}},
		{ir.JumpLt, [3]bool{true, false, false}},
		{ir.JumpLtEq, [3]bool{true, true, false}},
		{ir.JumpGt, [3]bool{false, false, true}},
		{ir.JumpGtEq, [3]bool{false, true, true}},
	}
	for _, tt := range tests {
		for i, flags := range []int{-1, 0, 1} {
			if got := taken(tt.kind, flags); got != tt.want[i] {
				t.Errorf("taken(%s, %d) = %v, want %v", tt.kind, flags, got, tt.want[i])
			}
			if tt.kind != ir.Jump && taken(tt.kind.Negate(), flags) == tt.want[i] {
				t.Errorf("%s and %s agree on flags %d", tt.kind, tt.kind.Negate(), flags)
			}
		}
	}
}

// ============================================================================
// 算术
// ============================================================================

func TestIntOps(t *testing.T) {
	m := New(nil, nil)
	tests := []struct {
		kind ir.InstKind
		a, b int32
		want int32
	}{
		{ir.Iadd, math.MaxInt32, 1, math.MinInt32},
		{ir.Isub, 3, 10, -7},
		{ir.Imul, 0x10000, 0x10000, 0},
		{ir.Idiv, 7, -2, -3},
		{ir.Irem, -7, 3, -1},
		{ir.Iand, 0xf0, 0x3c, 0x30},
		{ir.Ior, 0xf0, 0x0f, 0xff},
		{ir.Ixor, 5, -1, -6},
		{ir.Ishl, 1, 33, 2},
		{ir.Ishr, -8, 1, -4},
		{ir.Iushr, -1, 28, 15},
	}
	for _, tt := range tests {
		got, err := m.intOp(tt.kind, tt.a, tt.b)
		if err != nil {
			t.Errorf("%s %d %d: %v", tt.kind, tt.a, tt.b, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s %d %d = %d, want %d", tt.kind, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLongOps(t *testing.T) {
	m := New(nil, nil)
	tests := []struct {
		kind ir.InstKind
		a, b int64
		want int64
	}{
		{ir.Ladd, math.MaxInt64, 1, math.MinInt64},
		{ir.Lsub, 3, 10, -7},
		{ir.Lmul, 1 << 32, 1 << 32, 0},
		{ir.Ldiv, -7, 2, -3},
		{ir.Lrem, 7, -3, 1},
		{ir.Land, 0xff00, 0x0ff0, 0x0f00},
		{ir.Lor, 1, 2, 3},
		{ir.Lxor, 1, -1, -2},
		{ir.Lshl, 1, 65, 2},
		{ir.Lshr, -16, 2, -4},
		{ir.Lushr, -1, 60, 15},
	}
	for _, tt := range tests {
		got, err := m.longOp(tt.kind, tt.a, tt.b)
		if err != nil {
			t.Errorf("%s %d %d: %v", tt.kind, tt.a, tt.b, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s %d %d = %d, want %d", tt.kind, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDoubleConversions(t *testing.T) {
	g := NewWithT(t)
	g.Expect(d2i(math.NaN())).To(Equal(int32(0)))
	g.Expect(d2i(1e20)).To(Equal(int32(math.MaxInt32)))
	g.Expect(d2i(-1e20)).To(Equal(int32(math.MinInt32)))
	g.Expect(d2i(-2.7)).To(Equal(int32(-2)))
	g.Expect(d2l(math.Inf(1))).To(Equal(int64(math.MaxInt64)))
	g.Expect(d2l(math.Inf(-1))).To(Equal(int64(math.MinInt64)))
	g.Expect(d2l(1e10)).To(Equal(int64(1e10)))
}

// TestHandBuiltFunction 执行直接构造的 IR
func TestHandBuiltFunction(t *testing.T) {
	g := NewWithT(t)

	// long f(int x) { return (long) x * 3 + (long) 1.5; }
	fn := &ir.Function{
		Name:       "f",
		Class:      "p/C",
		Params:     []types.Type{types.Int},
		Result:     types.Long,
		Slots:      4,
		ParamSlots: []int{0},
		Blocks: []*ir.Block{
			{ID: 0, Insts: []ir.Inst{
				{Kind: ir.ConvI2L, Dst: ir.Reg(1), Args: []ir.Arg{ir.Reg(0)}},
				{Kind: ir.Lmul, Dst: ir.Reg(1), Args: []ir.Arg{ir.Reg(1), ir.IntConst(3)}},
				{Kind: ir.Dload, Dst: ir.Reg(2), Args: []ir.Arg{ir.DoubleConst(1.5)}},
				{Kind: ir.ConvD2L, Dst: ir.Reg(3), Args: []ir.Arg{ir.Reg(2)}},
				{Kind: ir.Ladd, Dst: ir.Reg(1), Args: []ir.Arg{ir.Reg(1), ir.Reg(3)}},
				{Kind: ir.Lret, Args: []ir.Arg{ir.Reg(1)}},
			}},
		},
	}
	g.Expect(ir.Verify(fn)).To(Succeed())

	m := New(nil, nil)
	v, err := m.Run(fn, IntValue(-5))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.Long()).To(Equal(int64(-14)))
	g.Expect(m.Stats().InstructionsExecuted).To(Equal(uint64(6)))

	_, err = m.Run(fn)
	g.Expect(err).To(MatchError(ContainSubstring("want 1 arguments, got 0")))
}

// ============================================================================
// 运行时错误
// ============================================================================

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		args   []Value
		code   string
		frames []string
	}{
		{"division by zero", "div", []Value{IntValue(1), IntValue(0)}, diag.R0200, []string{"div"}},
		{"long division by zero", "lrem", []Value{LongValue(1), LongValue(0)}, diag.R0200, []string{"lrem"}},
		{"index out of bounds", "outer", []Value{ArrayValue(IntArrayOf(1, 2, 3))}, diag.R0100, []string{"at", "outer"}},
		{"negative index", "at", []Value{ArrayValue(IntArrayOf(1)), IntValue(-1)}, diag.R0100, []string{"at"}},
		{"null array", "at", []Value{{}, IntValue(0)}, diag.R0300, []string{"at"}},
		{"negative size", "make", []Value{IntValue(-1)}, diag.R0101, []string{"make"}},
		{"unbound native", "show", []Value{IntValue(1)}, diag.R0306, []string{"show"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			m := loadC1(t)
			_, err := m.Call("lower/C1."+tt.method, tt.args...)
			g.Expect(err).To(HaveOccurred())

			rerr := runtimeErr(t, err)
			g.Expect(rerr.Code).To(Equal(tt.code))
			var frames []string
			for _, f := range rerr.Frames {
				g.Expect(f.ClassName).To(Equal("lower/C1"))
				frames = append(frames, f.FunctionName)
			}
			g.Expect(frames).To(Equal(tt.frames))
			g.Expect(diag.IsRuntimeError(rerr.Code)).To(BeTrue())
		})
	}
}

func TestIndexErrorContext(t *testing.T) {
	g := NewWithT(t)
	m := loadC1(t)
	_, err := m.Call("lower/C1.outer", ArrayValue(IntArrayOf(1, 2, 3)))
	rerr := runtimeErr(t, err)
	g.Expect(rerr.Context).To(HaveKeyWithValue("index", int32(7)))
	g.Expect(rerr.Context).To(HaveKeyWithValue("length", 3))
	g.Expect(rerr.Error()).To(Equal("lower/C1.at: index 7 out of bounds for length 3 [R0100]"))
}

func TestLimits(t *testing.T) {
	t.Run("depth", func(t *testing.T) {
		g := NewWithT(t)
		m := loadC1(t)
		m.SetLimits(3, 0)
		_, err := m.Call("lower/C1.fib", IntValue(10))
		rerr := runtimeErr(t, err)
		g.Expect(rerr.Code).To(Equal(diag.R0402))
		g.Expect(rerr.Frames).To(HaveLen(3))

		_, err = m.Call("lower/C1.fib", IntValue(2))
		g.Expect(err).NotTo(HaveOccurred())
	})

	t.Run("steps", func(t *testing.T) {
		g := NewWithT(t)
		m := loadC1(t)
		m.SetLimits(0, 1000)
		_, err := m.Call("lower/C1.forever", IntValue(0))
		g.Expect(runtimeErr(t, err).Code).To(Equal(diag.R0401))
		g.Expect(m.Stats().InstructionsExecuted).To(Equal(uint64(1001)))
	})
}

func TestUndefinedMethod(t *testing.T) {
	g := NewWithT(t)
	m := loadC1(t)
	_, err := m.Call("lower/C1.nosuch")
	g.Expect(runtimeErr(t, err).Code).To(Equal(diag.R0305))

	_, err = New(nil, nil).Call("lower/C1.m1")
	g.Expect(err).To(MatchError(ContainSubstring("no symbol table")))
}

func TestStats(t *testing.T) {
	g := NewWithT(t)
	m := loadC1(t)
	_, err := m.Call("lower/C1.fib", IntValue(4))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(m.Stats().FunctionCalls).To(Equal(uint64(9)))
	g.Expect(m.Stats().MaxDepth).To(Equal(4))

	m.Reset()
	g.Expect(m.Stats()).To(Equal(Stats{}))
}

func TestNatives(t *testing.T) {
	g := NewWithT(t)
	var out bytes.Buffer
	m := loadC1(t)
	m.out = &out
	m.BindTestutil()
	g.Expect(m.Bound()).To(ContainElements("testutil/T.printInt", "testutil/T.ilil_i", "testutil/T.GC"))
	g.Expect(m.Bound()).To(HaveLen(10))

	_, err := m.Call("lower/C1.show", IntValue(-42))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out.String()).To(Equal("-42\n"))
	g.Expect(m.Stats().NativeCalls).To(Equal(uint64(1)))
}
