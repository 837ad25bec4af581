package checker

import (
	"testing"

	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/errors"
	"github.com/tangzhangming/lowir/internal/parser"
	"github.com/tangzhangming/lowir/internal/symbol"
	"github.com/tangzhangming/lowir/internal/types"
)

const testutilSource = `package testutil;

public class T {
    public static native void printInt(int x);
    public static native void printLong(long x);
    public static native void printIntArray(int[] xs);
    public static native int ilil_i(int a1, long a2, int a3, long a4);
}
`

func parseFile(t *testing.T, name, src string) *ast.File {
	t.Helper()
	p := parser.New(src, name)
	file := p.Parse()
	if p.HasErrors() {
		t.Fatalf("parse %s: %v", name, p.Errors())
	}
	return file
}

// checkSource 检查一个使用 testutil.T 的源文件
func checkSource(t *testing.T, src string) (*ast.File, *symbol.Table, []Error) {
	t.Helper()
	lib := parseFile(t, "T.java", testutilSource)
	file := parseFile(t, "Test.java", src)
	table := symbol.NewTable()
	errs := CheckFiles(table, lib, file)
	return file, table, errs
}

func mustCheck(t *testing.T, src string) (*ast.File, *symbol.Table) {
	t.Helper()
	file, table, errs := checkSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	return file, table
}

func findMethod(file *ast.File, name string) *ast.MethodDecl {
	for _, c := range file.Classes {
		for _, m := range c.Methods {
			if m.Name.Literal == name {
				return m
			}
		}
	}
	return nil
}

func TestResolveLocals(t *testing.T) {
	file, _ := mustCheck(t, `package p;
class Test {
    static int sqrt(int n) {
        int b = 0;
        while (n >= 0) {
            n = n - b;
            b++;
            n = n - b;
        }
        return b - 1;
    }
}`)

	m := findMethod(file, "sqrt")
	param := m.Params[0].Local
	decl := m.Body.Statements[0].(*ast.VarDeclStmt).Local
	if param == nil || !param.Param || param.Type != types.Int {
		t.Fatalf("param local = %+v", param)
	}

	var refs []*ast.LocalVar
	ast.Walk(m.Body, func(n ast.Node) bool {
		if id, ok := n.(*ast.Identifier); ok {
			refs = append(refs, id.Local)
		}
		return true
	})
	if len(refs) == 0 {
		t.Fatalf("no identifiers found")
	}
	for _, ref := range refs {
		if ref != param && ref != decl {
			t.Errorf("identifier resolved to unexpected local %v", ref)
		}
	}

	ret := m.Body.Statements[2].(*ast.ReturnStmt)
	if ret.Value.Type() != types.Int {
		t.Errorf("return value type = %s, want int", ret.Value.Type())
	}
}

func TestLongContextLiterals(t *testing.T) {
	file, _ := mustCheck(t, `package p;
class Test {
    static long labs(long x) {
        return (x < 0) ? -x : x;
    }
    static long lucky7() { return 777; }
}`)

	labs := findMethod(file, "labs")
	ternary := labs.Body.Statements[0].(*ast.ReturnStmt).Value.(*ast.TernaryExpr)
	cond := ternary.Condition.(*ast.BinaryExpr)
	lit, ok := cond.Right.(*ast.IntegerLiteral)
	if !ok {
		t.Fatalf("comparison operand is %T, want *ast.IntegerLiteral", cond.Right)
	}
	if lit.Type() != types.Long {
		t.Errorf("literal type = %s, want long", lit.Type())
	}
	if ternary.Type() != types.Long {
		t.Errorf("ternary type = %s, want long", ternary.Type())
	}

	lucky := findMethod(file, "lucky7")
	ret := lucky.Body.Statements[0].(*ast.ReturnStmt).Value
	if _, ok := ret.(*ast.IntegerLiteral); !ok || ret.Type() != types.Long {
		t.Errorf("return 777 = %T %s, want long literal", ret, ret.Type())
	}
}

func TestWideningConversions(t *testing.T) {
	file, _ := mustCheck(t, `package p;
import testutil.T;
class Test {
    static void run(int x) {
        T.printLong(x);
        long y = x + 1;
        double d = 1;
        T.printInt(T.ilil_i(1, 2, 3, 4));
    }
}`)

	run := findMethod(file, "run")
	call := run.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	cast, ok := call.Args[0].(*ast.CastExpr)
	if !ok || !cast.Implicit || cast.To != types.Long {
		t.Fatalf("printLong arg = %#v, want implicit (long) cast", call.Args[0])
	}
	if call.Method == nil || call.Method.QualifiedName() != "testutil/T.printLong" || !call.Method.Native {
		t.Errorf("call target = %v", call.Method)
	}

	y := run.Body.Statements[1].(*ast.VarDeclStmt)
	if cast, ok := y.Value.(*ast.CastExpr); !ok || cast.X.Type() != types.Int {
		t.Errorf("long y = x + 1: value = %T, want cast of int sum", y.Value)
	}

	d := run.Body.Statements[2].(*ast.VarDeclStmt)
	if lit, ok := d.Value.(*ast.DoubleLiteral); !ok || lit.Value != 1 {
		t.Errorf("double d = 1: value = %#v", d.Value)
	}

	outer := run.Body.Statements[3].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	inner := outer.Args[0].(*ast.CallExpr)
	for i, want := range []types.Type{types.Int, types.Long, types.Int, types.Long} {
		if got := inner.Args[i].Type(); got != want {
			t.Errorf("ilil_i arg %d type = %s, want %s", i, got, want)
		}
	}
}

func TestCompoundPromotion(t *testing.T) {
	file, _ := mustCheck(t, `package p;
class Test {
    static int f(int x, long y) {
        x += y;
        x *= 2L;
        x <<= y;
        long z = 1;
        z += x;
        return x;
    }
}`)

	f := findMethod(file, "f")
	assign := func(i int) *ast.AssignExpr {
		return f.Body.Statements[i].(*ast.ExprStmt).Expr.(*ast.AssignExpr)
	}

	tests := []struct {
		stmt   int
		typ    types.Type
		opType types.Type
		right  types.Type
	}{
		{0, types.Int, types.Long, types.Long}, // x += y
		{1, types.Int, types.Long, types.Long}, // x *= 2L
		{2, types.Int, types.Int, types.Int},   // 移位距离收窄为 int
		{4, types.Long, types.Long, types.Long},
	}
	for _, tt := range tests {
		e := assign(tt.stmt)
		if e.Type() != tt.typ || e.OpType != tt.opType || e.Right.Type() != tt.right {
			t.Errorf("%s: type %s, op type %s, right %s; want %s, %s, %s",
				e, e.Type(), e.OpType, e.Right.Type(), tt.typ, tt.opType, tt.right)
		}
	}
	if cast, ok := assign(4).Right.(*ast.CastExpr); !ok || !cast.Implicit {
		t.Errorf("z += x: right = %T, want implicit cast", assign(4).Right)
	}
}

func TestConstantsAndLength(t *testing.T) {
	file, table := mustCheck(t, `package p;
class Test {
    private static final int TRUE = 1;
    static final long BIG = -(1L << 40);
    static final int MASK = 0xff & ~TRUE;
    static int first(int[] xs) {
        if (xs.length == TRUE) {
            return xs[0];
        }
        return Test.MASK;
    }
}`)

	class := table.Class("p", "Test")
	if class == nil {
		t.Fatalf("class p.Test not registered")
	}
	tests := []struct {
		name  string
		typ   types.Type
		value int64
	}{
		{"TRUE", types.Int, 1},
		{"BIG", types.Long, -(1 << 40)},
		{"MASK", types.Int, 0xfe},
	}
	for _, tt := range tests {
		k := class.Const(tt.name)
		if k == nil {
			t.Errorf("const %s missing", tt.name)
			continue
		}
		if k.Type != tt.typ || k.Value != tt.value {
			t.Errorf("const %s = %s %d, want %s %d", tt.name, k.Type, k.Value, tt.typ, tt.value)
		}
	}

	first := findMethod(file, "first")
	cond := first.Body.Statements[0].(*ast.IfStmt).Condition.(*ast.BinaryExpr)
	if _, ok := cond.Left.(*ast.LengthExpr); !ok {
		t.Errorf("xs.length = %T, want *ast.LengthExpr", cond.Left)
	}
	if lit, ok := cond.Right.(*ast.IntegerLiteral); !ok || lit.Value != 1 {
		t.Errorf("TRUE = %#v, want inlined literal 1", cond.Right)
	}
	ret := first.Body.Statements[1].(*ast.ReturnStmt).Value
	if lit, ok := ret.(*ast.IntegerLiteral); !ok || lit.Value != 0xfe {
		t.Errorf("Test.MASK = %#v, want inlined literal 254", ret)
	}
}

func TestForEachLocals(t *testing.T) {
	file, _ := mustCheck(t, `package p;
import testutil.T;
class Test {
    static void loop(int[] xs) {
        for (int x : xs) {
            T.printInt(x);
        }
    }
}`)

	loop := findMethod(file, "loop")
	fe := loop.Body.Statements[0].(*ast.ForEachStmt)
	if fe.Array == nil || !fe.Array.Hidden || fe.Array.Type != types.IntArray {
		t.Errorf("hidden array = %+v", fe.Array)
	}
	if fe.Index == nil || !fe.Index.Hidden || fe.Index.Type != types.Int {
		t.Errorf("hidden index = %+v", fe.Index)
	}
	call := fe.Body.(*ast.BlockStmt).Statements[0].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	if call.Args[0].(*ast.Identifier).Local != fe.Local {
		t.Errorf("loop variable not resolved to for-each local")
	}
}

func TestSymbolIDs(t *testing.T) {
	_, table := mustCheck(t, `package p;
class Test {
    static int a() { return 1; }
    static int b() { return a(); }
}`)

	m := table.LookupQualified("p/Test.b")
	if m == nil {
		t.Fatalf("p/Test.b not found")
	}
	if m.ID != symbol.NewID(1, 0, 1) {
		t.Errorf("ID = %s, want sym{1,0,1}", m.ID)
	}
	if got := table.Method(m.ID); got != m {
		t.Errorf("Method(ID) = %v", got)
	}
	if m.Descriptor() != "()I" || !m.Static {
		t.Errorf("descriptor = %s static = %v", m.Descriptor(), m.Static)
	}
}

func TestCheckErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"undefined variable", `static int f() { return y; }`, errors.E0100},
		{"redeclared", `static void f(int x) { int x = 1; }`, errors.E0101},
		{"assign constant", `static final int K = 1; static void f() { K = 2; }`, errors.E0102},
		{"lossy conversion", `static int f(long x) { return x; }`, errors.E0203},
		{"bad assignment", `static void f() { int x = true; }`, errors.E0202},
		{"bad operands", `static int f(boolean b) { return b + 1; }`, errors.E0205},
		{"not an array", `static int f(int x) { return x[0]; }`, errors.E0207},
		{"missing return", `static int f(int x) { if (x < 0) { return 1; } }`, errors.E0208},
		{"literal too large", `static int f() { return 2147483648; }`, errors.E0209},
		{"undefined method", `static void f() { g(); }`, errors.E0300},
		{"too few args", `static void f(int x) { f(); }`, errors.E0301},
		{"too many args", `static void f() { f(1); }`, errors.E0302},
		{"arg type", `static void f(int x) { f(1L); }`, errors.E0303},
		{"break outside loop", `static void f() { break; }`, errors.E0304},
		{"continue outside loop", `static void f() { continue; }`, errors.E0305},
		{"instance call", `void g() {} static void f() { g(); }`, errors.E0307},
		{"unknown class", `static void f() { Nope.g(); }`, errors.E0400},
		{"unknown field", `static int f() { return Test.NOPE; }`, errors.E0402},
		{"not static final", `static int K = 1;`, errors.E0404},
		{"array size type", `static void f(long n) { int[] a = new int[n]; }`, errors.E0600},
		{"non-constant init", `static final int K = f(); static int f() { return 1; }`, errors.E0601},
		{"not a statement", `static void f(int x) { x + 1; }`, errors.E0010},
		{"condition type", `static void f(int x) { if (x) { } }`, errors.E0200},
		{"void return value", `static void f() { return 1; }`, errors.E0203},
		{"duplicate method", `static void f() {} static void f() {}`, errors.E0401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, errs := checkSource(t, "package p;\nclass Test {\n"+tt.body+"\n}\n")
			if len(errs) == 0 {
				t.Fatalf("expected %s, got no errors", tt.code)
			}
			if errs[0].Code != tt.code {
				t.Errorf("first error = %s (%s), want %s", errs[0].Code, errs[0].Message, tt.code)
			}
		})
	}
}

func TestSpellingHint(t *testing.T) {
	_, _, errs := checkSource(t, `package p;
import testutil.T;
class Test {
    static void f(int count) {
        T.printIn(count);
        T.printInt(cuont);
    }
}`)
	if len(errs) != 2 {
		t.Fatalf("errors = %v", errs)
	}
	if errs[0].Hint != "printInt" {
		t.Errorf("method hint = %q, want printInt", errs[0].Hint)
	}
	if errs[1].Hint != "count" {
		t.Errorf("variable hint = %q, want count", errs[1].Hint)
	}
}

func TestReachability(t *testing.T) {
	tests := []struct {
		body    string
		missing bool
	}{
		{`if (x < 0) { return 1; } else { return 2; }`, false},
		{`while (true) { x++; }`, false},
		{`while (true) { if (x > 3) { break; } }`, true},
		{`for (;;) { }`, false},
		{`for (;;) { for (;;) { break; } }`, false},
		{`do { return 1; } while (x > 0);`, false},
		{`do { if (x > 0) { continue; } return 1; } while (x > 0);`, true},
		{`while (x > 0) { return 1; }`, true},
		{`{ return x; }`, false},
	}
	for _, tt := range tests {
		_, _, errs := checkSource(t, "package p;\nclass Test {\nstatic int f(int x) {\n"+tt.body+"\n}\n}\n")
		missing := false
		for _, err := range errs {
			if err.Code == errors.E0208 {
				missing = true
			} else {
				t.Errorf("%s: unexpected error %v", tt.body, err)
			}
		}
		if missing != tt.missing {
			t.Errorf("%s: missing return = %v, want %v", tt.body, missing, tt.missing)
		}
	}
}
