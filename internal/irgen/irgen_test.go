package irgen

import (
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/checker"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/irfmt"
	"github.com/tangzhangming/lowir/internal/parser"
	"github.com/tangzhangming/lowir/internal/symbol"
	"github.com/tangzhangming/lowir/internal/token"
	"github.com/tangzhangming/lowir/internal/types"
)

const testutilSource = `package testutil;

public class T {
    public static native void printInt(int x);
    public static native void printLong(long x);
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

func mustCheck(t *testing.T, name, src string) (*ast.File, *symbol.Table) {
	t.Helper()
	lib := parseFile(t, "T.java", testutilSource)
	file := parseFile(t, name, src)
	table := symbol.NewTable()
	if errs := checker.CheckFiles(table, lib, file); len(errs) != 0 {
		t.Fatalf("check %s: %v", name, errs)
	}
	table.Freeze()
	return file, table
}

func findMethod(t *testing.T, file *ast.File, name string) *ast.MethodDecl {
	t.Helper()
	for _, c := range file.Classes {
		for _, m := range c.Methods {
			if m.Name.Literal == name {
				return m
			}
		}
	}
	t.Fatalf("method %s not found", name)
	return nil
}

var methodHeader = regexp.MustCompile(`static\s+[\w\[\]]+\s+(\w+)\s*\(`)

// expectations 从方法前的注释中读取期望的 IR 文本
func expectations(src string) map[string][]string {
	want := make(map[string][]string)
	var buf []string
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "// slots="):
			buf = []string{strings.TrimPrefix(trimmed, "// ")}
		case strings.HasPrefix(trimmed, "//") && buf != nil:
			buf = append(buf, strings.TrimPrefix(trimmed, "// "))
		default:
			if m := methodHeader.FindStringSubmatch(line); m != nil && buf != nil {
				want[m[1]] = buf
				buf = nil
			}
		}
	}
	return want
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestLowerFixtures(t *testing.T) {
	data, err := os.ReadFile("testdata/Basic.java")
	if err != nil {
		t.Fatal(err)
	}
	src := string(data)
	file, table := mustCheck(t, "Basic.java", src)

	want := expectations(src)
	if len(want) == 0 {
		t.Fatal("no expectations found in testdata/Basic.java")
	}
	for name, expected := range want {
		t.Run(name, func(t *testing.T) {
			fn, err := Lower(findMethod(t, file, name))
			if err != nil {
				t.Fatalf("Lower(%s): %v", name, err)
			}
			got := lines(irfmt.Sprint(table, fn))
			if diff := cmp.Diff(expected, got); diff != "" {
				t.Errorf("Lower(%s) mismatch (-want +got):\n%s", name, diff)
			}
		})
	}
}

func TestParamSlots(t *testing.T) {
	file, _ := mustCheck(t, "Test.java", `package p;
class Test {
    static long mixed(int a, long b, int c, long d) { return d; }
    static void none() {}
    static double dd(double x, int[] xs, boolean f) { return x; }
}`)

	tests := []struct {
		name  string
		slots []int
		size  int
	}{
		{"mixed", []int{0, 1, 3, 4}, 6},
		{"none", nil, 0},
		{"dd", []int{0, 2, 3}, 4},
	}
	for _, tt := range tests {
		fn, err := Lower(findMethod(t, file, tt.name))
		if err != nil {
			t.Fatalf("Lower(%s): %v", tt.name, err)
		}
		if diff := cmp.Diff(tt.slots, fn.ParamSlots); diff != "" {
			t.Errorf("%s ParamSlots mismatch (-want +got):\n%s", tt.name, diff)
		}
		if fn.Slots != tt.size {
			t.Errorf("%s Slots = %d, want %d", tt.name, fn.Slots, tt.size)
		}
	}
}

func TestDeterministic(t *testing.T) {
	data, err := os.ReadFile("testdata/Basic.java")
	if err != nil {
		t.Fatal(err)
	}
	file, table := mustCheck(t, "Basic.java", string(data))
	for _, m := range file.Classes[0].Methods {
		a, err := Lower(m)
		if err != nil {
			t.Fatalf("Lower(%s): %v", m.Name.Literal, err)
		}
		b, err := Lower(m)
		if err != nil {
			t.Fatalf("Lower(%s): %v", m.Name.Literal, err)
		}
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%s lowered differently:\n%s", m.Name.Literal, diff)
		}
		if irfmt.Fingerprint(table, a) != irfmt.Fingerprint(table, b) {
			t.Errorf("%s fingerprints differ", m.Name.Literal)
		}
	}
}

func TestControlFlowShapes(t *testing.T) {
	file, table := mustCheck(t, "Test.java", `package p;
class Test {
    static int loop(int n) {
        int s = 0;
        for (int i = 0; i < n; i++) {
            if (i == 2) continue;
            if (i > 5) break;
            s += i;
        }
        return s;
    }
    static void dead(int x) {
        return;
    }
    static int neg(boolean b) {
        if (!b) return 1;
        return 0;
    }
    static boolean either(int x) {
        boolean r = x < 0 || x > 9;
        return r;
    }
    static int post(int x) {
        int y = x++;
        return x + y;
    }
}`)

	tests := []struct {
		name string
		want []string
	}{
		{"loop", []string{
			"slots=4",
			"  b0 r1 = Iload 0",
			"  b0 r2 = Iload 0",
			"label0:",
			"  b1 flags = Icmp r2 r0",
			"  b1 JumpGtEq label4 flags",
			"  b2 flags = Icmp r2 2",
			"  b2 JumpNotEqual label1 flags",
			"  b3 Jump label3",
			"label1:",
			"  b4 flags = Icmp r2 5",
			"  b4 JumpLtEq label2 flags",
			"  b5 Jump label4",
			"label2:",
			"  b6 r1 = Iadd r1 r2",
			"label3:",
			"  b7 r2 = Iadd r2 1",
			"  b7 Jump label0",
			"label4:",
			"  b8 r3 = Iload r1",
			"  b8 Iret r3",
		}},
		{"dead", []string{
			"slots=1",
			"  b0 Ret",
		}},
		{"neg", []string{
			"slots=1",
			"  b0 flags = Icmp r0 0",
			"  b0 JumpNotEqual label0 flags",
			"  b1 Iret 1",
			"label0:",
			"  b2 Iret 0",
		}},
		{"either", []string{
			"slots=3",
			"  b0 flags = Icmp r0 0",
			"  b0 JumpLt label0 flags",
			"  b1 flags = Icmp r0 9",
			"  b1 JumpLtEq label1 flags",
			"label0:",
			"  b2 r2 = Iload 1",
			"  b2 Jump label2",
			"label1:",
			"  b3 r2 = Iload 0",
			"label2:",
			"  b4 r1 = Iload r2",
			"  b4 Iret r1",
		}},
		{"post", []string{
			"slots=3",
			"  b0 r2 = Iload r0",
			"  b0 r0 = Iadd r0 1",
			"  b0 r1 = Iload r2",
			"  b0 r2 = Iadd r0 r1",
			"  b0 Iret r2",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := Lower(findMethod(t, file, tt.name))
			if err != nil {
				t.Fatalf("Lower(%s): %v", tt.name, err)
			}
			if diff := cmp.Diff(tt.want, lines(irfmt.Sprint(table, fn))); diff != "" {
				t.Errorf("Lower(%s) mismatch (-want +got):\n%s", tt.name, diff)
			}
		})
	}
}

func TestEvaluationOrderShapes(t *testing.T) {
	file, table := mustCheck(t, "Test.java", `package p;
class Test {
    static int postAdd(int x) {
        return x + x++;
    }
    static int pure(int x, int y) {
        return x + y;
    }
    static int store(int[] a, int i) {
        a[i] = i++;
        return i;
    }
    static int wrap(int x, long y) {
        x += y;
        return x;
    }
}`)

	tests := []struct {
		name string
		want []string
	}{
		{"postAdd", []string{
			"slots=4",
			"  b0 r1 = Iload r0",
			"  b0 r2 = Iload r0",
			"  b0 r0 = Iadd r0 1",
			"  b0 r3 = Iadd r1 r2",
			"  b0 Iret r3",
		}},
		{"pure", []string{
			"slots=3",
			"  b0 r2 = Iadd r0 r1",
			"  b0 Iret r2",
		}},
		{"store", []string{
			"slots=4",
			"  b0 r2 = Iload r1",
			"  b0 r3 = Iload r1",
			"  b0 r1 = Iadd r1 1",
			"  b0 IntArraySet r0 r2 r3",
			"  b0 Iret r1",
		}},
		{"wrap", []string{
			"slots=4",
			"  b0 r3 = ConvI2L r0",
			"  b0 r3 = Ladd r3 r1",
			"  b0 r0 = ConvL2I r3",
			"  b0 Iret r0",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := Lower(findMethod(t, file, tt.name))
			if err != nil {
				t.Fatalf("Lower(%s): %v", tt.name, err)
			}
			if diff := cmp.Diff(tt.want, lines(irfmt.Sprint(table, fn))); diff != "" {
				t.Errorf("Lower(%s) mismatch (-want +got):\n%s", tt.name, diff)
			}
		})
	}
}

func TestLowerErrors(t *testing.T) {
	file, _ := mustCheck(t, "Test.java", `package p;
class Test {
    static double dadd(double a) { return a + a; }
    static int dcmp(double a) { if (a < 1.5) return 1; return 0; }
    static double dneg(double a) { return -a; }
    int inst() { return 1; }
    static native int host(int x);
}`)

	tests := []struct {
		name string
		kind error
		msg  string
	}{
		{"dadd", ErrUnsupportedConstruct, "double arithmetic"},
		{"dcmp", ErrUnsupportedConstruct, "double comparison"},
		{"dneg", ErrUnsupportedConstruct, "double arithmetic"},
		{"inst", ErrUnsupportedConstruct, "instance methods"},
		{"host", ErrUnsupportedConstruct, "native method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := Lower(findMethod(t, file, tt.name))
			if fn != nil {
				t.Errorf("Lower(%s) returned a partial function", tt.name)
			}
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Lower(%s) = %v, want %v", tt.name, err, tt.kind)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("Lower(%s) = %q, want it to mention %q", tt.name, err, tt.msg)
			}
			var lerr *Error
			if !errors.As(err, &lerr) || lerr.Method == "" {
				t.Errorf("Lower(%s) error %v is not an *Error with a method name", tt.name, err)
			}
		})
	}
}

func TestUncheckedMethod(t *testing.T) {
	file := parseFile(t, "Test.java", `package p;
class Test {
    static int f() { return 1; }
}`)
	_, err := Lower(file.Classes[0].Methods[0])
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Lower(unchecked) = %v, want ErrTypeMismatch", err)
	}
}

// catch 运行 f 并返回其中触发的降级错误
func catch(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = r.(bailout).err
		}
	}()
	f()
	return nil
}

func TestUnresolvedLabel(t *testing.T) {
	g := &generator{name: "Test.f", result: types.Void, falls: true, frame: &frame{regs: map[*ast.LocalVar]int{}}}
	dangling := g.newLabel()
	g.emitJump(ir.Jump, dangling)

	err := catch(func() { g.finish(token.Position{Line: 3, Column: 1}) })
	if !errors.Is(err, ErrUnresolvedLabel) {
		t.Fatalf("finish() = %v, want ErrUnresolvedLabel", err)
	}
	if code := err.(*Error).Code(); code != "L0003" {
		t.Errorf("Code() = %s, want L0003", code)
	}
}

func TestLabelsShareBlock(t *testing.T) {
	g := &generator{name: "Test.f", result: types.Void, falls: true, frame: &frame{regs: map[*ast.LocalVar]int{}}}
	a, b := g.newLabel(), g.newLabel()
	g.emitOp(ir.Icmp, ir.Flags(), ir.Reg(0), ir.IntConst(0))
	g.emitJump(ir.JumpEqual, a)
	g.emitJump(ir.Jump, b)
	g.place(a)
	g.place(b)
	if err := catch(func() { g.finish(token.Position{}) }); err != nil {
		t.Fatalf("finish() = %v", err)
	}
	if a.block != 2 || b.block != 2 {
		t.Errorf("labels bound to b%d and b%d, want b2", a.block, b.block)
	}
	if got := g.blocks[2].Insts[0].Kind; got != ir.Ret {
		t.Errorf("b2 starts with %s, want Ret", got)
	}
}

func TestTempFreelist(t *testing.T) {
	f := &frame{regs: map[*ast.LocalVar]int{}, size: 2}
	r2, r3 := f.newTmp(), f.newTmp()
	if r2 != ir.Reg(2) || r3 != ir.Reg(3) {
		t.Fatalf("newTmp() = %s, %s, want r2, r3", r2, r3)
	}
	f.release(r3)
	f.release(r2)
	f.release(ir.Reg(1))      // 局部变量不会进入空闲链表
	f.release(ir.IntConst(7)) // 立即数同理
	if got := f.newTmp(); got != ir.Reg(2) {
		t.Errorf("newTmp() after release = %s, want r2 (last released)", got)
	}
	if got := f.newTmp(); got != ir.Reg(3) {
		t.Errorf("newTmp() = %s, want r3", got)
	}
	if got := f.newTmp(); got != ir.Reg(4) {
		t.Errorf("newTmp() = %s, want r4", got)
	}
	if f.slots() != 5 {
		t.Errorf("slots() = %d, want 5", f.slots())
	}
}
