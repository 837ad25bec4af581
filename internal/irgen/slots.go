package irgen

import (
	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/ir"
)

// ============================================================================
// 寄存器分配
// ============================================================================
//
// 寄存器文件布局:
//   - 参数按声明顺序占据最低编号，int/boolean/数组占 1 个，long/double 占 2 个
//   - 命名局部变量紧随参数，嵌套块结束后其寄存器可被后续声明复用（与 javac 相同）
//   - 临时寄存器从局部帧之后开始，每个占 1 个 64 位 slot，按 LIFO 复用
//
// ============================================================================

// frame 方法的寄存器帧
type frame struct {
	regs       map[*ast.LocalVar]int
	paramSlots []int
	size       int // 局部帧大小（参数 + 局部变量的峰值）

	free  []int // 已释放的临时寄存器，栈顶最先复用
	temps int   // 临时寄存器峰值
}

// newFrame 预先为参数和所有局部变量分配寄存器
func newFrame(m *ast.MethodDecl) *frame {
	f := &frame{regs: make(map[*ast.LocalVar]int)}
	top := 0
	for _, p := range m.Params {
		f.paramSlots = append(f.paramSlots, top)
		top = f.declare(p.Local, top)
	}
	if m.Body != nil {
		f.layout(m.Body, top)
	}
	return f
}

func (f *frame) declare(v *ast.LocalVar, top int) int {
	if v == nil {
		return top
	}
	f.regs[v] = top
	top += v.Type.Width()
	if top > f.size {
		f.size = top
	}
	return top
}

// layout 为语句中的声明分配寄存器，返回同一作用域中下一条语句可用的起点
func (f *frame) layout(stmt ast.Statement, top int) int {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		t := top
		for _, inner := range s.Statements {
			t = f.layout(inner, t)
		}
		return top

	case *ast.VarDeclStmt:
		return f.declare(s.Local, top)

	case *ast.IfStmt:
		f.layout(s.Then, top)
		if s.Else != nil {
			f.layout(s.Else, top)
		}

	case *ast.WhileStmt:
		f.layout(s.Body, top)

	case *ast.DoWhileStmt:
		f.layout(s.Body, top)

	case *ast.ForStmt:
		t := top
		if s.Init != nil {
			t = f.layout(s.Init, t)
		}
		f.layout(s.Body, t)

	case *ast.ForEachStmt:
		t := f.declare(s.Array, top)
		t = f.declare(s.Index, t)
		t = f.declare(s.Local, t)
		f.layout(s.Body, t)
	}
	return top
}

// local 返回局部变量的寄存器
func (f *frame) local(v *ast.LocalVar) (ir.Arg, bool) {
	slot, ok := f.regs[v]
	return ir.Reg(slot), ok
}

// newTmp 分配一个临时寄存器
func (f *frame) newTmp() ir.Arg {
	if n := len(f.free); n > 0 {
		slot := f.free[n-1]
		f.free = f.free[:n-1]
		return ir.Reg(slot)
	}
	slot := f.size + f.temps
	f.temps++
	return ir.Reg(slot)
}

// isTmp 判断操作数是否是临时寄存器
func (f *frame) isTmp(a ir.Arg) bool {
	return a.IsReg() && a.Slot() >= f.size
}

// release 归还临时寄存器；局部变量和立即数忽略
func (f *frame) release(a ir.Arg) {
	if f.isTmp(a) {
		f.free = append(f.free, a.Slot())
	}
}

// slots 返回函数需要的寄存器总数
func (f *frame) slots() int {
	return f.size + f.temps
}
