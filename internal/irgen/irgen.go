// Package irgen 把经过类型检查的方法体降级为基本块形式的 IR。
//
// 降级是自顶向下的递归过程：语句降级器把结构化控制流线性化为带标签的基本块，
// 表达式降级器按 (运算符, 类型) 选择类型化的操作码，两者共享同一个寄存器帧
// 和块游标。每次 Lower 调用只处理一个方法，不共享可变状态。
package irgen

import (
	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/symbol"
	"github.com/tangzhangming/lowir/internal/token"
	"github.com/tangzhangming/lowir/internal/types"
)

// generator 单个方法的降级状态
type generator struct {
	name   string
	method *symbol.Method
	result types.Type
	frame  *frame

	blocks    []*ir.Block
	cur       *ir.Block // nil 表示当前没有打开的块
	falls     bool      // 上一个块没有终止指令，会落入下一个块
	mergeCopy bool      // 当前块是循环出口且尚未发射指令
	loopExit  bool      // 刚发射了循环回边，下一个打开的块是循环出口
	labels    []*label
	pending   []*label // 等待绑定到下一个块的标签
	jumps     []jumpSite
	loops     []loop
}

// loop 当前循环的 break 与 continue 目标
type loop struct {
	brk  *label
	cont *label
}

// Lower 把一个静态方法降级为 IR
//
// 方法必须已经通过检查器（每个表达式带有静态类型，每个名字已解析）。
// 失败时返回 *Error，不会返回部分生成的函数。
func Lower(m *ast.MethodDecl) (fn *ir.Function, err error) {
	g := &generator{name: m.Name.Literal, falls: true}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			fn, err = nil, b.err
		}
	}()

	g.check(m)
	g.frame = newFrame(m)
	g.lowerBlock(m.Body)
	g.finish(m.Body.End())

	fn = &ir.Function{
		Name:       m.Name.Literal,
		Class:      g.method.Class.QualifiedName(),
		Symbol:     g.method.ID,
		Params:     g.method.Params,
		Result:     g.method.Result,
		Slots:      g.frame.slots(),
		ParamSlots: g.frame.paramSlots,
		Blocks:     g.blocks,
	}
	if verr := ir.Verify(fn); verr != nil {
		return nil, &Error{Kind: ErrInvalidIR, Pos: m.Pos(), Method: g.name, Msg: verr.Error()}
	}
	return fn, nil
}

// check 检查方法能否被降级
func (g *generator) check(m *ast.MethodDecl) {
	if m.Symbol == nil {
		g.fail(ErrTypeMismatch, m.Pos(), "method was not resolved by the checker")
	}
	g.method = m.Symbol
	g.result = m.Symbol.Result
	if g.method.Class != nil && g.method.Class.Name != "" {
		g.name = g.method.Class.Name + "." + m.Name.Literal
	}

	switch {
	case m.Body == nil:
		g.fail(ErrUnsupportedConstruct, m.Pos(), "native method has no body")
	case !m.Modifiers.Static:
		g.fail(ErrUnsupportedConstruct, m.Pos(), "instance methods are not supported")
	}
	for _, p := range m.Params {
		if p.Local == nil {
			g.fail(ErrTypeMismatch, p.Name.Pos, "parameter %s was not resolved", p.Name.Literal)
		}
		if p.Local.Type.Kind == types.KindInvalid || p.Local.Type.Kind == types.KindVoid {
			g.fail(ErrTypeMismatch, p.Name.Pos, "parameter %s has no valid type", p.Name.Literal)
		}
	}
}

// typeOf 返回表达式的静态类型，未标注类型的表达式视为检查器遗漏
func (g *generator) typeOf(e ast.Expression) types.Type {
	t := e.Type()
	if t.Kind == types.KindInvalid {
		g.fail(ErrTypeMismatch, e.Pos(), "expression %s has no type", e)
	}
	return t
}

// local 返回局部变量的寄存器
func (g *generator) local(v *ast.LocalVar, pos token.Position) ir.Arg {
	if v == nil {
		g.fail(ErrTypeMismatch, pos, "unresolved name")
	}
	reg, ok := g.frame.local(v)
	if !ok {
		g.fail(ErrTypeMismatch, pos, "local %s has no register", v.Name)
	}
	return reg
}

func (g *generator) newTmp() ir.Arg { return g.frame.newTmp() }

func (g *generator) release(args ...ir.Arg) {
	for i := len(args) - 1; i >= 0; i-- {
		g.frame.release(args[i])
	}
}

// dest 返回目标寄存器：有提示时使用提示，否则分配临时寄存器
func (g *generator) dest(hint ir.Arg) ir.Arg {
	if hint.IsReg() {
		return hint
	}
	return g.newTmp()
}
