package irgen

import (
	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// 调用与数组
// ============================================================================

// lowerCall 降级静态方法调用
//
// 参数从左到右求值到寄存器（立即数先物化），目标寄存器在释放参数寄存器之前分配。
// native 方法使用 CallGo，其余使用 CallStatic。
func (g *generator) lowerCall(e *ast.CallExpr, hint ir.Arg, needValue bool) ir.Arg {
	m := e.Method
	if m == nil {
		g.fail(ErrTypeMismatch, e.Pos(), "call to %s was not resolved", e.Name.Literal)
	}
	if !m.Static {
		g.fail(ErrUnsupportedConstruct, e.Pos(), "call to instance method %s", m.Name)
	}
	if len(e.Args) != len(m.Params) {
		g.fail(ErrTypeMismatch, e.Pos(), "%s expects %d arguments, got %d", m.Name, len(m.Params), len(e.Args))
	}

	args := make([]ir.Arg, 0, len(e.Args)+1)
	args = append(args, ir.Symbol(m.ID))
	for i, arg := range e.Args {
		if t := g.typeOf(arg); t != m.Params[i] {
			g.fail(ErrTypeMismatch, arg.Pos(), "argument %d of %s: %s is not %s", i+1, m.Name, t, m.Params[i])
		}
		v := g.stable(g.lowerExpr(arg, ir.Arg{}), m.Params[i], e.Args[i+1:]...)
		args = append(args, g.toReg(v, m.Params[i]))
	}

	var dst ir.Arg
	if m.Result.Kind != types.KindVoid && needValue {
		dst = g.dest(hint)
	}
	kind := ir.CallStatic
	if m.Native {
		kind = ir.CallGo
	}
	g.emitOp(kind, dst, args...)
	g.release(args[1:]...)
	return dst
}

// lowerNewArray 降级 new T[n] 与 new T[]{...}
func (g *generator) lowerNewArray(e *ast.NewArrayExpr, t types.Type, hint ir.Arg) ir.Arg {
	elem := t.ElemType()
	kind := newArrayKind(elem)
	if kind == ir.Invalid {
		g.fail(ErrUnsupportedConstruct, e.Pos(), "array of %s", elem)
	}

	if !e.HasInit {
		size := g.lowerExpr(e.Size, ir.Arg{})
		dst := g.dest(hint)
		g.emitOp(kind, dst, size)
		g.release(size)
		return dst
	}

	dst := g.dest(hint)
	g.emitOp(kind, dst, ir.IntConst(int64(len(e.Init))))
	set := arraySetKind(elem)
	for i, el := range e.Init {
		if et := g.typeOf(el); et != elem {
			g.fail(ErrTypeMismatch, el.Pos(), "array element of type %s in %s", et, t)
		}
		v := g.lowerExpr(el, ir.Arg{})
		g.emitOp(set, ir.Arg{}, dst, ir.IntConst(int64(i)), v)
		g.release(v)
	}
	return dst
}

// newArrayKind boolean 数组与 int 数组共用一种表示
func newArrayKind(elem types.Type) ir.InstKind {
	switch elem.Kind {
	case types.KindInt, types.KindBoolean:
		return ir.NewIntArray
	case types.KindLong:
		return ir.NewLongArray
	case types.KindDouble:
		return ir.NewDoubleArray
	}
	return ir.Invalid
}

func arrayGetKind(elem types.Type) ir.InstKind {
	switch elem.Kind {
	case types.KindLong:
		return ir.LongArrayGet
	case types.KindDouble:
		return ir.DoubleArrayGet
	}
	return ir.IntArrayGet
}

func arraySetKind(elem types.Type) ir.InstKind {
	switch elem.Kind {
	case types.KindLong:
		return ir.LongArraySet
	case types.KindDouble:
		return ir.DoubleArraySet
	}
	return ir.IntArraySet
}
