package irgen

import (
	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/token"
	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// 条件跳转
// ============================================================================
//
// jumpIfFalse 用于 if/while 的守卫，条件不成立时跳转，因此使用取反后的操作码：
//
//	a <  b  ->  JumpGtEq
//	a <= b  ->  JumpGt
//	a >= b  ->  JumpLt
//	a >  b  ->  JumpLtEq
//	a == b  ->  JumpNotEqual
//	a != b  ->  JumpEqual
//
// jumpIfTrue 用于 do-while 的回边，使用直接对应的操作码。
//
// ============================================================================

// jumpOps 比较运算符在条件成立时跳转的操作码
var jumpOps = map[token.TokenType]ir.InstKind{
	token.LT: ir.JumpLt,
	token.LE: ir.JumpLtEq,
	token.GT: ir.JumpGt,
	token.GE: ir.JumpGtEq,
	token.EQ: ir.JumpEqual,
	token.NE: ir.JumpNotEqual,
}

func (g *generator) jumpIfFalse(cond ast.Expression, target *label) {
	g.condJump(cond, target, false)
}

func (g *generator) jumpIfTrue(cond ast.Expression, target *label) {
	g.condJump(cond, target, true)
}

// condJump 当 cond 的值等于 when 时跳转到 target，否则落入下一个块
func (g *generator) condJump(cond ast.Expression, target *label, when bool) {
	if t := g.typeOf(cond); t.Kind != types.KindBoolean {
		g.fail(ErrTypeMismatch, cond.Pos(), "condition of type %s", t)
	}

	switch e := cond.(type) {
	case *ast.BoolLiteral:
		if e.Value == when {
			g.emitJump(ir.Jump, target)
		}
		return

	case *ast.UnaryExpr:
		if e.Operator.Type == token.NOT {
			g.condJump(e.Operand, target, !when)
			return
		}

	case *ast.BinaryExpr:
		switch e.Operator.Type {
		case token.AND:
			if !when {
				g.condJump(e.Left, target, false)
				g.condJump(e.Right, target, false)
				return
			}
			skip := g.newLabel()
			g.condJump(e.Left, skip, false)
			g.condJump(e.Right, target, true)
			g.place(skip)
			return

		case token.OR:
			if when {
				g.condJump(e.Left, target, true)
				g.condJump(e.Right, target, true)
				return
			}
			skip := g.newLabel()
			g.condJump(e.Left, skip, true)
			g.condJump(e.Right, target, false)
			g.place(skip)
			return
		}

		if kind, ok := jumpOps[e.Operator.Type]; ok {
			g.compare(e.Left, e.Right)
			if !when {
				kind = kind.Negate()
			}
			g.emitJump(kind, target)
			return
		}
	}

	// 其余布尔值（变量、调用、数组元素、& | ^）与 0 比较
	v := g.toReg(g.lowerExpr(cond, ir.Arg{}), types.Boolean)
	g.emitOp(ir.Icmp, ir.Flags(), v, ir.IntConst(0))
	g.release(v)
	if when {
		g.emitJump(ir.JumpNotEqual, target)
	} else {
		g.emitJump(ir.JumpEqual, target)
	}
}

// compare 发射 flags = Icmp|Lcmp left right
func (g *generator) compare(left, right ast.Expression) {
	lt, rt := g.typeOf(left), g.typeOf(right)
	if lt != rt {
		g.fail(ErrTypeMismatch, left.Pos(), "comparing %s with %s", lt, rt)
	}

	var kind ir.InstKind
	switch lt.Kind {
	case types.KindInt, types.KindBoolean:
		kind = ir.Icmp
	case types.KindLong:
		kind = ir.Lcmp
	case types.KindDouble:
		g.fail(ErrUnsupportedConstruct, left.Pos(), "double comparison")
	default:
		g.fail(ErrUnsupportedConstruct, left.Pos(), "comparison of %s values", lt)
	}

	l := g.toReg(g.stable(g.lowerExpr(left, ir.Arg{}), lt, right), lt)
	r := g.lowerExpr(right, ir.Arg{})
	g.emitOp(kind, ir.Flags(), l, r)
	g.release(l, r)
}

// isCondition 判断表达式是否只能通过条件跳转求值
func isCondition(e ast.Expression) bool {
	switch e := e.(type) {
	case *ast.UnaryExpr:
		return e.Operator.Type == token.NOT
	case *ast.BinaryExpr:
		switch e.Operator.Type {
		case token.AND, token.OR, token.LT, token.LE, token.GT, token.GE, token.EQ, token.NE:
			return true
		}
	}
	return false
}

// materializeBool 把条件表达式的值写入寄存器
//
//	jumpIfFalse cond, Lfalse
//	dst = Iload 1
//	Jump Lend
//	Lfalse:
//	dst = Iload 0
//	Lend:
func (g *generator) materializeBool(cond ast.Expression, hint ir.Arg) ir.Arg {
	dst := g.dest(hint)
	falseLabel, endLabel := g.newLabel(), g.newLabel()
	g.jumpIfFalse(cond, falseLabel)
	g.emitOp(ir.Iload, dst, ir.IntConst(1))
	g.emitJump(ir.Jump, endLabel)
	g.place(falseLabel)
	g.emitOp(ir.Iload, dst, ir.IntConst(0))
	g.place(endLabel)
	return dst
}
