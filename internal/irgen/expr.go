package irgen

import (
	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/token"
	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// 操作码选择
// ============================================================================

// binaryOps (运算符, 类型) -> 操作码；boolean 使用 int 指令族
var binaryOps = map[token.TokenType][2]ir.InstKind{
	token.PLUS:         {ir.Iadd, ir.Ladd},
	token.MINUS:        {ir.Isub, ir.Lsub},
	token.STAR:         {ir.Imul, ir.Lmul},
	token.SLASH:        {ir.Idiv, ir.Ldiv},
	token.PERCENT:      {ir.Irem, ir.Lrem},
	token.BIT_AND:      {ir.Iand, ir.Land},
	token.BIT_OR:       {ir.Ior, ir.Lor},
	token.BIT_XOR:      {ir.Ixor, ir.Lxor},
	token.LEFT_SHIFT:   {ir.Ishl, ir.Lshl},
	token.RIGHT_SHIFT:  {ir.Ishr, ir.Lshr},
	token.URIGHT_SHIFT: {ir.Iushr, ir.Lushr},
}

// compoundOps 复合赋值运算符对应的二元运算符
var compoundOps = map[token.TokenType]token.TokenType{
	token.PLUS_ASSIGN:    token.PLUS,
	token.MINUS_ASSIGN:   token.MINUS,
	token.STAR_ASSIGN:    token.STAR,
	token.SLASH_ASSIGN:   token.SLASH,
	token.PERCENT_ASSIGN: token.PERCENT,
	token.AND_ASSIGN:     token.BIT_AND,
	token.OR_ASSIGN:      token.BIT_OR,
	token.XOR_ASSIGN:     token.BIT_XOR,
	token.SHL_ASSIGN:     token.LEFT_SHIFT,
	token.SHR_ASSIGN:     token.RIGHT_SHIFT,
	token.USHR_ASSIGN:    token.URIGHT_SHIFT,
}

// binaryKind 选择二元运算的操作码
func (g *generator) binaryKind(op token.Token, t types.Type) ir.InstKind {
	kinds, ok := binaryOps[op.Type]
	if !ok {
		g.fail(ErrUnsupportedConstruct, op.Pos, "operator %s", op.Literal)
	}
	switch t.Kind {
	case types.KindInt, types.KindBoolean:
		return kinds[0]
	case types.KindLong:
		return kinds[1]
	case types.KindDouble:
		g.fail(ErrUnsupportedConstruct, op.Pos, "double arithmetic")
	}
	g.fail(ErrTypeMismatch, op.Pos, "operator %s on %s", op.Literal, t)
	return ir.Invalid
}

// convKind 选择数值转换的操作码
func convKind(from, to types.Type) (ir.InstKind, bool) {
	switch {
	case from.Kind == types.KindInt && to.Kind == types.KindLong:
		return ir.ConvI2L, true
	case from.Kind == types.KindLong && to.Kind == types.KindInt:
		return ir.ConvL2I, true
	case from.Kind == types.KindInt && to.Kind == types.KindDouble:
		return ir.ConvI2D, true
	case from.Kind == types.KindLong && to.Kind == types.KindDouble:
		return ir.ConvL2D, true
	case from.Kind == types.KindDouble && to.Kind == types.KindInt:
		return ir.ConvD2I, true
	case from.Kind == types.KindDouble && to.Kind == types.KindLong:
		return ir.ConvD2L, true
	}
	return ir.Invalid, false
}

// ============================================================================
// 表达式降级
// ============================================================================

// isLeaf 字面量和局部变量可以直接作为操作数
func isLeaf(e ast.Expression) bool {
	switch e := e.(type) {
	case *ast.IntegerLiteral, *ast.DoubleLiteral, *ast.BoolLiteral:
		return true
	case *ast.Identifier:
		return e.Local != nil
	}
	return false
}

// lowerLeaf 返回字面量的立即数或局部变量的寄存器
func (g *generator) lowerLeaf(e ast.Expression) ir.Arg {
	switch e := e.(type) {
	case *ast.IntegerLiteral:
		return ir.IntConst(e.Value)
	case *ast.DoubleLiteral:
		return ir.DoubleConst(e.Value)
	case *ast.BoolLiteral:
		if e.Value {
			return ir.IntConst(1)
		}
		return ir.IntConst(0)
	case *ast.Identifier:
		return g.local(e.Local, e.Pos())
	}
	g.fail(ErrUnsupportedConstruct, e.Pos(), "expression %s", e)
	return ir.Arg{}
}

// lowerExpr 降级表达式并返回保存结果的操作数
//
// 结果可能是立即数、局部变量的寄存器或临时寄存器。hint 为寄存器时，
// 非叶子表达式直接写入 hint。调用方负责 release 返回的临时寄存器。
func (g *generator) lowerExpr(e ast.Expression, hint ir.Arg) ir.Arg {
	t := g.typeOf(e)

	switch e := e.(type) {
	case *ast.IntegerLiteral, *ast.DoubleLiteral, *ast.BoolLiteral:
		return g.lowerLeaf(e)

	case *ast.Identifier:
		reg := g.lowerLeaf(e)
		// 循环出口块中第一次读取局部变量时先复制到临时寄存器
		if g.atMergeEntry() {
			tmp := g.newTmp()
			g.emitOp(ir.LoadKind(t), tmp, reg)
			return tmp
		}
		return reg

	case *ast.UnaryExpr:
		return g.lowerUnary(e, t, hint)

	case *ast.BinaryExpr:
		if isCondition(e) {
			return g.materializeBool(e, hint)
		}
		kind := g.binaryKind(e.Operator, t)
		lt := g.typeOf(e.Left)
		l := g.toReg(g.stable(g.lowerExpr(e.Left, ir.Arg{}), lt, e.Right), lt)
		r := g.lowerExpr(e.Right, ir.Arg{})
		dst := g.dest(hint)
		g.emitOp(kind, dst, l, r)
		g.release(l, r)
		return dst

	case *ast.TernaryExpr:
		return g.lowerTernary(e, t, hint)

	case *ast.AssignExpr:
		v := g.lowerAssign(e, true)
		return g.moveTo(v, t, hint)

	case *ast.IncDecExpr:
		v := g.lowerIncDec(e, true)
		return g.moveTo(v, t, hint)

	case *ast.CallExpr:
		return g.lowerCall(e, hint, true)

	case *ast.NewArrayExpr:
		return g.lowerNewArray(e, t, hint)

	case *ast.IndexExpr:
		arr := g.stable(g.lowerExpr(e.X, ir.Arg{}), g.typeOf(e.X), e.Index)
		idx := g.lowerExpr(e.Index, ir.Arg{})
		dst := g.dest(hint)
		g.emitOp(arrayGetKind(t), dst, arr, idx)
		g.release(arr, idx)
		return dst

	case *ast.LengthExpr:
		arr := g.lowerExpr(e.X, ir.Arg{})
		dst := g.dest(hint)
		g.emitOp(ir.ArrayLen, dst, arr)
		g.release(arr)
		return dst

	case *ast.CastExpr:
		return g.lowerCast(e, t, hint)
	}

	g.fail(ErrUnsupportedConstruct, e.Pos(), "expression %s", e)
	return ir.Arg{}
}

// ============================================================================
// 求值顺序
// ============================================================================
//
// 局部变量作为操作数时直接使用它的寄存器。如果后面的操作数会改写同一个
// 局部变量（赋值、复合赋值或 ++/--），先把当前值复制到临时寄存器，
// 保证从左到右的求值顺序。没有副作用的表达式保持原来的形状。
//
// ============================================================================

// stable 在 later 会改写 v 所在的局部变量时返回 v 的副本
func (g *generator) stable(v ir.Arg, t types.Type, later ...ast.Expression) ir.Arg {
	if !g.writesReg(v, later...) {
		return v
	}
	tmp := g.newTmp()
	g.emitOp(ir.LoadKind(t), tmp, v)
	return tmp
}

// writesReg 判断 exprs 中是否有给寄存器 reg 上的局部变量赋值的表达式
func (g *generator) writesReg(reg ir.Arg, exprs ...ast.Expression) bool {
	if !reg.IsReg() || g.frame.isTmp(reg) {
		return false
	}
	found := false
	for _, e := range exprs {
		if e == nil || found {
			continue
		}
		ast.Walk(e, func(n ast.Node) bool {
			var target ast.Expression
			switch n := n.(type) {
			case *ast.AssignExpr:
				target = n.Left
			case *ast.IncDecExpr:
				target = n.Target
			}
			if id, ok := target.(*ast.Identifier); ok && id.Local != nil {
				if r, ok := g.frame.local(id.Local); ok && r == reg {
					found = true
				}
			}
			return !found
		})
	}
	return found
}

// toReg 把立即数物化到临时寄存器
func (g *generator) toReg(v ir.Arg, t types.Type) ir.Arg {
	if v.IsReg() {
		return v
	}
	tmp := g.newTmp()
	g.emitOp(ir.LoadKind(t), tmp, v)
	return tmp
}

// moveTo 在有提示寄存器时把值复制过去
func (g *generator) moveTo(v ir.Arg, t types.Type, hint ir.Arg) ir.Arg {
	if !hint.IsReg() || v == hint {
		return v
	}
	g.emitOp(ir.LoadKind(t), hint, v)
	g.release(v)
	return hint
}

// lowerInto 把表达式的值写入 dst
//
// 叶子表达式发射一条 Xload，其余表达式直接以 dst 为目标。
func (g *generator) lowerInto(e ast.Expression, dst ir.Arg) {
	t := g.typeOf(e)
	if isLeaf(e) {
		g.emitOp(ir.LoadKind(t), dst, g.lowerLeaf(e))
		return
	}
	v := g.lowerExpr(e, dst)
	if v != dst {
		g.emitOp(ir.LoadKind(t), dst, v)
		g.release(v)
	}
}

func (g *generator) lowerUnary(e *ast.UnaryExpr, t types.Type, hint ir.Arg) ir.Arg {
	switch e.Operator.Type {
	case token.NOT:
		return g.materializeBool(e, hint)

	case token.MINUS:
		var kind ir.InstKind
		switch t.Kind {
		case types.KindInt:
			kind = ir.Ineg
		case types.KindLong:
			kind = ir.Lneg
		case types.KindDouble:
			g.fail(ErrUnsupportedConstruct, e.Pos(), "double arithmetic")
		default:
			g.fail(ErrTypeMismatch, e.Pos(), "negation of %s", t)
		}
		v := g.toReg(g.lowerExpr(e.Operand, ir.Arg{}), t)
		dst := g.dest(hint)
		g.emitOp(kind, dst, v)
		g.release(v)
		return dst

	case token.BIT_NOT:
		// ~x == x ^ -1
		kind := ir.Ixor
		switch t.Kind {
		case types.KindInt:
		case types.KindLong:
			kind = ir.Lxor
		default:
			g.fail(ErrTypeMismatch, e.Pos(), "bitwise complement of %s", t)
		}
		v := g.toReg(g.lowerExpr(e.Operand, ir.Arg{}), t)
		dst := g.dest(hint)
		g.emitOp(kind, dst, v, ir.IntConst(-1))
		g.release(v)
		return dst
	}

	g.fail(ErrUnsupportedConstruct, e.Pos(), "unary operator %s", e.Operator.Literal)
	return ir.Arg{}
}

// lowerTernary 两个分支写入同一个目标寄存器，在后继块汇合
func (g *generator) lowerTernary(e *ast.TernaryExpr, t types.Type, hint ir.Arg) ir.Arg {
	if g.typeOf(e.Then) != t || g.typeOf(e.Else) != t {
		g.fail(ErrTypeMismatch, e.Pos(), "conditional branches of type %s and %s", e.Then.Type(), e.Else.Type())
	}
	dst := g.dest(hint)
	elseLabel, endLabel := g.newLabel(), g.newLabel()
	g.jumpIfFalse(e.Condition, elseLabel)
	g.lowerInto(e.Then, dst)
	g.emitJump(ir.Jump, endLabel)
	g.place(elseLabel)
	g.lowerInto(e.Else, dst)
	g.place(endLabel)
	return dst
}

func (g *generator) lowerCast(e *ast.CastExpr, t types.Type, hint ir.Arg) ir.Arg {
	from := g.typeOf(e.X)
	if from == t {
		return g.lowerExpr(e.X, hint)
	}
	kind, ok := convKind(from, t)
	if !ok {
		g.fail(ErrTypeMismatch, e.Pos(), "conversion from %s to %s", from, t)
	}
	v := g.toReg(g.lowerExpr(e.X, ir.Arg{}), from)
	dst := g.dest(hint)
	g.emitOp(kind, dst, v)
	g.release(v)
	return dst
}

// ============================================================================
// 赋值
// ============================================================================

// lowerEffect 降级只需要副作用的表达式语句
func (g *generator) lowerEffect(e ast.Expression) {
	switch e := e.(type) {
	case *ast.AssignExpr:
		g.release(g.lowerAssign(e, false))
	case *ast.IncDecExpr:
		g.release(g.lowerIncDec(e, false))
	case *ast.CallExpr:
		g.release(g.lowerCall(e, ir.Arg{}, false))
	default:
		g.fail(ErrUnsupportedConstruct, e.Pos(), "%s is not a statement", e)
	}
}

// assignLocal 降级 local = value
//
// 叶子直接 Xload 到局部变量；其余表达式先算到临时寄存器再 Xload。
func (g *generator) assignLocal(v *ast.LocalVar, value ast.Expression, pos token.Position) {
	dst := g.local(v, pos)
	if t := g.typeOf(value); t != v.Type {
		g.fail(ErrTypeMismatch, value.Pos(), "assigning %s to %s of type %s", t, v.Name, v.Type)
	}
	if isLeaf(value) {
		g.lowerInto(value, dst)
		return
	}
	tmp := g.lowerExpr(value, ir.Arg{})
	g.emitOp(ir.LoadKind(v.Type), dst, tmp)
	g.release(tmp)
}

// lowerAssign 降级赋值，needValue 为 true 时返回赋值表达式的值
func (g *generator) lowerAssign(e *ast.AssignExpr, needValue bool) ir.Arg {
	t := g.typeOf(e)
	switch target := e.Left.(type) {
	case *ast.Identifier:
		dst := g.local(target.Local, target.Pos())
		if e.Operator.Type == token.ASSIGN {
			g.assignLocal(target.Local, e.Right, target.Pos())
			return dst
		}
		// 复合赋值原地更新局部变量
		cur := g.stable(dst, t, e.Right)
		g.lowerCompound(e, cur, dst, t)
		g.release(cur)
		return dst

	case *ast.IndexExpr:
		arr := g.stable(g.lowerExpr(target.X, ir.Arg{}), g.typeOf(target.X), target.Index, e.Right)
		idx := g.stable(g.lowerExpr(target.Index, ir.Arg{}), types.Int, e.Right)
		var v ir.Arg
		if e.Operator.Type == token.ASSIGN {
			v = g.lowerExpr(e.Right, ir.Arg{})
		} else {
			v = g.newTmp()
			g.emitOp(arrayGetKind(t), v, arr, idx)
			g.lowerCompound(e, v, v, t)
		}
		g.emitOp(arraySetKind(t), ir.Arg{}, arr, idx, v)
		g.release(arr, idx)
		if !needValue {
			g.release(v)
			return ir.Arg{}
		}
		return v
	}

	g.fail(ErrUnsupportedConstruct, e.Pos(), "assignment to %s", e.Left)
	return ir.Arg{}
}

// lowerCompound 计算 dst = (t)(cur op right)，cur 是右侧求值之前读出的旧值
//
// 运算类型比 t 宽时（int 变量 += long），先拓宽旧值，按宽类型运算后再收窄。
func (g *generator) lowerCompound(e *ast.AssignExpr, cur, dst ir.Arg, t types.Type) {
	opType := e.OpType
	if opType.Kind == types.KindInvalid {
		opType = t
	}
	kind := g.binaryKind(compoundOperator(e.Operator), opType)
	if opType == t {
		r := g.lowerExpr(e.Right, ir.Arg{})
		g.emitOp(kind, dst, cur, r)
		g.release(r)
		return
	}

	widen, ok := convKind(t, opType)
	narrow, ok2 := convKind(opType, t)
	if !ok || !ok2 {
		g.fail(ErrTypeMismatch, e.Pos(), "compound assignment of %s to %s", opType, t)
	}
	wide := g.newTmp()
	g.emitOp(widen, wide, cur)
	r := g.lowerExpr(e.Right, ir.Arg{})
	g.emitOp(kind, wide, wide, r)
	g.release(r)
	g.emitOp(narrow, dst, wide)
	g.release(wide)
}

func compoundOperator(op token.Token) token.Token {
	if bin, ok := compoundOps[op.Type]; ok {
		op.Type = bin
	}
	return op
}

// lowerIncDec 降级 ++/--
//
// 局部变量原地更新；后缀形式需要值时先把旧值复制到临时寄存器。
func (g *generator) lowerIncDec(e *ast.IncDecExpr, needValue bool) ir.Arg {
	t := g.typeOf(e)
	op := token.Token{Type: token.PLUS, Literal: "+", Pos: e.Operator.Pos}
	if e.Operator.Type == token.DECREMENT {
		op = token.Token{Type: token.MINUS, Literal: "-", Pos: e.Operator.Pos}
	}
	kind := g.binaryKind(op, t)

	switch target := e.Target.(type) {
	case *ast.Identifier:
		reg := g.local(target.Local, target.Pos())
		var old ir.Arg
		if needValue && !e.Prefix {
			old = g.newTmp()
			g.emitOp(ir.LoadKind(t), old, reg)
		}
		g.emitOp(kind, reg, reg, ir.IntConst(1))
		if old.IsReg() {
			return old
		}
		return reg

	case *ast.IndexExpr:
		arr := g.stable(g.lowerExpr(target.X, ir.Arg{}), g.typeOf(target.X), target.Index)
		idx := g.lowerExpr(target.Index, ir.Arg{})
		old := g.newTmp()
		g.emitOp(arrayGetKind(t), old, arr, idx)
		updated := g.newTmp()
		g.emitOp(kind, updated, old, ir.IntConst(1))
		g.emitOp(arraySetKind(t), ir.Arg{}, arr, idx, updated)
		switch {
		case !needValue:
			g.release(updated, old)
			g.release(arr, idx)
			return ir.Arg{}
		case e.Prefix:
			g.release(old)
			g.release(arr, idx)
			return updated
		default:
			g.release(updated)
			g.release(arr, idx)
			return old
		}
	}

	g.fail(ErrUnsupportedConstruct, e.Pos(), "%s of %s", e.Operator.Literal, e.Target)
	return ir.Arg{}
}
