package checker

import (
	"fmt"

	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/errors"
	"github.com/tangzhangming/lowir/internal/symbol"
	"github.com/tangzhangming/lowir/internal/token"
	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// 表达式检查
// ============================================================================
//
// checkExpr 返回检查后的表达式：多数情况下就是输入本身，
// 但选择表达式会被改写为 LengthExpr 或常量字面量，需要拓宽的位置会包上 CastExpr。
// 调用方必须用返回值替换原来的子节点。
//
// 出错的表达式类型为 types.Invalid，后续检查遇到 Invalid 不再重复报错。
//
// ============================================================================

func (c *Checker) checkExpr(expr ast.Expression) ast.Expression {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		if e.Token.Type == token.LONG {
			e.SetType(types.Long)
			return e
		}
		if e.Value == 1<<31 {
			c.addError(e.Pos(), errors.E0209, "integer number too large: "+e.Token.Literal)
			e.SetType(types.Invalid)
			return e
		}
		e.SetType(types.Int)
		return e

	case *ast.DoubleLiteral:
		e.SetType(types.Double)
		return e

	case *ast.BoolLiteral:
		e.SetType(types.Boolean)
		return e

	case *ast.Identifier:
		return c.checkIdentifier(e)

	case *ast.UnaryExpr:
		return c.checkUnary(e)

	case *ast.BinaryExpr:
		return c.checkBinary(e)

	case *ast.AssignExpr:
		return c.checkAssign(e)

	case *ast.IncDecExpr:
		e.Target = c.checkTarget(e.Target)
		t := e.Target.Type()
		if t.Kind != types.KindInvalid && !t.IsIntegral() {
			c.addError(e.Operator.Pos, errors.E0205,
				fmt.Sprintf("bad operand type %s for unary operator '%s'", t, e.Operator.Literal))
			t = types.Invalid
		}
		e.SetType(t)
		return e

	case *ast.TernaryExpr:
		return c.checkTernary(e)

	case *ast.SelectorExpr:
		return c.checkSelector(e)

	case *ast.CallExpr:
		return c.checkCall(e)

	case *ast.NewArrayExpr:
		return c.checkNewArray(e)

	case *ast.IndexExpr:
		return c.checkIndex(e)

	case *ast.LengthExpr:
		e.X = c.checkExpr(e.X)
		e.SetType(types.Int)
		return e

	case *ast.CastExpr:
		return c.checkCast(e)
	}

	c.addError(expr.Pos(), errors.E0007, "unexpected expression")
	expr.SetType(types.Invalid)
	return expr
}

// checkIdentifier 解析名称：局部变量优先，其次为当前类的常量
func (c *Checker) checkIdentifier(e *ast.Identifier) ast.Expression {
	if local := c.scope.lookup(e.Name); local != nil {
		e.Local = local
		e.SetType(local.Type)
		return e
	}
	if k := c.class.Symbol.Const(e.Name); k != nil {
		return constLiteral(e.Token, k)
	}

	similar := errors.DidYouMean(e.Name, c.scope.names())
	c.addErrorHint(e.Pos(), errors.E0100, "cannot find symbol: "+e.Name, similar)
	e.SetType(types.Invalid)
	return e
}

// constLiteral 把常量引用内联为字面量
func constLiteral(tok token.Token, k *symbol.Const) ast.Expression {
	if k.Type.Kind == types.KindBoolean {
		lit := &ast.BoolLiteral{Token: tok, Value: k.Value != 0}
		lit.SetType(types.Boolean)
		return lit
	}
	lit := &ast.IntegerLiteral{Token: tok, Value: k.Value}
	lit.SetType(k.Type)
	return lit
}

func (c *Checker) checkUnary(e *ast.UnaryExpr) ast.Expression {
	e.Operand = c.checkExpr(e.Operand)
	t := e.Operand.Type()
	if t.Kind == types.KindInvalid {
		e.SetType(t)
		return e
	}

	var ok bool
	switch e.Operator.Type {
	case token.MINUS:
		ok = t.IsNumeric()
	case token.BIT_NOT:
		ok = t.IsIntegral()
	case token.NOT:
		ok = t.Kind == types.KindBoolean
	}
	if !ok {
		c.addError(e.Operator.Pos, errors.E0205,
			fmt.Sprintf("bad operand type %s for unary operator '%s'", t, e.Operator.Literal))
		t = types.Invalid
	}
	e.SetType(t)
	return e
}

func (c *Checker) checkBinary(e *ast.BinaryExpr) ast.Expression {
	e.Left = c.checkExpr(e.Left)
	e.Right = c.checkExpr(e.Right)
	lt, rt := e.Left.Type(), e.Right.Type()
	if lt.Kind == types.KindInvalid || rt.Kind == types.KindInvalid {
		e.SetType(types.Invalid)
		return e
	}

	op := e.Operator.Type
	result := types.Invalid
	switch {
	case op == token.AND || op == token.OR:
		if lt.Kind == types.KindBoolean && rt.Kind == types.KindBoolean {
			result = types.Boolean
		}

	case op == token.PLUS || op == token.MINUS || op == token.STAR || op == token.SLASH || op == token.PERCENT:
		if lt.IsNumeric() && rt.IsNumeric() {
			result = types.Promote(lt, rt)
			e.Left, e.Right = c.widen(e.Left, result), c.widen(e.Right, result)
		}

	case op == token.BIT_AND || op == token.BIT_OR || op == token.BIT_XOR:
		switch {
		case lt.Kind == types.KindBoolean && rt.Kind == types.KindBoolean:
			result = types.Boolean
		case lt.IsIntegral() && rt.IsIntegral():
			result = types.Promote(lt, rt)
			e.Left, e.Right = c.widen(e.Left, result), c.widen(e.Right, result)
		}

	case op == token.LEFT_SHIFT || op == token.RIGHT_SHIFT || op == token.URIGHT_SHIFT:
		if lt.IsIntegral() && rt.IsIntegral() {
			// 移位的结果类型只取决于左操作数
			result = lt
			e.Right = c.shiftDistance(e.Right)
		}

	case op == token.LT || op == token.LE || op == token.GT || op == token.GE:
		if lt.IsNumeric() && rt.IsNumeric() {
			t := types.Promote(lt, rt)
			e.Left, e.Right = c.widen(e.Left, t), c.widen(e.Right, t)
			result = types.Boolean
		}

	case op == token.EQ || op == token.NE:
		switch {
		case lt.IsNumeric() && rt.IsNumeric():
			t := types.Promote(lt, rt)
			e.Left, e.Right = c.widen(e.Left, t), c.widen(e.Right, t)
			result = types.Boolean
		case lt == rt:
			result = types.Boolean
		}
	}

	if result.Kind == types.KindInvalid {
		c.addError(e.Operator.Pos, errors.E0205,
			fmt.Sprintf("bad operand types for binary operator '%s': %s and %s", e.Operator.Literal, lt, rt))
	}
	e.SetType(result)
	return e
}

// shiftDistance 移位距离统一为 int
func (c *Checker) shiftDistance(e ast.Expression) ast.Expression {
	if e.Type().Kind != types.KindLong {
		return e
	}
	if lit, ok := e.(*ast.IntegerLiteral); ok {
		lit.Value = int64(int32(lit.Value))
		lit.SetType(types.Int)
		return lit
	}
	cast := &ast.CastExpr{To: types.Int, X: e, Implicit: true}
	cast.SetType(types.Int)
	return cast
}

// checkTarget 检查赋值目标：局部变量或数组元素
func (c *Checker) checkTarget(target ast.Expression) ast.Expression {
	switch t := target.(type) {
	case *ast.Identifier:
		if c.scope.lookup(t.Name) == nil && c.class.Symbol.Const(t.Name) != nil {
			c.addError(t.Pos(), errors.E0102, "cannot assign a value to final variable "+t.Name)
			t.SetType(types.Invalid)
			return t
		}
		return c.checkIdentifier(t)
	case *ast.IndexExpr:
		return c.checkIndex(t)
	}
	c.addError(target.Pos(), errors.E0202, "unexpected assignment target")
	target.SetType(types.Invalid)
	return target
}

func (c *Checker) checkAssign(e *ast.AssignExpr) ast.Expression {
	e.Left = c.checkTarget(e.Left)
	e.Right = c.checkExpr(e.Right)
	lt, rt := e.Left.Type(), e.Right.Type()
	e.SetType(lt)
	e.OpType = lt
	if lt.Kind == types.KindInvalid || rt.Kind == types.KindInvalid {
		return e
	}

	switch e.Operator.Type {
	case token.ASSIGN:
		e.Right = c.coerce(e.Right, lt, errors.E0202)

	case token.SHL_ASSIGN, token.SHR_ASSIGN, token.USHR_ASSIGN:
		if !lt.IsIntegral() || !rt.IsIntegral() {
			c.badCompound(e, lt, rt)
			return e
		}
		e.Right = c.shiftDistance(e.Right)

	case token.AND_ASSIGN, token.OR_ASSIGN, token.XOR_ASSIGN:
		if lt.Kind == types.KindBoolean && rt.Kind == types.KindBoolean {
			return e
		}
		if !lt.IsIntegral() || !rt.IsIntegral() {
			c.badCompound(e, lt, rt)
			return e
		}
		c.promoteCompound(e, lt, rt)

	default:
		if !lt.IsNumeric() || !rt.IsNumeric() {
			c.badCompound(e, lt, rt)
			return e
		}
		c.promoteCompound(e, lt, rt)
	}
	return e
}

// promoteCompound 按 x = (T)(x op y) 确定复合赋值的运算类型
func (c *Checker) promoteCompound(e *ast.AssignExpr, lt, rt types.Type) {
	e.OpType = types.Promote(lt, rt)
	e.Right = c.widen(e.Right, e.OpType)
}

func (c *Checker) badCompound(e *ast.AssignExpr, lt, rt types.Type) {
	c.addError(e.Operator.Pos, errors.E0205,
		fmt.Sprintf("bad operand types for binary operator '%s': %s and %s", e.Operator.Literal, lt, rt))
	e.SetType(types.Invalid)
}

func (c *Checker) checkTernary(e *ast.TernaryExpr) ast.Expression {
	e.Condition = c.checkCondition(e.Condition)
	e.Then = c.checkExpr(e.Then)
	e.Else = c.checkExpr(e.Else)
	tt, et := e.Then.Type(), e.Else.Type()

	switch {
	case tt.Kind == types.KindInvalid || et.Kind == types.KindInvalid:
		e.SetType(types.Invalid)
	case tt == et:
		e.SetType(tt)
	case tt.IsNumeric() && et.IsNumeric():
		t := types.Promote(tt, et)
		e.Then, e.Else = c.widen(e.Then, t), c.widen(e.Else, t)
		e.SetType(t)
	default:
		c.addError(e.Question.Pos, errors.E0200,
			fmt.Sprintf("incompatible types in conditional expression: %s and %s", tt, et))
		e.SetType(types.Invalid)
	}
	return e
}

// checkSelector 改写 a.length 与 Class.CONST
func (c *Checker) checkSelector(e *ast.SelectorExpr) ast.Expression {
	if qualifier, ok := classQualifier(e.X); ok && !c.isLocal(qualifier) {
		class := c.resolveClass(qualifier)
		if class == nil {
			c.addError(e.X.Pos(), errors.E0400, "cannot find symbol: class "+joinPath(qualifier))
			e.SetType(types.Invalid)
			return e
		}
		k := class.Const(e.Sel.Literal)
		if k == nil {
			c.addError(e.Sel.Pos, errors.E0402,
				fmt.Sprintf("cannot find symbol: %s.%s", class.Name, e.Sel.Literal))
			e.SetType(types.Invalid)
			return e
		}
		return constLiteral(e.Sel, k)
	}

	x := c.checkExpr(e.X)
	t := x.Type()
	if t.Kind == types.KindInvalid {
		e.X = x
		e.SetType(types.Invalid)
		return e
	}
	if t.IsArray() && e.Sel.Literal == "length" {
		length := &ast.LengthExpr{X: x, Sel: e.Sel}
		length.SetType(types.Int)
		return length
	}
	c.addError(e.Sel.Pos, errors.E0402,
		fmt.Sprintf("cannot find symbol: %s on type %s", e.Sel.Literal, t))
	e.X = x
	e.SetType(types.Invalid)
	return e
}

// classQualifier 把 a.b.C 形式的表达式展开为名称序列
func classQualifier(e ast.Expression) ([]token.Token, bool) {
	switch e := e.(type) {
	case *ast.Identifier:
		return []token.Token{e.Token}, true
	case *ast.SelectorExpr:
		prefix, ok := classQualifier(e.X)
		if !ok {
			return nil, false
		}
		return append(prefix, e.Sel), true
	}
	return nil, false
}

func (c *Checker) isLocal(qualifier []token.Token) bool {
	return len(qualifier) == 1 && c.scope.lookup(qualifier[0].Literal) != nil
}

func (c *Checker) checkCall(e *ast.CallExpr) ast.Expression {
	e.SetType(types.Invalid)
	for i, arg := range e.Args {
		e.Args[i] = c.checkExpr(arg)
	}

	class := c.resolveClass(e.Qualifier)
	if class == nil {
		c.addError(e.Pos(), errors.E0400, "cannot find symbol: class "+e.QualifiedName())
		return e
	}
	m := class.Method(e.Name.Literal)
	if m == nil {
		similar := errors.DidYouMean(e.Name.Literal, methodNames(class))
		c.addErrorHint(e.Name.Pos, errors.E0300,
			fmt.Sprintf("cannot find symbol: method %s in class %s", e.Name.Literal, class.Name), similar)
		return e
	}
	if !m.Static {
		c.addError(e.Name.Pos, errors.E0307,
			fmt.Sprintf("non-static method %s cannot be referenced from a static context", m.Name))
	}

	e.Method = m
	e.SetType(m.Result)

	switch {
	case len(e.Args) < len(m.Params):
		c.addError(e.RParen.Pos, errors.E0301,
			fmt.Sprintf("method %s%s: too few arguments (%d < %d)", m.Name, m.Descriptor(), len(e.Args), len(m.Params)))
		return e
	case len(e.Args) > len(m.Params):
		c.addError(e.RParen.Pos, errors.E0302,
			fmt.Sprintf("method %s%s: too many arguments (%d > %d)", m.Name, m.Descriptor(), len(e.Args), len(m.Params)))
		return e
	}
	for i, arg := range e.Args {
		e.Args[i] = c.coerce(arg, m.Params[i], errors.E0303)
	}
	return e
}

func (c *Checker) checkNewArray(e *ast.NewArrayExpr) ast.Expression {
	e.SetType(types.ArrayOf(e.Elem))
	if e.HasInit {
		for i, el := range e.Init {
			e.Init[i] = c.coerce(c.checkExpr(el), e.Elem, errors.E0202)
		}
		return e
	}
	e.Size = c.checkExpr(e.Size)
	if t := e.Size.Type(); t.Kind != types.KindInvalid && t.Kind != types.KindInt {
		c.addError(e.Size.Pos(), errors.E0600,
			fmt.Sprintf("incompatible types: array size must be int, found %s", t))
	}
	return e
}

func (c *Checker) checkIndex(e *ast.IndexExpr) ast.Expression {
	e.X = c.checkExpr(e.X)
	e.Index = c.checkExpr(e.Index)
	xt, it := e.X.Type(), e.Index.Type()

	e.SetType(types.Invalid)
	if xt.Kind != types.KindInvalid {
		if !xt.IsArray() {
			c.addError(e.X.Pos(), errors.E0207, "array required, but "+xt.String()+" found")
		} else {
			e.SetType(xt.ElemType())
		}
	}
	if it.Kind != types.KindInvalid && it.Kind != types.KindInt {
		c.addError(e.Index.Pos(), errors.E0200,
			fmt.Sprintf("incompatible types: index must be int, found %s", it))
		e.SetType(types.Invalid)
	}
	return e
}

func (c *Checker) checkCast(e *ast.CastExpr) ast.Expression {
	e.X = c.checkExpr(e.X)
	from := e.X.Type()
	e.SetType(e.To)
	if from.Kind == types.KindInvalid || from == e.To {
		return e
	}
	if !from.IsNumeric() || !e.To.IsNumeric() {
		c.addError(e.LParen.Pos, errors.E0200,
			fmt.Sprintf("incompatible types: %s cannot be converted to %s", from, e.To))
		e.SetType(types.Invalid)
	}
	return e
}

// ============================================================================
// 类型转换
// ============================================================================

// coerce 把表达式转换为目标类型（赋值、传参、返回上下文）
//
// 只允许相同类型或拓宽转换，否则报告 code 对应的错误。
func (c *Checker) coerce(e ast.Expression, to types.Type, code string) ast.Expression {
	from := e.Type()
	if from.Kind == types.KindInvalid || to.Kind == types.KindInvalid || from == to {
		return e
	}
	if !types.AssignableTo(from, to) {
		msg := fmt.Sprintf("incompatible types: %s cannot be converted to %s", from, to)
		if from.IsNumeric() && to.IsNumeric() {
			msg = fmt.Sprintf("incompatible types: possible lossy conversion from %s to %s", from, to)
		}
		c.addError(e.Pos(), code, msg)
		return e
	}
	return c.widen(e, to)
}

// widen 插入拓宽转换
//
// 整数字面量直接改写为目标类型的字面量，不产生运行时转换。
func (c *Checker) widen(e ast.Expression, to types.Type) ast.Expression {
	if e.Type() == to {
		return e
	}
	if lit, ok := e.(*ast.IntegerLiteral); ok {
		if to.Kind == types.KindLong {
			lit.SetType(types.Long)
			return lit
		}
		if to.Kind == types.KindDouble {
			d := &ast.DoubleLiteral{Token: lit.Token, Value: float64(lit.Value)}
			d.SetType(types.Double)
			return d
		}
	}
	cast := &ast.CastExpr{To: to, X: e, Implicit: true}
	cast.SetType(to)
	return cast
}
