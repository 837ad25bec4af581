package checker

import (
	"fmt"

	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/errors"
	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// 语句检查
// ============================================================================

func (c *Checker) checkStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		c.enterScope()
		for _, inner := range s.Statements {
			c.checkStatement(inner)
		}
		c.leaveScope()

	case *ast.VarDeclStmt:
		c.checkVarDecl(s)

	case *ast.ExprStmt:
		s.Expr = c.checkExprStmt(s.Expr)

	case *ast.EmptyStmt:

	case *ast.IfStmt:
		s.Condition = c.checkCondition(s.Condition)
		c.checkBody(s.Then)
		if s.Else != nil {
			c.checkBody(s.Else)
		}

	case *ast.WhileStmt:
		s.Condition = c.checkCondition(s.Condition)
		c.checkLoopBody(s.Body)

	case *ast.DoWhileStmt:
		c.checkLoopBody(s.Body)
		s.Condition = c.checkCondition(s.Condition)

	case *ast.ForStmt:
		c.enterScope()
		if s.Init != nil {
			c.checkStatement(s.Init)
		}
		if s.Condition != nil {
			s.Condition = c.checkCondition(s.Condition)
		}
		for i, post := range s.Post {
			s.Post[i] = c.checkExprStmt(post)
		}
		c.checkLoopBody(s.Body)
		c.leaveScope()

	case *ast.ForEachStmt:
		c.checkForEach(s)

	case *ast.ReturnStmt:
		c.checkReturn(s)

	case *ast.BreakStmt:
		if c.loopDepth == 0 {
			c.addError(s.Pos(), errors.E0304, "break outside switch or loop")
		}

	case *ast.ContinueStmt:
		if c.loopDepth == 0 {
			c.addError(s.Pos(), errors.E0305, "continue outside of loop")
		}
	}
}

// checkBody 检查 if 分支等子语句，子语句拥有独立作用域
func (c *Checker) checkBody(stmt ast.Statement) {
	c.enterScope()
	c.checkStatement(stmt)
	c.leaveScope()
}

func (c *Checker) checkLoopBody(stmt ast.Statement) {
	c.loopDepth++
	c.checkBody(stmt)
	c.loopDepth--
}

func (c *Checker) checkVarDecl(s *ast.VarDeclStmt) {
	typ := s.TypeRef.Type
	if s.Value != nil {
		s.Value = c.coerce(c.checkExpr(s.Value), typ, errors.E0202)
	}
	s.Local = &ast.LocalVar{
		Name: s.Name.Literal,
		Type: typ,
		Decl: s.Name.Pos,
	}
	c.declareLocal(s.Name, s.Local)
}

// checkExprStmt 检查表达式语句
//
// 与 Java 一致，只有赋值、自增自减与方法调用可以单独成为语句。
func (c *Checker) checkExprStmt(e ast.Expression) ast.Expression {
	switch e.(type) {
	case *ast.AssignExpr, *ast.IncDecExpr, *ast.CallExpr:
	default:
		c.addError(e.Pos(), errors.E0010, "not a statement")
	}
	return c.checkExpr(e)
}

func (c *Checker) checkCondition(e ast.Expression) ast.Expression {
	e = c.checkExpr(e)
	if t := e.Type(); t.Kind != types.KindInvalid && t.Kind != types.KindBoolean {
		c.addError(e.Pos(), errors.E0200,
			fmt.Sprintf("incompatible types: %s cannot be converted to boolean", t))
	}
	return e
}

// checkForEach 检查增强 for 循环
//
// 为降级阶段分配两个隐藏变量：数组的副本和当前下标。
func (c *Checker) checkForEach(s *ast.ForEachStmt) {
	s.Iterable = c.checkExpr(s.Iterable)
	arrType := s.Iterable.Type()
	elem := types.Invalid
	switch {
	case arrType.IsArray():
		elem = arrType.ElemType()
	case arrType.Kind != types.KindInvalid:
		c.addError(s.Iterable.Pos(), errors.E0207,
			fmt.Sprintf("for-each not applicable to expression type %s", arrType))
	}

	if elem.Kind != types.KindInvalid && elem != s.TypeRef.Type {
		c.addError(s.Name.Pos, errors.E0200,
			fmt.Sprintf("incompatible types: %s cannot be converted to %s", elem, s.TypeRef.Type))
	}

	c.enterScope()
	c.hidden++
	s.Array = &ast.LocalVar{
		Name:   fmt.Sprintf("arr$%d", c.hidden),
		Type:   arrType,
		Decl:   s.ForToken.Pos,
		Hidden: true,
	}
	s.Index = &ast.LocalVar{
		Name:   fmt.Sprintf("i$%d", c.hidden),
		Type:   types.Int,
		Decl:   s.ForToken.Pos,
		Hidden: true,
	}
	s.Local = &ast.LocalVar{
		Name: s.Name.Literal,
		Type: s.TypeRef.Type,
		Decl: s.Name.Pos,
	}
	c.declareLocal(s.Name, s.Local)
	c.checkLoopBody(s.Body)
	c.leaveScope()
}

func (c *Checker) checkReturn(s *ast.ReturnStmt) {
	result := c.method.Result.Type
	if s.Value == nil {
		if result.Kind != types.KindVoid {
			c.addError(s.Pos(), errors.E0203, "missing return value")
		}
		return
	}

	value := c.checkExpr(s.Value)
	if result.Kind == types.KindVoid {
		c.addError(s.Value.Pos(), errors.E0203, "incompatible types: unexpected return value")
		s.Value = value
		return
	}
	s.Value = c.coerce(value, result, errors.E0203)
}
