// Package checker 对 Java 子集做名称解析与静态类型检查
//
// 检查分两遍：Declare 把所有文件的类、方法与常量注册进符号表，
// Check 再逐个方法检查方法体。检查通过后 AST 满足降级阶段的前提：
// 每个表达式都带有静态类型，每个名称都指向 *ast.LocalVar 或被内联为常量，
// 每个调用都指向 *symbol.Method，拓宽转换以隐式 CastExpr 的形式显式出现。
package checker

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/errors"
	"github.com/tangzhangming/lowir/internal/symbol"
	"github.com/tangzhangming/lowir/internal/token"
	"github.com/tangzhangming/lowir/internal/types"
)

// Error 类型检查错误
type Error struct {
	Pos     token.Position
	Code    string
	Message string
	Hint    string // 拼写建议，可为空
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// Checker 类型检查器
type Checker struct {
	table  *symbol.Table
	errors []Error

	// 当前上下文
	file    *ast.File
	class   *ast.ClassDecl
	method  *ast.MethodDecl
	scope   *scope
	imports map[string]*symbol.Class

	loopDepth int
	hidden    int // for-each 隐藏变量计数
}

// scope 词法作用域
type scope struct {
	parent *scope
	vars   map[string]*ast.LocalVar
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: make(map[string]*ast.LocalVar)}
}

func (s *scope) lookup(name string) *ast.LocalVar {
	for ; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v
		}
	}
	return nil
}

// names 返回所有可见变量名（用于拼写建议）
func (s *scope) names() []string {
	var out []string
	for ; s != nil; s = s.parent {
		for name := range s.vars {
			out = append(out, name)
		}
	}
	return out
}

// New 创建检查器
func New(table *symbol.Table) *Checker {
	return &Checker{table: table}
}

// Errors 返回已收集的错误
func (c *Checker) Errors() []Error {
	return c.errors
}

// CheckFiles 对一组文件完成两遍检查
//
// 所有文件先完成声明注册，因此跨文件调用（如 T.printInt）不依赖文件顺序。
func CheckFiles(table *symbol.Table, files ...*ast.File) []Error {
	c := New(table)
	for _, f := range files {
		c.Declare(f)
	}
	for _, f := range files {
		c.Check(f)
	}
	return c.errors
}

func (c *Checker) addError(pos token.Position, code, message string) {
	c.errors = append(c.errors, Error{Pos: pos, Code: code, Message: message})
}

func (c *Checker) addErrorHint(pos token.Position, code, message, hint string) {
	c.errors = append(c.errors, Error{Pos: pos, Code: code, Message: message, Hint: hint})
}

// ============================================================================
// 第一遍：声明
// ============================================================================

// Declare 把文件中的类、方法和常量注册进符号表
func (c *Checker) Declare(file *ast.File) {
	for _, decl := range file.Classes {
		decl.File = file
		class, err := c.table.AddClass(file.Package, decl.Name.Literal)
		if err != nil {
			c.addError(decl.Name.Pos, errors.E0401, err.Error())
			continue
		}
		decl.Symbol = class

		for _, field := range decl.Fields {
			c.declareConst(decl, field)
		}
		for _, m := range decl.Methods {
			c.declareMethod(decl, m)
		}
	}
}

func (c *Checker) declareMethod(decl *ast.ClassDecl, m *ast.MethodDecl) {
	m.Class = decl
	sym := &symbol.Method{
		Name:   m.Name.Literal,
		Result: m.Result.Type,
		Static: m.Modifiers.Static,
		Native: m.Modifiers.Native,
	}
	for _, p := range m.Params {
		sym.Params = append(sym.Params, p.TypeRef.Type)
	}
	if err := c.table.AddMethod(decl.Symbol, sym); err != nil {
		c.addError(m.Name.Pos, errors.E0401, err.Error())
		return
	}
	m.Symbol = sym
}

// declareConst 注册 static final 常量
//
// 只支持 int、long 与 boolean 常量，初始值必须是常量表达式。
func (c *Checker) declareConst(decl *ast.ClassDecl, field *ast.FieldDecl) {
	name := field.Name.Literal
	if !field.Modifiers.Static || !field.Modifiers.Final {
		c.addError(field.Name.Pos, errors.E0404,
			fmt.Sprintf("field %s must be declared static final", name))
		return
	}
	typ := field.TypeRef.Type
	if !typ.IsIntegral() && typ.Kind != types.KindBoolean {
		c.addError(field.Name.Pos, errors.E0404,
			fmt.Sprintf("unsupported constant type %s for %s", typ, name))
		return
	}

	value, valueType, ok := c.constValue(decl.Symbol, field.Value)
	if !ok {
		c.addError(field.Value.Pos(), errors.E0601,
			fmt.Sprintf("initializer of %s is not a constant expression", name))
		return
	}
	if !types.AssignableTo(valueType, typ) {
		c.addError(field.Value.Pos(), errors.E0202,
			fmt.Sprintf("incompatible types: %s cannot be converted to %s", valueType, typ))
		return
	}
	if typ.Kind == types.KindInt {
		value = int64(int32(value))
	}

	err := c.table.AddConst(decl.Symbol, &symbol.Const{Name: name, Type: typ, Value: value})
	if err != nil {
		c.addError(field.Name.Pos, errors.E0401, err.Error())
	}
}

// constValue 计算常量表达式的值
//
// 支持字面量、同类中已声明的常量、一元取负与按位取反、整数四则与位运算。
func (c *Checker) constValue(class *symbol.Class, e ast.Expression) (int64, types.Type, bool) {
	switch e := e.(type) {
	case *ast.IntegerLiteral:
		if e.Token.Type == token.LONG {
			return e.Value, types.Long, true
		}
		if e.Value == 1<<31 {
			return 0, types.Invalid, false
		}
		return e.Value, types.Int, true

	case *ast.BoolLiteral:
		if e.Value {
			return 1, types.Boolean, true
		}
		return 0, types.Boolean, true

	case *ast.Identifier:
		if k := class.Const(e.Name); k != nil {
			return k.Value, k.Type, true
		}

	case *ast.UnaryExpr:
		v, t, ok := c.constValue(class, e.Operand)
		if !ok || !t.IsIntegral() {
			return 0, types.Invalid, false
		}
		switch e.Operator.Type {
		case token.MINUS:
			return wrap(-v, t), t, true
		case token.BIT_NOT:
			return wrap(^v, t), t, true
		}

	case *ast.BinaryExpr:
		l, lt, ok1 := c.constValue(class, e.Left)
		r, rt, ok2 := c.constValue(class, e.Right)
		if !ok1 || !ok2 || !lt.IsIntegral() || !rt.IsIntegral() {
			return 0, types.Invalid, false
		}
		t := types.Promote(lt, rt)
		switch e.Operator.Type {
		case token.PLUS:
			return wrap(l+r, t), t, true
		case token.MINUS:
			return wrap(l-r, t), t, true
		case token.STAR:
			return wrap(l*r, t), t, true
		case token.SLASH, token.PERCENT:
			if r == 0 {
				return 0, types.Invalid, false
			}
			if e.Operator.Type == token.SLASH {
				return wrap(l/r, t), t, true
			}
			return wrap(l%r, t), t, true
		case token.BIT_AND:
			return l & r, t, true
		case token.BIT_OR:
			return l | r, t, true
		case token.BIT_XOR:
			return l ^ r, t, true
		case token.LEFT_SHIFT, token.RIGHT_SHIFT, token.URIGHT_SHIFT:
			return shiftConst(e.Operator.Type, l, r, lt), lt, true
		}
	}
	return 0, types.Invalid, false
}

// shiftConst 计算常量移位，移位距离按 Java 规则取模
func shiftConst(op token.TokenType, l, r int64, t types.Type) int64 {
	if t.Kind == types.KindInt {
		x, n := int32(l), uint(r&31)
		switch op {
		case token.LEFT_SHIFT:
			return int64(x << n)
		case token.RIGHT_SHIFT:
			return int64(x >> n)
		default:
			return int64(int32(uint32(x) >> n))
		}
	}
	n := uint(r & 63)
	switch op {
	case token.LEFT_SHIFT:
		return l << n
	case token.RIGHT_SHIFT:
		return l >> n
	default:
		return int64(uint64(l) >> n)
	}
}

// wrap 按 int 语义截断
func wrap(v int64, t types.Type) int64 {
	if t.Kind == types.KindInt {
		return int64(int32(v))
	}
	return v
}

// ============================================================================
// 第二遍：方法体
// ============================================================================

// Check 检查文件中所有方法体
func (c *Checker) Check(file *ast.File) {
	c.file = file
	c.imports = make(map[string]*symbol.Class)
	for _, imp := range file.Imports {
		c.resolveImport(imp)
	}

	for _, decl := range file.Classes {
		if decl.Symbol == nil {
			continue
		}
		c.class = decl
		for _, m := range decl.Methods {
			if m.Symbol == nil || m.Body == nil {
				continue
			}
			c.checkMethod(m)
		}
	}
	c.class = nil
}

func (c *Checker) resolveImport(imp *ast.ImportDecl) {
	n := len(imp.Path)
	if n < 2 {
		c.addError(imp.Pos(), errors.E0400, "import requires a qualified class name")
		return
	}
	pkgName := joinPath(imp.Path[:n-1])
	className := imp.Path[n-1].Literal
	class := c.table.Class(pkgName, className)
	if class == nil {
		c.addError(imp.Path[n-1].Pos, errors.E0400,
			fmt.Sprintf("cannot find class %s.%s", pkgName, className))
		return
	}
	c.imports[className] = class
}

func (c *Checker) checkMethod(m *ast.MethodDecl) {
	c.method = m
	c.scope = newScope(nil)
	c.loopDepth = 0
	c.hidden = 0

	for _, p := range m.Params {
		local := &ast.LocalVar{
			Name:  p.Name.Literal,
			Type:  p.TypeRef.Type,
			Decl:  p.Name.Pos,
			Param: true,
		}
		p.Local = local
		c.declareLocal(p.Name, local)
	}

	// 方法体与参数共享作用域：Java 不允许局部变量遮蔽参数
	for _, stmt := range m.Body.Statements {
		c.checkStatement(stmt)
	}

	if m.Result.Type.Kind != types.KindVoid && canCompleteNormally(m.Body) {
		c.addError(m.Body.RBrace.Pos, errors.E0208, "missing return statement")
	}

	c.scope = nil
	c.method = nil
}

// declareLocal 在当前作用域声明变量
//
// 与 Java 一致，方法内任何外层作用域中的同名变量都视为重复声明。
func (c *Checker) declareLocal(name token.Token, local *ast.LocalVar) {
	if prev := c.scope.lookup(name.Literal); prev != nil {
		c.addError(name.Pos, errors.E0101,
			fmt.Sprintf("variable %s is already defined in method %s", name.Literal, c.method.Name.Literal))
	}
	c.scope.vars[name.Literal] = local
}

func (c *Checker) enterScope() {
	c.scope = newScope(c.scope)
}

func (c *Checker) leaveScope() {
	c.scope = c.scope.parent
}

// ============================================================================
// 类解析
// ============================================================================

// resolveClass 把限定名解析为类
//
// 单段名称依次查找：当前类、import、同包类；多段名称视为全限定名。
func (c *Checker) resolveClass(qualifier []token.Token) *symbol.Class {
	n := len(qualifier)
	if n == 0 {
		return c.class.Symbol
	}
	if n == 1 {
		name := qualifier[0].Literal
		if name == c.class.Name.Literal {
			return c.class.Symbol
		}
		if class, ok := c.imports[name]; ok {
			return class
		}
		return c.table.Class(c.file.Package, name)
	}
	return c.table.Class(joinPath(qualifier[:n-1]), qualifier[n-1].Literal)
}

func joinPath(toks []token.Token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.Literal
	}
	return strings.Join(parts, ".")
}

// methodNames 返回类中所有方法名（用于拼写建议）
func methodNames(class *symbol.Class) []string {
	names := make([]string, len(class.Methods))
	for i, m := range class.Methods {
		names[i] = m.Name
	}
	return names
}
