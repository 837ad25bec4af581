package ast

import (
	"strconv"
	"strings"

	"github.com/tangzhangming/lowir/internal/symbol"
	"github.com/tangzhangming/lowir/internal/token"
	"github.com/tangzhangming/lowir/internal/types"
)

// Node 是所有 AST 节点的基接口
type Node interface {
	Pos() token.Position // 返回节点在源代码中的位置
	End() token.Position // 返回节点结束位置
	String() string      // 返回节点的字符串表示（用于调试）
}

// Expression 表示一个表达式节点
//
// 解析器产生的表达式没有类型，检查器通过 SetType 为每个表达式标注静态类型。
type Expression interface {
	Node
	Type() types.Type
	SetType(types.Type)
	exprNode()
}

// Statement 表示一个语句节点
type Statement interface {
	Node
	stmtNode()
}

// Declaration 表示一个声明节点
type Declaration interface {
	Node
	declNode()
}

// typed 为表达式节点提供静态类型存储
type typed struct {
	T types.Type
}

func (t *typed) Type() types.Type      { return t.T }
func (t *typed) SetType(typ types.Type) { t.T = typ }

// ============================================================================
// 类型节点
// ============================================================================

// TypeRef 类型引用 (int, long[], double)
//
// Java 子集只有基本类型和一维数组，类型在解析时即可确定。
type TypeRef struct {
	Token token.Token // 类型关键字 token
	Type  types.Type
}

func (t *TypeRef) Pos() token.Position { return t.Token.Pos }
func (t *TypeRef) End() token.Position { return t.Token.Pos }
func (t *TypeRef) String() string      { return t.Type.String() }

// ============================================================================
// 局部变量
// ============================================================================

// LocalVar 方法参数或局部变量
//
// 名称解析之后，每个引用都指向同一个 *LocalVar，降级阶段以它为键分配寄存器。
type LocalVar struct {
	Name   string
	Type   types.Type
	Decl   token.Position
	Param  bool
	Hidden bool // 由 for-each 脱糖引入，源码中不可见
}

func (v *LocalVar) String() string { return v.Name }

// ============================================================================
// 表达式
// ============================================================================

// Identifier 标识符（局部变量、常量或类名）
type Identifier struct {
	typed
	Token token.Token
	Name  string
	Local *LocalVar // 检查器解析后指向的局部变量
}

func (e *Identifier) Pos() token.Position { return e.Token.Pos }
func (e *Identifier) End() token.Position { return e.Token.Pos }
func (e *Identifier) String() string      { return e.Name }
func (e *Identifier) exprNode()           {}

// IntegerLiteral 整数字面量（int 或 long）
type IntegerLiteral struct {
	typed
	Token token.Token
	Value int64
}

func (e *IntegerLiteral) Pos() token.Position { return e.Token.Pos }
func (e *IntegerLiteral) End() token.Position { return e.Token.Pos }
func (e *IntegerLiteral) String() string {
	if e.Token.Literal != "" {
		return e.Token.Literal
	}
	return strconv.FormatInt(e.Value, 10)
}
func (e *IntegerLiteral) exprNode() {}

// DoubleLiteral 浮点数字面量
type DoubleLiteral struct {
	typed
	Token token.Token
	Value float64
}

func (e *DoubleLiteral) Pos() token.Position { return e.Token.Pos }
func (e *DoubleLiteral) End() token.Position { return e.Token.Pos }
func (e *DoubleLiteral) String() string      { return e.Token.Literal }
func (e *DoubleLiteral) exprNode()           {}

// BoolLiteral 布尔字面量
type BoolLiteral struct {
	typed
	Token token.Token
	Value bool
}

func (e *BoolLiteral) Pos() token.Position { return e.Token.Pos }
func (e *BoolLiteral) End() token.Position { return e.Token.Pos }
func (e *BoolLiteral) String() string      { return e.Token.Literal }
func (e *BoolLiteral) exprNode()           {}

// UnaryExpr 一元表达式 (-x, !x, ~x)
type UnaryExpr struct {
	typed
	Operator token.Token
	Operand  Expression
}

func (e *UnaryExpr) Pos() token.Position { return e.Operator.Pos }
func (e *UnaryExpr) End() token.Position { return e.Operand.End() }
func (e *UnaryExpr) String() string {
	return "(" + e.Operator.Literal + e.Operand.String() + ")"
}
func (e *UnaryExpr) exprNode() {}

// BinaryExpr 二元表达式 (a + b, a < b, a && b)
type BinaryExpr struct {
	typed
	Left     Expression
	Operator token.Token
	Right    Expression
}

func (e *BinaryExpr) Pos() token.Position { return e.Left.Pos() }
func (e *BinaryExpr) End() token.Position { return e.Right.End() }
func (e *BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Operator.Literal + " " + e.Right.String() + ")"
}
func (e *BinaryExpr) exprNode() {}

// AssignExpr 赋值表达式 (x = v, x += v, a[i] = v)
//
// Left 是 *Identifier 或 *IndexExpr。
type AssignExpr struct {
	typed
	Left     Expression
	Operator token.Token
	Right    Expression
	OpType   types.Type // 复合赋值的运算类型；与 Left 类型不同时结果收窄回 Left 的类型
}

func (e *AssignExpr) Pos() token.Position { return e.Left.Pos() }
func (e *AssignExpr) End() token.Position { return e.Right.End() }
func (e *AssignExpr) String() string {
	return e.Left.String() + " " + e.Operator.Literal + " " + e.Right.String()
}
func (e *AssignExpr) exprNode() {}

// IncDecExpr 自增自减表达式 (x++, --x)
type IncDecExpr struct {
	typed
	Target   Expression
	Operator token.Token // INCREMENT 或 DECREMENT
	Prefix   bool
}

func (e *IncDecExpr) Pos() token.Position {
	if e.Prefix {
		return e.Operator.Pos
	}
	return e.Target.Pos()
}
func (e *IncDecExpr) End() token.Position {
	if e.Prefix {
		return e.Target.End()
	}
	return e.Operator.Pos
}
func (e *IncDecExpr) String() string {
	if e.Prefix {
		return e.Operator.Literal + e.Target.String()
	}
	return e.Target.String() + e.Operator.Literal
}
func (e *IncDecExpr) exprNode() {}

// TernaryExpr 三元表达式 (cond ? a : b)
type TernaryExpr struct {
	typed
	Condition Expression
	Question  token.Token
	Then      Expression
	Else      Expression
}

func (e *TernaryExpr) Pos() token.Position { return e.Condition.Pos() }
func (e *TernaryExpr) End() token.Position { return e.Else.End() }
func (e *TernaryExpr) String() string {
	return "(" + e.Condition.String() + " ? " + e.Then.String() + " : " + e.Else.String() + ")"
}
func (e *TernaryExpr) exprNode() {}

// SelectorExpr 选择表达式 (a.length, T.CONST)
//
// 检查器会把它改写为 *LengthExpr 或内联的常量字面量。
type SelectorExpr struct {
	typed
	X   Expression
	Sel token.Token
}

func (e *SelectorExpr) Pos() token.Position { return e.X.Pos() }
func (e *SelectorExpr) End() token.Position { return e.Sel.Pos }
func (e *SelectorExpr) String() string      { return e.X.String() + "." + e.Sel.Literal }
func (e *SelectorExpr) exprNode()           {}

// CallExpr 静态方法调用 (f(x), Test.add(x, 1), T.printInt(x))
//
// Qualifier 为空表示调用当前类的方法。
type CallExpr struct {
	typed
	Qualifier []token.Token // 限定名各段，如 [testutil T]
	Name      token.Token
	Args      []Expression
	RParen    token.Token
	Method    *symbol.Method // 检查器解析后的调用目标
}

func (e *CallExpr) Pos() token.Position {
	if len(e.Qualifier) > 0 {
		return e.Qualifier[0].Pos
	}
	return e.Name.Pos
}
func (e *CallExpr) End() token.Position { return e.RParen.Pos }
func (e *CallExpr) String() string {
	var args []string
	for _, arg := range e.Args {
		args = append(args, arg.String())
	}
	var b strings.Builder
	for _, q := range e.Qualifier {
		b.WriteString(q.Literal)
		b.WriteByte('.')
	}
	b.WriteString(e.Name.Literal)
	return b.String() + "(" + strings.Join(args, ", ") + ")"
}
func (e *CallExpr) exprNode() {}

// QualifiedName 返回限定部分的点分形式
func (e *CallExpr) QualifiedName() string {
	parts := make([]string, len(e.Qualifier))
	for i, q := range e.Qualifier {
		parts[i] = q.Literal
	}
	return strings.Join(parts, ".")
}

// NewArrayExpr 数组创建 (new int[n], new int[]{1, 2})
//
// Size 与 Init 互斥：带初始化列表时 Size 为 nil。
type NewArrayExpr struct {
	typed
	NewToken token.Token
	Elem     types.Type
	Size     Expression
	Init     []Expression
	HasInit  bool
	EndToken token.Token
}

func (e *NewArrayExpr) Pos() token.Position { return e.NewToken.Pos }
func (e *NewArrayExpr) End() token.Position { return e.EndToken.Pos }
func (e *NewArrayExpr) String() string {
	if e.HasInit {
		var elems []string
		for _, el := range e.Init {
			elems = append(elems, el.String())
		}
		return "new " + e.Elem.String() + "[]{" + strings.Join(elems, ", ") + "}"
	}
	return "new " + e.Elem.String() + "[" + e.Size.String() + "]"
}
func (e *NewArrayExpr) exprNode() {}

// IndexExpr 数组下标访问 (a[i])
type IndexExpr struct {
	typed
	X        Expression
	Index    Expression
	RBracket token.Token
}

func (e *IndexExpr) Pos() token.Position { return e.X.Pos() }
func (e *IndexExpr) End() token.Position { return e.RBracket.Pos }
func (e *IndexExpr) String() string      { return e.X.String() + "[" + e.Index.String() + "]" }
func (e *IndexExpr) exprNode()           {}

// LengthExpr 数组长度 (a.length)
type LengthExpr struct {
	typed
	X   Expression
	Sel token.Token
}

func (e *LengthExpr) Pos() token.Position { return e.X.Pos() }
func (e *LengthExpr) End() token.Position { return e.Sel.Pos }
func (e *LengthExpr) String() string      { return e.X.String() + ".length" }
func (e *LengthExpr) exprNode()           {}

// CastExpr 类型转换 ((int)x)
//
// Implicit 为 true 表示由检查器插入的拓宽转换。
type CastExpr struct {
	typed
	LParen   token.Token
	To       types.Type
	X        Expression
	Implicit bool
}

func (e *CastExpr) Pos() token.Position {
	if e.Implicit {
		return e.X.Pos()
	}
	return e.LParen.Pos
}
func (e *CastExpr) End() token.Position { return e.X.End() }
func (e *CastExpr) String() string      { return "((" + e.To.String() + ")" + e.X.String() + ")" }
func (e *CastExpr) exprNode()           {}

// ============================================================================
// 语句
// ============================================================================

// BlockStmt 代码块
type BlockStmt struct {
	LBrace     token.Token
	Statements []Statement
	RBrace     token.Token
}

func (s *BlockStmt) Pos() token.Position { return s.LBrace.Pos }
func (s *BlockStmt) End() token.Position { return s.RBrace.Pos }
func (s *BlockStmt) String() string {
	var stmts []string
	for _, stmt := range s.Statements {
		stmts = append(stmts, stmt.String())
	}
	return "{ " + strings.Join(stmts, " ") + " }"
}
func (s *BlockStmt) stmtNode() {}

// VarDeclStmt 局部变量声明 (int x = 1;)
type VarDeclStmt struct {
	TypeRef   *TypeRef
	Name      token.Token
	Value     Expression // 可为 nil
	Semicolon token.Token
	Local     *LocalVar
}

func (s *VarDeclStmt) Pos() token.Position { return s.TypeRef.Pos() }
func (s *VarDeclStmt) End() token.Position { return s.Semicolon.Pos }
func (s *VarDeclStmt) String() string {
	result := s.TypeRef.String() + " " + s.Name.Literal
	if s.Value != nil {
		result += " = " + s.Value.String()
	}
	return result + ";"
}
func (s *VarDeclStmt) stmtNode() {}

// ExprStmt 表达式语句
type ExprStmt struct {
	Expr      Expression
	Semicolon token.Token
}

func (s *ExprStmt) Pos() token.Position { return s.Expr.Pos() }
func (s *ExprStmt) End() token.Position { return s.Semicolon.Pos }
func (s *ExprStmt) String() string      { return s.Expr.String() + ";" }
func (s *ExprStmt) stmtNode()           {}

// EmptyStmt 空语句 (;)
type EmptyStmt struct {
	Semicolon token.Token
}

func (s *EmptyStmt) Pos() token.Position { return s.Semicolon.Pos }
func (s *EmptyStmt) End() token.Position { return s.Semicolon.Pos }
func (s *EmptyStmt) String() string      { return ";" }
func (s *EmptyStmt) stmtNode()           {}

// IfStmt if 语句
type IfStmt struct {
	IfToken   token.Token
	Condition Expression
	Then      Statement
	Else      Statement // 可为 nil
}

func (s *IfStmt) Pos() token.Position { return s.IfToken.Pos }
func (s *IfStmt) End() token.Position {
	if s.Else != nil {
		return s.Else.End()
	}
	return s.Then.End()
}
func (s *IfStmt) String() string {
	result := "if (" + s.Condition.String() + ") " + s.Then.String()
	if s.Else != nil {
		result += " else " + s.Else.String()
	}
	return result
}
func (s *IfStmt) stmtNode() {}

// WhileStmt while 循环
type WhileStmt struct {
	WhileToken token.Token
	Condition  Expression
	Body       Statement
}

func (s *WhileStmt) Pos() token.Position { return s.WhileToken.Pos }
func (s *WhileStmt) End() token.Position { return s.Body.End() }
func (s *WhileStmt) String() string {
	return "while (" + s.Condition.String() + ") " + s.Body.String()
}
func (s *WhileStmt) stmtNode() {}

// DoWhileStmt do-while 循环
type DoWhileStmt struct {
	DoToken   token.Token
	Body      Statement
	Condition Expression
	Semicolon token.Token
}

func (s *DoWhileStmt) Pos() token.Position { return s.DoToken.Pos }
func (s *DoWhileStmt) End() token.Position { return s.Semicolon.Pos }
func (s *DoWhileStmt) String() string {
	return "do " + s.Body.String() + " while (" + s.Condition.String() + ");"
}
func (s *DoWhileStmt) stmtNode() {}

// ForStmt 经典 for 循环
//
// Init 可以是 *VarDeclStmt 或 *ExprStmt；Condition 为 nil 表示永真。
type ForStmt struct {
	ForToken  token.Token
	Init      Statement
	Condition Expression
	Post      []Expression
	Body      Statement
}

func (s *ForStmt) Pos() token.Position { return s.ForToken.Pos }
func (s *ForStmt) End() token.Position { return s.Body.End() }
func (s *ForStmt) String() string {
	var b strings.Builder
	b.WriteString("for (")
	if s.Init != nil {
		b.WriteString(s.Init.String())
	} else {
		b.WriteString(";")
	}
	b.WriteString(" ")
	if s.Condition != nil {
		b.WriteString(s.Condition.String())
	}
	b.WriteString("; ")
	for i, p := range s.Post {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") ")
	b.WriteString(s.Body.String())
	return b.String()
}
func (s *ForStmt) stmtNode() {}

// ForEachStmt 增强 for 循环 (for (int x : xs))
//
// 检查器为它分配两个隐藏局部变量：数组副本 Array 与下标 Index。
type ForEachStmt struct {
	ForToken token.Token
	TypeRef  *TypeRef
	Name     token.Token
	Iterable Expression
	Body     Statement
	Local    *LocalVar
	Array    *LocalVar
	Index    *LocalVar
}

func (s *ForEachStmt) Pos() token.Position { return s.ForToken.Pos }
func (s *ForEachStmt) End() token.Position { return s.Body.End() }
func (s *ForEachStmt) String() string {
	return "for (" + s.TypeRef.String() + " " + s.Name.Literal + " : " + s.Iterable.String() + ") " + s.Body.String()
}
func (s *ForEachStmt) stmtNode() {}

// ReturnStmt return 语句
type ReturnStmt struct {
	ReturnToken token.Token
	Value       Expression // 可为 nil
	Semicolon   token.Token
}

func (s *ReturnStmt) Pos() token.Position { return s.ReturnToken.Pos }
func (s *ReturnStmt) End() token.Position { return s.Semicolon.Pos }
func (s *ReturnStmt) String() string {
	if s.Value == nil {
		return "return;"
	}
	return "return " + s.Value.String() + ";"
}
func (s *ReturnStmt) stmtNode() {}

// BreakStmt break 语句
type BreakStmt struct {
	BreakToken token.Token
}

func (s *BreakStmt) Pos() token.Position { return s.BreakToken.Pos }
func (s *BreakStmt) End() token.Position { return s.BreakToken.Pos }
func (s *BreakStmt) String() string      { return "break;" }
func (s *BreakStmt) stmtNode()           {}

// ContinueStmt continue 语句
type ContinueStmt struct {
	ContinueToken token.Token
}

func (s *ContinueStmt) Pos() token.Position { return s.ContinueToken.Pos }
func (s *ContinueStmt) End() token.Position { return s.ContinueToken.Pos }
func (s *ContinueStmt) String() string      { return "continue;" }
func (s *ContinueStmt) stmtNode()           {}

// ============================================================================
// 声明
// ============================================================================

// Modifiers 修饰符集合
type Modifiers struct {
	Access token.TokenType // PUBLIC, PROTECTED, PRIVATE 或 ILLEGAL（包级）
	Static bool
	Final  bool
	Native bool
}

// ImportDecl import 声明 (import testutil.T;)
type ImportDecl struct {
	ImportToken token.Token
	Path        []token.Token
}

func (d *ImportDecl) Pos() token.Position { return d.ImportToken.Pos }
func (d *ImportDecl) End() token.Position { return d.Path[len(d.Path)-1].Pos }
func (d *ImportDecl) String() string      { return "import " + d.Name() + ";" }
func (d *ImportDecl) declNode()           {}

// Name 返回点分形式的导入路径
func (d *ImportDecl) Name() string {
	parts := make([]string, len(d.Path))
	for i, p := range d.Path {
		parts[i] = p.Literal
	}
	return strings.Join(parts, ".")
}

// Param 方法参数
type Param struct {
	TypeRef *TypeRef
	Name    token.Token
	Local   *LocalVar
}

func (p *Param) String() string { return p.TypeRef.String() + " " + p.Name.Literal }

// MethodDecl 方法声明
//
// native 方法没有方法体（Body 为 nil）。
type MethodDecl struct {
	Modifiers Modifiers
	Result    *TypeRef
	Name      token.Token
	Params    []*Param
	Body      *BlockStmt
	EndToken  token.Token
	Class     *ClassDecl
	Symbol    *symbol.Method // 检查器注册后的符号
}

func (d *MethodDecl) Pos() token.Position { return d.Result.Pos() }
func (d *MethodDecl) End() token.Position { return d.EndToken.Pos }
func (d *MethodDecl) String() string {
	var params []string
	for _, p := range d.Params {
		params = append(params, p.String())
	}
	return d.Result.String() + " " + d.Name.Literal + "(" + strings.Join(params, ", ") + ")"
}
func (d *MethodDecl) declNode() {}

// FieldDecl 字段声明，只支持 static final 常量
type FieldDecl struct {
	Modifiers Modifiers
	TypeRef   *TypeRef
	Name      token.Token
	Value     Expression
	Semicolon token.Token
}

func (d *FieldDecl) Pos() token.Position { return d.TypeRef.Pos() }
func (d *FieldDecl) End() token.Position { return d.Semicolon.Pos }
func (d *FieldDecl) String() string {
	return d.TypeRef.String() + " " + d.Name.Literal + " = " + d.Value.String() + ";"
}
func (d *FieldDecl) declNode() {}

// ClassDecl 类声明
type ClassDecl struct {
	Modifiers  Modifiers
	ClassToken token.Token
	Name       token.Token
	Fields     []*FieldDecl
	Methods    []*MethodDecl
	RBrace     token.Token
	File       *File
	Symbol     *symbol.Class
}

func (d *ClassDecl) Pos() token.Position { return d.ClassToken.Pos }
func (d *ClassDecl) End() token.Position { return d.RBrace.Pos }
func (d *ClassDecl) String() string      { return "class " + d.Name.Literal }
func (d *ClassDecl) declNode()           {}

// File 表示一个源文件
type File struct {
	Filename string
	Source   string
	Package  string // 点分形式，默认包为空串
	Imports  []*ImportDecl
	Classes  []*ClassDecl
}

func (f *File) Pos() token.Position {
	return token.Position{Filename: f.Filename, Line: 1, Column: 1}
}

func (f *File) End() token.Position {
	if len(f.Classes) > 0 {
		return f.Classes[len(f.Classes)-1].End()
	}
	return f.Pos()
}

func (f *File) String() string {
	return f.Filename
}

// Span 返回节点覆盖的源代码文本
func (f *File) Span(n Node) string {
	start, end := n.Pos().Offset, n.End().Offset+1
	if start < 0 || end > len(f.Source) || start >= end {
		return ""
	}
	return f.Source[start:end]
}

// ============================================================================
// 遍历
// ============================================================================

// Visitor 访问者函数类型，返回 false 时不再进入子节点
type Visitor func(node Node) bool

// Walk 深度优先遍历 AST 节点
func Walk(node Node, visitor Visitor) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	switch n := node.(type) {
	case *File:
		for _, c := range n.Classes {
			Walk(c, visitor)
		}

	case *ClassDecl:
		for _, f := range n.Fields {
			Walk(f, visitor)
		}
		for _, m := range n.Methods {
			Walk(m, visitor)
		}

	case *MethodDecl:
		if n.Body != nil {
			Walk(n.Body, visitor)
		}

	case *FieldDecl:
		Walk(n.Value, visitor)

	case *BlockStmt:
		for _, stmt := range n.Statements {
			Walk(stmt, visitor)
		}

	case *VarDeclStmt:
		if n.Value != nil {
			Walk(n.Value, visitor)
		}

	case *ExprStmt:
		Walk(n.Expr, visitor)

	case *IfStmt:
		Walk(n.Condition, visitor)
		Walk(n.Then, visitor)
		if n.Else != nil {
			Walk(n.Else, visitor)
		}

	case *WhileStmt:
		Walk(n.Condition, visitor)
		Walk(n.Body, visitor)

	case *DoWhileStmt:
		Walk(n.Body, visitor)
		Walk(n.Condition, visitor)

	case *ForStmt:
		if n.Init != nil {
			Walk(n.Init, visitor)
		}
		if n.Condition != nil {
			Walk(n.Condition, visitor)
		}
		for _, p := range n.Post {
			Walk(p, visitor)
		}
		Walk(n.Body, visitor)

	case *ForEachStmt:
		Walk(n.Iterable, visitor)
		Walk(n.Body, visitor)

	case *ReturnStmt:
		if n.Value != nil {
			Walk(n.Value, visitor)
		}

	case *UnaryExpr:
		Walk(n.Operand, visitor)

	case *BinaryExpr:
		Walk(n.Left, visitor)
		Walk(n.Right, visitor)

	case *AssignExpr:
		Walk(n.Left, visitor)
		Walk(n.Right, visitor)

	case *IncDecExpr:
		Walk(n.Target, visitor)

	case *TernaryExpr:
		Walk(n.Condition, visitor)
		Walk(n.Then, visitor)
		Walk(n.Else, visitor)

	case *SelectorExpr:
		Walk(n.X, visitor)

	case *CallExpr:
		for _, arg := range n.Args {
			Walk(arg, visitor)
		}

	case *NewArrayExpr:
		if n.Size != nil {
			Walk(n.Size, visitor)
		}
		for _, el := range n.Init {
			Walk(el, visitor)
		}

	case *IndexExpr:
		Walk(n.X, visitor)
		Walk(n.Index, visitor)

	case *LengthExpr:
		Walk(n.X, visitor)

	case *CastExpr:
		Walk(n.X, visitor)
	}
}
