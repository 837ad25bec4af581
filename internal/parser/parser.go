package parser

import (
	"fmt"

	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/lexer"
	"github.com/tangzhangming/lowir/internal/token"
	"github.com/tangzhangming/lowir/internal/types"
)

// Parser 语法分析器
//
// 解析 Java 子集：package / import / class，静态方法与 native 方法，
// static final 常量，基本类型局部变量与一维数组，结构化控制流。
type Parser struct {
	lexer     *lexer.Lexer
	source    string
	tokens    []token.Token
	current   int
	errors    []Error
	filename  string
	panicMode bool // 错误恢复模式标志，用于避免级联报错
	exprDepth int  // 表达式解析深度，防止栈溢出
}

// maxExprDepth 最大表达式嵌套深度，防止栈溢出
const maxExprDepth = 200

// maxParseErrors 最大错误数量限制，防止错误爆炸
const maxParseErrors = 50

// Error 语法分析错误
type Error struct {
	Pos     token.Position
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// New 创建一个新的语法分析器
func New(source, filename string) *Parser {
	l := lexer.New(source, filename)
	tokens := l.ScanTokens()

	p := &Parser{
		lexer:    l,
		source:   source,
		tokens:   tokens,
		filename: filename,
	}
	for _, err := range l.Errors() {
		p.errors = append(p.errors, Error{Pos: err.Pos, Message: err.Message})
	}
	return p
}

// Parse 解析源文件
func (p *Parser) Parse() *ast.File {
	file := &ast.File{
		Filename: p.filename,
		Source:   p.source,
	}

	if p.match(token.PACKAGE) {
		p.panicMode = false
		path := p.parseQualifiedName()
		p.consume(token.SEMICOLON, "expected ';' after package declaration")
		if p.panicMode {
			p.synchronize()
		} else {
			file.Package = joinTokens(path)
		}
	}

	for p.check(token.IMPORT) {
		p.panicMode = false
		imp := &ast.ImportDecl{ImportToken: p.advance()}
		imp.Path = p.parseQualifiedName()
		p.consume(token.SEMICOLON, "expected ';' after import")
		if p.panicMode {
			p.synchronize()
			continue
		}
		file.Imports = append(file.Imports, imp)
	}

	for !p.isAtEnd() {
		p.panicMode = false
		class := p.parseClass()
		if p.panicMode {
			p.synchronize()
			continue
		}
		if class != nil {
			class.File = file
			file.Classes = append(file.Classes, class)
		}
	}

	return file
}

// Errors 返回所有语法错误（包含词法错误）
func (p *Parser) Errors() []Error {
	return p.errors
}

// HasErrors 检查是否有错误
func (p *Parser) HasErrors() bool {
	return len(p.errors) > 0
}

// ============================================================================
// 辅助方法
// ============================================================================

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == token.EOF
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.current]
}

func (p *Parser) lookAhead(n int) token.Token {
	if p.current+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // 返回EOF
	}
	return p.tokens[p.current+n]
}

func (p *Parser) previous() token.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) check(t token.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) checkAny(types ...token.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			return true
		}
	}
	return false
}

func (p *Parser) match(types ...token.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(t token.TokenType, message string) token.Token {
	if p.check(t) {
		return p.advance()
	}
	p.error(message)
	p.panicMode = true
	return token.Token{} // 返回零值，调用方应检查 panicMode
}

func (p *Parser) error(message string) {
	// panicMode 下跳过后续错误，避免级联报错
	if p.panicMode {
		return
	}

	pos := p.peek().Pos

	if len(p.errors) > 0 {
		last := p.errors[len(p.errors)-1]
		if last.Pos.Line == pos.Line && last.Pos.Column == pos.Column {
			return
		}
	}

	if len(p.errors) >= maxParseErrors {
		p.errors = append(p.errors, Error{
			Pos:     pos,
			Message: "too many errors, aborting",
		})
		p.panicMode = true
		return
	}

	p.errors = append(p.errors, Error{
		Pos:     pos,
		Message: message,
	})
}

func (p *Parser) synchronize() {
	p.advance()

	for !p.isAtEnd() {
		if p.previous().Type == token.SEMICOLON || p.previous().Type == token.RBRACE {
			return
		}

		switch p.peek().Type {
		case token.CLASS, token.PUBLIC, token.PROTECTED, token.PRIVATE,
			token.STATIC, token.FINAL, token.NATIVE:
			return
		}

		p.advance()
	}
}

func (p *Parser) parseQualifiedName() []token.Token {
	first := p.consume(token.IDENT, "expected identifier")
	if p.panicMode {
		return nil
	}
	path := []token.Token{first}
	for p.match(token.DOT) {
		part := p.consume(token.IDENT, "expected identifier after '.'")
		if p.panicMode {
			return nil
		}
		path = append(path, part)
	}
	return path
}

func joinTokens(toks []token.Token) string {
	s := ""
	for i, t := range toks {
		if i > 0 {
			s += "."
		}
		s += t.Literal
	}
	return s
}

// ============================================================================
// 类型解析
// ============================================================================

func (p *Parser) isTypeStart() bool {
	return p.checkAny(token.INT_TYPE, token.LONG_TYPE, token.DOUBLE_TYPE, token.BOOLEAN)
}

// parseType 解析类型（基本类型与可选的 []）
//
// allowVoid 为 true 时接受 void（方法返回类型）。
func (p *Parser) parseType(allowVoid bool) *ast.TypeRef {
	tok := p.peek()
	var typ types.Type
	switch tok.Type {
	case token.INT_TYPE:
		typ = types.Int
	case token.LONG_TYPE:
		typ = types.Long
	case token.DOUBLE_TYPE:
		typ = types.Double
	case token.BOOLEAN:
		typ = types.Boolean
	case token.VOID:
		if !allowVoid {
			p.error("'void' type not allowed here")
			p.panicMode = true
			return nil
		}
		typ = types.Void
	case token.IDENT:
		p.error(fmt.Sprintf("unsupported type %s", tok.Literal))
		p.panicMode = true
		return nil
	default:
		p.error(fmt.Sprintf("expected type, found %s", tok.Type))
		p.panicMode = true
		return nil
	}
	p.advance()

	ref := &ast.TypeRef{Token: tok, Type: typ}
	if p.check(token.LBRACKET) && p.lookAhead(1).Type == token.RBRACKET {
		p.advance()
		p.advance()
		if typ == types.Void {
			p.error("array of void")
			p.panicMode = true
			return nil
		}
		ref.Type = types.ArrayOf(typ)
		if p.check(token.LBRACKET) {
			p.error("multi-dimensional arrays are not supported")
			p.panicMode = true
			return nil
		}
	}
	return ref
}

// parseDims 解析 C 风格的数组维度后缀 (int x[])
func (p *Parser) parseDims(ref *ast.TypeRef) *ast.TypeRef {
	if !p.check(token.LBRACKET) {
		return ref
	}
	p.advance()
	p.consume(token.RBRACKET, "expected ']'")
	if p.panicMode {
		return ref
	}
	if ref.Type.IsArray() {
		p.error("multi-dimensional arrays are not supported")
		p.panicMode = true
		return ref
	}
	return &ast.TypeRef{Token: ref.Token, Type: types.ArrayOf(ref.Type)}
}

// ============================================================================
// 声明解析
// ============================================================================

func (p *Parser) parseModifiers() ast.Modifiers {
	var mods ast.Modifiers
	for {
		switch p.peek().Type {
		case token.PUBLIC, token.PROTECTED, token.PRIVATE:
			if mods.Access != token.ILLEGAL {
				p.error("repeated access modifier")
			}
			mods.Access = p.advance().Type
		case token.STATIC:
			p.advance()
			mods.Static = true
		case token.FINAL:
			p.advance()
			mods.Final = true
		case token.NATIVE:
			p.advance()
			mods.Native = true
		default:
			return mods
		}
	}
}

func (p *Parser) parseClass() *ast.ClassDecl {
	mods := p.parseModifiers()
	classToken := p.consume(token.CLASS, "expected 'class'")
	if p.panicMode {
		return nil
	}
	name := p.consume(token.IDENT, "expected class name")
	p.consume(token.LBRACE, "expected '{' after class name")
	if p.panicMode {
		return nil
	}

	class := &ast.ClassDecl{
		Modifiers:  mods,
		ClassToken: classToken,
		Name:       name,
	}

	for !p.check(token.RBRACE) && !p.isAtEnd() {
		p.panicMode = false
		p.parseClassMember(class)
		if p.panicMode {
			p.synchronize()
		}
	}

	class.RBrace = p.consume(token.RBRACE, "expected '}' after class body")
	return class
}

func (p *Parser) parseClassMember(class *ast.ClassDecl) {
	mods := p.parseModifiers()
	typeRef := p.parseType(true)
	if p.panicMode {
		return
	}
	name := p.consume(token.IDENT, "expected member name")
	if p.panicMode {
		return
	}

	if p.check(token.LPAREN) {
		method := p.parseMethodRest(mods, typeRef, name)
		if method != nil {
			method.Class = class
			class.Methods = append(class.Methods, method)
		}
		return
	}

	typeRef = p.parseDims(typeRef)
	field := &ast.FieldDecl{
		Modifiers: mods,
		TypeRef:   typeRef,
		Name:      name,
	}
	if p.match(token.ASSIGN) {
		field.Value = p.parseExpression()
	} else {
		p.error("field declaration requires an initializer")
		p.panicMode = true
		return
	}
	field.Semicolon = p.consume(token.SEMICOLON, "expected ';' after field declaration")
	if p.panicMode {
		return
	}
	class.Fields = append(class.Fields, field)
}

func (p *Parser) parseMethodRest(mods ast.Modifiers, result *ast.TypeRef, name token.Token) *ast.MethodDecl {
	p.advance() // (

	method := &ast.MethodDecl{
		Modifiers: mods,
		Result:    result,
		Name:      name,
	}

	if !p.check(token.RPAREN) {
		for {
			p.match(token.FINAL)
			typeRef := p.parseType(false)
			if p.panicMode {
				return nil
			}
			pname := p.consume(token.IDENT, "expected parameter name")
			if p.panicMode {
				return nil
			}
			typeRef = p.parseDims(typeRef)
			method.Params = append(method.Params, &ast.Param{TypeRef: typeRef, Name: pname})
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after parameters")
	if p.panicMode {
		return nil
	}

	if p.check(token.SEMICOLON) {
		method.EndToken = p.advance()
		if !mods.Native {
			p.error(fmt.Sprintf("missing method body for %s", name.Literal))
		}
		return method
	}

	method.Body = p.parseBlock()
	if p.panicMode {
		return nil
	}
	method.EndToken = method.Body.RBrace
	if mods.Native {
		p.errors = append(p.errors, Error{Pos: name.Pos, Message: "native method cannot have a body"})
	}
	return method
}

// ============================================================================
// 语句解析
// ============================================================================

// parseBlockStatements 解析块内的一条语句
//
// 一条局部变量声明可能声明多个变量（int a = 1, b = 2;），因此返回切片。
func (p *Parser) parseBlockStatements() []ast.Statement {
	if p.isTypeStart() {
		return p.parseVarDecls()
	}
	stmt := p.parseStatement()
	if stmt == nil {
		return nil
	}
	return []ast.Statement{stmt}
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.peek().Type {
	case token.LBRACE:
		return p.parseBlock()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.DO:
		return p.parseDoWhileStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.BREAK:
		tok := p.advance()
		p.consume(token.SEMICOLON, "expected ';' after 'break'")
		return &ast.BreakStmt{BreakToken: tok}
	case token.CONTINUE:
		tok := p.advance()
		p.consume(token.SEMICOLON, "expected ';' after 'continue'")
		return &ast.ContinueStmt{ContinueToken: tok}
	case token.SEMICOLON:
		return &ast.EmptyStmt{Semicolon: p.advance()}
	default:
		if p.isTypeStart() {
			p.error("declaration not allowed here")
			p.panicMode = true
			return nil
		}
		return p.parseExprStmt()
	}
}

func (p *Parser) parseExprStmt() ast.Statement {
	expr := p.parseExpression()
	if p.panicMode {
		return nil
	}
	semicolon := p.consume(token.SEMICOLON, "expected ';' after expression")
	return &ast.ExprStmt{
		Expr:      expr,
		Semicolon: semicolon,
	}
}

func (p *Parser) parseVarDecls() []ast.Statement {
	base := p.parseType(false)
	if p.panicMode {
		return nil
	}

	var decls []*ast.VarDeclStmt
	for {
		name := p.consume(token.IDENT, "expected variable name")
		if p.panicMode {
			return nil
		}
		typeRef := p.parseDims(base)
		decl := &ast.VarDeclStmt{TypeRef: typeRef, Name: name}
		if p.match(token.ASSIGN) {
			if p.check(token.LBRACE) && typeRef.Type.IsArray() {
				decl.Value = p.parseArrayInit(p.peek(), typeRef.Type.ElemType())
			} else {
				decl.Value = p.parseExpression()
			}
		}
		if p.panicMode {
			return nil
		}
		decls = append(decls, decl)
		if !p.match(token.COMMA) {
			break
		}
	}

	semicolon := p.consume(token.SEMICOLON, "expected ';' after variable declaration")
	stmts := make([]ast.Statement, len(decls))
	for i, d := range decls {
		d.Semicolon = semicolon
		stmts[i] = d
	}
	return stmts
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	lbrace := p.consume(token.LBRACE, "expected '{'")
	if p.panicMode {
		return nil
	}

	var stmts []ast.Statement
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		parsed := p.parseBlockStatements()
		if p.panicMode {
			// 块内错误恢复：跳到下一个语句或块结束
			for !p.check(token.RBRACE) && !p.isAtEnd() {
				if p.previous().Type == token.SEMICOLON {
					break
				}
				p.advance()
			}
			p.panicMode = false
			continue
		}
		stmts = append(stmts, parsed...)
	}

	rbrace := p.consume(token.RBRACE, "expected '}'")

	return &ast.BlockStmt{
		LBrace:     lbrace,
		Statements: stmts,
		RBrace:     rbrace,
	}
}

func (p *Parser) parseParenCondition(after string) ast.Expression {
	p.consume(token.LPAREN, "expected '(' after '"+after+"'")
	if p.panicMode {
		return nil
	}
	cond := p.parseExpression()
	p.consume(token.RPAREN, "expected ')'")
	return cond
}

func (p *Parser) parseIfStmt() ast.Statement {
	ifToken := p.advance()
	cond := p.parseParenCondition("if")
	if p.panicMode {
		return nil
	}
	then := p.parseStatement()
	if p.panicMode {
		return nil
	}

	stmt := &ast.IfStmt{
		IfToken:   ifToken,
		Condition: cond,
		Then:      then,
	}
	if p.match(token.ELSE) {
		stmt.Else = p.parseStatement()
		if p.panicMode {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseWhileStmt() ast.Statement {
	whileToken := p.advance()
	cond := p.parseParenCondition("while")
	if p.panicMode {
		return nil
	}
	body := p.parseStatement()
	if p.panicMode {
		return nil
	}
	return &ast.WhileStmt{
		WhileToken: whileToken,
		Condition:  cond,
		Body:       body,
	}
}

func (p *Parser) parseDoWhileStmt() ast.Statement {
	doToken := p.advance()
	body := p.parseStatement()
	if p.panicMode {
		return nil
	}
	p.consume(token.WHILE, "expected 'while' after do body")
	cond := p.parseParenCondition("while")
	if p.panicMode {
		return nil
	}
	semicolon := p.consume(token.SEMICOLON, "expected ';' after do-while")
	return &ast.DoWhileStmt{
		DoToken:   doToken,
		Body:      body,
		Condition: cond,
		Semicolon: semicolon,
	}
}

func (p *Parser) parseForStmt() ast.Statement {
	forToken := p.advance()
	p.consume(token.LPAREN, "expected '(' after 'for'")
	if p.panicMode {
		return nil
	}

	// for (T x : xs)
	if p.isTypeStart() && p.lookAhead(1).Type == token.IDENT && p.lookAhead(2).Type == token.COLON ||
		p.isTypeStart() && p.lookAhead(1).Type == token.LBRACKET && p.lookAhead(4).Type == token.COLON {
		typeRef := p.parseType(false)
		if p.panicMode {
			return nil
		}
		name := p.consume(token.IDENT, "expected variable name")
		p.consume(token.COLON, "expected ':'")
		if p.panicMode {
			return nil
		}
		iterable := p.parseExpression()
		p.consume(token.RPAREN, "expected ')'")
		if p.panicMode {
			return nil
		}
		body := p.parseStatement()
		if p.panicMode {
			return nil
		}
		return &ast.ForEachStmt{
			ForToken: forToken,
			TypeRef:  typeRef,
			Name:     name,
			Iterable: iterable,
			Body:     body,
		}
	}

	// 初始化
	var init ast.Statement
	switch {
	case p.check(token.SEMICOLON):
		p.advance()
	case p.isTypeStart():
		decls := p.parseVarDecls()
		if p.panicMode {
			return nil
		}
		if len(decls) != 1 {
			p.error("for loop initializer must declare exactly one variable")
			p.panicMode = true
			return nil
		}
		init = decls[0]
	default:
		init = p.parseExprStmt()
		if p.panicMode {
			return nil
		}
	}

	// 条件
	var cond ast.Expression
	if !p.check(token.SEMICOLON) {
		cond = p.parseExpression()
	}
	p.consume(token.SEMICOLON, "expected ';' after for condition")
	if p.panicMode {
		return nil
	}

	// 后置表达式
	var post []ast.Expression
	if !p.check(token.RPAREN) {
		post = append(post, p.parseExpression())
		for p.match(token.COMMA) {
			post = append(post, p.parseExpression())
		}
	}
	p.consume(token.RPAREN, "expected ')'")
	if p.panicMode {
		return nil
	}

	body := p.parseStatement()
	if p.panicMode {
		return nil
	}

	return &ast.ForStmt{
		ForToken:  forToken,
		Init:      init,
		Condition: cond,
		Post:      post,
		Body:      body,
	}
}

func (p *Parser) parseReturnStmt() ast.Statement {
	returnToken := p.advance()

	var value ast.Expression
	if !p.check(token.SEMICOLON) {
		value = p.parseExpression()
	}
	semicolon := p.consume(token.SEMICOLON, "expected ';' after return")

	return &ast.ReturnStmt{
		ReturnToken: returnToken,
		Value:       value,
		Semicolon:   semicolon,
	}
}

// ============================================================================
// 表达式解析 (Pratt Parser / 优先级攀升)
// ============================================================================

// 运算符优先级
const (
	PREC_NONE       = iota
	PREC_ASSIGNMENT // =, +=, -=, ...
	PREC_TERNARY    // ?:
	PREC_OR         // ||
	PREC_AND        // &&
	PREC_BIT_OR     // |
	PREC_BIT_XOR    // ^
	PREC_BIT_AND    // &
	PREC_EQUALITY   // ==, !=
	PREC_COMPARISON // <, >, <=, >=
	PREC_SHIFT      // <<, >>, >>>
	PREC_TERM       // +, -
	PREC_FACTOR     // *, /, %
	PREC_UNARY      // !, -, ~, ++, --, (cast)
	PREC_POSTFIX    // ++, --, [], ., ()
)

func (p *Parser) getPrecedence(t token.TokenType) int {
	switch t {
	case token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN,
		token.STAR_ASSIGN, token.SLASH_ASSIGN, token.PERCENT_ASSIGN,
		token.AND_ASSIGN, token.OR_ASSIGN, token.XOR_ASSIGN,
		token.SHL_ASSIGN, token.SHR_ASSIGN, token.USHR_ASSIGN:
		return PREC_ASSIGNMENT
	case token.QUESTION:
		return PREC_TERNARY
	case token.OR:
		return PREC_OR
	case token.AND:
		return PREC_AND
	case token.BIT_OR:
		return PREC_BIT_OR
	case token.BIT_XOR:
		return PREC_BIT_XOR
	case token.BIT_AND:
		return PREC_BIT_AND
	case token.EQ, token.NE:
		return PREC_EQUALITY
	case token.LT, token.LE, token.GT, token.GE:
		return PREC_COMPARISON
	case token.LEFT_SHIFT, token.RIGHT_SHIFT, token.URIGHT_SHIFT:
		return PREC_SHIFT
	case token.PLUS, token.MINUS:
		return PREC_TERM
	case token.STAR, token.SLASH, token.PERCENT:
		return PREC_FACTOR
	case token.LBRACKET, token.DOT, token.LPAREN, token.INCREMENT, token.DECREMENT:
		return PREC_POSTFIX
	default:
		return PREC_NONE
	}
}

func (p *Parser) parseExpression() ast.Expression {
	p.exprDepth++
	if p.exprDepth > maxExprDepth {
		p.error("expression too deeply nested")
		p.panicMode = true
		p.exprDepth--
		return nil
	}
	defer func() { p.exprDepth-- }()

	return p.parsePrecedence(PREC_ASSIGNMENT)
}

func (p *Parser) parsePrecedence(precedence int) ast.Expression {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for precedence <= p.getPrecedence(p.peek().Type) && !p.panicMode {
		left = p.parseInfixExpr(left)
		if left == nil {
			return nil
		}
	}

	return left
}

func (p *Parser) parsePrefixExpr() ast.Expression {
	switch p.peek().Type {
	case token.INT, token.LONG:
		tok := p.advance()
		return &ast.IntegerLiteral{Token: tok, Value: tok.Value.(int64)}
	case token.DOUBLE:
		tok := p.advance()
		return &ast.DoubleLiteral{Token: tok, Value: tok.Value.(float64)}
	case token.TRUE:
		return &ast.BoolLiteral{Token: p.advance(), Value: true}
	case token.FALSE:
		return &ast.BoolLiteral{Token: p.advance(), Value: false}
	case token.IDENT:
		tok := p.advance()
		if p.check(token.LPAREN) {
			return p.parseCallRest(nil, tok)
		}
		return &ast.Identifier{Token: tok, Name: tok.Literal}
	case token.LPAREN:
		return p.parseGroupOrCast()
	case token.MINUS:
		return p.parseNegation()
	case token.NOT, token.BIT_NOT:
		op := p.advance()
		operand := p.parsePrecedence(PREC_UNARY)
		if operand == nil {
			return nil
		}
		return &ast.UnaryExpr{Operator: op, Operand: operand}
	case token.INCREMENT, token.DECREMENT:
		op := p.advance()
		target := p.parsePrecedence(PREC_UNARY)
		if target == nil {
			return nil
		}
		if !isValidAssignTarget(target) {
			p.error("invalid increment/decrement target")
		}
		return &ast.IncDecExpr{Target: target, Operator: op, Prefix: true}
	case token.NEW:
		return p.parseNewExpr()
	case token.NULL:
		p.error("null is not supported")
		p.panicMode = true
		p.advance()
		return nil
	case token.THIS:
		p.error("'this' is not available in static methods")
		p.panicMode = true
		p.advance()
		return nil
	default:
		p.error(fmt.Sprintf("unexpected token %s", p.peek().Type))
		p.panicMode = true
		p.advance() // 跳过无效 token，防止无限循环
		return nil
	}
}

// parseNegation 解析一元负号
//
// 紧跟数字字面量的负号直接并入字面量，这样 -2147483648 这样的值可以表示。
func (p *Parser) parseNegation() ast.Expression {
	op := p.advance()
	if next := p.peek(); next.Type == token.INT || next.Type == token.LONG || next.Type == token.DOUBLE {
		if p.getPrecedence(p.lookAhead(1).Type) < PREC_POSTFIX {
			p.advance()
			lit := next
			lit.Literal = "-" + next.Literal
			lit.Pos = op.Pos
			if next.Type == token.DOUBLE {
				return &ast.DoubleLiteral{Token: lit, Value: -next.Value.(float64)}
			}
			v := -next.Value.(int64)
			if next.Type == token.INT {
				v = int64(int32(v))
			}
			return &ast.IntegerLiteral{Token: lit, Value: v}
		}
	}
	operand := p.parsePrecedence(PREC_UNARY)
	if operand == nil {
		return nil
	}
	if lit, ok := operand.(*ast.IntegerLiteral); ok && lit.Token.Type == token.INT && lit.Value == 1<<31 {
		p.error("int literal out of range")
	}
	return &ast.UnaryExpr{Operator: op, Operand: operand}
}

func (p *Parser) parseGroupOrCast() ast.Expression {
	lparen := p.advance() // (

	// (int) x, (long) x, (double) x
	if p.isTypeStart() && p.lookAhead(1).Type == token.RPAREN {
		typeRef := p.parseType(false)
		p.advance() // )
		x := p.parsePrecedence(PREC_UNARY)
		if x == nil {
			return nil
		}
		return &ast.CastExpr{LParen: lparen, To: typeRef.Type, X: x}
	}

	expr := p.parseExpression()
	p.consume(token.RPAREN, "expected ')'")
	if p.panicMode {
		return nil
	}
	return expr
}

func (p *Parser) parseInfixExpr(left ast.Expression) ast.Expression {
	switch p.peek().Type {
	case token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.EQ, token.NE, token.LT, token.LE, token.GT, token.GE,
		token.AND, token.OR, token.BIT_AND, token.BIT_OR, token.BIT_XOR,
		token.LEFT_SHIFT, token.RIGHT_SHIFT, token.URIGHT_SHIFT:
		return p.parseBinaryExpr(left)
	case token.QUESTION:
		return p.parseTernaryExpr(left)
	case token.LBRACKET:
		return p.parseIndexExpr(left)
	case token.DOT:
		return p.parseDotAccess(left)
	case token.INCREMENT, token.DECREMENT:
		op := p.advance()
		if !isValidAssignTarget(left) {
			p.error("invalid increment/decrement target")
		}
		return &ast.IncDecExpr{Target: left, Operator: op}
	case token.LPAREN:
		p.error("expression is not callable")
		p.panicMode = true
		return nil
	default:
		if p.peek().Type.IsAssign() {
			return p.parseAssignExpr(left)
		}
		return left
	}
}

func (p *Parser) parseBinaryExpr(left ast.Expression) ast.Expression {
	op := p.advance()
	prec := p.getPrecedence(op.Type)
	right := p.parsePrecedence(prec + 1)
	if right == nil {
		return nil
	}
	return &ast.BinaryExpr{
		Left:     left,
		Operator: op,
		Right:    right,
	}
}

func (p *Parser) parseAssignExpr(left ast.Expression) ast.Expression {
	if !isValidAssignTarget(left) {
		p.error("invalid assignment target")
	}

	op := p.advance()
	right := p.parsePrecedence(PREC_ASSIGNMENT)
	if right == nil {
		return nil
	}
	return &ast.AssignExpr{
		Left:     left,
		Operator: op,
		Right:    right,
	}
}

// isValidAssignTarget 检查表达式是否是有效的赋值目标
func isValidAssignTarget(expr ast.Expression) bool {
	switch expr.(type) {
	case *ast.Identifier, *ast.IndexExpr:
		return true
	default:
		return false
	}
}

func (p *Parser) parseTernaryExpr(left ast.Expression) ast.Expression {
	question := p.advance()
	then := p.parseExpression()
	p.consume(token.COLON, "expected ':' in ternary expression")
	if p.panicMode {
		return nil
	}
	elseExpr := p.parsePrecedence(PREC_TERNARY)
	if then == nil || elseExpr == nil {
		return nil
	}
	return &ast.TernaryExpr{
		Condition: left,
		Question:  question,
		Then:      then,
		Else:      elseExpr,
	}
}

func (p *Parser) parseIndexExpr(left ast.Expression) ast.Expression {
	p.advance() // [
	index := p.parseExpression()
	rbracket := p.consume(token.RBRACKET, "expected ']'")
	if p.panicMode || index == nil {
		return nil
	}
	return &ast.IndexExpr{X: left, Index: index, RBracket: rbracket}
}

// parseDotAccess 解析 . 之后的部分
//
// a.length、T.CONST 解析为 SelectorExpr；
// T.printInt(x)、testutil.T.printInt(x) 解析为带限定名的 CallExpr。
func (p *Parser) parseDotAccess(left ast.Expression) ast.Expression {
	p.advance() // .
	sel := p.consume(token.IDENT, "expected identifier after '.'")
	if p.panicMode {
		return nil
	}

	if p.check(token.LPAREN) {
		qualifier, ok := qualifierOf(left)
		if !ok {
			p.error("method calls are only supported on class names")
			p.panicMode = true
			return nil
		}
		return p.parseCallRest(qualifier, sel)
	}

	return &ast.SelectorExpr{X: left, Sel: sel}
}

// qualifierOf 把 a.b.c 形式的表达式展开为标识符序列
func qualifierOf(e ast.Expression) ([]token.Token, bool) {
	switch e := e.(type) {
	case *ast.Identifier:
		return []token.Token{e.Token}, true
	case *ast.SelectorExpr:
		prefix, ok := qualifierOf(e.X)
		if !ok {
			return nil, false
		}
		return append(prefix, e.Sel), true
	default:
		return nil, false
	}
}

func (p *Parser) parseCallRest(qualifier []token.Token, name token.Token) ast.Expression {
	p.advance() // (
	var args []ast.Expression
	if !p.check(token.RPAREN) {
		for {
			arg := p.parseExpression()
			if arg == nil {
				return nil
			}
			args = append(args, arg)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	rparen := p.consume(token.RPAREN, "expected ')' after arguments")
	if p.panicMode {
		return nil
	}
	return &ast.CallExpr{
		Qualifier: qualifier,
		Name:      name,
		Args:      args,
		RParen:    rparen,
	}
}

// parseNewExpr 解析数组创建 new int[n] 或 new int[]{...}
func (p *Parser) parseNewExpr() ast.Expression {
	newToken := p.advance()
	if !p.isTypeStart() {
		p.error("only primitive arrays can be created with 'new'")
		p.panicMode = true
		return nil
	}
	elemTok := p.advance()
	elem := primitiveOf(elemTok.Type)

	p.consume(token.LBRACKET, "expected '[' after array element type")
	if p.panicMode {
		return nil
	}

	if p.match(token.RBRACKET) {
		if !p.check(token.LBRACE) {
			p.error("array creation requires a size or an initializer")
			p.panicMode = true
			return nil
		}
		init := p.parseArrayInit(p.peek(), elem)
		if init == nil {
			return nil
		}
		init.NewToken = newToken
		return init
	}

	size := p.parseExpression()
	rbracket := p.consume(token.RBRACKET, "expected ']'")
	if p.panicMode || size == nil {
		return nil
	}
	if p.check(token.LBRACKET) {
		p.error("multi-dimensional arrays are not supported")
		p.panicMode = true
		return nil
	}
	return &ast.NewArrayExpr{
		NewToken: newToken,
		Elem:     elem,
		Size:     size,
		EndToken: rbracket,
	}
}

// parseArrayInit 解析数组初始化列表 {1, 2, 3}
func (p *Parser) parseArrayInit(start token.Token, elem types.Type) *ast.NewArrayExpr {
	p.consume(token.LBRACE, "expected '{'")
	if p.panicMode {
		return nil
	}
	var elems []ast.Expression
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		el := p.parseExpression()
		if el == nil {
			return nil
		}
		elems = append(elems, el)
		if !p.match(token.COMMA) {
			break
		}
	}
	rbrace := p.consume(token.RBRACE, "expected '}' after array initializer")
	if p.panicMode {
		return nil
	}
	return &ast.NewArrayExpr{
		NewToken: start,
		Elem:     elem,
		Init:     elems,
		HasInit:  true,
		EndToken: rbrace,
	}
}

func primitiveOf(t token.TokenType) types.Type {
	switch t {
	case token.INT_TYPE:
		return types.Int
	case token.LONG_TYPE:
		return types.Long
	case token.DOUBLE_TYPE:
		return types.Double
	case token.BOOLEAN:
		return types.Boolean
	default:
		return types.Invalid
	}
}
