package token

import "fmt"

// ============================================================================
// Token 类型定义
// ============================================================================
//
// TokenType 使用 iota 自动编号，按类别分组：
// 1. 特殊标记（ILLEGAL, EOF）
// 2. 字面量（标识符、整数、长整数、浮点数）
// 3. 运算符（算术、赋值、比较、逻辑、位运算）
// 4. 分隔符（括号、逗号、分号等）
// 5. 关键字（类型、值、声明、控制流）
//
// 只覆盖 Java 子集：静态方法、基本类型、数组和结构化控制流。
//
// ============================================================================

// TokenType 表示 Token 的类型
type TokenType int

const (
	// ----------------------------------------------------------
	// 特殊标记
	// ----------------------------------------------------------
	ILLEGAL TokenType = iota // 非法字符
	EOF                      // 文件结束

	// ----------------------------------------------------------
	// 字面量
	// ----------------------------------------------------------
	IDENT  // 标识符
	INT    // 整数字面量 (10, 0xff)
	LONG   // 长整数字面量 (10L)
	DOUBLE // 浮点数字面量 (1.5)

	// ----------------------------------------------------------
	// 算术与赋值运算符
	// ----------------------------------------------------------
	PLUS           // +
	MINUS          // -
	STAR           // *
	SLASH          // /
	PERCENT        // %
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=
	AND_ASSIGN     // &=
	OR_ASSIGN      // |=
	XOR_ASSIGN     // ^=
	SHL_ASSIGN     // <<=
	SHR_ASSIGN     // >>=
	USHR_ASSIGN    // >>>=
	INCREMENT      // ++
	DECREMENT      // --

	// ----------------------------------------------------------
	// 比较运算符
	// ----------------------------------------------------------
	EQ // ==
	NE // !=
	LT // <
	LE // <=
	GT // >
	GE // >=

	// ----------------------------------------------------------
	// 逻辑运算符
	// ----------------------------------------------------------
	AND // &&
	OR  // ||
	NOT // !

	// ----------------------------------------------------------
	// 位运算符
	// ----------------------------------------------------------
	BIT_AND      // &
	BIT_OR       // |
	BIT_XOR      // ^
	BIT_NOT      // ~
	LEFT_SHIFT   // <<
	RIGHT_SHIFT  // >>
	URIGHT_SHIFT // >>>

	// ----------------------------------------------------------
	// 分隔符
	// ----------------------------------------------------------
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
	COMMA     // ,
	DOT       // .
	SEMICOLON // ;
	COLON     // :
	QUESTION  // ?

	// ----------------------------------------------------------
	// 关键字 - 类型
	// ----------------------------------------------------------
	keyword_beg // 关键字起始标记（不是实际 token）
	INT_TYPE    // int
	LONG_TYPE   // long
	DOUBLE_TYPE // double
	BOOLEAN     // boolean
	VOID        // void

	// ----------------------------------------------------------
	// 关键字 - 值
	// ----------------------------------------------------------
	TRUE  // true
	FALSE // false
	NULL  // null

	// ----------------------------------------------------------
	// 关键字 - 声明
	// ----------------------------------------------------------
	PACKAGE   // package
	IMPORT    // import
	CLASS     // class
	STATIC    // static
	FINAL     // final
	NATIVE    // native
	PUBLIC    // public
	PROTECTED // protected
	PRIVATE   // private

	// ----------------------------------------------------------
	// 关键字 - 控制流
	// ----------------------------------------------------------
	IF       // if
	ELSE     // else
	FOR      // for
	WHILE    // while
	DO       // do
	BREAK    // break
	CONTINUE // continue
	RETURN   // return

	// ----------------------------------------------------------
	// 关键字 - 其他
	// ----------------------------------------------------------
	NEW         // new
	THIS        // this
	keyword_end // 关键字结束标记（不是实际 token）
)

// ============================================================================
// Token 类型名称映射
// ============================================================================

var tokenNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	IDENT:  "IDENT",
	INT:    "INT",
	LONG:   "LONG",
	DOUBLE: "DOUBLE",

	PLUS:           "+",
	MINUS:          "-",
	STAR:           "*",
	SLASH:          "/",
	PERCENT:        "%",
	ASSIGN:         "=",
	PLUS_ASSIGN:    "+=",
	MINUS_ASSIGN:   "-=",
	STAR_ASSIGN:    "*=",
	SLASH_ASSIGN:   "/=",
	PERCENT_ASSIGN: "%=",
	AND_ASSIGN:     "&=",
	OR_ASSIGN:      "|=",
	XOR_ASSIGN:     "^=",
	SHL_ASSIGN:     "<<=",
	SHR_ASSIGN:     ">>=",
	USHR_ASSIGN:    ">>>=",
	INCREMENT:      "++",
	DECREMENT:      "--",

	EQ: "==",
	NE: "!=",
	LT: "<",
	LE: "<=",
	GT: ">",
	GE: ">=",

	AND: "&&",
	OR:  "||",
	NOT: "!",

	BIT_AND:      "&",
	BIT_OR:       "|",
	BIT_XOR:      "^",
	BIT_NOT:      "~",
	LEFT_SHIFT:   "<<",
	RIGHT_SHIFT:  ">>",
	URIGHT_SHIFT: ">>>",

	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	LBRACKET:  "[",
	RBRACKET:  "]",
	COMMA:     ",",
	DOT:       ".",
	SEMICOLON: ";",
	COLON:     ":",
	QUESTION:  "?",

	INT_TYPE:    "int",
	LONG_TYPE:   "long",
	DOUBLE_TYPE: "double",
	BOOLEAN:     "boolean",
	VOID:        "void",

	TRUE:  "true",
	FALSE: "false",
	NULL:  "null",

	PACKAGE:   "package",
	IMPORT:    "import",
	CLASS:     "class",
	STATIC:    "static",
	FINAL:     "final",
	NATIVE:    "native",
	PUBLIC:    "public",
	PROTECTED: "protected",
	PRIVATE:   "private",

	IF:       "if",
	ELSE:     "else",
	FOR:      "for",
	WHILE:    "while",
	DO:       "do",
	BREAK:    "break",
	CONTINUE: "continue",
	RETURN:   "return",

	NEW:  "new",
	THIS: "this",
}

// String 返回 TokenType 的字符串表示
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// IsKeyword 检查是否为关键字
func (t TokenType) IsKeyword() bool {
	return t > keyword_beg && t < keyword_end
}

// IsAssign 检查是否为赋值运算符（含复合赋值）
func (t TokenType) IsAssign() bool {
	return t >= ASSIGN && t <= USHR_ASSIGN
}

// IsComparison 检查是否为比较运算符
func (t TokenType) IsComparison() bool {
	return t >= EQ && t <= GE
}

// ============================================================================
// 关键字表
// ============================================================================

var keywords map[string]TokenType

func init() {
	keywords = make(map[string]TokenType, keyword_end-keyword_beg)
	for t := keyword_beg + 1; t < keyword_end; t++ {
		keywords[tokenNames[t]] = t
	}
}

// LookupIdent 查找标识符是否为关键字
//
// 返回:
//   - TokenType: 如果是关键字返回对应类型，否则返回 IDENT
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// ============================================================================
// Position - 源代码位置
// ============================================================================

// Position 表示源代码中的位置
type Position struct {
	Filename string // 文件名
	Line     int    // 行号 (从1开始)
	Column   int    // 列号 (从1开始)
	Offset   int    // 字节偏移量 (从0开始)
}

// String 返回位置的字符串表示，格式为 "filename:line:column"
func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid 检查位置是否有效
func (p Position) IsValid() bool {
	return p.Line > 0
}

// ============================================================================
// Token - 词法单元
// ============================================================================

// Token 表示一个词法单元
//
// Token 是词法分析的产物，包含：
// - Type: token 类型（如 IDENT, INT, IF 等）
// - Literal: 原始字面量文本
// - Value: 解析后的值（int64 或 float64）
// - Pos: 在源代码中的位置
type Token struct {
	Type    TokenType   // Token 类型
	Literal string      // 原始字面量
	Value   interface{} // 解析后的值 (用于数字)
	Pos     Position    // 位置信息
}

// String 返回 Token 的字符串表示（用于调试）
func (t Token) String() string {
	switch t.Type {
	case IDENT, INT, LONG, DOUBLE:
		return fmt.Sprintf("%s(%s) at %s", t.Type, t.Literal, t.Pos)
	default:
		return fmt.Sprintf("%s at %s", t.Type, t.Pos)
	}
}

// New 创建一个新的 Token
func New(tokenType TokenType, literal string, pos Position) Token {
	return Token{
		Type:    tokenType,
		Literal: literal,
		Pos:     pos,
	}
}

// NewWithValue 创建一个带值的 Token
//
// 用于数字字面量，value 参数存储解析后的实际值。
func NewWithValue(tokenType TokenType, literal string, value interface{}, pos Position) Token {
	return Token{
		Type:    tokenType,
		Literal: literal,
		Value:   value,
		Pos:     pos,
	}
}
