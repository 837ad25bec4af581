package lexer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tangzhangming/lowir/internal/token"
)

// ============================================================================
// Lexer - 词法分析器
// ============================================================================
//
// 词法分析器负责将 Java 子集源代码转换为 Token 序列。
//
// 实现要点：
// 1. ASCII 快速路径：源码几乎全是 ASCII，避免不必要的 UTF-8 解码
// 2. Token 切片预分配：根据源码长度预估 token 数量
// 3. 空白字符批量跳过
// 4. 数字字面量在扫描时解析为 int64 / float64，后缀 L 产生 LONG
//
// ============================================================================

// Lexer 词法分析器结构体
type Lexer struct {
	source   string        // 源代码字符串
	filename string        // 源文件名（用于错误报告）
	tokens   []token.Token // 已扫描的 Token 列表

	start     int // 当前 Token 的起始位置（字节偏移）
	current   int // 当前扫描位置（字节偏移）
	line      int // 当前行号（从1开始）
	column    int // 当前列号（从1开始）
	lineStart int // 当前行的起始偏移

	errors []Error // 词法错误列表
}

// Error 表示词法分析错误
type Error struct {
	Pos     token.Position // 错误位置
	Message string         // 错误信息
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// ============================================================================
// 构造函数
// ============================================================================

// New 创建一个新的词法分析器
//
// 参数:
//   - source: 源代码字符串
//   - filename: 源文件名（用于错误报告）
func New(source, filename string) *Lexer {
	estimatedTokens := len(source) / 5
	if estimatedTokens < 16 {
		estimatedTokens = 16
	}

	return &Lexer{
		source:   source,
		filename: filename,
		tokens:   make([]token.Token, 0, estimatedTokens),
		line:     1,
		column:   1,
	}
}

// ============================================================================
// 公共方法
// ============================================================================

// ScanTokens 扫描所有 tokens
//
// 最后一个 Token 总是 EOF。
func (l *Lexer) ScanTokens() []token.Token {
	for !l.isAtEnd() {
		l.start = l.current
		l.scanToken()
	}

	l.start = l.current
	l.tokens = append(l.tokens, token.Token{
		Type: token.EOF,
		Pos:  l.currentPos(),
	})

	return l.tokens
}

// Errors 返回所有词法错误
func (l *Lexer) Errors() []Error {
	return l.errors
}

// HasErrors 检查是否有错误
func (l *Lexer) HasErrors() bool {
	return len(l.errors) > 0
}

// ============================================================================
// 核心扫描逻辑
// ============================================================================

// scanToken 扫描单个 token
func (l *Lexer) scanToken() {
	ch := l.advance()

	switch ch {

	// ----------------------------------------------------------
	// 空白字符
	// ----------------------------------------------------------
	case ' ', '\t', '\r':
		l.skipWhitespace()

	case '\n':
		l.newLine()
		l.skipWhitespace()

	// ----------------------------------------------------------
	// 分隔符
	// ----------------------------------------------------------
	case '(':
		l.addToken(token.LPAREN)
	case ')':
		l.addToken(token.RPAREN)
	case '{':
		l.addToken(token.LBRACE)
	case '}':
		l.addToken(token.RBRACE)
	case '[':
		l.addToken(token.LBRACKET)
	case ']':
		l.addToken(token.RBRACKET)
	case ',':
		l.addToken(token.COMMA)
	case ';':
		l.addToken(token.SEMICOLON)
	case ':':
		l.addToken(token.COLON)
	case '?':
		l.addToken(token.QUESTION)
	case '~':
		l.addToken(token.BIT_NOT)

	case '.':
		if isDigit(l.peek()) {
			l.number()
		} else {
			l.addToken(token.DOT)
		}

	// ----------------------------------------------------------
	// 运算符（可能是多字符）
	// ----------------------------------------------------------
	case '=':
		l.addToken(l.choose('=', token.EQ, token.ASSIGN))

	case '!':
		l.addToken(l.choose('=', token.NE, token.NOT))

	case '+':
		if l.match('+') {
			l.addToken(token.INCREMENT)
		} else {
			l.addToken(l.choose('=', token.PLUS_ASSIGN, token.PLUS))
		}

	case '-':
		if l.match('-') {
			l.addToken(token.DECREMENT)
		} else {
			l.addToken(l.choose('=', token.MINUS_ASSIGN, token.MINUS))
		}

	case '*':
		l.addToken(l.choose('=', token.STAR_ASSIGN, token.STAR))

	case '%':
		l.addToken(l.choose('=', token.PERCENT_ASSIGN, token.PERCENT))

	case '^':
		l.addToken(l.choose('=', token.XOR_ASSIGN, token.BIT_XOR))

	case '&':
		if l.match('&') {
			l.addToken(token.AND)
		} else {
			l.addToken(l.choose('=', token.AND_ASSIGN, token.BIT_AND))
		}

	case '|':
		if l.match('|') {
			l.addToken(token.OR)
		} else {
			l.addToken(l.choose('=', token.OR_ASSIGN, token.BIT_OR))
		}

	case '<':
		if l.match('<') {
			l.addToken(l.choose('=', token.SHL_ASSIGN, token.LEFT_SHIFT))
		} else {
			l.addToken(l.choose('=', token.LE, token.LT))
		}

	case '>':
		switch {
		case l.match('>'):
			if l.match('>') {
				l.addToken(l.choose('=', token.USHR_ASSIGN, token.URIGHT_SHIFT))
			} else {
				l.addToken(l.choose('=', token.SHR_ASSIGN, token.RIGHT_SHIFT))
			}
		default:
			l.addToken(l.choose('=', token.GE, token.GT))
		}

	case '/':
		switch {
		case l.match('/'):
			l.lineComment()
		case l.match('*'):
			l.blockComment()
		default:
			l.addToken(l.choose('=', token.SLASH_ASSIGN, token.SLASH))
		}

	default:
		switch {
		case isDigit(ch):
			l.number()
		case isAlpha(ch):
			l.identifier()
		default:
			l.error(fmt.Sprintf("unexpected character %q", ch))
		}
	}
}

// choose 如果下一个字符是 expected 则消费它并返回 yes，否则返回 no
func (l *Lexer) choose(expected rune, yes, no token.TokenType) token.TokenType {
	if l.match(expected) {
		return yes
	}
	return no
}

// skipWhitespace 批量跳过空白字符
func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() {
		switch l.peekByte() {
		case ' ', '\t', '\r':
			l.advanceByte()
		case '\n':
			l.advanceByte()
			l.newLine()
		default:
			return
		}
	}
}

// ============================================================================
// 注释处理
// ============================================================================

// lineComment 处理单行注释 //
func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peekByte() != '\n' {
		l.advance()
	}
}

// blockComment 处理多行注释 /* */
//
// Java 的块注释不嵌套，遇到第一个 */ 即结束。
func (l *Lexer) blockComment() {
	for !l.isAtEnd() {
		if l.peekByte() == '*' && l.peekNextByte() == '/' {
			l.advanceByte()
			l.advanceByte()
			return
		}
		if l.peekByte() == '\n' {
			l.advanceByte()
			l.newLine()
			continue
		}
		l.advance()
	}
	l.error("unterminated block comment")
}

// ============================================================================
// 数字处理
// ============================================================================

// number 处理数字字面量
//
// 支持的格式：
//   - 十进制整数：123，带 L 后缀为 long：123L
//   - 十六进制整数：0xff, 0xffL
//   - 浮点数：3.14, .5, 1e10, 2.0d
//
// int 字面量超出 32 位范围时报错；十六进制 int 字面量按补码解释（0xffffffff == -1）。
func (l *Lexer) number() {
	if l.source[l.start] == '0' && (l.peekByte() == 'x' || l.peekByte() == 'X') {
		l.advanceByte()
		for isHexDigit(l.peek()) || l.peekByte() == '_' {
			l.advance()
		}
		l.integer(16)
		return
	}

	for isDigit(l.peek()) || l.peekByte() == '_' {
		l.advance()
	}

	isFloat := l.source[l.start] == '.'
	if !isFloat && l.peekByte() == '.' && isDigit(l.peekNextRune()) {
		isFloat = true
		l.advanceByte()
	}
	if isFloat {
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	if l.peekByte() == 'e' || l.peekByte() == 'E' {
		isFloat = true
		l.advanceByte()
		if l.peekByte() == '+' || l.peekByte() == '-' {
			l.advanceByte()
		}
		if !isDigit(l.peek()) {
			l.error("malformed floating-point exponent")
			return
		}
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	if isFloat || l.peekByte() == 'd' || l.peekByte() == 'D' {
		text := strings.ReplaceAll(l.source[l.start:l.current], "_", "")
		if l.peekByte() == 'd' || l.peekByte() == 'D' {
			l.advanceByte()
		}
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			l.error(fmt.Sprintf("invalid floating-point literal %s", text))
			return
		}
		l.addTokenWithValue(token.DOUBLE, value)
		return
	}

	l.integer(10)
}

// integer 解析 [l.start, l.current) 范围内的整数文本并处理 L 后缀
func (l *Lexer) integer(base int) {
	text := strings.ReplaceAll(l.source[l.start:l.current], "_", "")
	if base == 16 {
		text = text[2:]
	}

	isLong := false
	if l.peekByte() == 'L' || l.peekByte() == 'l' {
		isLong = true
		l.advanceByte()
	}

	// 单位数快速路径
	if base == 10 && len(text) == 1 {
		l.addIntToken(isLong, int64(text[0]-'0'))
		return
	}

	u, err := strconv.ParseUint(text, base, 64)
	if err != nil {
		l.error(fmt.Sprintf("invalid integer literal %s", l.source[l.start:l.current]))
		return
	}

	var value int64
	switch {
	case isLong:
		if base == 10 && u > math.MaxInt64 {
			l.error(fmt.Sprintf("long literal out of range: %s", text))
			return
		}
		value = int64(u)
	case base == 16:
		if u > math.MaxUint32 {
			l.error(fmt.Sprintf("int literal out of range: 0x%s", text))
			return
		}
		value = int64(int32(uint32(u)))
	default:
		// 2147483648 只允许作为一元负号的操作数，由检查器处理
		if u > math.MaxInt32+1 {
			l.error(fmt.Sprintf("int literal out of range: %s", text))
			return
		}
		value = int64(u)
	}
	l.addIntToken(isLong, value)
}

func (l *Lexer) addIntToken(isLong bool, value int64) {
	if isLong {
		l.addTokenWithValue(token.LONG, value)
	} else {
		l.addTokenWithValue(token.INT, value)
	}
}

// ============================================================================
// 标识符处理
// ============================================================================

// identifier 处理标识符和关键字
func (l *Lexer) identifier() {
	for isAlphaNumeric(l.peek()) {
		l.advance()
	}
	l.addToken(token.LookupIdent(l.source[l.start:l.current]))
}

// ============================================================================
// 底层字符操作
// ============================================================================

func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

// advance 前进一个字符并返回它
func (l *Lexer) advance() rune {
	if l.current >= len(l.source) {
		return 0
	}

	b := l.source[l.current]
	if b < utf8.RuneSelf {
		l.current++
		l.column++
		return rune(b)
	}

	r, size := utf8.DecodeRuneInString(l.source[l.current:])
	l.current += size
	l.column++
	return r
}

// advanceByte 前进一个字节（调用者保证当前字符是 ASCII）
func (l *Lexer) advanceByte() {
	l.current++
	l.column++
}

func (l *Lexer) peek() rune {
	if l.current >= len(l.source) {
		return 0
	}
	b := l.source[l.current]
	if b < utf8.RuneSelf {
		return rune(b)
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.current:])
	return r
}

func (l *Lexer) peekByte() byte {
	if l.current >= len(l.source) {
		return 0
	}
	return l.source[l.current]
}

func (l *Lexer) peekNextByte() byte {
	if l.current+1 >= len(l.source) {
		return 0
	}
	return l.source[l.current+1]
}

// peekNextRune 查看下一个 rune（用于浮点数检测）
func (l *Lexer) peekNextRune() rune {
	if l.current+1 >= len(l.source) {
		return 0
	}
	b := l.source[l.current+1]
	if b < utf8.RuneSelf {
		return rune(b)
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.current+1:])
	return r
}

// match 如果当前字符匹配则前进
func (l *Lexer) match(expected rune) bool {
	if l.current >= len(l.source) {
		return false
	}
	b := l.source[l.current]
	if b >= utf8.RuneSelf || rune(b) != expected {
		return false
	}
	l.current++
	l.column++
	return true
}

// ============================================================================
// 位置追踪
// ============================================================================

func (l *Lexer) newLine() {
	l.line++
	l.column = 1
	l.lineStart = l.current
}

// currentPos 获取当前 token 的起始位置
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Filename: l.filename,
		Line:     l.line,
		Column:   l.column - utf8.RuneCountInString(l.source[l.start:l.current]),
		Offset:   l.start,
	}
}

// ============================================================================
// Token 生成
// ============================================================================

func (l *Lexer) addToken(tokenType token.TokenType) {
	l.tokens = append(l.tokens, token.Token{
		Type:    tokenType,
		Literal: l.source[l.start:l.current],
		Pos:     l.currentPos(),
	})
}

func (l *Lexer) addTokenWithValue(tokenType token.TokenType, value interface{}) {
	l.tokens = append(l.tokens, token.Token{
		Type:    tokenType,
		Literal: l.source[l.start:l.current],
		Value:   value,
		Pos:     l.currentPos(),
	})
}

// ============================================================================
// 错误处理
// ============================================================================

// error 记录一个词法错误并生成 ILLEGAL token
//
// 错误会被收集起来，不会中断扫描过程。
func (l *Lexer) error(message string) {
	l.errors = append(l.errors, Error{
		Pos:     l.currentPos(),
		Message: message,
	})
	l.addToken(token.ILLEGAL)
}

// ============================================================================
// 字符分类函数
// ============================================================================

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// isAlpha 判断是否为字母、下划线或 $
func isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		ch == '_' || ch == '$' ||
		unicode.IsLetter(ch)
}

func isAlphaNumeric(ch rune) bool {
	return isAlpha(ch) || isDigit(ch)
}
