// Package errors 提供 lowir 的诊断码与错误格式化
package errors

// ============================================================================
// 错误级别
// ============================================================================

// Level 错误级别
type Level int

const (
	LevelError   Level = iota // 错误
	LevelWarning              // 警告
	LevelNote                 // 提示
	LevelHelp                 // 帮助
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelNote:
		return "note"
	case LevelHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ============================================================================
// 前端错误码 (E 开头)
// ============================================================================

const (
	// E0001-E0099: 语法错误
	E0001 = "E0001" // 语法错误
	E0002 = "E0002" // 意外的字符
	E0004 = "E0004" // 未闭合的注释
	E0005 = "E0005" // 无效的数字
	E0006 = "E0006" // 期望的 token
	E0007 = "E0007" // 意外的 token
	E0010 = "E0010" // 不是语句

	// E0100-E0199: 变量错误
	E0100 = "E0100" // 未定义的变量
	E0101 = "E0101" // 变量重复声明
	E0102 = "E0102" // 给常量赋值

	// E0200-E0299: 类型错误
	E0200 = "E0200" // 类型不匹配
	E0202 = "E0202" // 赋值类型不兼容
	E0203 = "E0203" // 返回类型不匹配
	E0205 = "E0205" // 运算符类型不兼容
	E0207 = "E0207" // 下标目标不是数组
	E0208 = "E0208" // 缺少 return 语句
	E0209 = "E0209" // 字面量超出范围

	// E0300-E0399: 方法错误
	E0300 = "E0300" // 未定义的方法
	E0301 = "E0301" // 参数数量错误（过少）
	E0302 = "E0302" // 参数数量错误（过多）
	E0303 = "E0303" // 参数类型错误
	E0304 = "E0304" // break 在循环外
	E0305 = "E0305" // continue 在循环外
	E0307 = "E0307" // 在静态上下文中引用实例方法

	// E0400-E0499: 类错误
	E0400 = "E0400" // 未定义的类
	E0401 = "E0401" // 重复的类或成员
	E0402 = "E0402" // 未定义的字段
	E0404 = "E0404" // 不支持的字段声明

	// E0600-E0699: 数组错误
	E0600 = "E0600" // 数组长度必须是 int
	E0601 = "E0601" // 常量初始值不是常量表达式
)

// ============================================================================
// 降级错误码 (L 开头)
// ============================================================================

const (
	L0001 = "L0001" // 不支持的语法结构
	L0002 = "L0002" // 类型不匹配
	L0003 = "L0003" // 未解析的标签
	L0004 = "L0004" // 寄存器过多
	L0005 = "L0005" // IR 校验失败
)

// ============================================================================
// 运行时错误码 (R 开头)
// ============================================================================

const (
	// R0001-R0099: 通用运行时错误
	R0002 = "R0002" // 未知操作码
	R0003 = "R0003" // 指令指针越界

	// R0100-R0199: 数组错误
	R0100 = "R0100" // 数组索引越界
	R0101 = "R0101" // 数组长度为负

	// R0200-R0299: 数值错误
	R0200 = "R0200" // 除以零

	// R0300-R0399: 引用错误
	R0300 = "R0300" // 空引用
	R0305 = "R0305" // 未定义的方法
	R0306 = "R0306" // 未绑定的原生方法

	// R0400-R0499: 资源/限制错误
	R0401 = "R0401" // 执行步数超限
	R0402 = "R0402" // 调用栈过深
)

// ============================================================================
// 错误码信息
// ============================================================================

// ErrorInfo 错误码信息
type ErrorInfo struct {
	Code     string // 错误码
	Level    Level  // 错误级别
	Title    string // 简短描述
	Category string // 错误分类
}

// compilerErrors 前端错误码信息表
var compilerErrors = map[string]ErrorInfo{
	// 语法错误
	E0001: {E0001, LevelError, "syntax error", "syntax"},
	E0002: {E0002, LevelError, "unexpected character", "syntax"},
	E0004: {E0004, LevelError, "unterminated comment", "syntax"},
	E0005: {E0005, LevelError, "invalid number", "syntax"},
	E0006: {E0006, LevelError, "expected token", "syntax"},
	E0007: {E0007, LevelError, "unexpected token", "syntax"},
	E0010: {E0010, LevelError, "not a statement", "syntax"},

	// 变量错误
	E0100: {E0100, LevelError, "cannot find symbol", "variable"},
	E0101: {E0101, LevelError, "variable already defined", "variable"},
	E0102: {E0102, LevelError, "cannot assign a value to final variable", "variable"},

	// 类型错误
	E0200: {E0200, LevelError, "incompatible types", "type"},
	E0202: {E0202, LevelError, "incompatible types in assignment", "type"},
	E0203: {E0203, LevelError, "incompatible return type", "type"},
	E0205: {E0205, LevelError, "bad operand types", "type"},
	E0207: {E0207, LevelError, "array required", "type"},
	E0208: {E0208, LevelError, "missing return statement", "type"},
	E0209: {E0209, LevelError, "integer number too large", "type"},

	// 方法错误
	E0300: {E0300, LevelError, "cannot find method", "method"},
	E0301: {E0301, LevelError, "too few arguments", "method"},
	E0302: {E0302, LevelError, "too many arguments", "method"},
	E0303: {E0303, LevelError, "argument type mismatch", "method"},
	E0304: {E0304, LevelError, "break outside switch or loop", "method"},
	E0305: {E0305, LevelError, "continue outside of loop", "method"},
	E0307: {E0307, LevelError, "non-static method referenced from a static context", "method"},

	// 类错误
	E0400: {E0400, LevelError, "cannot find class", "class"},
	E0401: {E0401, LevelError, "duplicate declaration", "class"},
	E0402: {E0402, LevelError, "cannot find field", "class"},
	E0404: {E0404, LevelError, "unsupported field", "class"},

	// 数组/常量错误
	E0600: {E0600, LevelError, "array size must be int", "array"},
	E0601: {E0601, LevelError, "constant expression required", "array"},
}

// lowerErrors 降级错误码信息表
var lowerErrors = map[string]ErrorInfo{
	L0001: {L0001, LevelError, "unsupported construct", "lower"},
	L0002: {L0002, LevelError, "type mismatch", "lower"},
	L0003: {L0003, LevelError, "unresolved label", "lower"},
	L0004: {L0004, LevelError, "too many slots", "lower"},
	L0005: {L0005, LevelError, "invalid IR", "lower"},
}

// runtimeErrors 运行时错误码信息表
var runtimeErrors = map[string]ErrorInfo{
	R0002: {R0002, LevelError, "unknown opcode", "runtime"},
	R0003: {R0003, LevelError, "instruction pointer out of bounds", "runtime"},

	R0100: {R0100, LevelError, "array index out of bounds", "array"},
	R0101: {R0101, LevelError, "negative array size", "array"},

	R0200: {R0200, LevelError, "division by zero", "numeric"},

	R0300: {R0300, LevelError, "null reference", "reference"},
	R0305: {R0305, LevelError, "undefined method", "reference"},
	R0306: {R0306, LevelError, "unbound native method", "reference"},

	R0401: {R0401, LevelError, "execution limit exceeded", "resource"},
	R0402: {R0402, LevelError, "call stack overflow", "resource"},
}

// GetCompilerErrorInfo 获取前端错误信息
func GetCompilerErrorInfo(code string) (ErrorInfo, bool) {
	info, ok := compilerErrors[code]
	return info, ok
}

// GetLowerErrorInfo 获取降级错误信息
func GetLowerErrorInfo(code string) (ErrorInfo, bool) {
	info, ok := lowerErrors[code]
	return info, ok
}

// GetRuntimeErrorInfo 获取运行时错误信息
func GetRuntimeErrorInfo(code string) (ErrorInfo, bool) {
	info, ok := runtimeErrors[code]
	return info, ok
}

// Lookup 在所有错误码表中查找
func Lookup(code string) (ErrorInfo, bool) {
	if info, ok := compilerErrors[code]; ok {
		return info, true
	}
	if info, ok := lowerErrors[code]; ok {
		return info, true
	}
	info, ok := runtimeErrors[code]
	return info, ok
}

// IsCompilerError 检查是否为前端错误码
func IsCompilerError(code string) bool {
	_, ok := compilerErrors[code]
	return ok
}

// IsLowerError 检查是否为降级错误码
func IsLowerError(code string) bool {
	_, ok := lowerErrors[code]
	return ok
}

// IsRuntimeError 检查是否为运行时错误码
func IsRuntimeError(code string) bool {
	_, ok := runtimeErrors[code]
	return ok
}
