package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================================
// 编译错误
// ============================================================================

// CompileError 前端或降级阶段的诊断
type CompileError struct {
	Code      string   // 错误码 (E0200, L0001)
	Level     Level    // 错误级别
	Message   string   // 主消息
	File      string   // 文件路径
	Line      int      // 行号
	Column    int      // 列号
	EndColumn int      // 结束列，0 表示只标注一个字符
	Method    string   // 所在方法（降级错误）
	Hints     []string // 修复建议
}

// New 创建诊断，级别取自错误码表
func New(code, file string, line, column int, message string) *CompileError {
	level := LevelError
	if info, ok := Lookup(code); ok {
		level = info.Level
	}
	return &CompileError{
		Code:    code,
		Level:   level,
		Message: message,
		File:    file,
		Line:    line,
		Column:  column,
	}
}

// Error 实现 error 接口
func (e *CompileError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// ============================================================================
// 运行时错误
// ============================================================================

// StackFrame 堆栈帧
type StackFrame struct {
	FunctionName string // 方法名
	ClassName    string // 类名（可选）
	Block        int    // 出错时所在的基本块
}

// RuntimeError 解释执行 IR 时的错误
type RuntimeError struct {
	Code    string                 // 错误码 (R0100)
	Message string                 // 主消息
	Context map[string]interface{} // 上下文变量
	Frames  []StackFrame           // 堆栈帧，栈顶在前
}

// Error 实现 error 接口
func (e *RuntimeError) Error() string {
	if len(e.Frames) > 0 {
		return fmt.Sprintf("%s: %s [%s]", e.Frames[0].name(), e.Message, e.Code)
	}
	return fmt.Sprintf("%s [%s]", e.Message, e.Code)
}

func (f StackFrame) name() string {
	if f.ClassName != "" {
		return f.ClassName + "." + f.FunctionName
	}
	return f.FunctionName
}

// ============================================================================
// 格式化器
// ============================================================================

// Formatter 错误格式化器
type Formatter struct {
	Colors     bool // 是否使用颜色
	ShowSource bool // 是否显示源代码
	ShowHints  bool // 是否显示修复建议
	TabWidth   int  // Tab 宽度
}

// NewFormatter 创建默认格式化器
func NewFormatter() *Formatter {
	return &Formatter{
		Colors:     ColorsEnabled(),
		ShowSource: true,
		ShowHints:  true,
		TabWidth:   4,
	}
}

// FormatCompileError 格式化一条诊断
//
// 输出形如：
//
//	error[E0100]: cannot find symbol: y
//	 --> Test.java:5:16
//	  |
//	5 |         return y;
//	  |                ^
func (f *Formatter) FormatCompileError(err *CompileError, sourceLines []string) string {
	var sb strings.Builder

	head := fmt.Sprintf("%s[%s]", err.Level, err.Code)
	sb.WriteString(f.colorize(head, f.levelColor(err.Level)))
	sb.WriteString(": ")
	sb.WriteString(err.Message)
	sb.WriteByte('\n')

	loc := err.File
	if err.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", err.File, err.Line, err.Column)
	}
	if err.Method != "" {
		loc += " (" + err.Method + ")"
	}
	sb.WriteString(" " + f.colorize("-->", ColorCyan) + " " + f.colorize(loc, ColorCyan) + "\n")

	if f.ShowSource && err.Line > 0 && err.Line <= len(sourceLines) {
		sb.WriteString(f.formatSourceLine(sourceLines[err.Line-1], err.Line, err.Column, err.EndColumn))
	}

	if f.ShowHints {
		for _, hint := range err.Hints {
			sb.WriteString(f.colorize(" = help:", ColorCyan) + " " + hint + "\n")
		}
	}
	return sb.String()
}

// FormatRuntimeError 格式化运行时错误
func (f *Formatter) FormatRuntimeError(err *RuntimeError) string {
	var sb strings.Builder

	sb.WriteString(f.colorize(fmt.Sprintf("RuntimeError[%s]", err.Code), ColorRed))
	sb.WriteString(": " + err.Message + "\n")

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			sb.WriteString(f.colorize("  "+key+":", ColorYellow))
			sb.WriteString(fmt.Sprintf(" %v\n", err.Context[key]))
		}
	}

	if len(err.Frames) > 0 {
		sb.WriteString(f.colorize("Stack trace:", ColorWhite) + "\n")
		for _, frame := range err.Frames {
			sb.WriteString(fmt.Sprintf("    at %s %s\n",
				f.colorize(frame.name(), ColorYellow),
				f.colorize(fmt.Sprintf("(b%d)", frame.Block), ColorCyan)))
		}
	}
	return sb.String()
}

// FormatCompileErrors 格式化多条诊断，sourceCache 以文件名为键
func (f *Formatter) FormatCompileErrors(errs []*CompileError, sourceCache map[string][]string) string {
	var sb strings.Builder
	for i, err := range errs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.FormatCompileError(err, sourceCache[err.File]))
	}
	switch len(errs) {
	case 0:
	case 1:
		sb.WriteString("\n" + f.colorize("1 error", ColorRed) + "\n")
	default:
		sb.WriteString("\n" + f.colorize(fmt.Sprintf("%d errors", len(errs)), ColorRed) + "\n")
	}
	return sb.String()
}

// formatSourceLine 显示出错行并在列下方画出 ^ 标注
func (f *Formatter) formatSourceLine(line string, lineNum, startCol, endCol int) string {
	var sb strings.Builder

	width := len(fmt.Sprint(lineNum))
	pipe := f.colorize(strings.Repeat(" ", width)+" |", ColorBlue)
	sb.WriteString(pipe + "\n")
	sb.WriteString(f.colorize(fmt.Sprintf("%*d |", width, lineNum), ColorBlue))
	sb.WriteString(" " + f.expandTabs(line) + "\n")

	if startCol > 0 {
		length := endCol - startCol
		if length < 1 {
			length = 1
		}
		pad := strings.Repeat(" ", f.calculateActualColumn(line, startCol))
		sb.WriteString(pipe + " " + pad + f.colorize(strings.Repeat("^", length), ColorRed) + "\n")
	}
	return sb.String()
}

// expandTabs 展开 Tab 为空格
func (f *Formatter) expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", f.TabWidth))
}

// calculateActualColumn 计算实际列位置（考虑 Tab）
func (f *Formatter) calculateActualColumn(line string, col int) int {
	actual := 0
	for i := 0; i < col-1 && i < len(line); i++ {
		if line[i] == '\t' {
			actual += f.TabWidth
		} else {
			actual++
		}
	}
	return actual
}

// levelColor 获取错误级别对应的颜色
func (f *Formatter) levelColor(level Level) Color {
	switch level {
	case LevelError:
		return ColorBoldRed
	case LevelWarning:
		return ColorBoldYellow
	case LevelNote:
		return ColorCyan
	default:
		return ColorGreen
	}
}

func (f *Formatter) colorize(s string, color Color) string {
	if !f.Colors {
		return s
	}
	return Colorize(s, color)
}
