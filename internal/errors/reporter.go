package errors

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ============================================================================
// 错误报告器
// ============================================================================

// Reporter 收集诊断并输出到 out
type Reporter struct {
	formatter   *Formatter
	out         io.Writer
	sourceCache map[string][]string // 源代码缓存
	errors      []*CompileError
	warnings    []*CompileError
}

// NewReporter 创建错误报告器
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{
		formatter:   NewFormatter(),
		out:         out,
		sourceCache: make(map[string][]string),
	}
}

// SetFormatter 设置格式化器
func (r *Reporter) SetFormatter(f *Formatter) {
	r.formatter = f
}

// LoadSource 从磁盘加载源文件
func (r *Reporter) LoadSource(filename string) error {
	if _, ok := r.sourceCache[filename]; ok {
		return nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	r.SetSource(filename, string(data))
	return nil
}

// SetSource 设置源代码（用于测试或内存中的源代码）
func (r *Reporter) SetSource(filename, content string) {
	r.sourceCache[filename] = strings.Split(content, "\n")
}

// Report 报告一条诊断
func (r *Reporter) Report(err *CompileError) {
	if len(err.Hints) == 0 {
		err.Hints = GetSuggestions(err.Code, "")
	}
	if err.Level == LevelWarning {
		r.warnings = append(r.warnings, err)
	} else {
		r.errors = append(r.errors, err)
	}
	fmt.Fprint(r.out, r.formatter.FormatCompileError(err, r.sourceCache[err.File]))
}

// ReportRuntime 报告运行时错误
func (r *Reporter) ReportRuntime(err *RuntimeError) {
	fmt.Fprint(r.out, r.formatter.FormatRuntimeError(err))
}

// Summary 输出错误计数
func (r *Reporter) Summary() {
	switch n := len(r.errors); n {
	case 0:
	case 1:
		fmt.Fprintln(r.out, r.formatter.colorize("1 error", ColorRed))
	default:
		fmt.Fprintln(r.out, r.formatter.colorize(fmt.Sprintf("%d errors", n), ColorRed))
	}
}

// HasErrors 是否有错误
func (r *Reporter) HasErrors() bool {
	return len(r.errors) > 0
}

// ErrorCount 错误数量
func (r *Reporter) ErrorCount() int {
	return len(r.errors)
}

// WarningCount 警告数量
func (r *Reporter) WarningCount() int {
	return len(r.warnings)
}

// Errors 返回已报告的错误
func (r *Reporter) Errors() []*CompileError {
	return r.errors
}
