package irgen

import (
	"errors"
	"fmt"

	diag "github.com/tangzhangming/lowir/internal/errors"
	"github.com/tangzhangming/lowir/internal/token"
)

var (
	// ErrUnsupportedConstruct 方法体使用了降级不支持的语法结构
	ErrUnsupportedConstruct = errors.New("unsupported construct")

	// ErrTypeMismatch 表达式的静态类型与使用处不一致
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnresolvedLabel 跳转引用了从未绑定到基本块的标签
	ErrUnresolvedLabel = errors.New("unresolved label")

	// ErrInvalidIR 生成的函数未通过 ir.Verify
	ErrInvalidIR = errors.New("invalid IR")
)

// Error 降级单个方法时产生的错误
type Error struct {
	Kind   error // 上面的哨兵错误之一
	Pos    token.Position
	Method string
	Msg    string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Method, msg)
	}
	return fmt.Sprintf("%s: %s", e.Method, msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Code 返回对应的诊断码
func (e *Error) Code() string {
	switch e.Kind {
	case ErrUnsupportedConstruct:
		return diag.L0001
	case ErrTypeMismatch:
		return diag.L0002
	case ErrUnresolvedLabel:
		return diag.L0003
	default:
		return diag.L0005
	}
}

// bailout 用于从深层递归中终止降级，由 Lower 恢复
type bailout struct {
	err *Error
}

func (g *generator) fail(kind error, pos token.Position, format string, args ...interface{}) {
	panic(bailout{&Error{
		Kind:   kind,
		Pos:    pos,
		Method: g.name,
		Msg:    fmt.Sprintf(format, args...),
	}})
}
