package irexec

import (
	"math"
	"strconv"
	"strings"

	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// 值
// ============================================================================

// Value 寄存器中的值
//
// 标量统一放在 64 位的 bits 中：int 按符号扩展存放，double 存放 IEEE 位模式。
// 数组是引用，零值表示 null。
type Value struct {
	bits int64
	arr  *Array
}

// IntValue 创建 int 值
func IntValue(v int32) Value { return Value{bits: int64(v)} }

// LongValue 创建 long 值
func LongValue(v int64) Value { return Value{bits: v} }

// DoubleValue 创建 double 值
func DoubleValue(v float64) Value { return Value{bits: int64(math.Float64bits(v))} }

// BoolValue 创建 boolean 值 (0 或 1)
func BoolValue(v bool) Value {
	if v {
		return Value{bits: 1}
	}
	return Value{}
}

// ArrayValue 创建数组引用
func ArrayValue(a *Array) Value { return Value{arr: a} }

// Int 以 int 读取
func (v Value) Int() int32 { return int32(v.bits) }

// Long 以 long 读取
func (v Value) Long() int64 { return v.bits }

// Double 以 double 读取
func (v Value) Double() float64 { return math.Float64frombits(uint64(v.bits)) }

// Array 以数组引用读取
func (v Value) Array() *Array { return v.arr }

// ============================================================================
// 数组
// ============================================================================

// Array 定长类型化数组
type Array struct {
	Elem types.Kind
	data []int64
}

// NewArray 创建长度为 n 的数组，元素为零值
func NewArray(elem types.Kind, n int) *Array {
	return &Array{Elem: elem, data: make([]int64, n)}
}

// IntArrayOf 用给定元素创建 int 数组
func IntArrayOf(xs ...int32) *Array {
	a := NewArray(types.KindInt, len(xs))
	for i, x := range xs {
		a.data[i] = int64(x)
	}
	return a
}

// Len 返回数组长度
func (a *Array) Len() int { return len(a.data) }

// Get 返回第 i 个元素
func (a *Array) Get(i int) Value { return Value{bits: a.data[i]} }

// Set 设置第 i 个元素
func (a *Array) Set(i int, v Value) {
	if a.Elem == types.KindInt || a.Elem == types.KindBoolean {
		a.data[i] = int64(v.Int())
		return
	}
	a.data[i] = v.bits
}

// Ints 以 int 切片的形式返回元素副本
func (a *Array) Ints() []int32 {
	out := make([]int32, len(a.data))
	for i, x := range a.data {
		out[i] = int32(x)
	}
	return out
}

// String 按 java.util.Arrays.toString 的格式输出
func (a *Array) String() string {
	if a == nil {
		return "null"
	}
	parts := make([]string, len(a.data))
	for i, x := range a.data {
		switch a.Elem {
		case types.KindDouble:
			parts[i] = strconv.FormatFloat(math.Float64frombits(uint64(x)), 'g', -1, 64)
		case types.KindBoolean:
			parts[i] = strconv.FormatBool(x != 0)
		default:
			parts[i] = strconv.FormatInt(x, 10)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
