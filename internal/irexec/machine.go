// Package irexec 直接解释执行降级后的 IR。
//
// 解释器只依赖 ir.Function 本身：寄存器文件按 Function.Slots 分配，
// 参数按 ParamSlots 放入寄存器，比较结果保存在每个帧的 flags 中。
package irexec

import (
	"errors"
	"fmt"
	"io"
	"math"

	diag "github.com/tangzhangming/lowir/internal/errors"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/symbol"
	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// Machine 核心结构
// ============================================================================

// DefaultMaxDepth 默认调用栈深度
const DefaultMaxDepth = 1024

// Machine IR 解释器
type Machine struct {
	tab *symbol.Table
	out io.Writer

	// 已加载的函数和宿主函数
	funcs   map[symbol.ID]*ir.Function
	natives map[string]Native

	// 限制
	maxDepth int
	maxSteps uint64
	depth    int

	// 统计信息
	stats Stats
}

// Stats 解释器统计信息
type Stats struct {
	InstructionsExecuted uint64 // 执行的指令数
	FunctionCalls        uint64 // IR 函数调用次数
	NativeCalls          uint64 // 宿主函数调用次数
	Allocations          uint64 // 数组分配次数
	MaxDepth             int    // 调用栈峰值
}

// frame 调用帧
type frame struct {
	fn    *ir.Function
	regs  []Value
	flags int // 最近一次比较的结果：-1, 0, 1
	block int
}

// New 创建解释器，宿主函数的输出写入 out
func New(tab *symbol.Table, out io.Writer) *Machine {
	if out == nil {
		out = io.Discard
	}
	return &Machine{
		tab:      tab,
		out:      out,
		funcs:    make(map[symbol.ID]*ir.Function),
		natives:  make(map[string]Native),
		maxDepth: DefaultMaxDepth,
	}
}

// SetLimits 设置调用栈深度和指令步数上限，0 表示使用默认深度或不限步数
func (m *Machine) SetLimits(maxDepth int, maxSteps uint64) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	m.maxDepth = maxDepth
	m.maxSteps = maxSteps
}

// Load 加载函数，CallStatic 按符号查找它们
func (m *Machine) Load(fns ...*ir.Function) {
	for _, fn := range fns {
		m.funcs[fn.Symbol] = fn
	}
}

// Stats 获取统计信息
func (m *Machine) Stats() Stats {
	return m.stats
}

// Reset 清空统计信息 (用于复用)
func (m *Machine) Reset() {
	m.stats = Stats{}
	m.depth = 0
}

// ============================================================================
// 入口
// ============================================================================

// Call 按全名调用已加载的方法，如 "arith1/Test.run"
func (m *Machine) Call(name string, args ...Value) (Value, error) {
	if m.tab == nil {
		return Value{}, fmt.Errorf("call %s: no symbol table", name)
	}
	sym := m.tab.LookupQualified(name)
	if sym == nil {
		return Value{}, m.runtimeError(diag.R0305, "undefined method %s", name)
	}
	fn := m.funcs[sym.ID]
	if fn == nil {
		return Value{}, m.runtimeError(diag.R0305, "method %s is not loaded", name)
	}
	return m.Run(fn, args...)
}

// Run 执行函数
func (m *Machine) Run(fn *ir.Function, args ...Value) (Value, error) {
	if len(args) != len(fn.Params) {
		return Value{}, fmt.Errorf("run %s: want %d arguments, got %d", fn.Name, len(fn.Params), len(args))
	}
	return m.call(fn, args)
}

func (m *Machine) call(fn *ir.Function, args []Value) (Value, error) {
	if m.depth >= m.maxDepth {
		return Value{}, m.runtimeError(diag.R0402, "call stack overflow in %s (depth %d)", fn.Name, m.depth)
	}
	m.depth++
	defer func() { m.depth-- }()
	if m.depth > m.stats.MaxDepth {
		m.stats.MaxDepth = m.depth
	}
	m.stats.FunctionCalls++

	fr := &frame{fn: fn, regs: make([]Value, fn.Slots)}
	for i, slot := range fn.ParamSlots {
		fr.regs[slot] = args[i]
	}

	result, err := m.execute(fr)
	if err != nil {
		var rerr *diag.RuntimeError
		if errors.As(err, &rerr) {
			rerr.Frames = append(rerr.Frames, diag.StackFrame{
				FunctionName: fn.Name,
				ClassName:    fn.Class,
				Block:        fr.block,
			})
		}
		return Value{}, err
	}
	return result, nil
}

// ============================================================================
// 执行循环
// ============================================================================

func (m *Machine) execute(fr *frame) (Value, error) {
	blocks := fr.fn.Blocks
	fr.block = 0
next:
	for {
		if fr.block < 0 || fr.block >= len(blocks) {
			return Value{}, m.runtimeError(diag.R0003, "block b%d out of range", fr.block)
		}
		for _, inst := range blocks[fr.block].Insts {
			m.stats.InstructionsExecuted++
			if m.maxSteps > 0 && m.stats.InstructionsExecuted > m.maxSteps {
				return Value{}, m.runtimeError(diag.R0401, "more than %d instructions executed", m.maxSteps)
			}

			switch {
			case inst.Kind == ir.Ret:
				return Value{}, nil
			case inst.Kind.IsReturn():
				return fr.get(inst.Args[0]), nil
			case inst.Kind.IsJump():
				if taken(inst.Kind, fr.flags) {
					fr.block = int(inst.Args[0].Value)
					continue next
				}
				continue
			}

			if err := m.exec(fr, inst); err != nil {
				return Value{}, err
			}
		}
		fr.block++
	}
}

// taken 根据 flags 判断跳转是否发生
func taken(kind ir.InstKind, flags int) bool {
	switch kind {
	case ir.Jump:
		return true
	case ir.JumpEqual:
		return flags == 0
	case ir.JumpNotEqual:
		return flags != 0
	case ir.JumpLt:
		return flags < 0
	case ir.JumpLtEq:
		return flags <= 0
	case ir.JumpGt:
		return flags > 0
	case ir.JumpGtEq:
		return flags >= 0
	}
	return false
}

func (m *Machine) exec(fr *frame, inst ir.Inst) error {
	args := inst.Args
	switch inst.Kind {
	// 移动
	case ir.Iload:
		fr.setInt(inst.Dst, fr.get(args[0]).Int())
	case ir.Lload, ir.Dload, ir.Aload:
		fr.set(inst.Dst, fr.get(args[0]))

	// 比较
	case ir.Icmp:
		fr.flags = compare(int64(fr.get(args[0]).Int()), int64(fr.get(args[1]).Int()))
	case ir.Lcmp:
		fr.flags = compare(fr.get(args[0]).Long(), fr.get(args[1]).Long())

	// int 运算
	case ir.Iadd, ir.Isub, ir.Imul, ir.Idiv, ir.Irem,
		ir.Iand, ir.Ior, ir.Ixor, ir.Ishl, ir.Ishr, ir.Iushr:
		v, err := m.intOp(inst.Kind, fr.get(args[0]).Int(), fr.get(args[1]).Int())
		if err != nil {
			return err
		}
		fr.setInt(inst.Dst, v)
	case ir.Ineg:
		fr.setInt(inst.Dst, -fr.get(args[0]).Int())

	// long 运算
	case ir.Ladd, ir.Lsub, ir.Lmul, ir.Ldiv, ir.Lrem,
		ir.Land, ir.Lor, ir.Lxor, ir.Lshl, ir.Lshr, ir.Lushr:
		v, err := m.longOp(inst.Kind, fr.get(args[0]).Long(), fr.get(args[1]).Long())
		if err != nil {
			return err
		}
		fr.set(inst.Dst, LongValue(v))
	case ir.Lneg:
		fr.set(inst.Dst, LongValue(-fr.get(args[0]).Long()))

	// 转换
	case ir.ConvI2L:
		fr.set(inst.Dst, LongValue(int64(fr.get(args[0]).Int())))
	case ir.ConvL2I:
		fr.setInt(inst.Dst, int32(fr.get(args[0]).Long()))
	case ir.ConvI2D:
		fr.set(inst.Dst, DoubleValue(float64(fr.get(args[0]).Int())))
	case ir.ConvL2D:
		fr.set(inst.Dst, DoubleValue(float64(fr.get(args[0]).Long())))
	case ir.ConvD2I:
		fr.setInt(inst.Dst, d2i(fr.get(args[0]).Double()))
	case ir.ConvD2L:
		fr.set(inst.Dst, LongValue(d2l(fr.get(args[0]).Double())))

	// 数组
	case ir.NewIntArray, ir.NewLongArray, ir.NewDoubleArray:
		n := fr.get(args[0]).Int()
		if n < 0 {
			return m.runtimeErrorCtx(diag.R0101, map[string]interface{}{"size": n}, "negative array size %d", n)
		}
		m.stats.Allocations++
		fr.set(inst.Dst, ArrayValue(NewArray(newArrayElem(inst.Kind), int(n))))
	case ir.ArrayLen:
		arr, err := m.array(fr, args[0])
		if err != nil {
			return err
		}
		fr.setInt(inst.Dst, int32(arr.Len()))
	case ir.IntArrayGet, ir.LongArrayGet, ir.DoubleArrayGet:
		arr, i, err := m.element(fr, args[0], args[1])
		if err != nil {
			return err
		}
		fr.set(inst.Dst, Value{bits: arr.data[i]})
	case ir.IntArraySet:
		arr, i, err := m.element(fr, args[0], args[1])
		if err != nil {
			return err
		}
		arr.data[i] = int64(fr.get(args[2]).Int())
	case ir.LongArraySet, ir.DoubleArraySet:
		arr, i, err := m.element(fr, args[0], args[1])
		if err != nil {
			return err
		}
		arr.data[i] = fr.get(args[2]).bits

	// 调用
	case ir.CallStatic, ir.CallGo:
		return m.invoke(fr, inst)

	default:
		return m.runtimeError(diag.R0002, "unknown opcode %s", inst.Kind)
	}
	return nil
}

// ============================================================================
// 算术
// ============================================================================

func (m *Machine) intOp(kind ir.InstKind, a, b int32) (int32, error) {
	switch kind {
	case ir.Iadd:
		return a + b, nil
	case ir.Isub:
		return a - b, nil
	case ir.Imul:
		return a * b, nil
	case ir.Idiv, ir.Irem:
		if b == 0 {
			return 0, m.runtimeError(diag.R0200, "/ by zero")
		}
		if kind == ir.Idiv {
			return a / b, nil
		}
		return a % b, nil
	case ir.Iand:
		return a & b, nil
	case ir.Ior:
		return a | b, nil
	case ir.Ixor:
		return a ^ b, nil
	case ir.Ishl:
		return a << (uint32(b) & 31), nil
	case ir.Ishr:
		return a >> (uint32(b) & 31), nil
	default: // Iushr
		return int32(uint32(a) >> (uint32(b) & 31)), nil
	}
}

func (m *Machine) longOp(kind ir.InstKind, a, b int64) (int64, error) {
	switch kind {
	case ir.Ladd:
		return a + b, nil
	case ir.Lsub:
		return a - b, nil
	case ir.Lmul:
		return a * b, nil
	case ir.Ldiv, ir.Lrem:
		if b == 0 {
			return 0, m.runtimeError(diag.R0200, "/ by zero")
		}
		if kind == ir.Ldiv {
			return a / b, nil
		}
		return a % b, nil
	case ir.Land:
		return a & b, nil
	case ir.Lor:
		return a | b, nil
	case ir.Lxor:
		return a ^ b, nil
	case ir.Lshl:
		return a << (uint64(b) & 63), nil
	case ir.Lshr:
		return a >> (uint64(b) & 63), nil
	default: // Lushr
		return int64(uint64(a) >> (uint64(b) & 63)), nil
	}
}

func compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// d2i 按 Java 规则把 double 转为 int：NaN 为 0，越界时饱和
func d2i(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func d2l(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

func newArrayElem(kind ir.InstKind) types.Kind {
	switch kind {
	case ir.NewLongArray:
		return types.KindLong
	case ir.NewDoubleArray:
		return types.KindDouble
	}
	return types.KindInt
}

// ============================================================================
// 数组访问
// ============================================================================

func (m *Machine) array(fr *frame, a ir.Arg) (*Array, error) {
	arr := fr.get(a).Array()
	if arr == nil {
		return nil, m.runtimeError(diag.R0300, "array is null")
	}
	return arr, nil
}

func (m *Machine) element(fr *frame, a, index ir.Arg) (*Array, int, error) {
	arr, err := m.array(fr, a)
	if err != nil {
		return nil, 0, err
	}
	i := fr.get(index).Int()
	if i < 0 || int(i) >= arr.Len() {
		return nil, 0, m.runtimeErrorCtx(diag.R0100,
			map[string]interface{}{"index": i, "length": arr.Len()},
			"index %d out of bounds for length %d", i, arr.Len())
	}
	return arr, int(i), nil
}

// ============================================================================
// 调用
// ============================================================================

func (m *Machine) invoke(fr *frame, inst ir.Inst) error {
	id := inst.Args[0].SymbolID()
	args := make([]Value, len(inst.Args)-1)
	for i, a := range inst.Args[1:] {
		args[i] = fr.get(a)
	}

	var (
		result Value
		err    error
	)
	if inst.Kind == ir.CallGo {
		result, err = m.callNative(id, args)
	} else {
		callee := m.funcs[id]
		if callee == nil {
			return m.runtimeError(diag.R0305, "undefined method %s", m.symbolName(id))
		}
		result, err = m.call(callee, args)
	}
	if err != nil {
		return err
	}
	if inst.HasDst() {
		fr.set(inst.Dst, result)
	}
	return nil
}

func (m *Machine) callNative(id symbol.ID, args []Value) (Value, error) {
	name := m.symbolName(id)
	native := m.natives[name]
	if native == nil {
		return Value{}, m.runtimeError(diag.R0306, "native method %s is not bound", name)
	}
	m.stats.NativeCalls++
	return native(m, args)
}

func (m *Machine) symbolName(id symbol.ID) string {
	if m.tab != nil {
		if meth := m.tab.Method(id); meth != nil {
			return meth.QualifiedName()
		}
	}
	return id.String()
}

// ============================================================================
// 寄存器访问
// ============================================================================

func (fr *frame) get(a ir.Arg) Value {
	switch a.Kind {
	case ir.ArgReg:
		return fr.regs[a.Slot()]
	case ir.ArgIntConst, ir.ArgDoubleConst:
		return Value{bits: a.Value}
	}
	return Value{}
}

func (fr *frame) set(dst ir.Arg, v Value) {
	fr.regs[dst.Slot()] = v
}

func (fr *frame) setInt(dst ir.Arg, v int32) {
	fr.regs[dst.Slot()] = IntValue(v)
}

// ============================================================================
// 错误处理
// ============================================================================

// runtimeError 创建运行时错误
func (m *Machine) runtimeError(code, format string, args ...interface{}) *diag.RuntimeError {
	return &diag.RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (m *Machine) runtimeErrorCtx(code string, ctx map[string]interface{}, format string, args ...interface{}) *diag.RuntimeError {
	err := m.runtimeError(code, format, args...)
	err.Context = ctx
	return err
}
