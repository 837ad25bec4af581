package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tangzhangming/lowir/internal/symbol"
	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// 指令类型定义
// ============================================================================
//
// 基本块形式的类型化 IR：
//   - 每个函数拥有一个虚拟寄存器文件（slot），参数占据最低编号
//   - 比较指令写入 flags 伪寄存器，紧随其后的条件跳转读取它
//   - 指令族按操作数类型区分：I (int/boolean)、L (long)、D (double)、A (数组引用)
//
// ============================================================================

// InstKind 指令操作码
type InstKind int

const (
	Invalid InstKind = iota

	// 数据移动
	Iload // dst = Iload src
	Lload
	Dload
	Aload

	// 返回
	Ret  // 无返回值
	Iret // 返回 int/boolean
	Lret
	Dret
	Aret

	// 调用
	CallStatic // dst = CallStatic sym args...
	CallGo     // 调用由宿主实现的 native 方法

	// 比较（写入 flags）
	Icmp
	Lcmp

	// 跳转
	Jump         // Jump target
	JumpEqual    // JumpEqual target flags
	JumpNotEqual
	JumpGtEq
	JumpGt
	JumpLt
	JumpLtEq

	// int 运算
	Iadd
	Isub
	Imul
	Idiv
	Irem
	Ineg
	Iand
	Ior
	Ixor
	Ishl
	Ishr
	Iushr

	// long 运算
	Ladd
	Lsub
	Lmul
	Ldiv
	Lrem
	Lneg
	Land
	Lor
	Lxor
	Lshl
	Lshr
	Lushr

	// 类型转换
	ConvI2L
	ConvL2I
	ConvI2D
	ConvL2D
	ConvD2I
	ConvD2L

	// 数组
	NewIntArray // dst = NewIntArray length
	NewLongArray
	NewDoubleArray
	IntArrayGet // dst = IntArrayGet array index
	IntArraySet // IntArraySet array index value
	LongArrayGet
	LongArraySet
	DoubleArrayGet
	DoubleArraySet
	ArrayLen // dst = ArrayLen array

	numInstKinds
)

// String 返回操作码的名称
func (k InstKind) String() string {
	switch k {
	case Iload:
		return "Iload"
	case Lload:
		return "Lload"
	case Dload:
		return "Dload"
	case Aload:
		return "Aload"
	case Ret:
		return "Ret"
	case Iret:
		return "Iret"
	case Lret:
		return "Lret"
	case Dret:
		return "Dret"
	case Aret:
		return "Aret"
	case CallStatic:
		return "CallStatic"
	case CallGo:
		return "CallGo"
	case Icmp:
		return "Icmp"
	case Lcmp:
		return "Lcmp"
	case Jump:
		return "Jump"
	case JumpEqual:
		return "JumpEqual"
	case JumpNotEqual:
		return "JumpNotEqual"
	case JumpGtEq:
		return "JumpGtEq"
	case JumpGt:
		return "JumpGt"
	case JumpLt:
		return "JumpLt"
	case JumpLtEq:
		return "JumpLtEq"
	case Iadd:
		return "Iadd"
	case Isub:
		return "Isub"
	case Imul:
		return "Imul"
	case Idiv:
		return "Idiv"
	case Irem:
		return "Irem"
	case Ineg:
		return "Ineg"
	case Iand:
		return "Iand"
	case Ior:
		return "Ior"
	case Ixor:
		return "Ixor"
	case Ishl:
		return "Ishl"
	case Ishr:
		return "Ishr"
	case Iushr:
		return "Iushr"
	case Ladd:
		return "Ladd"
	case Lsub:
		return "Lsub"
	case Lmul:
		return "Lmul"
	case Ldiv:
		return "Ldiv"
	case Lrem:
		return "Lrem"
	case Lneg:
		return "Lneg"
	case Land:
		return "Land"
	case Lor:
		return "Lor"
	case Lxor:
		return "Lxor"
	case Lshl:
		return "Lshl"
	case Lshr:
		return "Lshr"
	case Lushr:
		return "Lushr"
	case ConvI2L:
		return "ConvI2L"
	case ConvL2I:
		return "ConvL2I"
	case ConvI2D:
		return "ConvI2D"
	case ConvL2D:
		return "ConvL2D"
	case ConvD2I:
		return "ConvD2I"
	case ConvD2L:
		return "ConvD2L"
	case NewIntArray:
		return "NewIntArray"
	case NewLongArray:
		return "NewLongArray"
	case NewDoubleArray:
		return "NewDoubleArray"
	case IntArrayGet:
		return "IntArrayGet"
	case IntArraySet:
		return "IntArraySet"
	case LongArrayGet:
		return "LongArrayGet"
	case LongArraySet:
		return "LongArraySet"
	case DoubleArrayGet:
		return "DoubleArrayGet"
	case DoubleArraySet:
		return "DoubleArraySet"
	case ArrayLen:
		return "ArrayLen"
	default:
		return fmt.Sprintf("Invalid(%d)", int(k))
	}
}

// ParseInstKind 按名称查找操作码
func ParseInstKind(name string) (InstKind, bool) {
	for k := Iload; k < numInstKinds; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return Invalid, false
}

// IsReturn 是否是返回指令
func (k InstKind) IsReturn() bool {
	switch k {
	case Ret, Iret, Lret, Dret, Aret:
		return true
	default:
		return false
	}
}

// IsJump 是否是跳转指令（包括无条件跳转）
func (k InstKind) IsJump() bool {
	return k == Jump || k.IsCondJump()
}

// IsCondJump 是否是读取 flags 的条件跳转
func (k InstKind) IsCondJump() bool {
	switch k {
	case JumpEqual, JumpNotEqual, JumpGtEq, JumpGt, JumpLt, JumpLtEq:
		return true
	default:
		return false
	}
}

// IsTerminator 是否结束一个基本块
func (k InstKind) IsTerminator() bool {
	return k.IsReturn() || k.IsJump()
}

// IsCompare 是否写入 flags
func (k InstKind) IsCompare() bool {
	return k == Icmp || k == Lcmp
}

// IsCall 是否是调用指令
func (k InstKind) IsCall() bool {
	return k == CallStatic || k == CallGo
}

// Negate 返回条件相反的条件跳转
func (k InstKind) Negate() InstKind {
	switch k {
	case JumpEqual:
		return JumpNotEqual
	case JumpNotEqual:
		return JumpEqual
	case JumpGtEq:
		return JumpLt
	case JumpGt:
		return JumpLtEq
	case JumpLt:
		return JumpGtEq
	case JumpLtEq:
		return JumpGt
	default:
		return k
	}
}

// ============================================================================
// 操作数
// ============================================================================

// ArgKind 操作数类别
type ArgKind int

const (
	ArgInvalid     ArgKind = iota // 零值，表示不存在
	ArgReg                        // 虚拟寄存器，Value 为 slot 编号
	ArgFlags                      // 比较结果伪寄存器
	ArgIntConst                   // 整数立即数（int 与 long 共用）
	ArgDoubleConst                // 浮点立即数，Value 为 IEEE 754 位模式
	ArgBranch                     // 跳转目标，Value 为块编号
	ArgSymbol                     // 调用目标，Value 为 symbol.ID
)

func (k ArgKind) String() string {
	switch k {
	case ArgReg:
		return "reg"
	case ArgFlags:
		return "flags"
	case ArgIntConst:
		return "intconst"
	case ArgDoubleConst:
		return "doubleconst"
	case ArgBranch:
		return "branch"
	case ArgSymbol:
		return "symbol"
	default:
		return "invalid"
	}
}

// Arg 指令操作数
type Arg struct {
	Kind  ArgKind
	Value int64
}

// Reg 构造寄存器操作数
func Reg(slot int) Arg { return Arg{Kind: ArgReg, Value: int64(slot)} }

// Flags 构造 flags 操作数
func Flags() Arg { return Arg{Kind: ArgFlags} }

// IntConst 构造整数立即数
func IntConst(v int64) Arg { return Arg{Kind: ArgIntConst, Value: v} }

// DoubleConst 构造浮点立即数
func DoubleConst(v float64) Arg {
	return Arg{Kind: ArgDoubleConst, Value: int64(math.Float64bits(v))}
}

// Branch 构造跳转目标
func Branch(block int) Arg { return Arg{Kind: ArgBranch, Value: int64(block)} }

// Symbol 构造调用目标
func Symbol(id symbol.ID) Arg { return Arg{Kind: ArgSymbol, Value: int64(id)} }

// IsReg 是否是寄存器
func (a Arg) IsReg() bool { return a.Kind == ArgReg }

// IsConst 是否是立即数
func (a Arg) IsConst() bool { return a.Kind == ArgIntConst || a.Kind == ArgDoubleConst }

// Slot 返回寄存器编号
func (a Arg) Slot() int { return int(a.Value) }

// Float 返回浮点立即数的值
func (a Arg) Float() float64 { return math.Float64frombits(uint64(a.Value)) }

// SymbolID 返回调用目标的符号 ID
func (a Arg) SymbolID() symbol.ID { return symbol.ID(a.Value) }

func (a Arg) String() string {
	switch a.Kind {
	case ArgReg:
		return "r" + strconv.FormatInt(a.Value, 10)
	case ArgFlags:
		return "flags"
	case ArgIntConst:
		return strconv.FormatInt(a.Value, 10)
	case ArgDoubleConst:
		return FormatFloat(a.Float())
	case ArgBranch:
		return "b" + strconv.FormatInt(a.Value, 10)
	case ArgSymbol:
		return a.SymbolID().String()
	default:
		return "?"
	}
}

// FormatFloat 格式化浮点数，整数值保留一位小数（1.0）
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return s
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// ============================================================================
// 指令、基本块与函数
// ============================================================================

// Inst 一条 IR 指令
//
// Dst.Kind 为 ArgInvalid 表示指令没有显式输出。
type Inst struct {
	Kind InstKind
	Dst  Arg
	Args []Arg
}

// HasDst 指令是否有输出
func (inst Inst) HasDst() bool { return inst.Dst.Kind != ArgInvalid }

// String 返回指令的字符串表示
func (inst Inst) String() string {
	var sb strings.Builder
	if inst.HasDst() {
		sb.WriteString(inst.Dst.String())
		sb.WriteString(" = ")
	}
	sb.WriteString(inst.Kind.String())
	for _, arg := range inst.Args {
		sb.WriteByte(' ')
		sb.WriteString(arg.String())
	}
	return sb.String()
}

// Block 基本块
type Block struct {
	ID    int
	Insts []Inst
}

// Last 返回块的最后一条指令，空块返回 nil
func (b *Block) Last() *Inst {
	if len(b.Insts) == 0 {
		return nil
	}
	return &b.Insts[len(b.Insts)-1]
}

// FallsThrough 块执行完后是否继续执行下一个块
func (b *Block) FallsThrough() bool {
	last := b.Last()
	return last == nil || !last.Kind.IsTerminator() || last.Kind.IsCondJump()
}

// Function 降级后的方法
type Function struct {
	Name       string
	Class      string    // 类的全名，如 "testutil/T"
	Symbol     symbol.ID // 方法自身的符号
	Params     []types.Type
	Result     types.Type
	Slots      int // 局部帧大小 + 临时寄存器峰值
	ParamSlots []int
	Blocks     []*Block
}

// NumInsts 返回指令总数
func (fn *Function) NumInsts() int {
	n := 0
	for _, b := range fn.Blocks {
		n += len(b.Insts)
	}
	return n
}

// Targets 返回被跳转指令引用的块集合
func (fn *Function) Targets() map[int]bool {
	targets := make(map[int]bool)
	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			if inst.Kind.IsJump() && len(inst.Args) > 0 && inst.Args[0].Kind == ArgBranch {
				targets[int(inst.Args[0].Value)] = true
			}
		}
	}
	return targets
}

// ReturnKind 返回与类型对应的返回指令
func ReturnKind(t types.Type) InstKind {
	switch t.Kind {
	case types.KindVoid:
		return Ret
	case types.KindLong:
		return Lret
	case types.KindDouble:
		return Dret
	case types.KindArray:
		return Aret
	default:
		return Iret
	}
}

// LoadKind 返回与类型对应的移动指令
func LoadKind(t types.Type) InstKind {
	switch t.Kind {
	case types.KindLong:
		return Lload
	case types.KindDouble:
		return Dload
	case types.KindArray:
		return Aload
	default:
		return Iload
	}
}
