package ir

import (
	"fmt"
)

// VerifyError 描述 IR 不变式被破坏的位置
type VerifyError struct {
	Function string
	Block    int
	Index    int // 指令在块内的下标，-1 表示整个块
	Message  string
}

func (e *VerifyError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: b%d: %s", e.Function, e.Block, e.Message)
	}
	return fmt.Sprintf("%s: b%d[%d]: %s", e.Function, e.Block, e.Index, e.Message)
}

// Verify 检查函数的结构不变式
//
// 检查内容:
//   - 块编号连续，终止指令只出现在块尾
//   - 跳转目标在范围内，条件跳转紧跟在比较之后并读取 flags
//   - 寄存器编号小于 Slots
//   - 最后一个块不会落空到函数之外
func Verify(fn *Function) error {
	if len(fn.Blocks) == 0 {
		return &VerifyError{Function: fn.Name, Index: -1, Message: "function has no blocks"}
	}
	if len(fn.ParamSlots) != len(fn.Params) {
		return &VerifyError{Function: fn.Name, Index: -1,
			Message: fmt.Sprintf("%d params but %d param slots", len(fn.Params), len(fn.ParamSlots))}
	}

	v := &verifier{fn: fn}
	for i, b := range fn.Blocks {
		if b.ID != i {
			return v.errorf(b, -1, "block id %d out of order", b.ID)
		}
		if err := v.block(b); err != nil {
			return err
		}
	}

	last := fn.Blocks[len(fn.Blocks)-1]
	if last.FallsThrough() {
		return v.errorf(last, -1, "control falls off the end of the function")
	}
	return nil
}

type verifier struct {
	fn *Function
}

func (v *verifier) errorf(b *Block, index int, format string, args ...interface{}) error {
	return &VerifyError{
		Function: v.fn.Name,
		Block:    b.ID,
		Index:    index,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (v *verifier) block(b *Block) error {
	if len(b.Insts) == 0 {
		return v.errorf(b, -1, "empty block")
	}
	for i, inst := range b.Insts {
		if inst.Kind <= Invalid || inst.Kind >= numInstKinds {
			return v.errorf(b, i, "invalid opcode %d", int(inst.Kind))
		}
		if inst.Kind.IsTerminator() && i != len(b.Insts)-1 {
			return v.errorf(b, i, "%s in the middle of a block", inst.Kind)
		}
		if err := v.operands(b, i, inst); err != nil {
			return err
		}

		if inst.Kind.IsCompare() {
			if inst.Dst.Kind != ArgFlags {
				return v.errorf(b, i, "%s must write flags", inst.Kind)
			}
			if i+1 >= len(b.Insts) || !b.Insts[i+1].Kind.IsCondJump() {
				return v.errorf(b, i, "%s is not followed by a conditional jump", inst.Kind)
			}
		}
		if inst.Kind.IsCondJump() {
			if i == 0 || !b.Insts[i-1].Kind.IsCompare() {
				return v.errorf(b, i, "%s without a preceding compare", inst.Kind)
			}
			if len(inst.Args) != 2 || inst.Args[1].Kind != ArgFlags {
				return v.errorf(b, i, "%s must read flags", inst.Kind)
			}
		}
		if inst.Kind.IsJump() {
			if len(inst.Args) == 0 || inst.Args[0].Kind != ArgBranch {
				return v.errorf(b, i, "%s without a branch target", inst.Kind)
			}
			if target := int(inst.Args[0].Value); target < 0 || target >= len(v.fn.Blocks) {
				return v.errorf(b, i, "branch target b%d out of range", target)
			}
		}
	}
	return nil
}

func (v *verifier) operands(b *Block, i int, inst Inst) error {
	check := func(a Arg) error {
		switch a.Kind {
		case ArgReg:
			if a.Value < 0 || a.Value >= int64(v.fn.Slots) {
				return v.errorf(b, i, "register %s out of range (slots=%d)", a, v.fn.Slots)
			}
		case ArgFlags:
			if !inst.Kind.IsCompare() && !inst.Kind.IsCondJump() {
				return v.errorf(b, i, "%s cannot use flags", inst.Kind)
			}
		case ArgBranch:
			if !inst.Kind.IsJump() {
				return v.errorf(b, i, "%s cannot take a branch operand", inst.Kind)
			}
		case ArgSymbol:
			if !inst.Kind.IsCall() {
				return v.errorf(b, i, "%s cannot take a symbol operand", inst.Kind)
			}
		case ArgInvalid:
			return v.errorf(b, i, "missing operand")
		}
		return nil
	}

	if inst.HasDst() {
		if inst.Dst.Kind != ArgReg && inst.Dst.Kind != ArgFlags {
			return v.errorf(b, i, "destination must be a register")
		}
		if err := check(inst.Dst); err != nil {
			return err
		}
	}
	for _, a := range inst.Args {
		if err := check(a); err != nil {
			return err
		}
	}
	if inst.Kind.IsCall() && (len(inst.Args) == 0 || inst.Args[0].Kind != ArgSymbol) {
		return v.errorf(b, i, "%s without a call target", inst.Kind)
	}
	return nil
}
