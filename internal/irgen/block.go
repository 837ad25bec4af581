package irgen

import (
	"fmt"

	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/token"
	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// 基本块与标签
// ============================================================================
//
// 生成器维护一个当前块游标：
//   - 打开：cur 非空，指令追加到 cur
//   - 关闭：发射终止指令或放置标签之后，下一条指令会打开新块
//
// 标签在放置后绑定到下一个打开的块，多个标签可以绑定到同一个块。
// 只有跳转目标才切分基本块。
// 跳转指令先记录标签编号，finish 时统一改写为块编号。
//
// ============================================================================

// label 符号化的块边界
type label struct {
	id    int
	block int // 绑定的块编号，-1 表示尚未绑定
	refs  int // 引用它的跳转指令数
}

func (l *label) String() string { return fmt.Sprintf("L%d", l.id) }

// jumpSite 需要在 finish 时改写目标的跳转指令
type jumpSite struct {
	block int
	index int
}

func (g *generator) newLabel() *label {
	l := &label{id: len(g.labels), block: -1}
	g.labels = append(g.labels, l)
	return l
}

// place 把前向标签绑定到下一个打开的块
//
// 前向标签的所有引用都已发射，没有引用的标签不切分基本块。
func (g *generator) place(l *label) {
	if l.refs == 0 {
		return
	}
	g.placeHead(l)
}

// placeHead 把回边目标绑定到下一个打开的块
//
// 当前块非空时先关闭它，之后的指令从新块开始。
func (g *generator) placeHead(l *label) {
	if g.cur != nil {
		g.cur = nil
		g.falls = true
	}
	g.pending = append(g.pending, l)
}

// reachable 当前位置是否可能被执行到
func (g *generator) reachable() bool {
	if g.cur != nil || g.falls {
		return true
	}
	for _, l := range g.pending {
		if l.refs > 0 {
			return true
		}
	}
	return false
}

func (g *generator) openBlock() {
	b := &ir.Block{ID: len(g.blocks)}
	g.mergeCopy, g.loopExit = g.loopExit, false
	for _, l := range g.pending {
		l.block = b.ID
	}
	g.pending = g.pending[:0]
	g.falls = false
	g.blocks = append(g.blocks, b)
	g.cur = b
}

// atMergeEntry 当前位置是否位于循环出口块的开头，且尚未发射指令
//
// 只有紧跟循环回边的出口块算作汇合点；break、continue 之后的块不算。
func (g *generator) atMergeEntry() bool {
	if g.cur != nil {
		return g.mergeCopy
	}
	return g.loopExit && g.reachable()
}

// emit 向当前块追加一条指令
//
// 不可达位置的指令被丢弃。终止指令会关闭当前块。
func (g *generator) emit(inst ir.Inst) {
	if g.cur == nil {
		if !g.reachable() {
			return
		}
		g.openBlock()
	}
	g.cur.Insts = append(g.cur.Insts, inst)
	g.mergeCopy = false
	if inst.Kind.IsTerminator() {
		g.cur = nil
	}
}

func (g *generator) emitOp(kind ir.InstKind, dst ir.Arg, args ...ir.Arg) {
	g.emit(ir.Inst{Kind: kind, Dst: dst, Args: args})
}

// emitJump 发射跳转，条件跳转额外读取 flags
func (g *generator) emitJump(kind ir.InstKind, l *label) {
	if g.cur == nil && !g.reachable() {
		return
	}
	args := []ir.Arg{{Kind: ir.ArgBranch, Value: int64(l.id)}}
	if kind.IsCondJump() {
		args = append(args, ir.Flags())
	}
	g.emit(ir.Inst{Kind: kind, Args: args})
	l.refs++
	b := g.blocks[len(g.blocks)-1]
	g.jumps = append(g.jumps, jumpSite{block: b.ID, index: len(b.Insts) - 1})
}

// emitBackEdge 发射跳回循环头的无条件跳转
func (g *generator) emitBackEdge(head *label) {
	if g.cur == nil && !g.reachable() {
		return
	}
	g.emitJump(ir.Jump, head)
	g.loopExit = true
}

// finish 结束函数体并解析所有跳转目标
func (g *generator) finish(end token.Position) {
	if g.reachable() {
		if g.result.Kind != types.KindVoid {
			g.fail(ErrTypeMismatch, end, "missing return statement")
		}
		g.emitOp(ir.Ret, ir.Arg{})
	}

	for _, site := range g.jumps {
		inst := &g.blocks[site.block].Insts[site.index]
		l := g.labels[inst.Args[0].Value]
		if l.block < 0 {
			g.fail(ErrUnresolvedLabel, end, "label %s is never bound to a block", l)
		}
		inst.Args[0] = ir.Branch(l.block)
	}
}
