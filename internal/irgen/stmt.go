package irgen

import (
	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// 语句降级
// ============================================================================

func (g *generator) lowerBlock(b *ast.BlockStmt) {
	for _, stmt := range b.Statements {
		g.lowerStmt(stmt)
	}
}

func (g *generator) lowerStmt(stmt ast.Statement) {
	// 不可达的语句直接跳过，保证每个块都有入口
	if !g.reachable() {
		return
	}

	switch s := stmt.(type) {
	case *ast.BlockStmt:
		g.lowerBlock(s)

	case *ast.EmptyStmt:

	case *ast.VarDeclStmt:
		if s.Value != nil {
			g.assignLocal(s.Local, s.Value, s.Name.Pos)
		}

	case *ast.ExprStmt:
		g.lowerEffect(s.Expr)

	case *ast.IfStmt:
		g.lowerIf(s)

	case *ast.WhileStmt:
		g.lowerWhile(s)

	case *ast.DoWhileStmt:
		g.lowerDoWhile(s)

	case *ast.ForStmt:
		g.lowerFor(s)

	case *ast.ForEachStmt:
		g.lowerForEach(s)

	case *ast.ReturnStmt:
		g.lowerReturn(s)

	case *ast.BreakStmt:
		if len(g.loops) == 0 {
			g.fail(ErrUnsupportedConstruct, s.Pos(), "break outside of loop")
		}
		g.emitJump(ir.Jump, g.loops[len(g.loops)-1].brk)

	case *ast.ContinueStmt:
		if len(g.loops) == 0 {
			g.fail(ErrUnsupportedConstruct, s.Pos(), "continue outside of loop")
		}
		g.emitJump(ir.Jump, g.loops[len(g.loops)-1].cont)

	default:
		g.fail(ErrUnsupportedConstruct, stmt.Pos(), "statement %s", stmt)
	}
}

// lowerIf
//
//	jumpIfFalse cond, Lelse
//	then
//	Jump Lend        ; 仅当存在 else 且 then 可以正常结束
//	Lelse:
//	else
//	Lend:
func (g *generator) lowerIf(s *ast.IfStmt) {
	elseLabel := g.newLabel()
	g.jumpIfFalse(s.Condition, elseLabel)
	g.lowerStmt(s.Then)
	if s.Else == nil {
		g.place(elseLabel)
		return
	}

	endLabel := g.newLabel()
	g.emitJump(ir.Jump, endLabel)
	g.place(elseLabel)
	g.lowerStmt(s.Else)
	g.place(endLabel)
}

func (g *generator) lowerWhile(s *ast.WhileStmt) {
	head, exit := g.newLabel(), g.newLabel()
	g.placeHead(head)
	g.jumpIfFalse(s.Condition, exit)
	g.lowerLoopBody(s.Body, exit, head)
	g.emitBackEdge(head)
	g.place(exit)
}

func (g *generator) lowerDoWhile(s *ast.DoWhileStmt) {
	body, cont, exit := g.newLabel(), g.newLabel(), g.newLabel()
	g.placeHead(body)
	g.lowerLoopBody(s.Body, exit, cont)
	g.place(cont)
	g.jumpIfTrue(s.Condition, body)
	g.place(exit)
}

// lowerFor 按 init; while (cond) { body; step; } 降级，continue 跳到 step
func (g *generator) lowerFor(s *ast.ForStmt) {
	if s.Init != nil {
		g.lowerStmt(s.Init)
	}
	head, step, exit := g.newLabel(), g.newLabel(), g.newLabel()
	g.placeHead(head)
	if s.Condition != nil {
		g.jumpIfFalse(s.Condition, exit)
	}
	g.lowerLoopBody(s.Body, exit, step)
	g.place(step)
	for _, post := range s.Post {
		g.lowerEffect(post)
	}
	g.emitBackEdge(head)
	g.place(exit)
}

// lowerForEach 把增强 for 循环改写为对隐藏数组副本的下标循环
//
//	arr$ = iterable
//	i$ = 0
//	head: if i$ >= arr$.length goto exit
//	x = arr$[i$]
//	body
//	step: i$ = i$ + 1
//	goto head
//	exit:
func (g *generator) lowerForEach(s *ast.ForEachStmt) {
	arr := g.local(s.Array, s.Pos())
	idx := g.local(s.Index, s.Pos())
	elem := g.local(s.Local, s.Name.Pos)

	g.assignLocal(s.Array, s.Iterable, s.Iterable.Pos())
	g.emitOp(ir.Iload, idx, ir.IntConst(0))

	head, step, exit := g.newLabel(), g.newLabel(), g.newLabel()
	g.placeHead(head)
	n := g.newTmp()
	g.emitOp(ir.ArrayLen, n, arr)
	g.emitOp(ir.Icmp, ir.Flags(), idx, n)
	g.release(n)
	g.emitJump(ir.JumpGtEq, exit)

	g.emitOp(arrayGetKind(s.Local.Type), elem, arr, idx)
	g.lowerLoopBody(s.Body, exit, step)
	g.place(step)
	g.emitOp(ir.Iadd, idx, idx, ir.IntConst(1))
	g.emitBackEdge(head)
	g.place(exit)
}

func (g *generator) lowerLoopBody(body ast.Statement, brk, cont *label) {
	g.loops = append(g.loops, loop{brk: brk, cont: cont})
	g.lowerStmt(body)
	g.loops = g.loops[:len(g.loops)-1]
}

func (g *generator) lowerReturn(s *ast.ReturnStmt) {
	if s.Value == nil {
		if g.result.Kind != types.KindVoid {
			g.fail(ErrTypeMismatch, s.Pos(), "missing return value")
		}
		g.emitOp(ir.Ret, ir.Arg{})
		return
	}

	if t := g.typeOf(s.Value); t != g.result {
		g.fail(ErrTypeMismatch, s.Value.Pos(), "returning %s from a method of type %s", t, g.result)
	}
	v := g.lowerExpr(s.Value, ir.Arg{})
	g.emitOp(ir.ReturnKind(g.result), ir.Arg{}, v)
	g.release(v)
}
