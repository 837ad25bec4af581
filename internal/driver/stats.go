package driver

import (
	"go.uber.org/atomic"

	"github.com/tangzhangming/lowir/internal/ir"
)

// Stats 驱动统计信息
type Stats struct {
	Methods   int64 // 请求降级的方法数
	Lowered   int64 // 实际降级成功的方法数（不含缓存命中）
	Failed    int64 // 降级失败的方法数
	CacheHits int64 // 缓存命中次数
	Nodes     int64 // 降级过的 AST 节点数
	Blocks    int64 // 生成的基本块数
	Insts     int64 // 生成的指令数
	MaxSlots  int64 // 单个函数的最大寄存器数
}

// stats 并发更新的计数器
type stats struct {
	methods   atomic.Int64
	lowered   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64
	nodes     atomic.Int64
	blocks    atomic.Int64
	insts     atomic.Int64
	maxSlots  atomic.Int64
}

func (s *stats) record(fn *ir.Function, nodes int) {
	s.lowered.Inc()
	s.nodes.Add(int64(nodes))
	s.blocks.Add(int64(len(fn.Blocks)))
	s.insts.Add(int64(fn.NumInsts()))
	for {
		cur := s.maxSlots.Load()
		if int64(fn.Slots) <= cur || s.maxSlots.CAS(cur, int64(fn.Slots)) {
			return
		}
	}
}

// Stats 返回统计信息快照
func (d *Driver) Stats() Stats {
	return Stats{
		Methods:   d.stats.methods.Load(),
		Lowered:   d.stats.lowered.Load(),
		Failed:    d.stats.failed.Load(),
		CacheHits: d.stats.cacheHits.Load(),
		Nodes:     d.stats.nodes.Load(),
		Blocks:    d.stats.blocks.Load(),
		Insts:     d.stats.insts.Load(),
		MaxSlots:  d.stats.maxSlots.Load(),
	}
}
