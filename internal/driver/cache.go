package driver

import (
	"encoding/binary"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/crypto/blake2b"

	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/ir"
)

// ============================================================================
// 降级结果缓存
// ============================================================================
//
// 缓存以方法内容为键：方法的源代码片段、签名、检查后的方法体
// 以及所有调用目标的符号。键相同的方法降级结果必然相同，
// 因此重复检查同一组源文件时可以直接复用 ir.Function。
//
// ============================================================================

// Key 方法内容的 BLAKE2b-256 摘要
type Key [blake2b.Size256]byte

// Cache 并发安全的降级结果缓存
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*ir.Function

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache 创建空缓存
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]*ir.Function)}
}

// Get 查找缓存
func (c *Cache) Get(key Key) (*ir.Function, bool) {
	c.mu.RLock()
	fn, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return fn, ok
}

// Put 写入缓存，函数在写入后不可再修改
func (c *Cache) Put(key Key, fn *ir.Function) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = fn
}

// Len 返回缓存条目数
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Hits 返回命中次数
func (c *Cache) Hits() int64 { return c.hits.Load() }

// Misses 返回未命中次数
func (c *Cache) Misses() int64 { return c.misses.Load() }

// Clear 清空缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*ir.Function)
}

// MethodKey 计算方法的缓存键，方法必须已经通过检查
func MethodKey(m *ast.MethodDecl) Key {
	h, _ := blake2b.New256(nil)
	var buf [8]byte
	writeID := func(id uint64) {
		binary.LittleEndian.PutUint64(buf[:], id)
		h.Write(buf[:])
	}

	if m.Symbol != nil {
		h.Write([]byte(m.Symbol.QualifiedName()))
		h.Write([]byte(m.Symbol.Descriptor()))
		writeID(uint64(m.Symbol.ID))
	}
	if m.Class != nil && m.Class.File != nil {
		h.Write([]byte(m.Class.File.Span(m)))
	}
	if m.Body != nil {
		h.Write([]byte(m.Body.String()))
		ast.Walk(m.Body, func(n ast.Node) bool {
			if call, ok := n.(*ast.CallExpr); ok && call.Method != nil {
				writeID(uint64(call.Method.ID))
				h.Write([]byte(call.Method.Descriptor()))
			}
			return true
		})
	}

	var key Key
	copy(key[:], h.Sum(nil))
	return key
}
