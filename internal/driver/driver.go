// Package driver 把源文件经过前端检查后并行降级为 IR。
//
// 每个方法独立降级，单个方法失败不影响其他方法；
// 所有错误通过 multierr 合并后一并返回。
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/checker"
	"github.com/tangzhangming/lowir/internal/config"
	diag "github.com/tangzhangming/lowir/internal/errors"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/irgen"
	"github.com/tangzhangming/lowir/internal/parser"
	"github.com/tangzhangming/lowir/internal/symbol"
)

// ErrTooManySlots 函数需要的寄存器超过 lower.max_slots
var ErrTooManySlots = errors.New("too many slots")

// Driver 批量降级驱动
type Driver struct {
	cfg   *config.Config
	log   *zap.Logger
	cache *Cache
	stats stats
}

// Source 内存中的源文件
type Source struct {
	Name string
	Text string
}

// Program 检查通过的一组源文件
type Program struct {
	Table *symbol.Table
	Files []*ast.File
}

// New 创建驱动，cfg 为 nil 时使用默认配置，log 为 nil 时不输出日志
func New(cfg *config.Config, log *zap.Logger) *Driver {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Driver{cfg: cfg, log: log}
	if cfg.Driver.Cache {
		d.cache = NewCache()
	}
	return d
}

// Cache 返回驱动的缓存，未启用时为 nil
func (d *Driver) Cache() *Cache {
	return d.cache
}

// ============================================================================
// 前端
// ============================================================================

// Load 读取并检查磁盘上的源文件
func (d *Driver) Load(paths ...string) (*Program, error) {
	srcs := make([]Source, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read source file: %w", err)
		}
		srcs = append(srcs, Source{Name: path, Text: string(data)})
	}
	return d.Check(srcs...)
}

// Check 解析并检查源文件，成功后冻结符号表
//
// 返回的错误由 *errors.CompileError 合并而成，可用 Diagnostics 拆开。
func (d *Driver) Check(srcs ...Source) (*Program, error) {
	var err error
	files := make([]*ast.File, 0, len(srcs))
	for _, src := range srcs {
		p := parser.New(src.Text, src.Name)
		file := p.Parse()
		for _, e := range p.Errors() {
			err = multierr.Append(err, diag.New(diag.E0001, e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Message))
		}
		files = append(files, file)
	}
	if err != nil {
		return nil, err
	}

	table := symbol.NewTable()
	for _, e := range checker.CheckFiles(table, files...) {
		ce := diag.New(e.Code, e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Message)
		if e.Hint != "" {
			ce.Hints = append(ce.Hints, e.Hint)
		}
		err = multierr.Append(err, ce)
	}
	if err != nil {
		return nil, err
	}
	table.Freeze()

	d.log.Debug("checked sources",
		zap.Int("files", len(files)),
		zap.Int("packages", len(table.Packages())))
	return &Program{Table: table, Files: files}, nil
}

// Methods 按声明顺序返回所有带方法体的方法
func (p *Program) Methods() []*ast.MethodDecl {
	var methods []*ast.MethodDecl
	for _, file := range p.Files {
		for _, class := range file.Classes {
			for _, m := range class.Methods {
				if m.Body != nil {
					methods = append(methods, m)
				}
			}
		}
	}
	return methods
}

// ============================================================================
// 降级
// ============================================================================

// LowerAll 并行降级程序中的所有方法
//
// 结果按声明顺序排列，只包含降级成功的函数。
// 各方法的错误合并后返回；ctx 取消时返回 ctx 的错误。
func (d *Driver) LowerAll(ctx context.Context, prog *Program) ([]*ir.Function, error) {
	methods := prog.Methods()
	fns := make([]*ir.Function, len(methods))
	errs := make([]error, len(methods))

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers())
	for i, m := range methods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fns[i], errs[i] = d.lower(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*ir.Function, 0, len(fns))
	for _, fn := range fns {
		if fn != nil {
			out = append(out, fn)
		}
	}
	err := multierr.Combine(errs...)

	d.log.Info("lowered methods",
		zap.Int("methods", len(methods)),
		zap.Int("ok", len(out)),
		zap.Int("failed", len(multierr.Errors(err))),
		zap.Duration("elapsed", time.Since(start)))
	return out, err
}

func (d *Driver) lower(m *ast.MethodDecl) (*ir.Function, error) {
	name := methodName(m)
	d.stats.methods.Inc()

	var key Key
	if d.cache != nil {
		key = MethodKey(m)
		if fn, ok := d.cache.Get(key); ok {
			d.stats.cacheHits.Inc()
			d.log.Debug("cache hit", zap.String("method", name))
			return fn, nil
		}
	}

	start := time.Now()
	fn, err := irgen.Lower(m)
	if err == nil && fn.Slots > d.cfg.Lower.MaxSlots {
		err = fmt.Errorf("%s: %w: %d > %d", name, ErrTooManySlots, fn.Slots, d.cfg.Lower.MaxSlots)
	}
	if err != nil {
		d.stats.failed.Inc()
		d.log.Warn("lowering failed", zap.String("method", name), zap.Error(err))
		return nil, err
	}

	nodes := 0
	ast.Walk(m.Body, func(ast.Node) bool {
		nodes++
		return true
	})
	d.stats.record(fn, nodes)
	d.log.Debug("lowered",
		zap.String("method", name),
		zap.Int("slots", fn.Slots),
		zap.Int("blocks", len(fn.Blocks)),
		zap.Int("insts", fn.NumInsts()),
		zap.Duration("elapsed", time.Since(start)))

	if d.cache != nil {
		d.cache.Put(key, fn)
	}
	return fn, nil
}

func methodName(m *ast.MethodDecl) string {
	if m.Symbol != nil {
		return m.Symbol.QualifiedName()
	}
	return m.Name.Literal
}

// ============================================================================
// 诊断
// ============================================================================

// Diagnostics 把 Check 或 LowerAll 返回的错误转换为诊断列表
func Diagnostics(err error) []*diag.CompileError {
	var out []*diag.CompileError
	for _, e := range multierr.Errors(err) {
		var ce *diag.CompileError
		if errors.As(e, &ce) {
			out = append(out, ce)
			continue
		}
		var le *irgen.Error
		if errors.As(e, &le) {
			msg := le.Kind.Error()
			if le.Msg != "" {
				msg += ": " + le.Msg
			}
			ce := diag.New(le.Code(), le.Pos.Filename, le.Pos.Line, le.Pos.Column, msg)
			ce.Method = le.Method
			out = append(out, ce)
			continue
		}
		if errors.Is(e, ErrTooManySlots) {
			out = append(out, diag.New(diag.L0004, "", 0, 0, e.Error()))
			continue
		}
		out = append(out, diag.New(diag.L0005, "", 0, 0, e.Error()))
	}
	return out
}
