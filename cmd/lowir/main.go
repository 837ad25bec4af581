package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tangzhangming/lowir/internal/config"
	"github.com/tangzhangming/lowir/internal/driver"
	diag "github.com/tangzhangming/lowir/internal/errors"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/irexec"
	"github.com/tangzhangming/lowir/internal/irfmt"
	"github.com/tangzhangming/lowir/internal/symbol"
	"github.com/tangzhangming/lowir/internal/types"
)

const usage = `lowir - method-level lowering compiler v0.1.0

Usage: lowir [options] <file.java>...

Options:
`

// options 命令行选项
type options struct {
	configPath string
	jsonOut    bool
	showStats  bool
	runMethod  string
	runArg     int
	workers    int
	maxSlots   int
	verbose    bool
	noColor    bool
	files      []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("lowir", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to lowir.toml")
	fs.BoolVar(&opts.jsonOut, "json", false, "Print the IR as JSON")
	fs.BoolVar(&opts.showStats, "stats", false, "Print per-function statistics")
	fs.StringVar(&opts.runMethod, "run", "", "Interpret a method after lowering (Class.method)")
	fs.IntVar(&opts.runArg, "arg", 0, "int argument passed to -run")
	fs.IntVar(&opts.workers, "workers", 0, "Override driver.workers")
	fs.IntVar(&opts.maxSlots, "max-slots", 0, "Override lower.max_slots")
	fs.BoolVar(&opts.verbose, "v", false, "Debug logging")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored diagnostics")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.files = fs.Args()
	if len(opts.files) == 0 {
		fs.Usage()
		return nil, flag.ErrHelp
	}
	return opts, nil
}

func main() {
	atexit.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	if opts.noColor {
		diag.DisableColors()
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	atexit.Register(func() { _ = log.Sync() })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reporter := diag.NewReporter(stderr)
	for _, file := range opts.files {
		_ = reporter.LoadSource(file)
	}

	d := driver.New(cfg, log)
	prog, err := d.Load(opts.files...)
	if err != nil {
		return report(reporter, err)
	}

	fns, lowerErr := d.LowerAll(ctx, prog)
	if errors.Is(lowerErr, context.Canceled) {
		fmt.Fprintln(stderr, "interrupted")
		return 130
	}

	if opts.jsonOut {
		data, err := irfmt.MarshalIndent(prog.Table, fns)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s\n", data)
	} else if opts.runMethod == "" {
		printFunctions(stdout, prog.Table, fns)
	}

	if opts.showStats {
		printStats(stdout, fns, d.Stats())
	}

	code := 0
	if lowerErr != nil {
		code = report(reporter, lowerErr)
	}

	if opts.runMethod != "" && code == 0 {
		code = execute(stdout, stderr, reporter, cfg, prog.Table, fns, opts)
	}
	return code
}

// loadConfig 依次使用 -config、源文件目录中的 lowir.toml 或默认配置，命令行选项最后覆盖
func loadConfig(opts *options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.FindConfigFile(opts.files[0])
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.workers > 0 {
		cfg.Driver.Workers = opts.workers
	}
	if opts.maxSlots > 0 {
		cfg.Lower.MaxSlots = opts.maxSlots
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Log.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// report 输出诊断并返回退出码
func report(reporter *diag.Reporter, err error) int {
	for _, d := range driver.Diagnostics(err) {
		reporter.Report(d)
	}
	reporter.Summary()
	return 1
}

func printFunctions(w io.Writer, tab *symbol.Table, fns []*ir.Function) {
	for i, fn := range fns {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := fn.Class + "." + fn.Name
		if m := tab.Method(fn.Symbol); m != nil {
			header += " " + m.Descriptor()
		}
		fmt.Fprintln(w, header)
		_ = irfmt.Fprint(w, tab, fn)
	}
}

func printStats(w io.Writer, fns []*ir.Function, stats driver.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Function", "Slots", "Params", "Blocks", "Insts"})

	var blocks, insts int
	for _, fn := range fns {
		t.AppendRow(table.Row{fn.Class + "." + fn.Name, fn.Slots, len(fn.Params), len(fn.Blocks), fn.NumInsts()})
		blocks += len(fn.Blocks)
		insts += fn.NumInsts()
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d functions", len(fns)), stats.MaxSlots, "", blocks, insts,
	})
	t.Render()

	fmt.Fprintf(w, "methods=%d lowered=%d failed=%d cache_hits=%d ast_nodes=%d\n",
		stats.Methods, stats.Lowered, stats.Failed, stats.CacheHits, stats.Nodes)
}

// ============================================================================
// -run
// ============================================================================

func execute(stdout, stderr io.Writer, reporter *diag.Reporter, cfg *config.Config,
	tab *symbol.Table, fns []*ir.Function, opts *options) int {
	fn := findFunction(fns, opts.runMethod)
	if fn == nil {
		fmt.Fprintf(stderr, "Error: method %s not found\n", opts.runMethod)
		return 1
	}

	var args []irexec.Value
	switch {
	case len(fn.Params) == 0:
	case len(fn.Params) == 1 && fn.Params[0].IsIntLike():
		args = append(args, irexec.IntValue(int32(opts.runArg)))
	case len(fn.Params) == 1 && fn.Params[0].Kind == types.KindLong:
		args = append(args, irexec.LongValue(int64(opts.runArg)))
	default:
		fmt.Fprintf(stderr, "Error: %s takes %d parameters; -run supports at most one int or long\n",
			opts.runMethod, len(fn.Params))
		return 1
	}

	m := irexec.New(tab, stdout)
	m.SetLimits(cfg.Exec.MaxDepth, cfg.Exec.MaxSteps)
	m.BindTestutil()
	m.Load(fns...)

	result, err := m.Run(fn, args...)
	if err != nil {
		var rerr *diag.RuntimeError
		if errors.As(err, &rerr) {
			reporter.ReportRuntime(rerr)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}

	switch fn.Result.Kind {
	case types.KindVoid:
	case types.KindLong:
		fmt.Fprintf(stdout, "=> %d\n", result.Long())
	case types.KindDouble:
		fmt.Fprintf(stdout, "=> %s\n", ir.FormatFloat(result.Double()))
	case types.KindArray:
		fmt.Fprintf(stdout, "=> %s\n", result.Array())
	case types.KindBoolean:
		fmt.Fprintf(stdout, "=> %t\n", result.Int() != 0)
	default:
		fmt.Fprintf(stdout, "=> %d\n", result.Int())
	}
	return 0
}

// findFunction 按 "Class.method" 或 "pkg/Class.method" 查找函数
func findFunction(fns []*ir.Function, name string) *ir.Function {
	for _, fn := range fns {
		qualified := fn.Class + "." + fn.Name
		if qualified == name {
			return fn
		}
		class := fn.Class
		if slash := strings.LastIndexByte(class, '/'); slash >= 0 {
			class = class[slash+1:]
		}
		if class+"."+fn.Name == name {
			return fn
		}
	}
	return nil
}
