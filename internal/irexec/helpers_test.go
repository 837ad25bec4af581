package irexec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tangzhangming/lowir/internal/ast"
	"github.com/tangzhangming/lowir/internal/checker"
	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/irgen"
	"github.com/tangzhangming/lowir/internal/parser"
	"github.com/tangzhangming/lowir/internal/symbol"
)

// source 一个待编译的源文件
type source struct {
	name string
	text string
}

func readSource(t *testing.T, path string) source {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return source{name: filepath.Base(path), text: string(data)}
}

// compile 把源文件连同 testutil.T 一起检查并降级
func compile(t *testing.T, srcs ...source) (*symbol.Table, []*ir.Function) {
	t.Helper()
	srcs = append([]source{readSource(t, filepath.Join("testdata", "testutil", "T.java"))}, srcs...)

	files := make([]*ast.File, 0, len(srcs))
	for _, src := range srcs {
		p := parser.New(src.text, src.name)
		file := p.Parse()
		if p.HasErrors() {
			t.Fatalf("parse %s: %v", src.name, p.Errors())
		}
		files = append(files, file)
	}

	table := symbol.NewTable()
	if errs := checker.CheckFiles(table, files...); len(errs) != 0 {
		t.Fatalf("check: %v", errs)
	}
	table.Freeze()

	var fns []*ir.Function
	for _, file := range files {
		for _, class := range file.Classes {
			for _, m := range class.Methods {
				if m.Body == nil {
					continue
				}
				fn, err := irgen.Lower(m)
				if err != nil {
					t.Fatalf("lower %s.%s: %v", class.Name.Literal, m.Name.Literal, err)
				}
				fns = append(fns, fn)
			}
		}
	}
	return table, fns
}
