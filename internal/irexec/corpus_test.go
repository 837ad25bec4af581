package irexec

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

var programs = []struct {
	pkg   string
	input int32
}{
	{pkg: "values", input: 400},
	{pkg: "longvalues", input: -400},
	{pkg: "arith1", input: 100},
	{pkg: "gocall", input: -100},
	{pkg: "staticcall1"},
	{pkg: "staticcall2"},
	{pkg: "staticcall3"},
	{pkg: "loops1"},
	{pkg: "arrays1"},
	{pkg: "arrays2"},
	{pkg: "bubblesort"},
	{pkg: "arrayreverse"},
	{pkg: "eratosthenes", input: 30},
}

// TestPrograms 从源码经降级到解释执行，比较输出与 output.golden
func TestPrograms(t *testing.T) {
	for _, tt := range programs {
		t.Run(tt.pkg, func(t *testing.T) {
			g := NewWithT(t)
			dir := filepath.Join("testdata", tt.pkg)

			table, fns := compile(t, readSource(t, filepath.Join(dir, "Test.java")))
			var out bytes.Buffer
			m := New(table, &out)
			m.BindTestutil()
			m.Load(fns...)

			result, err := m.Call(tt.pkg+"/Test.run", IntValue(tt.input))
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(result).To(Equal(Value{}))

			want, err := os.ReadFile(filepath.Join(dir, "output.golden"))
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(out.String()).To(Equal(string(want)))
			g.Expect(m.Stats().FunctionCalls).To(BeNumerically(">=", 1))
		})
	}
}
