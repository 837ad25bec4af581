package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
[lower]
max_slots = 128

[driver]
workers = 3
cache = false

[log]
level = "debug"
dev = true
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Lower.MaxSlots != 128 {
		t.Errorf("MaxSlots = %d, want 128", c.Lower.MaxSlots)
	}
	if c.Workers() != 3 || c.Driver.Cache {
		t.Errorf("Driver = %+v", c.Driver)
	}
	if c.Log.Level != "debug" || !c.Log.Dev {
		t.Errorf("Log = %+v", c.Log)
	}
	// 未出现的表保留默认值
	if c.Exec.MaxDepth != DefaultMaxDepth {
		t.Errorf("Exec.MaxDepth = %d, want %d", c.Exec.MaxDepth, DefaultMaxDepth)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", "[lower\n", "failed to parse config file"},
		{"slots", "[lower]\nmax_slots = 0\n", "lower.max_slots must be positive"},
		{"depth", "[exec]\nmax_depth = -1\n", "exec.max_depth must be positive"},
		{"workers", "[driver]\nworkers = -2\n", "driver.workers must not be negative"},
		{"level", "[log]\nlevel = \"verbose\"\n", `unknown level "verbose"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	c := Default()
	c.Lower.MaxSlots = 300
	c.Exec.MaxSteps = 5000
	c.Log.Level = "warn"
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *loaded != *c {
		t.Errorf("Load(Save(c)) = %+v, want %+v", loaded, c)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(nested); got != "" {
		t.Errorf("FindConfigFile without a config = %q", got)
	}

	if err := Default().Save(filepath.Join(root, FileName)); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(nested, "Test.java")
	if err := os.WriteFile(src, []byte("class Test {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	want, _ := filepath.Abs(filepath.Join(root, FileName))
	if got := FindConfigFile(src); got != want {
		t.Errorf("FindConfigFile(%s) = %q, want %q", src, got, want)
	}
}
