// Package config 读取 lowir.toml 配置
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// 常量定义
const (
	FileName = "lowir.toml" // 配置文件名

	DefaultMaxSlots = 65535
	DefaultMaxDepth = 1024
)

// Config 完整配置
type Config struct {
	Lower  LowerConfig  `toml:"lower"`
	Exec   ExecConfig   `toml:"exec"`
	Driver DriverConfig `toml:"driver"`
	Log    LogConfig    `toml:"log"`
}

// LowerConfig 降级选项
type LowerConfig struct {
	// MaxSlots 单个函数允许的最大寄存器数
	MaxSlots int `toml:"max_slots"`
}

// ExecConfig 解释器选项
type ExecConfig struct {
	MaxDepth int    `toml:"max_depth"`
	MaxSteps uint64 `toml:"max_steps"` // 0 表示不限
}

// DriverConfig 批量降级选项
type DriverConfig struct {
	// Workers 并行降级的 goroutine 数，0 表示 GOMAXPROCS
	Workers int `toml:"workers"`

	// Cache 是否按方法内容缓存降级结果
	Cache bool `toml:"cache"`
}

// LogConfig 日志选项
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	Dev   bool   `toml:"dev"`   // 开发模式：彩色、可读格式
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Lower:  LowerConfig{MaxSlots: DefaultMaxSlots},
		Exec:   ExecConfig{MaxDepth: DefaultMaxDepth},
		Driver: DriverConfig{Workers: 0, Cache: true},
		Log:    LogConfig{Level: "info"},
	}
}

// Load 从文件加载配置，未出现的字段保留默认值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 TOML 格式的配置
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.Lower.MaxSlots <= 0 {
		return fmt.Errorf("lower.max_slots must be positive, got %d", c.Lower.MaxSlots)
	}
	if c.Exec.MaxDepth <= 0 {
		return fmt.Errorf("exec.max_depth must be positive, got %d", c.Exec.MaxDepth)
	}
	if c.Driver.Workers < 0 {
		return fmt.Errorf("driver.workers must not be negative, got %d", c.Driver.Workers)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}

// Workers 返回实际使用的并行度
func (c *Config) Workers() int {
	if c.Driver.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Driver.Workers
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	if err := os.WriteFile(path, []byte(generateConfigWithComments(c)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateConfigWithComments 生成带注释的配置文件内容
func generateConfigWithComments(c *Config) string {
	var sb strings.Builder

	sb.WriteString("[lower]\n")
	sb.WriteString("# 单个方法允许的最大寄存器数\n")
	sb.WriteString(fmt.Sprintf("max_slots = %d\n\n", c.Lower.MaxSlots))

	sb.WriteString("[exec]\n")
	sb.WriteString("# 解释器调用栈深度和指令步数上限（0 表示不限）\n")
	sb.WriteString(fmt.Sprintf("max_depth = %d\n", c.Exec.MaxDepth))
	sb.WriteString(fmt.Sprintf("max_steps = %d\n\n", c.Exec.MaxSteps))

	sb.WriteString("[driver]\n")
	sb.WriteString("# 并行降级的 worker 数（0 表示 GOMAXPROCS）\n")
	sb.WriteString(fmt.Sprintf("workers = %d\n", c.Driver.Workers))
	sb.WriteString(fmt.Sprintf("cache = %t\n\n", c.Driver.Cache))

	sb.WriteString("[log]\n")
	sb.WriteString(fmt.Sprintf("level = %q\n", c.Log.Level))
	sb.WriteString(fmt.Sprintf("dev = %t\n", c.Log.Dev))

	return sb.String()
}

// FindConfigFile 从指定路径向上查找配置文件
// 返回配置文件的完整路径，如果找不到则返回空字符串
func FindConfigFile(startPath string) string {
	info, err := os.Stat(startPath)
	if err != nil {
		return ""
	}

	dir := startPath
	if !info.IsDir() {
		dir = filepath.Dir(startPath)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
