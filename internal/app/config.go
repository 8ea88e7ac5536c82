package app

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	BuilderStack    = "stack"
	BuilderInterval = "interval"
)

type ProcessingConfig struct {
	// Drop nodes shorter than this many seconds.
	MinNodeDuration float64 `yaml:"min_node_duration"`

	// Drop nodes whose extracted category is listed here.
	ExcludedCategories []string `yaml:"excluded_categories,omitempty"`

	// Drop frames shorter than this many seconds.
	MinFrameDuration float64 `yaml:"min_frame_duration"`

	// Stop after this many frames. Nil or zero means all frames.
	MaxFrameCount *uint64 `yaml:"max_frame_count,omitempty"`

	// Frames in flight per scheduler batch.
	BatchSize int `yaml:"batch_size"`

	// Concurrent frame pipelines. Zero autodetects, one runs inline.
	WorkerCount int `yaml:"worker_count"`

	// Tree reconstruction algorithm: "stack" (default, requires
	// DFS-ordered rows) or "interval" (order-independent).
	TreeBuilder string `yaml:"tree_builder"`
}

type OutputConfig struct {
	Path string `yaml:"path"`

	// Compress the JSON document with zstd.
	Compress bool `yaml:"compress,omitempty"`
}

type Config struct {
	InputPath string       `yaml:"input"`
	Output    OutputConfig `yaml:"output"`

	Processing ProcessingConfig `yaml:"processing"`

	// Log a progress line every this many completed frames.
	ProgressEvery uint64 `yaml:"progress_every"`

	// When set, dump prometheus metrics in text format to this path
	// at the end of the run.
	MetricsPath string `yaml:"metrics_path,omitempty"`
}

func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: read config: %w", err)
	}

	conf := &Config{}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("app: parse config: %w", err)
	}
	conf.FillDefault()
	return conf, nil
}

func (c *Config) FillDefault() {
	if c.Processing.BatchSize == 0 {
		c.Processing.BatchSize = 50
	}
	if c.Processing.WorkerCount == 0 {
		c.Processing.WorkerCount = min(runtime.GOMAXPROCS(0), 8)
	}
	if c.Processing.TreeBuilder == "" {
		c.Processing.TreeBuilder = BuilderStack
	}
	if c.ProgressEvery == 0 {
		c.ProgressEvery = 50
	}
}

func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("app: input path is required")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("app: output path is required")
	}
	if c.Processing.BatchSize < 1 {
		return fmt.Errorf("app: batch_size must be >= 1, got %d", c.Processing.BatchSize)
	}
	if c.Processing.WorkerCount < 1 {
		return fmt.Errorf("app: worker_count must be >= 1, got %d", c.Processing.WorkerCount)
	}
	switch c.Processing.TreeBuilder {
	case BuilderStack, BuilderInterval:
	default:
		return fmt.Errorf("app: unknown tree_builder %q", c.Processing.TreeBuilder)
	}
	if c.Processing.MinNodeDuration < 0 || c.Processing.MinFrameDuration < 0 {
		return fmt.Errorf("app: durations must be non-negative")
	}
	return nil
}
