// Package config holds the threshold table and run options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TFMV/hismetrics/types"
)

var (
	ErrUnknownMetric = errors.New("unknown metric kind")
	ErrInvalidRange  = errors.New("invalid threshold range")
)

const (
	FrontendDump   = "dump"
	FrontendSource = "source"
)

// ThresholdTable maps every metric kind to its acceptable inclusive range
type ThresholdTable map[types.MetricKind]types.Range

// Range returns the configured range for kind
func (t ThresholdTable) Range(kind types.MetricKind) (types.Range, error) {
	r, ok := t[kind]
	if !ok {
		return types.Range{}, fmt.Errorf("%w: %s has no threshold", ErrUnknownMetric, kind)
	}
	return r, nil
}

// DefaultThresholds returns the HIS recommended ranges. COMF is scaled to
// comment lines per hundred statements, so its 0.2 minimum becomes 20.
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		types.MetricStatements: {Min: 1, Max: 50},
		types.MetricReturns:    {Min: 0, Max: 1},
		types.MetricParams:     {Min: 0, Max: 5},
		types.MetricNesting:    {Min: 0, Max: 4},
		types.MetricGoto:       {Min: 0, Max: 0},
		types.MetricCallees:    {Min: 0, Max: 7},
		types.MetricCyclomatic: {Min: 1, Max: 10},
		types.MetricPaths:      {Min: 1, Max: 80},
		types.MetricCalling:    {Min: 0, Max: 5},
		types.MetricRecursion:  {Min: 0, Max: 0},
		types.MetricComf:       {Min: 20, Max: types.Unbounded},
		types.MetricVocf:       {Min: 1, Max: 4},
	}
}

// Config is the process-wide configuration, built once and passed explicitly
type Config struct {
	Thresholds ThresholdTable
	Suppress   []types.MetricKind
	Workers    int
	Frontend   string
	Exclude    []string
}

// file is the YAML layout of a configuration file
type file struct {
	Thresholds map[string]bounds `yaml:"thresholds"`
	Suppress   []string          `yaml:"suppress"`
	Workers    int               `yaml:"workers"`
	Frontend   string            `yaml:"frontend"`
	Exclude    []string          `yaml:"exclude"`
}

// bounds is a range as written in a file; an omitted bound keeps its default
type bounds struct {
	Min *int `yaml:"min"`
	Max *int `yaml:"max"`
}

func (b bounds) over(r types.Range) types.Range {
	if b.Min != nil {
		r.Min = *b.Min
	}
	if b.Max != nil {
		r.Max = *b.Max
	}
	return r
}

func Default() *Config {
	return &Config{
		Thresholds: DefaultThresholds(),
		Workers:    runtime.NumCPU(),
		Frontend:   FrontendDump,
	}
}

// Load reads a YAML configuration file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration from r over the defaults. Unknown keys are
// rejected.
func Parse(r io.Reader) (*Config, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg := Default()
	for name, b := range f.Thresholds {
		kind, ok := types.ParseMetricKind(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
		}
		cfg.Thresholds[kind] = b.over(cfg.Thresholds[kind])
	}
	if err := cfg.AddSuppressed(f.Suppress...); err != nil {
		return nil, err
	}
	if f.Workers > 0 {
		cfg.Workers = f.Workers
	}
	if f.Frontend != "" {
		cfg.Frontend = f.Frontend
	}
	cfg.Exclude = f.Exclude

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AddSuppressed adds metric names, e.g. from "GOTO,CALLS", to the suppressed set
func (c *Config) AddSuppressed(names ...string) error {
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			kind, ok := types.ParseMetricKind(part)
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownMetric, part)
			}
			if !c.IsSuppressed(kind) {
				c.Suppress = append(c.Suppress, kind)
			}
		}
	}
	sort.Slice(c.Suppress, func(i, j int) bool { return c.Suppress[i] < c.Suppress[j] })
	return nil
}

func (c *Config) IsSuppressed(kind types.MetricKind) bool {
	for _, k := range c.Suppress {
		if k == kind {
			return true
		}
	}
	return false
}

// Active returns the metric kinds that are computed, in report order
func (c *Config) Active() []types.MetricKind {
	var kinds []types.MetricKind
	for _, k := range types.AllMetricKinds() {
		if !c.IsSuppressed(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Validate checks that every metric has a well formed range and that no
// unknown kind is configured
func (c *Config) Validate() error {
	for kind, r := range c.Thresholds {
		if !kind.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownMetric, int(kind))
		}
		if r.Min > r.Max {
			return fmt.Errorf("%w: %s min %d > max %d", ErrInvalidRange, kind, r.Min, r.Max)
		}
	}
	for _, kind := range types.AllMetricKinds() {
		if _, err := c.Thresholds.Range(kind); err != nil {
			return err
		}
	}
	switch c.Frontend {
	case FrontendDump, FrontendSource:
	default:
		return fmt.Errorf("unknown frontend %q", c.Frontend)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}
