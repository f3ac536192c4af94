package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/validator"
)

// OmitFile marks a connection that is known but has no register file
const OmitFile = "omit"

// Config is the connection-definition table plus output options
type Config struct {
	// Connections maps address-map connection names to register sources
	Connections []Connection `json:"connections" yaml:"connections"`

	// SourceRoot is where relative connection files are found. Defaults to
	// the directory holding the configuration file.
	SourceRoot string `json:"sourceRoot,omitempty" yaml:"sourceRoot,omitempty"`

	// Output controls the framing of the generated header
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`

	// source is the file this configuration came from
	source string
	index  map[string]int
}

// Connection ties a connection name to its annotated Verilog file and the
// prefix prepended to every register name generated from it.
type Connection struct {
	Name   string `json:"name" yaml:"name"`
	File   string `json:"file" yaml:"file"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// OutputConfig contains header framing options
type OutputConfig struct {
	// Guard overrides the include guard derived from the output file name
	Guard string `json:"guard,omitempty" yaml:"guard,omitempty"`

	// Banner is extra text placed in the header's opening comment
	Banner string `json:"banner,omitempty" yaml:"banner,omitempty"`
}

// SampleConfig is what `xlate-vreg init` writes
func SampleConfig() *Config {
	return &Config{
		Connections: []Connection{
			{Name: "/ctrl_regs/s_axi", File: "rtl/ctrl_regs.sv", Prefix: "CTRL"},
			{Name: "/dma_engine/S_AXI", File: "rtl/dma_regs.sv", Prefix: "DMA"},
			{Name: "/axi_bram_ctrl_0/S_AXI", File: OmitFile},
		},
	}
}

// Names of the files Load looks for, in order
var searchNames = []string{
	"xlate_vreg.json",
	".xlate_vreg.json",
	"xlate_vreg.yaml",
	"xlate_vreg.yml",
	"xlate_vreg.cue",
}

// Load finds and loads the configuration file
// Search order:
//  1. ./xlate_vreg.json, ./.xlate_vreg.json, ./xlate_vreg.yaml, ./xlate_vreg.yml, ./xlate_vreg.cue
//  2. ~/.config/xlate_vreg/config.json
//
// Unlike most tools a missing configuration is an error: without it no
// connection can be resolved.
func Load() (*Config, error) {
	cwd, _ := os.Getwd()

	var searchPaths []string
	for _, name := range searchNames {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "xlate_vreg", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return nil, fmt.Errorf("no configuration file found (looked for %s)", strings.Join(searchNames, ", "))
}

// LoadFile loads configuration from a specific file. The format follows
// the extension: .yaml/.yml, .cue, and JSON for everything else.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't open %s: %w", path, err)
	}

	v, err := validator.NewConfigValidator()
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		if err := v.DecodeCUE(data, path, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := v.DecodeYAML(data, path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		if err := v.ValidateJSON(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.source = path
	cfg.applyDefaults(path)
	if err := cfg.buildIndex(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults(path string) {
	if c.Connections == nil {
		c.Connections = []Connection{}
	}
	if c.SourceRoot == "" && path != "" {
		c.SourceRoot = filepath.Dir(path)
	}
}

func (c *Config) buildIndex() error {
	c.index = make(map[string]int, len(c.Connections))
	for i, conn := range c.Connections {
		if _, dup := c.index[conn.Name]; dup {
			return fmt.Errorf("connection '%s' defined more than once", conn.Name)
		}
		c.index[conn.Name] = i
	}
	return nil
}

// Save checks the configuration against the schema and writes it to path,
// as YAML for .yaml/.yml and JSON otherwise.
func (c *Config) Save(path string) error {
	v, err := validator.NewConfigValidator()
	if err != nil {
		return err
	}
	if err := v.Validate(c); err != nil {
		return fmt.Errorf("refusing to write %s: %w", path, err)
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Lookup returns the definition for a connection name
func (c *Config) Lookup(name string) (Connection, bool) {
	if c.index == nil {
		for _, conn := range c.Connections {
			if conn.Name == name {
				return conn, true
			}
		}
		return Connection{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return Connection{}, false
	}
	return c.Connections[i], true
}

// Source names where the table came from, for diagnostics
func (c *Config) Source() string {
	if c.source == "" {
		return "<defaults>"
	}
	return c.source
}

// ResolveSource returns the path of a connection's source file
func (c *Config) ResolveSource(file string) string {
	if file == "" || filepath.IsAbs(file) || c.SourceRoot == "" {
		return file
	}
	return filepath.Join(c.SourceRoot, file)
}
