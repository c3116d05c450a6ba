// Package config loads the YAML configuration shared by the ntagctl
// subcommands: reader selection, key file locations, and the SDM URL
// template used during provisioning.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root document loaded from a ntagctl config file.
type Config struct {
	URL     string        `yaml:"url"`
	SDM     SDMConfig     `yaml:"sdm"`
	Keys    KeysConfig    `yaml:"keys"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// SDMConfig names the file and key slot used for Secure Dynamic Messaging.
type SDMConfig struct {
	FileNo   *int `yaml:"file_no"`
	SDMKeyNo *int `yaml:"sdm_key_no"`
}

// KeysConfig points at the .hex key files used to authenticate and change
// each key slot. An empty path means "use the all-zero factory key".
type KeysConfig struct {
	AppMasterKeyFile string `yaml:"app_master_key_hex_file"`
	SDMKeyFile        string `yaml:"sdm_key_hex_file"`
	File2WriteKeyFile string `yaml:"file2_write_key_hex_file"`
}

// RuntimeConfig controls reader selection and operational toggles.
type RuntimeConfig struct {
	ReaderIndex *int  `yaml:"reader_index"`
	ForcePlain  *bool `yaml:"force_plain"`
}

// ValidationMode selects how strict config validation is on Load.
type ValidationMode int

const (
	// ValidationAuthDiag requires only the fields every subcommand needs
	// (a selected reader); it's the baseline for tools that bring their own
	// keys and don't touch SDM/URL config.
	ValidationAuthDiag ValidationMode = iota
	// ValidationFull additionally requires the URL, SDM file/key slot, and
	// key file fields a provisioning run needs.
	ValidationFull
)

// Load reads and validates a config file at path using ValidationAuthDiag,
// the baseline every subcommand needs.
func Load(path string) (*Config, error) {
	return LoadWithMode(path, ValidationAuthDiag)
}

// LoadWithMode reads and validates a config file at path under mode.
func LoadWithMode(path string, mode ValidationMode) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.ValidateWithMode(mode); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateWithMode dispatches to Validate or ValidateForProvision per mode.
func (c *Config) ValidateWithMode(mode ValidationMode) error {
	switch mode {
	case ValidationFull:
		return c.ValidateForProvision()
	case ValidationAuthDiag:
		return c.Validate()
	default:
		return fmt.Errorf("unsupported validation mode: %d", mode)
	}
}

// Validate checks the fields common to every subcommand. Subcommands that
// need SDM or key fields validate those themselves, since not every
// subcommand (e.g. diagnose) requires them.
func (c *Config) Validate() error {
	if c.Runtime.ReaderIndex == nil {
		return fmt.Errorf("config.runtime.reader_index is required")
	}
	if *c.Runtime.ReaderIndex < 0 {
		return fmt.Errorf("config.runtime.reader_index must be >= 0")
	}
	return nil
}

// ValidateForProvision additionally requires the fields a full provisioning
// run needs: the tap URL, the SDM file/key slot, and all three key files.
func (c *Config) ValidateForProvision() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("config.url is required")
	}
	parsed, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("config.url is invalid: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config.url must be absolute (include scheme and host)")
	}
	if c.SDM.FileNo == nil {
		return fmt.Errorf("config.sdm.file_no is required")
	}
	if *c.SDM.FileNo < 0 || *c.SDM.FileNo > 0x1F {
		return fmt.Errorf("config.sdm.file_no must be 0..31")
	}
	if c.SDM.SDMKeyNo == nil {
		return fmt.Errorf("config.sdm.sdm_key_no is required")
	}
	if *c.SDM.SDMKeyNo < 0 || *c.SDM.SDMKeyNo > 15 {
		return fmt.Errorf("config.sdm.sdm_key_no must be 0..15")
	}
	for field, path := range map[string]string{
		"keys.app_master_key_hex_file": c.Keys.AppMasterKeyFile,
		"keys.sdm_key_hex_file":        c.Keys.SDMKeyFile,
		"keys.file2_write_key_hex_file": c.Keys.File2WriteKeyFile,
	} {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("config.%s is required", field)
		}
		if err := validateReadableFile(path, field); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	dir := filepath.Dir(configPath)
	c.Keys.AppMasterKeyFile = resolvePath(dir, c.Keys.AppMasterKeyFile)
	c.Keys.SDMKeyFile = resolvePath(dir, c.Keys.SDMKeyFile)
	c.Keys.File2WriteKeyFile = resolvePath(dir, c.Keys.File2WriteKeyFile)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

func validateReadableFile(path, field string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file, got directory", field)
	}
	return nil
}
