package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chanonchantad/anon-pipeline/internal/rules"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".anonpipe.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the configuration file. Pointer fields
// distinguish "not set" from a zero value so that Apply only overrides
// what the file names.
type File struct {
	Salt            string                 `yaml:"salt,omitempty"`
	TagRules        string                 `yaml:"tag_rules,omitempty"`
	RedactionRules  string                 `yaml:"redaction_rules,omitempty"`
	Workers         int                    `yaml:"workers,omitempty"`
	ShiftDates      *bool                  `yaml:"shift_dates,omitempty"`
	KeepPrivate     *bool                  `yaml:"keep_private,omitempty"`
	SaltLineBreak   *bool                  `yaml:"salt_line_break,omitempty"`
	HashAlgorithm   string                 `yaml:"hash,omitempty"`
	CacheScope      string                 `yaml:"cache_scope,omitempty"`
	RedactionPolicy string                 `yaml:"redaction_policy,omitempty"`
	ListFields      []string               `yaml:"list_fields,omitempty"`
	InputPattern    string                 `yaml:"input_pattern,omitempty"`
	DBDir           string                 `yaml:"db_dir,omitempty"`
	Quarantine      *rules.QuarantineRules `yaml:"quarantine,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Relative paths inside the file are resolved against its directory.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	cf.Salt = resolve(base, cf.Salt)
	cf.TagRules = resolve(base, cf.TagRules)
	cf.RedactionRules = resolve(base, cf.RedactionRules)
	cf.DBDir = resolve(base, cf.DBDir)

	return &cf, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Apply copies every setting present in the file onto c. Quarantine rules
// are merged into the defaults rather than replacing them.
func (cf *File) Apply(c *Config) {
	if cf.Salt != "" {
		c.SaltPath = cf.Salt
	}
	if cf.TagRules != "" {
		c.TagRulesPath = cf.TagRules
	}
	if cf.RedactionRules != "" {
		c.RedactionRulesPath = cf.RedactionRules
	}
	if cf.Workers != 0 {
		c.Workers = cf.Workers
	}
	if cf.ShiftDates != nil {
		c.ShiftDates = *cf.ShiftDates
	}
	if cf.KeepPrivate != nil {
		c.KeepPrivate = *cf.KeepPrivate
	}
	if cf.SaltLineBreak != nil {
		c.KeepSaltLineBreak = *cf.SaltLineBreak
	}
	if cf.HashAlgorithm != "" {
		c.HashAlgorithm = cf.HashAlgorithm
	}
	if cf.CacheScope != "" {
		c.CacheScope = cf.CacheScope
	}
	if cf.RedactionPolicy != "" {
		c.RedactionPolicy = cf.RedactionPolicy
	}
	if len(cf.ListFields) > 0 {
		c.ListFields = append([]string{}, cf.ListFields...)
	}
	if cf.InputPattern != "" {
		c.InputPattern = cf.InputPattern
	}
	if cf.DBDir != "" {
		c.DBDir = cf.DBDir
	}
	if cf.Quarantine != nil {
		if c.Quarantine == nil {
			c.Quarantine = rules.DefaultQuarantineRules()
		}
		c.Quarantine.Merge(cf.Quarantine)
	}
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, if specified
//  2. .anonpipe.yaml in the current directory
//  3. config.yaml in the XDG config directory
//  4. .anonpipe.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
