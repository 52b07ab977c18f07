package config

import (
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"

	"github.com/chanonchantad/anon-pipeline/internal/dateshift"
	"github.com/chanonchantad/anon-pipeline/internal/hasher"
	"github.com/chanonchantad/anon-pipeline/internal/redact"
	"github.com/chanonchantad/anon-pipeline/internal/rules"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "anonpipe"

	// DefaultWorkers is the number of images processed concurrently.
	// Decoding and pixel work is CPU bound, so more workers than cores
	// only adds memory pressure.
	DefaultWorkers = 8

	// DefaultInputPattern selects the files a run picks up.
	DefaultInputPattern = "**/*.dcm"

	// DefaultHashAlgorithm produces digests compatible with earlier
	// releases of de-identified data.
	DefaultHashAlgorithm = hasher.SHA1
)

// Config holds all configuration options for a run.
// It is populated from the config file and CLI flags, in that order, and
// passed down explicitly; nothing reads it from global state.
type Config struct {
	// Workspace is the run root holding flat/, sorted/, anon/,
	// quarantine/ and logs/.
	Workspace string

	// SaltPath is the file holding the hashing and date shift salt.
	SaltPath string

	// KeepSaltLineBreak keeps the trailing line break of the salt line in
	// the salt, matching data released by tools that read it verbatim.
	KeepSaltLineBreak bool

	// TagRulesPath is the CSV tag rule table.
	TagRulesPath string

	// RedactionRulesPath is the YAML redaction rule list. Without it
	// every secondary capture that reaches redaction is quarantined.
	RedactionRulesPath string

	// Workers is the number of images processed concurrently.
	Workers int

	// ShiftDates enables date shifting for tags marked shift.
	ShiftDates bool

	// KeepPrivate keeps odd-group tags instead of stripping them.
	KeepPrivate bool

	// Raw skips pixel redaction and de-identification. Files are only
	// sorted and classified.
	Raw bool

	// NoSort skips sorting and classification. Input files are moved
	// straight to anon/ and de-identified there; secondary captures still
	// go through redaction.
	NoSort bool

	// HashAlgorithm selects the digest: sha1 or blake2b-160.
	HashAlgorithm string

	// CacheScope selects date shift memo keys: date or patient.
	CacheScope string

	// RedactionPolicy selects first-match or union.
	RedactionPolicy string

	// ListFields are the redaction fields matched element by element.
	ListFields []string

	// InputPattern is the doublestar glob selecting input files under
	// the input directory.
	InputPattern string

	// Quarantine holds the classifier rule table.
	Quarantine *rules.QuarantineRules

	// DBDir is the directory of the run ledger.
	// Defaults to the XDG data directory (~/.local/share/anonpipe on Linux).
	DBDir string

	// SaveToDB records the run in the ledger.
	SaveToDB bool

	// MarkdownReport writes the run summary as Markdown instead of text.
	MarkdownReport bool

	// JSONReport writes the run summary and per-image records as JSON.
	JSONReport bool

	// ReportFile is the output file path for the run summary.
	// When empty, the summary goes to stdout.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	workers := DefaultWorkers
	if n := runtime.NumCPU(); n < workers {
		workers = n
	}
	return &Config{
		Workers:         workers,
		HashAlgorithm:   DefaultHashAlgorithm,
		CacheScope:      string(dateshift.ScopeDate),
		RedactionPolicy: string(redact.FirstMatch),
		ListFields:      append([]string{}, redact.DefaultListFields...),
		InputPattern:    DefaultInputPattern,
		Quarantine:      rules.DefaultQuarantineRules(),
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// XDGDataDir returns the XDG data directory for anonpipe.
// On Linux: ~/.local/share/anonpipe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for anonpipe.
// On Linux: ~/.config/anonpipe
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Deidentifies reports whether the run rewrites headers.
func (c *Config) Deidentifies() bool {
	return !c.Raw
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return ErrNoWorkspace
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.Deidentifies() {
		if c.SaltPath == "" {
			return ErrNoSalt
		}
		if c.TagRulesPath == "" {
			return ErrNoTagRules
		}
	}

	if c.Raw && c.NoSort {
		return ErrConflictingModes
	}

	if c.MarkdownReport && c.JSONReport {
		return ErrConflictingReportFormats
	}

	switch c.HashAlgorithm {
	case hasher.SHA1, hasher.BLAKE2b160:
	default:
		return ErrInvalidHashAlgorithm
	}

	if _, err := dateshift.ParseScope(c.CacheScope); err != nil {
		return ErrInvalidCacheScope
	}

	if _, err := redact.ParsePolicy(c.RedactionPolicy); err != nil {
		return ErrInvalidRedactionPolicy
	}

	if c.Quarantine != nil {
		if err := c.Quarantine.Validate(); err != nil {
			return err
		}
	}

	return nil
}
