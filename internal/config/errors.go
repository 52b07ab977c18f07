package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoWorkspace is returned when no workspace directory is given.
	ErrNoWorkspace = errors.New("no workspace specified: provide a workspace directory")

	// ErrNoSalt is returned when de-identification is enabled without a salt file.
	ErrNoSalt = errors.New("no salt file specified: use --salt or set salt in the config file")

	// ErrNoTagRules is returned when de-identification is enabled without a tag rule table.
	ErrNoTagRules = errors.New("no tag rules specified: use --tag-rules or set tag_rules in the config file")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidHashAlgorithm is returned for an unknown digest name.
	ErrInvalidHashAlgorithm = errors.New("invalid hash algorithm: must be sha1 or blake2b-160")

	// ErrInvalidCacheScope is returned for an unknown date shift cache scope.
	ErrInvalidCacheScope = errors.New("invalid cache scope: must be date or patient")

	// ErrInvalidRedactionPolicy is returned for an unknown redaction policy.
	ErrInvalidRedactionPolicy = errors.New("invalid redaction policy: must be first-match or union")

	// ErrConflictingModes is returned when --raw and --no-sort are combined,
	// which would release files that were neither screened nor scrubbed.
	ErrConflictingModes = errors.New("conflicting modes: --raw and --no-sort cannot be used together")

	// ErrConflictingReportFormats is returned when more than one report
	// format is requested.
	ErrConflictingReportFormats = errors.New("conflicting report formats: choose one of --markdown or --json")
)
