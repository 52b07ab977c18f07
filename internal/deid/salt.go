package deid

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// SaltOption configures LoadSalt.
type SaltOption func(*saltOptions)

type saltOptions struct {
	keepLineBreak bool
}

// WithLineBreak keeps the trailing line break of the first line as part
// of the salt. Hashes and date shifts then match data released by tools
// that read the salt line verbatim.
func WithLineBreak() SaltOption {
	return func(o *saltOptions) {
		o.keepLineBreak = true
	}
}

// LoadSalt reads the salt from the first line of the file at path. The
// trailing line break is not part of the salt unless WithLineBreak is
// given. A missing file or an empty first line returns
// model.ErrMissingSalt.
func LoadSalt(path string, opts ...SaltOption) ([]byte, error) {
	var o saltOptions
	for _, opt := range opts {
		opt(&o)
	}

	if path == "" {
		return nil, fmt.Errorf("%w: no salt file configured", model.ErrMissingSalt)
	}

	f, err := os.Open(path) //nolint:gosec // User-provided salt path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrMissingSalt, err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("%w: %s is empty", model.ErrMissingSalt, path)
	}

	salt := strings.TrimRight(line, "\r\n")
	if salt == "" {
		return nil, fmt.Errorf("%w: %s is empty", model.ErrMissingSalt, path)
	}
	if o.keepLineBreak {
		return []byte(line), nil
	}
	return []byte(salt), nil
}
