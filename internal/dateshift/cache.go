package dateshift

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// DateLayout is the DICOM DA format.
const DateLayout = "20060102"

// Offset bounds in days, inclusive.
const (
	MinOffsetDays = -1000
	MaxOffsetDays = 1000
)

// Scope selects what a cached shift is keyed by.
type Scope string

const (
	// ScopeDate keys the cache by the original date alone. The first patient
	// to present a date fixes its shift for the rest of the run, so equal
	// dates shift equally across patients.
	ScopeDate Scope = "date"

	// ScopePatient keys the cache by patient and date. Each patient keeps an
	// independent offset and intervals within a patient are preserved.
	ScopePatient Scope = "patient"
)

// ErrInvalidScope is returned by ParseScope for unknown names.
var ErrInvalidScope = errors.New("invalid cache scope")

// ParseScope converts a configuration string to a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(s)) {
	case "", ScopeDate:
		return ScopeDate, nil
	case ScopePatient:
		return ScopePatient, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
}

// Entry is one line of the shift legend.
type Entry struct {
	Original string
	Shifted  string
}

type cacheKey struct {
	patient string
	date    string
}

// Cache memoises date shifts for one run. It is safe for concurrent use;
// the lookup and insert of a date happen under one lock so concurrent
// callers never observe two different shifts for the same key.
type Cache struct {
	mu      sync.Mutex
	salt    []byte
	scope   Scope
	entries map[cacheKey]string
}

// Option configures a Cache.
type Option func(*Cache)

// WithScope sets the cache scope. The default is ScopeDate.
func WithScope(scope Scope) Option {
	return func(c *Cache) {
		c.scope = scope
	}
}

// New creates an empty cache using salt to seed per-patient offsets.
func New(salt []byte, opts ...Option) *Cache {
	c := &Cache{
		salt:    append([]byte(nil), salt...),
		scope:   ScopeDate,
		entries: make(map[cacheKey]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scope returns the configured scope.
func (c *Cache) Scope() Scope {
	return c.scope
}

// OffsetDays returns the deterministic offset for a patient, in
// [MinOffsetDays, MaxOffsetDays]. The same patient key and salt always
// yield the same offset.
func (c *Cache) OffsetDays(patientKey string) int {
	seed := sha256.Sum256(append([]byte(patientKey), c.salt...))
	r := rand.New(rand.NewChaCha8(seed)) //nolint:gosec // Deterministic offsets are required
	return r.IntN(MaxOffsetDays-MinOffsetDays+1) + MinOffsetDays
}

// Shift returns the shifted form of a YYYYMMDD date for the given patient.
// A cached result is returned when present. Unparseable dates return
// model.ErrUnparseableDate and are not cached.
func (c *Cache) Shift(original, patientKey string) (string, error) {
	date := strings.TrimSpace(original)
	parsed, err := time.Parse(DateLayout, date)
	if err != nil || len(date) != len(DateLayout) {
		return "", fmt.Errorf("%w: %q", model.ErrUnparseableDate, original)
	}

	key := cacheKey{date: date}
	if c.scope == ScopePatient {
		key.patient = patientKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if shifted, ok := c.entries[key]; ok {
		return shifted, nil
	}
	shifted := parsed.AddDate(0, 0, c.OffsetDays(patientKey)).Format(DateLayout)
	c.entries[key] = shifted
	return shifted, nil
}

// Len returns the number of cached shifts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns the legend of original to shifted dates, sorted by
// original date. Patient keys are not included.
func (c *Cache) Snapshot() []Entry {
	c.mu.Lock()
	out := make([]Entry, 0, len(c.entries))
	for k, v := range c.entries {
		out = append(out, Entry{Original: k.date, Shifted: v})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Original != out[j].Original {
			return out[i].Original < out[j].Original
		}
		return out[i].Shifted < out[j].Shifted
	})
	return out
}
