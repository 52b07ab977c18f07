package hasher

import (
	"crypto/sha1" //nolint:gosec // Digest length and algorithm are fixed by existing released datasets
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// Algorithm names accepted by New.
const (
	SHA1       = "sha1"
	BLAKE2b160 = "blake2b-160"
)

// digestSize is the output size in bytes of every supported algorithm.
// Both produce 40 hex characters.
const digestSize = 20

// ErrUnknownAlgorithm is returned by New for unsupported algorithm names.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Hasher produces deterministic hex digests of element values. It holds no
// state besides the algorithm and is safe for concurrent use.
type Hasher struct {
	algorithm string
	newHash   func() hash.Hash
}

// New returns a Hasher for the named algorithm. An empty name selects SHA1.
func New(algorithm string) (*Hasher, error) {
	switch algorithm {
	case "", SHA1:
		return &Hasher{algorithm: SHA1, newHash: sha1.New}, nil
	case BLAKE2b160:
		return &Hasher{algorithm: BLAKE2b160, newHash: func() hash.Hash {
			h, err := blake2b.New(digestSize, nil)
			if err != nil {
				panic(err) // size is a valid constant
			}
			return h
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}

// Algorithm returns the algorithm name.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Hash returns the hex digest of the value's bytes. Text is hashed as UTF-8
// with multiple values joined by "\", integers as decimal text, and raw
// bytes as they are. Other kinds return model.ErrInvalidInputKind.
func (h *Hasher) Hash(v model.Value) (string, error) {
	b, err := valueBytes(v)
	if err != nil {
		return "", err
	}
	return h.sum(b), nil
}

// HashIdentifier hashes an identifier such as PatientID. No salt is mixed
// in, so the same identifier maps to the same digest across runs.
func (h *Hasher) HashIdentifier(v model.Value) (string, error) {
	return h.Hash(v)
}

// HashAsUID returns "1.2.840.10008." followed by the decimal value of the
// digest of the value's text with salt appended.
func (h *Hasher) HashAsUID(v model.Value, salt []byte) (string, error) {
	b, err := valueBytes(v)
	if err != nil {
		return "", err
	}
	salted := make([]byte, 0, len(b)+len(salt))
	salted = append(salted, b...)
	salted = append(salted, salt...)

	n, ok := new(big.Int).SetString(h.sum(salted), 16)
	if !ok {
		return "", fmt.Errorf("digest is not hexadecimal: %w", model.ErrInvalidInputKind)
	}
	return model.UIDRoot + n.String(), nil
}

func (h *Hasher) sum(b []byte) string {
	d := h.newHash()
	_, _ = d.Write(b)
	return hex.EncodeToString(d.Sum(nil))
}

func valueBytes(v model.Value) ([]byte, error) {
	switch v.Kind() {
	case model.KindText:
		return []byte(v.String()), nil
	case model.KindInt:
		ints := v.Ints()
		if len(ints) == 1 {
			return []byte(strconv.Itoa(ints[0])), nil
		}
		return []byte(v.String()), nil
	case model.KindBytes:
		return v.Raw(), nil
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidInputKind, v.Kind())
	}
}
