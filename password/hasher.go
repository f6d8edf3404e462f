package password

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned by Hash for an empty input.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrUnknownAlgorithm is returned by New for an unsupported algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown password hashing algorithm")
)

// Hasher is the salted, slow password hashing contract used by authcore.
type Hasher interface {
	Hash(raw string) (string, error)
	Matches(raw, digest string) bool
}

// Upgrader is implemented by hashers that can tell when a stored digest was
// produced with weaker parameters than the current ones.
type Upgrader interface {
	NeedsUpgrade(digest string) (bool, error)
}

// Algorithm names accepted by New.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Options selects and tunes a Hasher.
type Options struct {
	Algorithm  string
	Pepper     string
	BcryptCost int
	Argon2     Config
}

// New builds the hasher named by opts.Algorithm. An empty name selects bcrypt.
func New(opts Options) (Hasher, error) {
	switch opts.Algorithm {
	case "", AlgorithmBcrypt:
		return NewBcrypt(opts.BcryptCost, opts.Pepper)
	case AlgorithmArgon2id:
		cfg := opts.Argon2
		cfg.Pepper = opts.Pepper
		return NewArgon2(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, opts.Algorithm)
	}
}

// Bcrypt hashes peppered passwords with bcrypt.
//
// The peppered input is first reduced to a base64 SHA-256 digest (44 bytes), so
// passwords of any length stay below the 72-byte bcrypt input limit.
type Bcrypt struct {
	cost   int
	pepper string
}

// NewBcrypt returns a Bcrypt hasher. A zero cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int, pepper string) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost, pepper: pepper}, nil
}

// Hash returns a bcrypt digest of raw with the pepper appended.
func (b *Bcrypt) Hash(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptyPassword
	}
	h, err := bcrypt.GenerateFromPassword(b.prepare(raw), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Matches reports whether raw, peppered, produces digest.
func (b *Bcrypt) Matches(raw, digest string) bool {
	if raw == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), b.prepare(raw)) == nil
}

// NeedsUpgrade reports whether digest was produced with a lower cost.
func (b *Bcrypt) NeedsUpgrade(digest string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false, err
	}
	return cost < b.cost, nil
}

func (b *Bcrypt) prepare(raw string) []byte {
	sum := sha256.Sum256([]byte(raw + b.pepper))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
