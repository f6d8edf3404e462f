package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned when a stored digest is not a PHC string this
// hasher can verify.
var ErrMalformedHash = errors.New("malformed argon2id digest")

// Lower bounds for both configured and stored parameters.
const (
	argonMinMemoryKB = 8 * 1024
	argonMinBytes    = 16
)

// Config holds Argon2id cost parameters. Pepper is appended to every password
// before key derivation.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	Pepper      string
}

// DefaultArgon2Config returns parameters for interactive logins.
func DefaultArgon2Config() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < argonMinMemoryKB:
		return fmt.Errorf("argon2 memory must be at least %d KiB", argonMinMemoryKB)
	case c.Time < 1:
		return errors.New("argon2 time must be at least 1")
	case c.Parallelism < 1:
		return errors.New("argon2 parallelism must be at least 1")
	case c.SaltLength < argonMinBytes:
		return fmt.Errorf("argon2 salt length must be at least %d bytes", argonMinBytes)
	case c.KeyLength < argonMinBytes:
		return fmt.Errorf("argon2 key length must be at least %d bytes", argonMinBytes)
	}
	return nil
}

// Argon2 is the Argon2id Hasher.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns an Argon2 hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// digest is one decoded PHC string.
type digest struct {
	memory, time uint32
	threads      uint8
	salt, key    []byte
}

func (d digest) String() string {
	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, d.memory, d.time, d.threads,
		enc.EncodeToString(d.salt), enc.EncodeToString(d.key))
}

func (a *Argon2) derive(password string, salt []byte, memory, time uint32, threads uint8, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password+a.config.Pepper), salt, time, memory, threads, keyLen)
}

// Hash returns the PHC string for password. Bytes are used as given, without
// Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	c := a.config
	return digest{
		memory:  c.Memory,
		time:    c.Time,
		threads: c.Parallelism,
		salt:    salt,
		key:     a.derive(password, salt, c.Memory, c.Time, c.Parallelism, c.KeyLength),
	}.String(), nil
}

// Verify reports whether password matches encoded. Malformed digests return
// ErrMalformedHash.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	d, err := decodeDigest(encoded)
	if err != nil {
		return false, err
	}
	got := a.derive(password, d.salt, d.memory, d.time, d.threads, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(got, d.key) == 1, nil
}

// Matches is Verify with malformed digests treated as a mismatch.
func (a *Argon2) Matches(password, encoded string) bool {
	if password == "" {
		return false
	}
	ok, err := a.Verify(password, encoded)
	return err == nil && ok
}

// NeedsUpgrade reports whether encoded was produced with weaker costs or a
// different key length than the current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	d, err := decodeDigest(encoded)
	if err != nil {
		return false, err
	}
	c := a.config
	return d.memory < c.Memory || d.time < c.Time || d.threads < c.Parallelism ||
		uint32(len(d.key)) != c.KeyLength, nil
}

// decodeDigest parses $argon2id$v=19$m=..,t=..,p=..$salt$key. Salt and key
// accept padded and unpadded base64.
func decodeDigest(encoded string) (digest, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return digest{}, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return digest{}, fmt.Errorf("%w: version", ErrMalformedHash)
	}
	if version != argon2.Version {
		return digest{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedHash, version)
	}

	var d digest
	var threads uint32
	n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &d.memory, &d.time, &threads)
	if err != nil || n != 3 || fmt.Sprintf("m=%d,t=%d,p=%d", d.memory, d.time, threads) != fields[3] {
		return digest{}, fmt.Errorf("%w: parameters", ErrMalformedHash)
	}
	if d.memory < argonMinMemoryKB || d.time < 1 || threads < 1 || threads > 255 {
		return digest{}, fmt.Errorf("%w: parameters out of range", ErrMalformedHash)
	}
	d.threads = uint8(threads)

	if d.salt, err = decodeB64(fields[4]); err != nil || len(d.salt) < argonMinBytes {
		return digest{}, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if d.key, err = decodeB64(fields[5]); err != nil || len(d.key) == 0 {
		return digest{}, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return d, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
