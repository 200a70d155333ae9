package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordMismatch = errors.New("password does not match")
	ErrUnsupportedHash  = errors.New("unsupported password hash")
)

// BcryptCost matches the cost the admin provisioning scripts always used.
const BcryptCost = 12

type Algorithm string

const (
	AlgoBcrypt   Algorithm = "bcrypt"
	AlgoArgon2id Algorithm = "argon2id"
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Limits on parameters read back from a stored digest. A record outside
// them is refused before any key derivation runs.
const (
	minArgon2Memory     = 8 * 1024
	maxArgon2Memory     = 1024 * 1024
	maxArgon2Iterations = 64
	minArgon2Bytes      = 16
)

func (p Argon2Params) validate() error {
	switch {
	case p.Iterations == 0 || p.Iterations > maxArgon2Iterations:
		return fmt.Errorf("%w: argon2 t=%d", ErrUnsupportedHash, p.Iterations)
	case p.Parallelism == 0:
		return fmt.Errorf("%w: argon2 p=0", ErrUnsupportedHash)
	case p.Memory < minArgon2Memory || p.Memory < 8*uint32(p.Parallelism) || p.Memory > maxArgon2Memory:
		return fmt.Errorf("%w: argon2 m=%d", ErrUnsupportedHash, p.Memory)
	case p.SaltLength < minArgon2Bytes || p.KeyLength < minArgon2Bytes:
		return fmt.Errorf("%w: argon2 salt or key too short", ErrUnsupportedHash)
	}
	return nil
}

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	return Hash(AlgoBcrypt, plain)
}

func Hash(algo Algorithm, plain string) (string, error) {
	switch algo {
	case AlgoBcrypt, "":
		hash, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	case AlgoArgon2id:
		return hashArgon2id(plain, DefaultArgon2Params)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedHash, algo)
	}
}

// CheckPassword verifies plain against hash with whichever algorithm
// produced the hash. A mismatch is ErrPasswordMismatch, an unreadable hash
// is ErrUnsupportedHash.
func CheckPassword(hash, plain string) error {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return checkArgon2id(hash, plain)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
		}
		return nil
	default:
		return ErrUnsupportedHash
	}
}

func hashArgon2id(plain string, p Argon2Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func checkArgon2id(encoded, plain string) error {
	// $argon2id$v=19$m=65536,t=3,p=2$salt$key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return ErrUnsupportedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return ErrUnsupportedHash
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return ErrUnsupportedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrUnsupportedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return ErrUnsupportedHash
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(want))
	if err := p.validate(); err != nil {
		return err
	}

	got := argon2.IDKey([]byte(plain), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
