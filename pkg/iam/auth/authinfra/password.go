package authinfra

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxBytes is the input length bcrypt silently truncates at
const bcryptMaxBytes = 72

// PasswordService hashes with bcrypt and verifies bcrypt or argon2id (PHC) hashes.
type PasswordService struct {
	cost int
	// dummyHash is compared against when there is no stored hash so the
	// response time does not reveal whether an account exists
	dummyHash []byte
}

func NewBcryptPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	s := &PasswordService{cost: cost}

	seed := make([]byte, 16)
	rand.Read(seed)
	dummy, err := bcrypt.GenerateFromPassword(seed, cost)
	if err == nil {
		s.dummyHash = dummy
	}
	return s
}

// Hash rejects empty and over-long passwords instead of truncating them
func (s *PasswordService) Hash(plain string) (string, error) {
	if plain == "" {
		return "", auth.ErrWeakPassword("empty")
	}
	if len(plain) > bcryptMaxBytes {
		return "", auth.ErrWeakPassword("longer than 72 bytes")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), s.cost)
	if err != nil {
		return "", auth.ErrPasswordHashFailed(err)
	}
	return string(h), nil
}

// Verify compares in constant time. Unknown formats, malformed hashes and
// empty input all return false.
func (s *PasswordService) Verify(plain, hash string) bool {
	switch {
	case hash == "":
		if s.dummyHash != nil {
			bcrypt.CompareHashAndPassword(s.dummyHash, []byte(plain))
		}
		return false
	case strings.HasPrefix(hash, "$argon2id$"):
		return verifyArgon2id(plain, hash)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
	default:
		return false
	}
}

// verifyArgon2id parses $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
func verifyArgon2id(plain, phc string) bool {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[2] != "v=19" {
		return false
	}

	var m, t, p uint64
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return false
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return false
		}
		switch k {
		case "m":
			m = n
		case "t":
			t = n
		case "p":
			p = n
		}
	}
	if m == 0 || t == 0 || p == 0 || p > 255 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	stored, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(stored) == 0 {
		return false
	}

	key := argon2.IDKey([]byte(plain), salt, uint32(t), uint32(m), uint8(p), uint32(len(stored)))
	return subtle.ConstantTimeCompare(key, stored) == 1
}
