package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const phcPrefix = "$argon2id$v=19$"

// passwordHash is a parsed argon2id hash in PHC string format:
// $argon2id$v=19$m=<KiB>,t=<time>,p=<threads>$<salt>$<key>
type passwordHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (p Argon2idParams) orDefault() Argon2idParams {
	if p.Time == 0 || p.MemoryKiB == 0 {
		return Argon2idParams{
			Time:        1,
			MemoryKiB:   64 * 1024,
			Parallelism: 4,
			KeyLen:      32,
			SaltLen:     16,
		}
	}
	if p.Parallelism == 0 {
		p.Parallelism = 1
	}
	if p.KeyLen == 0 {
		p.KeyLen = 32
	}
	if p.SaltLen == 0 {
		p.SaltLen = 16
	}
	return p
}

func newPasswordHash(password string, params Argon2idParams) (*passwordHash, error) {
	params = params.orDefault()
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "could not generate salt")
	}
	return &passwordHash{
		params: params,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen),
	}, nil
}

func parsePasswordHash(encoded string) (*passwordHash, error) {
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return nil, errors.New("unsupported password hash format")
	}
	parts := strings.Split(rest, "$")
	if len(parts) != 3 {
		return nil, errors.New("malformed password hash")
	}
	h := &passwordHash{}
	if _, err := fmt.Sscanf(
		parts[0], "m=%d,t=%d,p=%d", &h.params.MemoryKiB, &h.params.Time, &h.params.Parallelism,
	); err != nil {
		return nil, errors.Wrap(err, "malformed password hash parameters")
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[1]); err != nil {
		return nil, errors.Wrap(err, "malformed password hash salt")
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[2]); err != nil {
		return nil, errors.Wrap(err, "malformed password hash key")
	}
	h.params.SaltLen = uint32(len(h.salt))
	h.params.KeyLen = uint32(len(h.key))
	return h, nil
}

func (h *passwordHash) String() string {
	return fmt.Sprintf(
		"%sm=%d,t=%d,p=%d$%s$%s", phcPrefix,
		h.params.MemoryKiB, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func (h *passwordHash) matches(password string) bool {
	p := h.params
	key := argon2.IDKey([]byte(password), h.salt, p.Time, p.MemoryKiB, p.Parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(key, h.key) == 1
}

// outdated reports whether the hash was made with other parameters than want
func (h *passwordHash) outdated(want Argon2idParams) bool {
	return h.params != want.orDefault()
}
