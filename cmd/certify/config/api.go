package config

import (
	"github.com/pkg/errors"

	"github.com/typely/certify/api/adminapi"
	"github.com/typely/certify/storage"
)

// apiConf configures the admin api; it is served on the main server unless
// admin.port is set
type apiConf struct {
	Admin adminAPIConf `yaml:"admin"`
}

type adminAPIConf struct {
	Enabled        bool                   `yaml:"enabled"`
	UsersEnabled   bool                   `yaml:"users_enabled"`
	Port           int                    `yaml:"port"`
	Argon2idParams storage.Argon2idParams `yaml:"password_hashing"`
}

var defaultAPIConf = apiConf{
	Admin: adminAPIConf{
		Enabled:      true,
		UsersEnabled: true,
		Argon2idParams: storage.Argon2idParams{
			Time:        1,
			MemoryKiB:   64 * 1024,
			Parallelism: 4,
			KeyLen:      64,
			SaltLen:     32,
		},
	},
}

func (c *apiConf) validate() error {
	a := c.Admin
	if a.Port < 0 || a.Port > 65535 {
		return errors.Errorf("invalid admin port %d", a.Port)
	}
	h := a.Argon2idParams
	if h.Time == 0 || h.Parallelism == 0 {
		return errors.New("password_hashing: time and parallelism must be positive")
	}
	if h.MemoryKiB < 8*uint32(h.Parallelism) {
		return errors.New("password_hashing: memory_kib must be at least 8 times parallelism")
	}
	if h.KeyLen < 16 || h.SaltLen < 8 {
		return errors.New("password_hashing: key_len must be at least 16 and salt_len at least 8")
	}
	return nil
}

// AdminOptions returns the options for the admin api or nil if it is
// disabled
func (c apiConf) AdminOptions() *adminapi.Options {
	if !c.Admin.Enabled {
		return nil
	}
	return &adminapi.Options{UsersEnabled: c.Admin.UsersEnabled}
}
