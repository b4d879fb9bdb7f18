package vault

import (
	"time"

	"github.com/pkg/errors"
)

const (
	SaltLen       = 16
	SubKeyLen     = 32
	MasterKeyLen  = 32
	NonceLen      = 24
	FormatVersion = 1
	KDFArgon2id   = "argon2id"

	// Cost is the base-2 logarithm of the argon2id memory size in KiB.
	MinCost     = 10
	MaxCost     = 21
	DefaultCost = 16
)

var (
	ErrInvalidConfig    = errors.New("vault: invalid configuration")
	ErrAlreadyExists    = errors.New("vault: already exists")
	ErrNotFound         = errors.New("vault: not found")
	ErrAuthFailed       = errors.New("vault: authentication failed")
	ErrCorrupt          = errors.New("vault: corrupt file")
	ErrDecryptionFailed = errors.New("vault: decryption failed")
	ErrLocked           = errors.New("vault: locked")
)

// Entry is one stored row. Ciphertext is the sealed blob, never plaintext.
type Entry struct {
	Name       string
	Ciphertext []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Meta is the verification and configuration record of a vault.
type Meta struct {
	Version   int
	VaultID   string
	KDF       string
	Cost      int
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}

func (m *Meta) validate() error {
	switch {
	case m.Version != FormatVersion:
		return errors.New("unsupported format version")
	case m.KDF != KDFArgon2id:
		return errors.New("unsupported kdf")
	case m.VaultID == "":
		return errors.New("missing vault id")
	case m.Cost < MinCost || m.Cost > MaxCost:
		return errors.New("cost out of range")
	case len(m.Salt) != SaltLen:
		return errors.New("bad salt length")
	case len(m.Verifier) != SubKeyLen:
		return errors.New("bad verifier length")
	}
	return nil
}
