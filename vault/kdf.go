package vault

import (
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	argonTime    = 3
	argonThreads = 1

	verifierInfo = "srpk verifier v1"
	entryKeyInfo = "srpk entry key v1"
)

// Keys holds the material expanded from one master password. The verifier is
// what gets persisted; the entry key never leaves memory.
type Keys struct {
	Verifier []byte
	EntryKey []byte
}

func (k *Keys) Zero() {
	if k == nil {
		return
	}
	zero(k.Verifier)
	zero(k.EntryKey)
}

// ValidateCost reports ErrInvalidConfig for a cost outside [MinCost, MaxCost].
func ValidateCost(cost int) error {
	if cost < MinCost || cost > MaxCost {
		return errors.Wrapf(ErrInvalidConfig, "cost %d not in [%d, %d]", cost, MinCost, MaxCost)
	}
	return nil
}

// DeriveKeys runs argon2id over password and salt with 2^cost KiB of memory,
// then expands the result into a verifier and an entry key with HKDF-SHA256.
// The same inputs always produce the same keys.
func DeriveKeys(password, salt []byte, cost int) (*Keys, error) {
	if err := ValidateCost(cost); err != nil {
		return nil, err
	}
	if len(salt) < SaltLen {
		return nil, errors.Wrapf(ErrInvalidConfig, "salt must be at least %d bytes", SaltLen)
	}

	master := argon2.IDKey(password, salt, argonTime, 1<<uint(cost), argonThreads, MasterKeyLen)
	defer zero(master)

	verifier, err := expand(master, verifierInfo)
	if err != nil {
		return nil, err
	}
	entryKey, err := expand(master, entryKeyInfo)
	if err != nil {
		zero(verifier)
		return nil, err
	}
	return &Keys{Verifier: verifier, EntryKey: entryKey}, nil
}

func expand(master []byte, info string) ([]byte, error) {
	h := hkdf.New(sha256.New, master, nil, []byte(info))
	out := make([]byte, SubKeyLen)
	if _, err := io.ReadFull(h, out); err != nil {
		zero(out)
		return nil, errors.Wrap(err, "hkdf expand")
	}
	return out, nil
}

func checkVerifier(stored, candidate []byte) error {
	if subtle.ConstantTimeCompare(stored, candidate) != 1 {
		return ErrAuthFailed
	}
	return nil
}
