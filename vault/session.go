package vault

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Session is an unlocked vault. It owns the entry key for as long as it is
// open; Close wipes the key and releases the store. A closed session is
// locked for good and every operation returns ErrLocked.
type Session struct {
	store *Store
	key   []byte
	aad   []byte
}

// Create initialises a new vault at path protected by password. The salt
// and cost chosen here are fixed for the life of the vault.
func Create(path string, password []byte, cost int) error {
	if err := ValidateCost(cost); err != nil {
		return err
	}
	salt, err := randBytes(SaltLen)
	if err != nil {
		return err
	}

	start := time.Now()
	keys, err := DeriveKeys(password, salt, cost)
	if err != nil {
		return err
	}
	defer keys.Zero()
	log.Debugf("Derived keys at cost %d in %v", cost, time.Since(start))

	store, err := CreateStore(path, Meta{
		Version:   FormatVersion,
		VaultID:   uuid.New().String(),
		KDF:       KDFArgon2id,
		Cost:      cost,
		Salt:      salt,
		Verifier:  keys.Verifier,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	log.Infof("Created vault %s", path)
	return store.Close()
}

// Unlock opens the vault at path and checks password against the stored
// verifier. On any failure nothing stays open and no key survives.
func Unlock(path string, password []byte) (*Session, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	m := store.Meta()

	start := time.Now()
	keys, err := DeriveKeys(password, m.Salt, m.Cost)
	if err != nil {
		store.Close()
		return nil, err
	}
	log.Debugf("Derived keys at cost %d in %v", m.Cost, time.Since(start))

	if err := checkVerifier(m.Verifier, keys.Verifier); err != nil {
		keys.Zero()
		store.Close()
		log.Warnf("Rejected unlock attempt for %s", path)
		return nil, err
	}

	zero(keys.Verifier)
	return &Session{
		store: store,
		key:   keys.EntryKey,
		aad:   []byte(m.VaultID + "\x00"),
	}, nil
}

// WithSession unlocks the vault, hands the session to fn, and closes it on
// every return path.
func WithSession(path string, password []byte, fn func(s *Session) error) (err error) {
	s, err := Unlock(path, password)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func (s *Session) unlocked() error {
	if s == nil || s.key == nil {
		return ErrLocked
	}
	return nil
}

// entryAAD binds a blob to this vault and to the entry name.
func (s *Session) entryAAD(name string) []byte {
	aad := make([]byte, 0, len(s.aad)+len(name))
	aad = append(aad, s.aad...)
	return append(aad, name...)
}

func (s *Session) Path() string {
	if s == nil || s.store == nil {
		return ""
	}
	return s.store.Path()
}

// Put encrypts secret and stores it under name.
func (s *Session) Put(name string, secret []byte, overwrite bool) error {
	if err := s.unlocked(); err != nil {
		return err
	}
	if name == "" {
		return errors.Wrap(ErrInvalidConfig, "empty entry name")
	}
	blob, err := Seal(s.key, secret, s.entryAAD(name))
	if err != nil {
		return err
	}
	if err := s.store.PutEntry(name, blob, overwrite); err != nil {
		return err
	}
	log.Debugf("Stored entry %q", name)
	return nil
}

// Get decrypts the secret stored under name. The caller should Zero the
// result once done with it.
func (s *Session) Get(name string) ([]byte, error) {
	if err := s.unlocked(); err != nil {
		return nil, err
	}
	e, err := s.store.GetEntry(name)
	if err != nil {
		return nil, err
	}
	secret, err := Open(s.key, e.Ciphertext, s.entryAAD(name))
	if err != nil {
		return nil, errors.Wrapf(err, "entry %q", name)
	}
	return secret, nil
}

// Exists reports whether an entry called name is stored, without decrypting
// it.
func (s *Session) Exists(name string) (bool, error) {
	if err := s.unlocked(); err != nil {
		return false, err
	}
	_, err := s.store.GetEntry(name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes the entry called name.
func (s *Session) Delete(name string) error {
	if err := s.unlocked(); err != nil {
		return err
	}
	if err := s.store.DeleteEntry(name); err != nil {
		return err
	}
	log.Debugf("Deleted entry %q", name)
	return nil
}

// List returns entry names only.
func (s *Session) List() ([]string, error) {
	if err := s.unlocked(); err != nil {
		return nil, err
	}
	return s.store.ListNames()
}

// Close wipes the entry key and closes the store. It is safe to call more
// than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	zero(s.key)
	s.key = nil
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}
