package cli

import (
	"fmt"

	"github.com/jack-avery/srpk/vault"
	"github.com/pkg/errors"
)

// makeEntry handles mk: unlock first so a wrong master password fails before
// the new secret is typed, then ask for the secret twice and store it.
func (a *App) makeEntry(name string) error {
	err := a.withVault(func(s *vault.Session) error {
		if !a.cfg.Force {
			exists, err := s.Exists(name)
			if err != nil {
				return err
			}
			if exists {
				return errors.Wrapf(vault.ErrAlreadyExists, "key %s (use -f to overwrite)", name)
			}
		}
		secret, err := a.prompt.ReadNewPassword("new password to add")
		if err != nil {
			return err
		}
		defer vault.Zero(secret)
		if len(secret) == 0 {
			return errors.Wrap(vault.ErrInvalidConfig, "empty password")
		}
		return s.Put(name, secret, a.cfg.Force)
	})
	if err != nil {
		return err
	}
	if a.cfg.Force {
		fmt.Fprintf(a.out, "successfully stored key %s\n", name)
		return nil
	}
	fmt.Fprintf(a.out, "successfully added new key %s\n", name)
	return nil
}
