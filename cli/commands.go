package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jack-avery/srpk/vault"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// ErrUsage is returned when a command is missing its argument.
var ErrUsage = errors.New("usage")

const helpText = `create or target a vault:
    init <vault>    create a new vault at <vault> (".db" is appended if missing)
    use <vault>     set <vault> as the active vault
    which           show which vault is currently active

work with the active vault:
    ls              list the keys in the vault
    mk <key>        create a new password named <key> (-f to overwrite)
    rm <key>        remove the password named <key>
    get <key>       copy the password named <key> to the clipboard
    browse          pick a password interactively and copy it
    <key>           same as get <key>

the clipboard is cleared %v after a copy; srpk stays running until then
(ctrl-c clears it at once)`

// App runs one srpk command against its configuration.
type App struct {
	cfg    *Config
	prompt *Prompter
	clip   *Clipper
	out    io.Writer

	// pick chooses an entry name for browse.
	pick func(names []string) (string, error)
}

// NewApp returns an App that talks to the user through prompt and out.
func NewApp(cfg *Config, prompt *Prompter, clip *Clipper, out io.Writer) *App {
	return &App{
		cfg:    cfg,
		prompt: prompt,
		clip:   clip,
		out:    out,
		pick:   runBrowser,
	}
}

// Help writes the command summary.
func (a *App) Help() {
	fmt.Fprintf(a.out, helpText+"\n", a.clip.After())
}

// Run dispatches args to a command.
func (a *App) Run(args []string) error {
	if len(args) == 0 {
		a.Help()
		return nil
	}
	action, args := args[0], args[1:]
	param := func() (string, error) {
		if len(args) == 0 || args[0] == "" {
			return "", errors.Wrapf(ErrUsage, "%s: missing parameter", action)
		}
		return args[0], nil
	}

	log.Debugf("Running %s", action)
	switch action {
	case "help":
		a.Help()
		return nil
	case "which":
		return a.which()
	case "ls":
		return a.list()
	case "browse":
		return a.browse()
	case "init", "use", "mk", "rm", "get":
		p, err := param()
		if err != nil {
			return err
		}
		switch action {
		case "init":
			return a.initVault(p)
		case "use":
			return a.useVault(p)
		case "mk":
			return a.makeEntry(p)
		case "rm":
			return a.removeEntry(p)
		default:
			return a.getEntry(p)
		}
	default:
		return a.getEntry(action)
	}
}

func (a *App) withVault(fn func(s *vault.Session) error) error {
	path, err := a.cfg.VaultPath()
	if err != nil {
		return err
	}
	pw, err := a.prompt.ReadPassword("password for active vault")
	if err != nil {
		return err
	}
	defer vault.Zero(pw)
	return vault.WithSession(path, pw, fn)
}

func (a *App) initVault(path string) error {
	path = cleanAndExpandPath(path)
	if !strings.HasSuffix(path, ".db") {
		path += ".db"
	}
	pw, err := a.prompt.ReadNewPassword("password for the new vault")
	if err != nil {
		return err
	}
	defer vault.Zero(pw)

	if err := vault.Create(path, pw, a.cfg.Cost); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "successfully created new vault at %s\n", path)

	if a.cfg.Active() == "" {
		return a.useVault(path)
	}
	return nil
}

func (a *App) useVault(path string) error {
	path = cleanAndExpandPath(path)
	// Opening the store checks the file really is a vault; no key is needed.
	store, err := vault.OpenStore(path)
	if err != nil {
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}

	abs, err := writePointer(a.cfg.pointerFile, path)
	if err != nil {
		return err
	}
	a.cfg.active = abs
	fmt.Fprintf(a.out, "active vault is now %s\n", abs)
	return nil
}

func (a *App) which() error {
	if a.cfg.Active() == "" {
		fmt.Fprintln(a.out, "no active vault")
		return nil
	}
	fmt.Fprintln(a.out, a.cfg.Active())
	return nil
}

func (a *App) list() error {
	return a.withVault(func(s *vault.Session) error {
		names, err := s.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(a.out, "vault is empty")
			return nil
		}
		fmt.Fprintf(a.out, "keys in vault: %s\n", strings.Join(names, ", "))
		return nil
	})
}

func (a *App) removeEntry(name string) error {
	err := a.withVault(func(s *vault.Session) error {
		return s.Delete(name)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "successfully removed key %s\n", name)
	return nil
}

func (a *App) getEntry(name string) error {
	err := a.withVault(func(s *vault.Session) error {
		return a.copyEntry(s, name)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "pass has been put into clipboard, and will be cleared in %v\n", a.clip.After())
	return nil
}

func (a *App) copyEntry(s *vault.Session, name string) error {
	secret, err := s.Get(name)
	if err != nil {
		return err
	}
	defer vault.Zero(secret)
	return a.clip.Copy(secret)
}

func (a *App) browse() error {
	var chosen string
	err := a.withVault(func(s *vault.Session) error {
		names, err := s.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(a.out, "vault is empty")
			return nil
		}
		chosen, err = a.pick(names)
		if err != nil || chosen == "" {
			return err
		}
		return a.copyEntry(s, chosen)
	})
	if err != nil || chosen == "" {
		return err
	}
	fmt.Fprintf(a.out, "%s has been put into clipboard, and will be cleared in %v\n", chosen, a.clip.After())
	return nil
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	var ferr *flags.Error
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	case errors.As(err, &ferr):
		if ferr.Type == flags.ErrHelp {
			return 0
		}
		return 2
	case errors.Is(err, vault.ErrInvalidConfig):
		return 3
	case errors.Is(err, vault.ErrAlreadyExists):
		return 4
	case errors.Is(err, vault.ErrNotFound):
		return 5
	case errors.Is(err, vault.ErrAuthFailed):
		return 6
	case errors.Is(err, vault.ErrCorrupt):
		return 7
	case errors.Is(err, vault.ErrDecryptionFailed):
		return 8
	}
	return 1
}
