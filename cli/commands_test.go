package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jack-avery/srpk/vault"
	"github.com/pkg/errors"
)

const master = "masterpw"

type harness struct {
	t     *testing.T
	dir   string
	cfg   *Config
	cb    *fakeClipboard
	clip  *Clipper
	picks []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cb := &fakeClipboard{}
	return &harness{
		t:   t,
		dir: dir,
		cfg: &Config{
			DebugLevel:  defaultLogLevel,
			Cost:        vault.MinCost,
			ClearAfter:  time.Hour,
			pointerFile: filepath.Join(dir, "conf", pointerFilename),
		},
		cb:   cb,
		clip: NewClipper(cb, time.Hour),
	}
}

// run executes one command the way a fresh process would: the pointer is
// re-read and input holds every line the user types.
func (h *harness) run(input string, args ...string) (string, error) {
	h.t.Helper()
	active, err := readPointer(h.cfg.pointerFile)
	if err != nil {
		h.t.Fatal(err)
	}
	h.cfg.active = active

	var out bytes.Buffer
	app := NewApp(h.cfg, newLinePrompter(strings.NewReader(input), io.Discard), h.clip, &out)
	app.pick = func(names []string) (string, error) {
		h.picks = names
		if len(names) == 0 {
			return "", nil
		}
		return names[len(names)-1], nil
	}
	err = app.Run(args)
	return out.String(), err
}

func (h *harness) mustRun(input string, args ...string) string {
	h.t.Helper()
	out, err := h.run(input, args...)
	if err != nil {
		h.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

func TestCommandsScenario(t *testing.T) {
	h := newHarness(t)
	vaultBase := filepath.Join(h.dir, "vault1")

	out := h.mustRun(lines(master, master), "init", vaultBase)
	if !strings.Contains(out, "successfully created new vault at "+vaultBase+".db") {
		t.Fatalf("init output %q", out)
	}
	if !strings.Contains(out, "active vault is now "+vaultBase+".db") {
		t.Fatalf("first vault did not become active: %q", out)
	}

	if out := h.mustRun("", "which"); strings.TrimSpace(out) != vaultBase+".db" {
		t.Fatalf("which = %q", out)
	}
	if out := h.mustRun(lines(master), "ls"); strings.TrimSpace(out) != "vault is empty" {
		t.Fatalf("ls = %q", out)
	}

	out = h.mustRun(lines(master, "bar123", "bar123"), "mk", "foo")
	if strings.TrimSpace(out) != "successfully added new key foo" {
		t.Fatalf("mk = %q", out)
	}
	h.mustRun(lines(master, "zz", "zz"), "mk", "alpha")
	if out := h.mustRun(lines(master), "ls"); strings.TrimSpace(out) != "keys in vault: alpha, foo" {
		t.Fatalf("ls = %q", out)
	}

	out = h.mustRun(lines(master), "foo")
	if !strings.Contains(out, "pass has been put into clipboard") {
		t.Fatalf("get = %q", out)
	}
	if got := h.cb.get(); got != "bar123" {
		t.Fatalf("clipboard holds %q", got)
	}
	if err := h.clip.Clear(); err != nil {
		t.Fatal(err)
	}
	if got := h.cb.get(); got != "" {
		t.Fatalf("clipboard holds %q after clear", got)
	}

	h.mustRun(lines(master), "get", "alpha")
	if got := h.cb.get(); got != "zz" {
		t.Fatalf("clipboard holds %q", got)
	}

	if out := h.mustRun(lines(master), "rm", "foo"); strings.TrimSpace(out) != "successfully removed key foo" {
		t.Fatalf("rm = %q", out)
	}
	_, err := h.run(lines(master), "foo")
	if !errors.Is(err, vault.ErrNotFound) || ExitCode(err) != 5 {
		t.Fatalf("get after rm: %v", err)
	}
	if out := h.mustRun(lines(master), "ls"); strings.TrimSpace(out) != "keys in vault: alpha" {
		t.Fatalf("ls = %q", out)
	}
}

func TestCommandsMakeExisting(t *testing.T) {
	h := newHarness(t)
	h.mustRun(lines(master, master), "init", filepath.Join(h.dir, "v"))
	h.mustRun(lines(master, "one", "one"), "mk", "foo")

	// Only the master password is consumed; the secret is never asked for.
	_, err := h.run(lines(master, "two", "two"), "mk", "foo")
	if !errors.Is(err, vault.ErrAlreadyExists) || ExitCode(err) != 4 {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	h.cfg.Force = true
	out := h.mustRun(lines(master, "two", "two"), "mk", "foo")
	if strings.TrimSpace(out) != "successfully stored key foo" {
		t.Fatalf("mk -f = %q", out)
	}
	h.cfg.Force = false

	h.mustRun(lines(master), "foo")
	if got := h.cb.get(); got != "two" {
		t.Fatalf("clipboard holds %q, want overwritten secret", got)
	}
}

func TestCommandsMakeRejectsBadSecret(t *testing.T) {
	h := newHarness(t)
	h.mustRun(lines(master, master), "init", filepath.Join(h.dir, "v"))

	tests := []struct {
		name  string
		input string
	}{
		{"mismatch", lines(master, "one", "two")},
		{"empty", lines(master, "", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(tt.input, "mk", "foo")
			if !errors.Is(err, vault.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
	if out := h.mustRun(lines(master), "ls"); strings.TrimSpace(out) != "vault is empty" {
		t.Fatalf("rejected secret was stored: %q", out)
	}
}

func TestCommandsWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.mustRun(lines(master, master), "init", filepath.Join(h.dir, "v"))
	h.mustRun(lines(master, "bar123", "bar123"), "mk", "foo")

	for _, args := range [][]string{{"ls"}, {"foo"}, {"rm", "foo"}, {"mk", "baz"}} {
		_, err := h.run(lines("wrong", "x", "x"), args...)
		if !errors.Is(err, vault.ErrAuthFailed) || ExitCode(err) != 6 {
			t.Fatalf("%v: expected ErrAuthFailed, got %v", args, err)
		}
	}
	if got := h.cb.get(); got != "" {
		t.Fatalf("clipboard written after failed unlock: %q", got)
	}
	if out := h.mustRun(lines(master), "ls"); strings.TrimSpace(out) != "keys in vault: foo" {
		t.Fatalf("ls = %q", out)
	}
}

func TestCommandsInitSecondVault(t *testing.T) {
	h := newHarness(t)
	first := filepath.Join(h.dir, "first.db")
	second := filepath.Join(h.dir, "second.db")
	h.mustRun(lines(master, master), "init", first)

	out := h.mustRun(lines("other", "other"), "init", second)
	if strings.Contains(out, "active vault is now") {
		t.Fatalf("second init changed the active vault: %q", out)
	}
	if out := h.mustRun("", "which"); strings.TrimSpace(out) != first {
		t.Fatalf("which = %q", out)
	}

	out = h.mustRun("", "use", second)
	if strings.TrimSpace(out) != "active vault is now "+second {
		t.Fatalf("use = %q", out)
	}
	if out := h.mustRun(lines("other"), "ls"); strings.TrimSpace(out) != "vault is empty" {
		t.Fatalf("ls = %q", out)
	}

	_, err := h.run(lines(master, master), "init", first)
	if !errors.Is(err, vault.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCommandsVaultOverride(t *testing.T) {
	h := newHarness(t)
	first := filepath.Join(h.dir, "first.db")
	second := filepath.Join(h.dir, "second.db")
	h.mustRun(lines(master, master), "init", first)
	h.mustRun(lines("other", "other"), "init", second)

	h.cfg.Vault = second
	h.mustRun(lines("other", "s", "s"), "mk", "only-in-second")
	h.cfg.Vault = ""

	if out := h.mustRun(lines(master), "ls"); strings.TrimSpace(out) != "vault is empty" {
		t.Fatalf("active vault was modified: %q", out)
	}
}

func TestCommandsUseInvalid(t *testing.T) {
	h := newHarness(t)
	notVault := filepath.Join(h.dir, "notes.txt")
	if err := os.WriteFile(notVault, []byte("just some text, not a database"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := h.run("", "use", notVault)
	if !errors.Is(err, vault.ErrCorrupt) || ExitCode(err) != 7 {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	_, err = h.run("", "use", filepath.Join(h.dir, "missing.db"))
	if !errors.Is(err, vault.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if out := h.mustRun("", "which"); strings.TrimSpace(out) != "no active vault" {
		t.Fatalf("which = %q", out)
	}
}

func TestCommandsNoActiveVault(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{{"ls"}, {"foo"}, {"rm", "foo"}, {"mk", "foo"}, {"browse"}} {
		_, err := h.run(lines(master), args...)
		if !errors.Is(err, vault.ErrNotFound) {
			t.Fatalf("%v: expected ErrNotFound, got %v", args, err)
		}
	}
}

func TestCommandsUsage(t *testing.T) {
	h := newHarness(t)
	for _, action := range []string{"init", "use", "mk", "rm", "get"} {
		_, err := h.run("", action)
		if !errors.Is(err, ErrUsage) || ExitCode(err) != 2 {
			t.Fatalf("%s: expected usage error, got %v", action, err)
		}
	}

	for _, args := range [][]string{nil, {"help"}} {
		out := h.mustRun("", args...)
		if !strings.Contains(out, "mk <key>") || !strings.Contains(out, "cleared 1h0m0s after a copy") ||
			!strings.Contains(out, "stays running until then") {
			t.Fatalf("help = %q", out)
		}
	}
}

func TestCommandsBrowse(t *testing.T) {
	h := newHarness(t)
	h.mustRun(lines(master, master), "init", filepath.Join(h.dir, "v"))

	if out := h.mustRun(lines(master), "browse"); strings.TrimSpace(out) != "vault is empty" {
		t.Fatalf("browse = %q", out)
	}

	h.mustRun(lines(master, "a-secret", "a-secret"), "mk", "alpha")
	h.mustRun(lines(master, "g-secret", "g-secret"), "mk", "gamma")

	out := h.mustRun(lines(master), "browse")
	if !strings.HasPrefix(out, "gamma has been put into clipboard") {
		t.Fatalf("browse = %q", out)
	}
	if strings.Join(h.picks, ",") != "alpha,gamma" {
		t.Fatalf("picker was shown %v", h.picks)
	}
	if got := h.cb.get(); got != "g-secret" {
		t.Fatalf("clipboard holds %q", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{errors.Wrap(ErrUsage, "mk"), 2},
		{errors.Wrap(vault.ErrInvalidConfig, "cost"), 3},
		{errors.Wrap(vault.ErrAlreadyExists, "key"), 4},
		{vault.ErrNotFound, 5},
		{vault.ErrAuthFailed, 6},
		{errors.Wrap(vault.ErrCorrupt, "meta"), 7},
		{errors.Wrapf(vault.ErrDecryptionFailed, "entry %q", "foo"), 8},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCommandsVaultNameWithURIChars(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "my#vault?.db")
	h.mustRun(lines(master, master), "init", path)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("vault not at %s: %v", path, err)
	}
	h.mustRun(lines(master, "s", "s"), "mk", "foo")
	if out := h.mustRun(lines(master), "ls"); strings.TrimSpace(out) != "keys in vault: foo" {
		t.Fatalf("ls = %q", out)
	}
}
