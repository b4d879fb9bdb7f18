package cli

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jack-avery/srpk/vault"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultConfigDirname  = "srpk"
	defaultConfigFilename = "srpk.conf"
	pointerFilename       = ".srpkvault"
	defaultLogLevel       = "warn"
	defaultClearAfter     = 10 * time.Second
)

// Config contains the configuration read from the config file and the
// command line. Command line options win.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical, off}"`

	Vault      string        `long:"vault" description:"Vault to use instead of the active one"`
	Cost       int           `short:"c" long:"cost" description:"Key derivation cost for init: log2 of argon2id memory in KiB (10-21)"`
	Force      bool          `short:"f" long:"force" description:"Let mk overwrite an existing entry"`
	ClearAfter time.Duration `long:"clear" description:"How long a copied secret stays on the clipboard"`

	// pointerFile holds the path of the active vault. active is its content,
	// read once per invocation.
	pointerFile string
	active      string
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config")
	}
	return dir
}

func defaultConfig() Config {
	dir := configDir()
	return Config{
		ConfigFile:  filepath.Join(dir, defaultConfigDirname, defaultConfigFilename),
		DebugLevel:  defaultLogLevel,
		Cost:        vault.DefaultCost,
		ClearAfter:  defaultClearAfter,
		pointerFile: filepath.Join(dir, pointerFilename),
	}
}

// cleanAndExpandPath expands environment variables and a leading ~ in the
// passed path and cleans the result.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

func newParser(cfg *Config) *flags.Parser {
	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] <command> [key]"
	return parser
}

// LoadConfig initializes and parses the config using a config file and
// command line options, then reads the active vault pointer.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The remaining positional arguments are returned.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := defaultConfig()
	return loadConfig(&cfg, args)
}

func loadConfig(cfg *Config, args []string) (*Config, []string, error) {
	// Pre-parse so an alternative config file, -V and -h are seen first.
	preCfg := *cfg
	if _, err := newParser(&preCfg).ParseArgs(args); err != nil {
		return nil, nil, err
	}
	if preCfg.ShowVersion {
		return &preCfg, nil, nil
	}

	parser := newParser(cfg)
	configFile := cleanAndExpandPath(preCfg.ConfigFile)
	if err := flags.NewIniParser(parser).ParseFile(configFile); err != nil {
		if _, ok := err.(*os.PathError); !ok || preCfg.ConfigFile != cfg.ConfigFile {
			return nil, nil, errors.Wrapf(vault.ErrInvalidConfig, "config file %s: %v", configFile, err)
		}
		log.Debugf("No config file at %s", configFile)
	}

	remaining, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	if err := setLogLevels(cfg.DebugLevel); err != nil {
		return nil, nil, errors.Wrapf(vault.ErrInvalidConfig, "%v", err)
	}
	if err := vault.ValidateCost(cfg.Cost); err != nil {
		return nil, nil, err
	}
	if cfg.ClearAfter <= 0 {
		return nil, nil, errors.Wrapf(vault.ErrInvalidConfig, "clear delay must be positive, got %v", cfg.ClearAfter)
	}
	cfg.Vault = cleanAndExpandPath(cfg.Vault)

	active, err := readPointer(cfg.pointerFile)
	if err != nil {
		return nil, nil, err
	}
	cfg.active = active
	return cfg, remaining, nil
}

// VaultPath returns the vault that vault-scoped commands operate on: the
// --vault option if given, the active vault otherwise.
func (c *Config) VaultPath() (string, error) {
	if c.Vault != "" {
		return c.Vault, nil
	}
	if c.active == "" {
		return "", errors.Wrap(vault.ErrNotFound, "no active vault, run init or use first")
	}
	return c.active, nil
}

// Active returns the active vault, or "" when none is set.
func (c *Config) Active() string {
	return c.active
}
