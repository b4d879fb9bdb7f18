package cli

import (
	"os"
	"sort"

	"github.com/btcsuite/btclog"
	"github.com/jack-avery/srpk/vault"
	"github.com/pkg/errors"
)

type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	return os.Stderr.Write(p)
}

// Loggers per subsystem. All of them route through backendLog.
var (
	backendLog = btclog.NewBackend(logWriter{})

	log      = backendLog.Logger("SRPK")
	vaultLog = backendLog.Logger("VALT")
)

var subsystemLoggers = map[string]btclog.Logger{
	"SRPK": log,
	"VALT": vaultLog,
}

func init() {
	vault.UseLogger(vaultLog)
	setLogLevels(defaultLogLevel)
}

func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

func setLogLevels(logLevel string) error {
	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		return errors.Errorf("invalid debug level %q (subsystems %v)", logLevel,
			supportedSubsystems())
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
	return nil
}
