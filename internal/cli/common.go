package cli

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/config"
	"github.com/mrlokans/biblioteca/internal/entrypoint"
	"github.com/mrlokans/biblioteca/internal/logging"
)

// storeFlags are the -db and -config flags shared by commands that open
// the library database.
type storeFlags struct {
	DatabasePath     string
	SystemConfigPath string
	Verbose          bool
}

func (s *storeFlags) register(fs *flag.FlagSet, defaults *config.Config) {
	fs.StringVar(&s.DatabasePath, "db", defaults.Database.Path, "Path to the library database file")
	fs.StringVar(&s.SystemConfigPath, "config", defaults.SystemConfig.Path, "Path to the system configuration document")
	fs.BoolVar(&s.Verbose, "verbose", false, "Enable verbose logging")
}

// open wires the services against the selected database. Commands log to
// stderr in console format so their own stdout stays readable.
func (s *storeFlags) open(base *config.Config) (*entrypoint.App, error) {
	cfg := *base
	cfg.Database.Path = s.DatabasePath
	cfg.SystemConfig.Path = s.SystemConfigPath
	cfg.Logging = config.Logging{Level: "warn", Format: "console"}
	if s.Verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logger = zap.NewNop()
	}
	return entrypoint.Open(&cfg, logger)
}

func usageHeader(name, synopsis, description string) {
	fmt.Fprintf(os.Stderr, "Usage: %s %s %s\n\n", os.Args[0], name, synopsis)
	fmt.Fprintf(os.Stderr, "%s\n\n", description)
	fmt.Fprintf(os.Stderr, "Options:\n")
}
