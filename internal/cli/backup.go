package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/mrlokans/biblioteca/internal/config"
)

// BackupCommand writes one database snapshot into the configured backup
// directory and prunes old ones.
type BackupCommand struct {
	storeFlags
	config *config.Config
}

func NewBackupCommand(cfg *config.Config) *BackupCommand {
	return &BackupCommand{config: cfg}
}

func (cmd *BackupCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	cmd.register(fs, cmd.config)
	fs.Usage = func() {
		usageHeader("backup", "[options]",
			"Snapshot the database into backup.directory, keeping backup.retention files.")
		fs.PrintDefaults()
	}
	return fs.Parse(args)
}

func (cmd *BackupCommand) Run() error {
	app, err := cmd.open(cmd.config)
	if err != nil {
		return err
	}
	defer app.Close()

	path, err := app.Backups.RunNow(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Backup written to %s\n", path)
	return nil
}
