package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/config"
)

// MaintenanceCommand runs the overdue sweep, fine recalculation and
// membership expiry once, e.g. from an external cron.
type MaintenanceCommand struct {
	storeFlags
	config *config.Config
}

func NewMaintenanceCommand(cfg *config.Config) *MaintenanceCommand {
	return &MaintenanceCommand{config: cfg}
}

func (cmd *MaintenanceCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("maintenance", flag.ExitOnError)
	cmd.register(fs, cmd.config)
	fs.Usage = func() {
		usageHeader("maintenance", "[options]",
			"Mark overdue loans, recalculate open fines and expire lapsed memberships.")
		fs.PrintDefaults()
	}
	return fs.Parse(args)
}

func (cmd *MaintenanceCommand) Run() error {
	app, err := cmd.open(cmd.config)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.Maintenance.Run(context.Background(), auth.SystemPrincipal())
	if err != nil {
		return err
	}

	fmt.Println("Maintenance")
	fmt.Println("===========")
	fmt.Printf("Loans marked overdue: %d\n", report.OverdueMarked)
	fmt.Printf("Fines updated:        %d\n", report.FinesUpdated)
	fmt.Printf("Readers expired:      %d\n", report.ReadersExpired)
	fmt.Printf("Took %.2fs\n", report.DurationSeconds)
	return nil
}
