package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/biblioteca/internal/config"
	"github.com/mrlokans/biblioteca/internal/tasks"
)

// EnqueueCommand adds a task to the queue shared with the server, whose
// workers pick it up. It does not open the main database.
type EnqueueCommand struct {
	Type          string
	DatabasePath  string
	RetentionDays int

	config *config.Config
}

func NewEnqueueCommand(cfg *config.Config) *EnqueueCommand {
	return &EnqueueCommand{config: cfg}
}

func (cmd *EnqueueCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	fs.StringVar(&cmd.Type, "type", "", "Task type (required)")
	fs.StringVar(&cmd.DatabasePath, "db", cmd.config.Database.Path, "Path to the library database file; the queue lives next to it")
	fs.IntVar(&cmd.RetentionDays, "retention-days", 0, "Audit retention for "+tasks.TypeCleanupAuditEvents+" (default from AUDIT_RETENTION_DAYS)")
	fs.Usage = func() {
		usageHeader("enqueue", "-type <task> [options]", "Queue a background task for the server's workers.")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nTask types:\n")
		for _, t := range tasks.Types() {
			fmt.Fprintf(os.Stderr, "  %-22s %s\n", t.Type, t.Description)
		}
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Type == "" {
		return fmt.Errorf("required flag -type not provided")
	}
	return nil
}

func (cmd *EnqueueCommand) Run() error {
	client, err := tasks.NewClient(cmd.DatabasePath, tasks.ConfigFrom(cmd.config), nil)
	if err != nil {
		return err
	}
	defer client.Close()
	// Queues must be known to the client before tasks can be added; no
	// workers run here, so the processors never execute.
	client.RegisterAll(tasks.Deps{})

	id, err := client.Enqueue(cmd.Type, tasks.Params{RetentionDays: cmd.RetentionDays})
	if err != nil {
		return err
	}
	fmt.Printf("Queued %s as task %s\n", cmd.Type, id)
	return nil
}
