package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/biblioteca/internal/cli"
	"github.com/mrlokans/biblioteca/internal/config"
	"github.com/mrlokans/biblioteca/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// command is implemented by every CLI subcommand.
type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	config.LoadDotEnv()
	cfg := config.NewConfig()

	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		if err := entrypoint.Run(cfg, Version); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "create-admin":
		cmd = cli.NewCreateAdminCommand(cfg)
	case "maintenance":
		cmd = cli.NewMaintenanceCommand(cfg)
	case "backup":
		cmd = cli.NewBackupCommand(cfg)
	case "enqueue":
		cmd = cli.NewEnqueueCommand(cfg)
	case "config-validate":
		cmd = cli.NewConfigValidateCommand()
	case "config-import":
		cmd = cli.NewConfigImportCommand(cfg)
	case "version":
		fmt.Printf("biblioteca %s (%s)\n", Version, Commit)
		return
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve             Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  create-admin      Create the initial superadmin account\n")
	fmt.Fprintf(os.Stderr, "  maintenance       Run the overdue, fine and membership sweeps once\n")
	fmt.Fprintf(os.Stderr, "  backup            Snapshot the database now\n")
	fmt.Fprintf(os.Stderr, "  enqueue           Queue a background task for the server\n")
	fmt.Fprintf(os.Stderr, "  config-validate   Check a system configuration document\n")
	fmt.Fprintf(os.Stderr, "  config-import     Replace the system configuration document\n")
	fmt.Fprintf(os.Stderr, "  version           Print the build version\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
