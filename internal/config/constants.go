package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./biblioteca.db"

	// DefaultSystemConfigPath is the default location of the system configuration document
	DefaultSystemConfigPath = "./config/system.yaml"
)
