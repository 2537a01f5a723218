// Package sysconfig manages the system configuration document: fine policy,
// loan limits, password policy, session timeout, backup schedule and
// maintenance mode. The document is read with viper (YAML, JSON or TOML by
// file extension), validated, and persisted as YAML.
package sysconfig

import (
	"github.com/mrlokans/biblioteca/internal/fines"
)

type Configuration struct {
	System   SystemSection   `mapstructure:"system" yaml:"system" json:"system"`
	Session  SessionSection  `mapstructure:"session" yaml:"session" json:"session"`
	Database DatabaseSection `mapstructure:"database" yaml:"database" json:"database"`
	Password PasswordPolicy  `mapstructure:"password" yaml:"password" json:"password"`
	Backup   BackupSection   `mapstructure:"backup" yaml:"backup" json:"backup"`
	Fines    FinesSection    `mapstructure:"fines" yaml:"fines" json:"fines"`
	Loans    LoansSection    `mapstructure:"loans" yaml:"loans" json:"loans"`
	Readers  ReadersSection  `mapstructure:"readers" yaml:"readers" json:"readers"`
}

type SystemSection struct {
	Name            string `mapstructure:"name" yaml:"name" json:"name" validate:"required,max=100"`
	Version         string `mapstructure:"version" yaml:"version" json:"version" validate:"max=20"`
	MaintenanceMode bool   `mapstructure:"maintenance_mode" yaml:"maintenance_mode" json:"maintenance_mode"`
}

type SessionSection struct {
	TimeoutMinutes int `mapstructure:"timeout_minutes" yaml:"timeout_minutes" json:"timeout_minutes" validate:"min=5,max=480"`
}

type DatabaseSection struct {
	PoolMin int `mapstructure:"pool_min" yaml:"pool_min" json:"pool_min" validate:"min=1,max=50"`
	PoolMax int `mapstructure:"pool_max" yaml:"pool_max" json:"pool_max" validate:"min=1,max=100,gtefield=PoolMin"`
}

type PasswordPolicy struct {
	MinLength        int  `mapstructure:"min_length" yaml:"min_length" json:"min_length" validate:"min=6,max=128"`
	RequireUpper     bool `mapstructure:"require_upper" yaml:"require_upper" json:"require_upper"`
	RequireLower     bool `mapstructure:"require_lower" yaml:"require_lower" json:"require_lower"`
	RequireDigit     bool `mapstructure:"require_digit" yaml:"require_digit" json:"require_digit"`
	RequireSpecial   bool `mapstructure:"require_special" yaml:"require_special" json:"require_special"`
	ExpirationDays   int  `mapstructure:"expiration_days" yaml:"expiration_days" json:"expiration_days" validate:"min=0,max=365"` // 0 disables expiry
	LockoutThreshold int  `mapstructure:"lockout_threshold" yaml:"lockout_threshold" json:"lockout_threshold" validate:"min=1,max=20"`
	LockoutMinutes   int  `mapstructure:"lockout_minutes" yaml:"lockout_minutes" json:"lockout_minutes" validate:"min=1,max=1440"`
}

type BackupSection struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Schedule  string `mapstructure:"schedule" yaml:"schedule" json:"schedule" validate:"required,cronspec"`
	Directory string `mapstructure:"directory" yaml:"directory" json:"directory" validate:"required_if=Enabled true"`
	Retention int    `mapstructure:"retention" yaml:"retention" json:"retention" validate:"min=1,max=365"`
}

type FinesSection struct {
	GracePeriodDays int     `mapstructure:"grace_period_days" yaml:"grace_period_days" json:"grace_period_days" validate:"min=0,max=30"`
	DailyRate       float64 `mapstructure:"daily_rate" yaml:"daily_rate" json:"daily_rate" validate:"min=0.1,max=1000"`
	Cap             float64 `mapstructure:"cap" yaml:"cap" json:"cap" validate:"min=1,max=10000"`
}

type LoansSection struct {
	DefaultDays        int `mapstructure:"default_days" yaml:"default_days" json:"default_days" validate:"min=1,max=365"`
	MaxActivePerReader int `mapstructure:"max_active_per_reader" yaml:"max_active_per_reader" json:"max_active_per_reader" validate:"min=1,max=50"`
	DueSoonDays        int `mapstructure:"due_soon_days" yaml:"due_soon_days" json:"due_soon_days" validate:"min=1,max=30"`
}

type ReadersSection struct {
	MembershipDays int `mapstructure:"membership_days" yaml:"membership_days" json:"membership_days" validate:"min=1,max=3650"`
}

// Defaults returns the configuration used when no document exists yet.
func Defaults() Configuration {
	return Configuration{
		System: SystemSection{
			Name:    "Biblioteca",
			Version: "1.0",
		},
		Session:  SessionSection{TimeoutMinutes: 30},
		Database: DatabaseSection{PoolMin: 1, PoolMax: 10},
		Password: PasswordPolicy{
			MinLength:        8,
			RequireUpper:     true,
			RequireLower:     true,
			RequireDigit:     true,
			RequireSpecial:   false,
			ExpirationDays:   90,
			LockoutThreshold: 5,
			LockoutMinutes:   15,
		},
		Backup: BackupSection{
			Enabled:   false,
			Schedule:  "0 2 * * *",
			Directory: "./backups",
			Retention: 7,
		},
		Fines: FinesSection{
			GracePeriodDays: 3,
			DailyRate:       5,
			Cap:             100,
		},
		Loans: LoansSection{
			DefaultDays:        14,
			MaxActivePerReader: 1,
			DueSoonDays:        3,
		},
		Readers: ReadersSection{MembershipDays: 365},
	}
}

// FinePolicy converts the fines section into a calculator policy.
func (c Configuration) FinePolicy() fines.Policy {
	return fines.NewPolicy(c.Fines.GracePeriodDays, c.Fines.DailyRate, c.Fines.Cap)
}
