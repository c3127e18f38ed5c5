package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/presetcat/internal/engine"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Presets PresetsConfig     `yaml:"presets"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Backup  BackupConfig      `yaml:"backup"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Presets.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// PresetsConfig locates the preset library and tunes batch processing.
type PresetsConfig struct {
	// Root is the presets directory. Empty selects the Camera Raw Settings
	// folder of the current user.
	Root      string `yaml:"root"`
	RootName  string `yaml:"root_name"`
	Recursive bool   `yaml:"recursive"`
	BatchSize int    `yaml:"batch_size"`
}

// Validate validates the presets configuration, filling in the default root.
func (c *PresetsConfig) Validate() error {
	if c.Root == "" {
		c.Root = DefaultPresetsRoot()
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.RootName, validation.Required),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
	)
}

// DefaultPresetsRoot returns where Camera Raw keeps user presets on this OS,
// or "" when the home directory is unknown.
func DefaultPresetsRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return defaultPresetsRoot(runtime.GOOS, home)
}

func defaultPresetsRoot(goos, home string) string {
	switch goos {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Adobe", "CameraRaw", "Settings")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Adobe", "CameraRaw", "Settings")
	default:
		return filepath.Join(home, ".config", "Adobe", "CameraRaw", "Settings")
	}
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LockPath is the single-writer lock file kept next to the database.
func (c *SQLiteConfig) LockPath() string {
	return c.Path + ".lock"
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// BackupConfig holds where ZIP backups are written.
type BackupConfig struct {
	Dir string `yaml:"dir"`
}

// DirOrDefault returns Dir, falling back to ~/Documents.
func (c *BackupConfig) DirOrDefault() string {
	if c.Dir != "" {
		return c.Dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Documents")
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Presets: PresetsConfig{
			RootName:  engine.DefaultRootName,
			Recursive: true,
			BatchSize: engine.DefaultBatchSize,
		},
		SQLite: SQLiteConfig{
			Path: "./presetcat.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
