package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/pdf-forensics/internal/scan"
)

const (
	// EnvPrefix is prepended to every environment variable, e.g. PDF_FORENSICS_PORT
	EnvPrefix = "PDF_FORENSICS"

	// Default values
	DefaultPort          = 8080
	DefaultHost          = "127.0.0.1"
	DefaultIntakeDir     = "./uploads"
	DefaultQuarantineDir = "./quarantine"
	DefaultReportDir     = "./forensic_reports"
	DefaultCSVPath       = "scan_results.csv"
	DefaultLedgerPath    = "./forensic_reports/custody.db"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultEnvFile       = ".env"
	DefaultMaxFileSize   = 100 * 1024 * 1024 // 100MB

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the forensic scanner
type Config struct {
	// Server configuration
	Host      string `validate:"required"`
	Port      int    `validate:"min=1,max=65535"`
	StaticDir string

	// Storage layout
	IntakeDir     string `validate:"required"`
	QuarantineDir string `validate:"required"`
	ReportDir     string `validate:"required"`
	CSVPath       string `validate:"required"`
	LedgerPath    string // empty disables the custody ledger

	// Scanning
	StructureTool  string // empty selects the built-in pdfcpu dump
	MaxFileSize    int64  `validate:"gt=0"`
	HexThreshold   int    `validate:"min=0"`
	FontThreshold  int    `validate:"min=0"`
	BlockThreshold int    `validate:"min=1"`

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string `validate:"oneof=debug info warn error"`
	LogFormat  string `validate:"oneof=text json"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		IntakeDir:      DefaultIntakeDir,
		QuarantineDir:  DefaultQuarantineDir,
		ReportDir:      DefaultReportDir,
		CSVPath:        DefaultCSVPath,
		LedgerPath:     DefaultLedgerPath,
		MaxFileSize:    DefaultMaxFileSize,
		HexThreshold:   scan.DefaultHexThreshold,
		FontThreshold:  scan.DefaultFontThreshold,
		BlockThreshold: scan.DefaultBlockThreshold,
		Version:        "1.0.0",
		ServerName:     "pdf-forensics",
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
}

// RegisterFlags defines every configuration flag on fs
func RegisterFlags(fs *pflag.FlagSet) {
	cfg := DefaultConfig()

	fs.String("config", "", "Config file (yaml, json or toml)")
	fs.String("env-file", DefaultEnvFile, "Dotenv file loaded into the environment when present")
	fs.String("host", cfg.Host, "HTTP listen address")
	fs.Int("port", cfg.Port, "HTTP listen port")
	fs.String("static-dir", cfg.StaticDir, "Directory served at / (disabled when empty)")
	fs.String("intake-dir", cfg.IntakeDir, "Directory uploaded files are saved to and batch scans read from")
	fs.String("quarantine-dir", cfg.QuarantineDir, "Directory flagged files are moved to")
	fs.String("report-dir", cfg.ReportDir, "Directory forensic reports are written to")
	fs.String("csv-path", cfg.CSVPath, "Batch scan CSV output")
	fs.String("ledger-path", cfg.LedgerPath, "SQLite custody ledger (disabled when empty)")
	fs.String("structure-tool", cfg.StructureTool, "External structure dump command, e.g. \"python3 pdf-parser.py\"")
	fs.Int64("max-file-size", cfg.MaxFileSize, "Maximum upload size in bytes")
	fs.Int("hex-threshold", cfg.HexThreshold, "Verdict is tampered above this many hex blocks")
	fs.Int("font-threshold", cfg.FontThreshold, "Verdict is tampered above this many pages with font/compression references")
	fs.Int("block-threshold", cfg.BlockThreshold, "Quarantine at or above this many suspicious text blocks")
	fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-format", cfg.LogFormat, "Log format (text, json)")
}

// Load resolves the configuration from flags, environment, an optional
// dotenv file and an optional config file. Explicit flags win over the
// environment, which wins over the config file.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := loadEnvFile(fs, v.GetString("env-file")); err != nil {
		return nil, err
	}

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := DefaultConfig()
	populateConfigFromViper(v, cfg)
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads a dotenv file. The default file is optional; a file
// named explicitly must exist.
func loadEnvFile(fs *pflag.FlagSet, path string) error {
	if path == "" {
		return nil
	}

	explicit := fs.Changed("env-file")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.StaticDir = v.GetString("static-dir")
	cfg.IntakeDir = v.GetString("intake-dir")
	cfg.QuarantineDir = v.GetString("quarantine-dir")
	cfg.ReportDir = v.GetString("report-dir")
	cfg.CSVPath = v.GetString("csv-path")
	cfg.LedgerPath = v.GetString("ledger-path")
	cfg.StructureTool = v.GetString("structure-tool")
	cfg.MaxFileSize = v.GetInt64("max-file-size")
	cfg.HexThreshold = v.GetInt("hex-threshold")
	cfg.FontThreshold = v.GetInt("font-threshold")
	cfg.BlockThreshold = v.GetInt("block-threshold")
	cfg.LogLevel = strings.ToLower(v.GetString("log-level"))
	cfg.LogFormat = strings.ToLower(v.GetString("log-format"))
}

func (c *Config) expandPaths() {
	for _, p := range []*string{&c.IntakeDir, &c.QuarantineDir, &c.ReportDir, &c.CSVPath, &c.LedgerPath, &c.StaticDir} {
		if *p == "" {
			continue
		}
		if abs, err := filepath.Abs(*p); err == nil {
			*p = abs
		}
	}
}

// Validate checks field constraints and creates the working directories
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s: value %v does not satisfy %q", fe.Field(), fe.Value(), constraint(fe))
		}
		return err
	}

	if filepath.Clean(c.IntakeDir) == filepath.Clean(c.QuarantineDir) {
		return errors.New("intake and quarantine directories must differ")
	}

	for _, dir := range []string{c.IntakeDir, c.QuarantineDir, c.ReportDir} {
		if err := ensureDir(dir); err != nil {
			return err
		}
	}

	if c.StaticDir != "" {
		info, err := os.Stat(c.StaticDir)
		if err != nil {
			return fmt.Errorf("cannot access static directory %s: %w", c.StaticDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("static path is not a directory: %s", c.StaticDir)
		}
	}

	return nil
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func ensureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access directory %s: %w", dir, err)
	}
	return nil
}

// Policy returns the scan thresholds
func (c *Config) Policy() scan.Policy {
	return scan.Policy{
		HexThreshold:   c.HexThreshold,
		FontThreshold:  c.FontThreshold,
		BlockThreshold: c.BlockThreshold,
	}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Host: %s, Port: %d, IntakeDir: %s, QuarantineDir: %s, ReportDir: %s, "+
		"LedgerPath: %s, LogLevel: %s, MaxFileSize: %d, Thresholds: %d/%d/%d}",
		c.Host, c.Port, c.IntakeDir, c.QuarantineDir, c.ReportDir,
		c.LedgerPath, c.LogLevel, c.MaxFileSize, c.HexThreshold, c.FontThreshold, c.BlockThreshold)
}
