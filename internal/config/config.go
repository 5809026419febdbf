// Package config resolves the settings of confdbadm from defaults, JSONC
// files, the environment and command line overrides.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/confdb/internal/logger"
)

// Defaults of a stock installation.
const (
	DefaultDocumentPath  = "/etc/openmediavault/config.xml"
	DefaultDatamodelsDir = "/usr/share/openmediavault/datamodels"
	SystemConfigPath     = "/etc/confdb/config.json"
)

// Environment variables. CONFDB_CONFIG_FILE wins over OMV_CONFIG_FILE.
const (
	EnvDocumentPath = "CONFDB_CONFIG_FILE"
	EnvOMVDocument  = "OMV_CONFIG_FILE"
	EnvDatamodels   = "CONFDB_DATAMODELS_DIR"
	EnvLogLevel     = "CONFDB_LOG_LEVEL"
	EnvSettings     = "CONFDB_SETTINGS"
)

// Config holds all configuration options.
type Config struct {
	// DocumentPath is the XML document holding the configuration database.
	DocumentPath  string `json:"config_file"`
	DatamodelsDir string `json:"datamodels_dir"`
	AuditDB       string `json:"audit_db,omitempty"`
	LogLevel      string `json:"log_level,omitempty"`
	LogFormat     string `json:"log_format,omitempty"`
	HistoryFile   string `json:"history_file,omitempty"`

	// Sources tracks which settings files were loaded (for diagnostics).
	Sources Sources `json:"-"`
}

// Sources tracks which settings files were loaded.
type Sources struct {
	System   string // system settings file if loaded
	Explicit string // --settings file if given
	Env      []string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DocumentPath:  DefaultDocumentPath,
		DatamodelsDir: DefaultDatamodelsDir,
		LogLevel:      "warn",
		LogFormat:     logger.FormatConsole,
	}
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDir      string            // base for relative paths; os.Getwd() when empty
	SettingsPath string            // --settings flag value
	Overrides    Config            // command line overrides; empty fields are ignored
	Env          map[string]string // environment variables
}

// Load resolves the configuration with the following precedence (highest
// wins):
//  1. Defaults
//  2. System settings file ($CONFDB_SETTINGS or /etc/confdb/config.json, if it exists)
//  3. Explicit settings file (must exist)
//  4. Environment variables
//  5. Command line overrides
//
// Paths in the returned Config are absolute.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	systemPath := SystemConfigPath
	if p := input.Env[EnvSettings]; p != "" {
		systemPath = p
	}

	systemCfg, loaded, err := loadFile(systemPath, false)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.System = systemPath
		cfg = merge(cfg, systemCfg)
	}

	if input.SettingsPath != "" {
		path := input.SettingsPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		if _, statErr := os.Stat(path); statErr != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.SettingsPath)
		}

		explicitCfg, _, err := loadFile(path, true)
		if err != nil {
			return Config{}, err
		}

		cfg.Sources.Explicit = path
		cfg = merge(cfg, explicitCfg)
	}

	cfg = mergeEnv(cfg, input.Env)
	cfg = merge(cfg, input.Overrides)

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.DocumentPath = absolute(workDir, cfg.DocumentPath)
	cfg.DatamodelsDir = absolute(workDir, cfg.DatamodelsDir)
	cfg.AuditDB = absolute(workDir, cfg.AuditDB)
	cfg.HistoryFile = absolute(workDir, cfg.HistoryFile)

	if cfg.HistoryFile == "" {
		if home := input.Env["HOME"]; home != "" {
			cfg.HistoryFile = filepath.Join(home, ".confdbadm_history")
		}
	}

	return cfg, nil
}

// loadFile reads a settings file. If mustExist is false, a missing file
// returns loaded=false.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

// Parse decodes a JSONC settings document. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var cfg Config

	err = dec.Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	if val, ok := raw["config_file"].(string); ok && val == "" {
		return Config{}, ErrDocumentPathEmpty
	}

	if val, ok := raw["datamodels_dir"].(string); ok && val == "" {
		return Config{}, ErrDatamodelsDirEmpty
	}

	return cfg, nil
}

// Format renders cfg as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}

func merge(base, overlay Config) Config {
	if overlay.DocumentPath != "" {
		base.DocumentPath = overlay.DocumentPath
	}

	if overlay.DatamodelsDir != "" {
		base.DatamodelsDir = overlay.DatamodelsDir
	}

	if overlay.AuditDB != "" {
		base.AuditDB = overlay.AuditDB
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LogFormat != "" {
		base.LogFormat = overlay.LogFormat
	}

	if overlay.HistoryFile != "" {
		base.HistoryFile = overlay.HistoryFile
	}

	return base
}

func mergeEnv(cfg Config, env map[string]string) Config {
	set := func(dst *string, key string) {
		if v := env[key]; v != "" {
			*dst = v
			cfg.Sources.Env = append(cfg.Sources.Env, key)
		}
	}

	set(&cfg.DocumentPath, EnvOMVDocument)
	set(&cfg.DocumentPath, EnvDocumentPath)
	set(&cfg.DatamodelsDir, EnvDatamodels)
	set(&cfg.LogLevel, EnvLogLevel)

	return cfg
}

func validate(cfg Config) error {
	if cfg.DocumentPath == "" {
		return ErrDocumentPathEmpty
	}

	if cfg.DatamodelsDir == "" {
		return ErrDatamodelsDirEmpty
	}

	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	if err := logger.ValidateFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	return nil
}

func absolute(workDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(workDir, path)
}
