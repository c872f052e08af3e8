package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	AppName    = "TextCorrector"
	ConfigName = "config.toml"

	DefaultProtectedWordsFile = "protected_words.json"
	DefaultTodoFile           = "todo_data.json"
	DefaultLogDir             = "logs"
)

// AppConfig represents the persistent application configuration.
// Values from the file are layered over DefaultConfig, then TEXTCORRECTOR_*
// environment variables are applied on top.
type AppConfig struct {
	Converter  ConverterConfig  `toml:"converter" json:"converter"`
	LLM        LLMConfig        `toml:"llm" json:"llm"`
	Editor     EditorConfig     `toml:"editor" json:"editor"`
	Paths      PathsConfig      `toml:"paths" json:"paths"`
	Processing ProcessingConfig `toml:"processing" json:"processing"`
}

type ConverterConfig struct {
	Backend    string `toml:"backend" json:"backend" env:"TEXTCORRECTOR_BACKEND"` // opencc | llm
	Mode       string `toml:"mode" json:"mode" env:"TEXTCORRECTOR_MODE"`
	DiffPolicy string `toml:"diff_policy" json:"diff_policy" env:"TEXTCORRECTOR_DIFF_POLICY"` // whole | fine
}

type LLMConfig struct {
	BaseURL           string `toml:"base_url" json:"base_url" env:"TEXTCORRECTOR_LLM_BASE_URL"`
	APIKey            string `toml:"api_key" json:"api_key" env:"TEXTCORRECTOR_LLM_API_KEY"`
	Model             string `toml:"model" json:"model" env:"TEXTCORRECTOR_LLM_MODEL"`
	Prompt            string `toml:"prompt" json:"prompt"`
	MaxRetries        int    `toml:"max_retries" json:"max_retries"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds" json:"retry_delay_seconds"`
}

type EditorConfig struct {
	FontFamily        string           `toml:"font_family" json:"font_family"`
	FontSize          int              `toml:"font_size" json:"font_size"`
	LineSpacingWithin int              `toml:"line_spacing_within" json:"line_spacing_within"`
	DarkMode          bool             `toml:"dark_mode" json:"dark_mode" env:"TEXTCORRECTOR_DARK_MODE"`
	CustomShortcuts   []ShortcutConfig `toml:"custom_shortcuts" json:"custom_shortcuts"`
}

// ShortcutConfig binds a key chord such as "Ctrl+Shift+K" to an action name.
type ShortcutConfig struct {
	Action string `toml:"action" json:"action"`
	Keys   string `toml:"keys" json:"keys"`
}

// PathsConfig holds data file locations. Relative paths are resolved against
// the directory holding config.toml.
type PathsConfig struct {
	ProtectedWords string `toml:"protected_words" json:"protected_words" env:"TEXTCORRECTOR_PROTECTED_WORDS"`
	Todo           string `toml:"todo" json:"todo"`
	LogDir         string `toml:"log_dir" json:"log_dir" env:"TEXTCORRECTOR_LOG_DIR"`
}

type ProcessingConfig struct {
	MaxConcurrent    int    `toml:"max_concurrent" json:"max_concurrent" env:"TEXTCORRECTOR_MAX_CONCURRENT"`
	PasswordAttempts int    `toml:"password_attempts" json:"password_attempts"`
	CJKOnly          bool   `toml:"cjk_only" json:"cjk_only"` // skip paragraphs without CJK characters
	LogLevel         string `toml:"log_level" json:"log_level" env:"TEXTCORRECTOR_LOG_LEVEL"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Converter: ConverterConfig{
			Backend:    "opencc",
			Mode:       "s2twp",
			DiffPolicy: "whole",
		},
		LLM: LLMConfig{
			BaseURL:           "https://dashscope.aliyuncs.com/compatible-mode/v1",
			APIKey:            os.Getenv("DASHSCOPE_API_KEY"),
			Model:             "qwen-flash",
			MaxRetries:        2,
			RetryDelaySeconds: 2,
		},
		Editor: EditorConfig{
			FontFamily:        "微軟正黑體",
			FontSize:          12,
			LineSpacingWithin: 4,
			DarkMode:          false,
			CustomShortcuts:   []ShortcutConfig{},
		},
		Paths: PathsConfig{
			ProtectedWords: DefaultProtectedWordsFile,
			Todo:           DefaultTodoFile,
			LogDir:         DefaultLogDir,
		},
		Processing: ProcessingConfig{
			MaxConcurrent:    4,
			PasswordAttempts: 3,
			CJKOnly:          true,
			LogLevel:         "INFO",
		},
	}
}

// Dir returns the application config directory, creating it if needed.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}

	appConfigDir := filepath.Join(configDir, AppName)
	if err := os.MkdirAll(appConfigDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	return appConfigDir, nil
}

// Path returns the full path to the configuration file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigName), nil
}

// Load reads the configuration from the user config directory.
func Load() (*AppConfig, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the configuration at path. A missing file yields the
// defaults; environment overrides apply either way.
func LoadFrom(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *AppConfig) Validate() error {
	if c.Processing.MaxConcurrent < 1 {
		return fmt.Errorf("processing.max_concurrent must be at least 1, got %d", c.Processing.MaxConcurrent)
	}
	if c.Processing.PasswordAttempts < 1 {
		return fmt.Errorf("processing.password_attempts must be at least 1, got %d", c.Processing.PasswordAttempts)
	}
	if c.Editor.FontSize <= 0 {
		return fmt.Errorf("editor.font_size must be positive, got %d", c.Editor.FontSize)
	}
	switch c.Converter.Backend {
	case "opencc", "llm":
	default:
		return fmt.Errorf("converter.backend must be opencc or llm, got %q", c.Converter.Backend)
	}
	return nil
}

func (c *AppConfig) resolvePaths(base string) {
	abs := func(p, def string) string {
		if p == "" {
			p = def
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Paths.ProtectedWords = abs(c.Paths.ProtectedWords, DefaultProtectedWordsFile)
	c.Paths.Todo = abs(c.Paths.Todo, DefaultTodoFile)
	c.Paths.LogDir = abs(c.Paths.LogDir, DefaultLogDir)
}

// Save writes the configuration to the user config directory.
func Save(cfg *AppConfig) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the configuration to path.
func SaveTo(path string, cfg *AppConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may hold an API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Update sets section.key in the user config file. See UpdateFile.
func Update(section, key string, value any) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return UpdateFile(path, section, key, value)
}

// UpdateFile sets section.key in the file at path and keeps every other
// value as written. Defaults, environment overrides and resolved paths are
// not written back.
func UpdateFile(path, section, key string, value any) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}

	table, _ := doc[section].(map[string]any)
	if table == nil {
		table = map[string]any{}
		doc[section] = table
	}
	table[key] = value

	out, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
