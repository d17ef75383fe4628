package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxFileSize is the per-input limit (200MB)
	DefaultMaxFileSize = int64(200 * 1024 * 1024)
	// DefaultEmitDelay spaces the outputs of multi-file tools
	DefaultEmitDelay = 180 * time.Millisecond

	EnvMaxFileSize = "PDF_MAX_FILE_SIZE"
	EnvEmitDelay   = "PDFTOOLS_EMIT_DELAY"
	EnvValidation  = "PDFTOOLS_VALIDATION"
	EnvConfigPath  = "PDFTOOLS_CONFIG"
	EnvOutputDir   = "PDFTOOLS_OUTPUT_DIR"
)

// Settings is the resolved runtime configuration
type Settings struct {
	// EmitDelay is the pause between successive outputs. Zero disables it.
	EmitDelay time.Duration
	// MaxFileSize caps each input file in bytes
	MaxFileSize int64
	// Validation is the pdfcpu validation mode, relaxed or strict
	Validation string
	// OutputDir is used when a tool call names no output directory. Empty
	// means the directory of the first input.
	OutputDir string
	// BaseNames overrides default output base names per tool
	BaseNames map[string]string
	// ConfigPath is the YAML file that was read, if any
	ConfigPath string
}

// fileConfig mirrors the optional YAML file
type fileConfig struct {
	EmitDelay   string            `yaml:"emit_delay"`
	MaxFileSize int64             `yaml:"max_file_size"`
	Validation  string            `yaml:"validation"`
	OutputDir   string            `yaml:"output_dir"`
	BaseNames   map[string]string `yaml:"base_names"`
}

var (
	loaded     *Settings
	loadErr    error
	loadedOnce sync.Once
)

// Load resolves settings once per process and returns the cached result
func Load() (*Settings, error) {
	loadedOnce.Do(func() {
		loaded, loadErr = Resolve()
	})
	return loaded, loadErr
}

// Resolve builds settings from defaults, the YAML file and the environment,
// in increasing priority
func Resolve() (*Settings, error) {
	s := &Settings{
		EmitDelay:   DefaultEmitDelay,
		MaxFileSize: DefaultMaxFileSize,
		Validation:  "relaxed",
		BaseNames:   map[string]string{},
	}

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = filepath.Join(Dir(), "config.yaml")
	}
	if err := s.applyFile(expandHome(path)); err != nil {
		return nil, err
	}
	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// only an explicitly named file has to exist
		if os.Getenv(EnvConfigPath) != "" {
			return fmt.Errorf("config file %s not found", path)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse YAML config %s: %w", path, err)
	}

	if fc.EmitDelay != "" {
		d, err := time.ParseDuration(fc.EmitDelay)
		if err != nil {
			return fmt.Errorf("config emit_delay: %w", err)
		}
		s.EmitDelay = d
	}
	if fc.MaxFileSize != 0 {
		s.MaxFileSize = fc.MaxFileSize
	}
	if fc.Validation != "" {
		s.Validation = fc.Validation
	}
	if fc.OutputDir != "" {
		s.OutputDir = expandHome(fc.OutputDir)
	}
	for tool, base := range fc.BaseNames {
		s.BaseNames[tool] = base
	}
	s.ConfigPath = path
	return nil
}

func (s *Settings) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvMaxFileSize)); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number of bytes: %w", EnvMaxFileSize, err)
		}
		s.MaxFileSize = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvEmitDelay)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s must be a duration such as 180ms: %w", EnvEmitDelay, err)
		}
		s.EmitDelay = d
	}
	if v := strings.TrimSpace(os.Getenv(EnvValidation)); v != "" {
		s.Validation = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutputDir)); v != "" {
		s.OutputDir = expandHome(v)
	}
	return nil
}

func (s *Settings) validate() error {
	if s.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", s.MaxFileSize)
	}
	if s.EmitDelay < 0 {
		return fmt.Errorf("emit delay cannot be negative, got %s", s.EmitDelay)
	}
	switch strings.ToLower(s.Validation) {
	case "relaxed", "strict":
		s.Validation = strings.ToLower(s.Validation)
	default:
		return fmt.Errorf("validation must be relaxed or strict, got %q", s.Validation)
	}
	if s.OutputDir != "" && !filepath.IsAbs(s.OutputDir) {
		return fmt.Errorf("output_dir must be an absolute path, got %q", s.OutputDir)
	}
	return nil
}

// LoadEnvFiles reads .env from the working directory and from the state
// directory. Variables that are already set are left alone.
func LoadEnvFiles(logger *logrus.Logger) {
	for _, path := range []string{".env", filepath.Join(Dir(), ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.WithError(err).WithField("path", path).Warn("Failed to load env file")
			continue
		}
		logger.WithField("path", path).Debug("Loaded env file")
	}
}

// Dir is the per-user directory for state, logs and config
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".mcp-pdftools"
	}
	return filepath.Join(homeDir, ".mcp-pdftools")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[1:])
}
