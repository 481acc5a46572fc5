package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/fatih/color"
	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/mediainspect/internal/fields"
	"github.com/hbomb79/mediainspect/pkg/logger"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

const (
	UserDirName    = ".mediainfo"
	ConfigFileName = "config.yaml"
	CacheDirName   = "cache"

	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"

	// Suggestions below this similarity are not worth offering
	suggestionThreshold = 0.5
)

var (
	ErrLoad    = errors.New("failed to load configuration")
	ErrInvalid = errors.New("configuration invalid")
)

// Config is the user configuration for mediainspect, read from an
// optional YAML file and the environment (which takes precedence). Command
// line flags are applied on top by the caller before calling Validate.
type Config struct {
	CacheDir            string   `yaml:"cache_dir" env:"MEDIAINSPECT_CACHE_DIR"`
	FfprobePath         string   `yaml:"ffprobe_path" env:"MEDIAINSPECT_FFPROBE_PATH" env-default:"ffprobe" validate:"required"`
	ProbeTimeoutSeconds int      `yaml:"probe_timeout_seconds" env:"MEDIAINSPECT_PROBE_TIMEOUT_SECONDS" env-default:"60" validate:"min=1"`
	FilenameLength      int      `yaml:"filename_length" env:"MEDIAINSPECT_FILENAME_LENGTH" env-default:"65" validate:"min=0"`
	Sort                string   `yaml:"sort" env:"MEDIAINSPECT_SORT" env-default:"bitrate" validate:"column"`
	Direction           string   `yaml:"direction" env:"MEDIAINSPECT_DIRECTION" env-default:"desc" validate:"oneof=asc desc"`
	Color               string   `yaml:"color" env:"MEDIAINSPECT_COLOR" env-default:"auto" validate:"oneof=auto always never"`
	LogLevel            string   `yaml:"log_level" env:"MEDIAINSPECT_LOG_LEVEL" env-default:"info" validate:"loglevel"`
	Extensions          []string `yaml:"extensions" env:"MEDIAINSPECT_EXTENSIONS" env-separator:","`
	WatchDebounceMillis int      `yaml:"watch_debounce_ms" env:"MEDIAINSPECT_WATCH_DEBOUNCE_MS" env-default:"2000" validate:"min=0"`
}

// DefaultPath returns the location of the configuration file used when none
// is explicitly provided (~/.mediainfo/config.yaml).
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("%w: cannot find home directory: %w", ErrLoad, err)
	}

	return filepath.Join(home, UserDirName, ConfigFileName), nil
}

// Load reads the configuration. If path is empty, the default config file is
// used if it exists; a missing default file is not an error. An explicitly
// provided path must exist.
//
// The returned config has defaults applied and '~' expanded, but has not
// been validated.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	config := &Config{}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, config); err != nil {
			return nil, fmt.Errorf("%w from %s: %w", ErrLoad, path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w from %s: %w", ErrLoad, path, err)
	} else if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("%w from environment: %w", ErrLoad, err)
	}

	if err := config.expand(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks every field of the config, returning an error
// wrapping ErrInvalid describing every problem found.
func (config *Config) Validate() error {
	validate := validator.New()
	_ = validate.RegisterValidation("column", func(fl validator.FieldLevel) bool {
		_, ok := fields.ParseColumn(fl.Field().String())
		return ok
	})
	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, ok := logger.ParseLevel(fl.Field().String())
		return ok
	})

	err := validate.Struct(config)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	problems := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		problems = append(problems, describe(fe))
	}

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

// UseColor reports whether output should be styled. In 'auto' mode this
// defers to the terminal detection performed by the color package (which
// also honours NO_COLOR).
func (config *Config) UseColor() bool {
	switch config.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return !color.NoColor
	}
}

// Level returns the minimum logging level configured.
func (config *Config) Level() logger.LogStatus {
	level, _ := logger.ParseLevel(config.LogLevel)
	return level
}

// YAML renders the configuration in the same format it is read from.
func (config *Config) YAML() (string, error) {
	out, err := yaml.Marshal(config)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

func (config *Config) expand() error {
	if config.CacheDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("%w: cannot find home directory: %w", ErrLoad, err)
		}
		config.CacheDir = filepath.Join(home, UserDirName, CacheDirName)
	}

	for _, p := range []*string{&config.CacheDir, &config.FfprobePath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("%w: cannot expand %s: %w", ErrLoad, *p, err)
		}
		*p = expanded
	}

	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "column":
		msg := fmt.Sprintf("sort column '%v' unknown (expected one of %s)", fe.Value(), strings.Join(fields.ColumnNames(), ", "))
		if suggestion := SuggestColumn(fmt.Sprint(fe.Value())); suggestion != "" {
			msg += fmt.Sprintf(", did you mean '%s'?", suggestion)
		}
		return msg
	case "loglevel":
		return fmt.Sprintf("log level '%v' unknown", fe.Value())
	case "oneof":
		return fmt.Sprintf("%s '%v' must be one of [%s]", fe.Field(), fe.Value(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed '%s' validation", fe.Field(), fe.Tag())
	}
}

// SuggestColumn returns the column name most similar to the (unknown) name
// given, or an empty string if none are similar enough.
func SuggestColumn(name string) string {
	metric := metrics.NewLevenshtein()
	best, bestScore := "", 0.0
	for _, candidate := range fields.ColumnNames() {
		if score := strutil.Similarity(strings.ToLower(name), candidate, metric); score > bestScore {
			best, bestScore = candidate, score
		}
	}

	if bestScore < suggestionThreshold {
		return ""
	}

	return best
}
