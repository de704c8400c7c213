package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every RuntimeConfig variable name.
const EnvPrefix = "FALLWATCH"

// RuntimeConfig holds process settings read from the environment, as
// opposed to the classifier thresholds in TuningConfig.
type RuntimeConfig struct {
	// Engine selects the inference backend.
	Engine string `envconfig:"ENGINE" default:"grpc" validate:"oneof=grpc tflite"`

	// ModelPath is the .tflite model file; required for the tflite engine.
	ModelPath string `envconfig:"MODEL" validate:"required_if=Engine tflite"`

	// EngineAddr is the host:port of a remote inference server.
	EngineAddr    string        `envconfig:"ENGINE_ADDR" validate:"required_if=Engine grpc,omitempty,hostname_port"`
	EngineTimeout time.Duration `envconfig:"ENGINE_TIMEOUT" default:"5s" validate:"gt=0"`
	Threads       int           `envconfig:"THREADS" default:"4" validate:"min=1,max=64"`

	TuningPath string `envconfig:"TUNING" default:"config/tuning.defaults.json"`

	// DataDir receives stored sample images; DBPath is the sqlite event log.
	DataDir string `envconfig:"DATA_DIR" default:"data" validate:"required"`
	DBPath  string `envconfig:"DB_PATH" default:"fallwatch.db" validate:"required"`

	Debug bool `envconfig:"DEBUG" default:"false"`
}

// ErrRuntimeConfig is wrapped by every LoadRuntimeConfig failure.
var ErrRuntimeConfig = errors.New("runtime configuration")

// LoadRuntimeConfig reads FALLWATCH_* variables. Named env files are loaded
// first and must exist; with none given, a .env in the working directory is
// loaded if present. Existing environment variables always win.
func LoadRuntimeConfig(envFiles ...string) (*RuntimeConfig, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("%w: loading env file: %w", ErrRuntimeConfig, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg RuntimeConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntimeConfig, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: validation failed: %w", ErrRuntimeConfig, err)
	}
	return &cfg, nil
}
