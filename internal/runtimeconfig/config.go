// Package runtimeconfig loads the scheduler's tunables from YAML, mirroring
// the teacher's internal/config parser+validator split: a struct with
// validator tags, a loader that reads and unmarshals, and a separate
// validation pass run before the config is handed to the scheduler.
package runtimeconfig

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/txtx-labs/runbook-core/internal/xerrors"
)

// Config holds the scheduler tunables of SPEC_FULL.md's AMBIENT STACK
// section: concurrency cap, cancellation grace period, default RPC timeout.
type Config struct {
	MaxBackgroundTasks int64         `yaml:"max_background_tasks" validate:"required,gte=1"`
	CancellationGrace  time.Duration `yaml:"cancellation_grace" validate:"required,gt=0"`
	DefaultRPCTimeout  time.Duration `yaml:"default_rpc_timeout" validate:"required,gt=0"`
	LogLevel           string        `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the built-in tunables used when no config file is given.
func Default() Config {
	return Config{
		MaxBackgroundTasks: 4,
		CancellationGrace:  5 * time.Second,
		DefaultRPCTimeout:  30 * time.Second,
		LogLevel:           "info",
	}
}

// Load reads a YAML config file from path, unmarshals it, and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, xerrors.NewStateError("reading runtime config "+path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, xerrors.NewStateError("parsing runtime config "+path, err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() { validateInst = validator.New() })
	return validateInst
}

// Validate runs struct-tag validation over cfg, wrapping the first failing
// field into an xerrors.ValidationError.
func Validate(cfg Config) error {
	if err := instance().Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return xerrors.NewValidationError("runtimeconfig", fe.Field(), fmt.Errorf("failed rule %q", fe.Tag()))
		}
		return xerrors.NewValidationError("runtimeconfig", "", err)
	}
	return nil
}
