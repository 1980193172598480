package dialect

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is matched by every *ConfigError.
var ErrInvalidConfig = errors.New("relcomp: invalid dialect configuration")

// ConfigError represents an invalid capability configuration.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("relcomp: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("relcomp: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{Option: option, Value: value, Message: message}
}

// Config is the file representation of a capability descriptor: a preset
// dialect plus optional flag overrides.
//
//	dialect: sqlserver
//	overrides:
//	  paging: row_number
//	  batches: false
type Config struct {
	Dialect   string    `yaml:"dialect"`
	Overrides Overrides `yaml:"overrides"`
}

// Overrides holds optional flag overrides. Unset fields keep the preset value.
type Overrides struct {
	Paging                 *string `yaml:"paging"`
	Params                 *string `yaml:"params"`
	LimitRequiredForOffset *bool   `yaml:"limit_required_for_offset"`
	MaxLimit               *string `yaml:"max_limit"`
	InlineLimitOffset      *bool   `yaml:"inline_limit_offset"`
	BackslashEscapes       *bool   `yaml:"backslash_escapes"`
	Sequences              *bool   `yaml:"sequences"`
	Batches                *bool   `yaml:"batches"`
	MaxBatchSize           *int    `yaml:"max_batch_size"`
	BooleanParams          *bool   `yaml:"boolean_params"`
	TemporaryTables        *bool   `yaml:"temporary_tables"`
	Returning              *bool   `yaml:"returning"`
	MaxInlineSize          *int    `yaml:"max_inline_size"`
	RealType               *string `yaml:"real_type"`
}

// LoadConfig reads a YAML capability configuration.
func LoadConfig(r io.Reader) (Capabilities, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Capabilities{}, fmt.Errorf("relcomp: read dialect config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML capability configuration.
func ParseConfig(data []byte) (Capabilities, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Capabilities{}, fmt.Errorf("relcomp: parse dialect config: %w", err)
	}
	return cfg.Capabilities()
}

// Capabilities resolves the preset and applies the overrides.
func (cfg Config) Capabilities() (Capabilities, error) {
	if cfg.Dialect == "" {
		return Capabilities{}, NewConfigError("dialect", nil, "missing dialect")
	}
	c, err := Lookup(cfg.Dialect)
	if err != nil {
		return Capabilities{}, err
	}
	o := cfg.Overrides
	if o.Paging != nil {
		if c.Paging, err = ParsePagingStyle(*o.Paging); err != nil {
			return Capabilities{}, NewConfigError("paging", *o.Paging, err.Error())
		}
	}
	if o.Params != nil {
		if c.Params, err = ParseParamStyle(*o.Params); err != nil {
			return Capabilities{}, NewConfigError("params", *o.Params, err.Error())
		}
	}
	setBool(&c.LimitRequiredForOffset, o.LimitRequiredForOffset)
	setBool(&c.InlineLimitOffset, o.InlineLimitOffset)
	setBool(&c.BackslashEscapes, o.BackslashEscapes)
	setBool(&c.Sequences, o.Sequences)
	setBool(&c.Batches, o.Batches)
	setBool(&c.BooleanParams, o.BooleanParams)
	setBool(&c.TemporaryTables, o.TemporaryTables)
	setBool(&c.Returning, o.Returning)
	if o.MaxLimit != nil {
		c.MaxLimit = *o.MaxLimit
	}
	if o.MaxBatchSize != nil {
		c.MaxBatchSize = *o.MaxBatchSize
	}
	if o.MaxInlineSize != nil {
		c.MaxInlineSize = *o.MaxInlineSize
	}
	if o.RealType != nil {
		c.RealType = *o.RealType
	}
	if err := c.Validate(); err != nil {
		return Capabilities{}, err
	}
	return c, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
