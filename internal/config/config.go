package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

// EnvConfigPath names the environment variable consulted when no --config
// flag is given.
const EnvConfigPath = "HIRS_AVHRR_CONFIG"

// SatellitePlaceholder is replaced by the platform name in data list paths.
const SatellitePlaceholder = "{satellite}"

// File types understood by the catalog.
const (
	FileTypeHIR1B = "HIR1B"
	FileTypePTMSX = "PTMSX"
)

// Config is the complete run configuration. It is loaded once and not
// mutated afterwards; ForSatellite returns a copy.
type Config struct {
	HirsVersion  string        `yaml:"hirs_version" validate:"required"`
	ColloVersion string        `yaml:"collo_version" validate:"required"`
	InputSources InputSources  `yaml:"input_sources"`
	Executable   Executable    `yaml:"executable"`
	WorkDir      string        `yaml:"work_dir" validate:"required"`
	OutputStyle  string        `yaml:"output_style" validate:"oneof=colloc collo"`
	Compression  string        `yaml:"compression" validate:"oneof=none gzip zstd"`
	// SymlinkInputs links inputs into the working directory before running.
	SymlinkInputs bool          `yaml:"symlink_inputs"`
	TaskTimeout   time.Duration `yaml:"task_timeout" validate:"gte=0"`
	Batch         Batch         `yaml:"batch"`
	Telemetry     Telemetry     `yaml:"telemetry"`
}

// InputSources says where each file type is catalogued.
type InputSources struct {
	// Collection maps a file type to the archive it is served from.
	Collection map[string]string `yaml:"collection"`
	// InputData maps a file type to its data list path.
	InputData map[string]string `yaml:"input_data" validate:"required,min=1,dive,keys,required,endkeys,required"`
}

// Executable locates the collocation binary.
type Executable struct {
	// Mode is "package" (<root>/<version>/c++/hirs_avhrr) or "delivery"
	// (<root>/<delivery-id>/delivery.yaml).
	Mode string `yaml:"mode" validate:"oneof=package delivery"`
	Root string `yaml:"root" validate:"required"`
}

// Batch tunes the local batch driver.
type Batch struct {
	Jobs          int           `yaml:"jobs" validate:"gte=1,lte=256"`
	RetryAttempts uint64        `yaml:"retry_attempts"`
	RetryBase     time.Duration `yaml:"retry_base" validate:"gte=0"`
	RetryMax      time.Duration `yaml:"retry_max" validate:"gte=0"`
	CheckpointDir string        `yaml:"checkpoint_dir" validate:"required"`
	LogDir        string        `yaml:"log_dir" validate:"required"`
	ManifestDir   string        `yaml:"manifest_dir"`
	MetricsFile   string        `yaml:"metrics_file"`
}

// Telemetry configures span tracing of submissions. TraceFile receives
// finished spans as JSON lines.
type Telemetry struct {
	Enabled    bool    `yaml:"enabled"`
	TraceFile  string  `yaml:"trace_file"`
	SampleRate float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Default returns the configuration every file is layered on.
func Default() Config {
	return Config{
		HirsVersion:  "v20151014",
		ColloVersion: "v20151014",
		InputSources: InputSources{
			Collection: map[string]string{},
			InputData:  map[string]string{},
		},
		Executable: Executable{
			Mode: "package",
		},
		WorkDir:       "work",
		OutputStyle:   "colloc",
		Compression:   "none",
		SymlinkInputs: true,
		Batch: Batch{
			Jobs:          1,
			RetryAttempts: 3,
			RetryBase:     30 * time.Second,
			RetryMax:      10 * time.Minute,
			CheckpointDir: ".hirs_avhrr/checkpoints",
			LogDir:        ".",
			ManifestDir:   ".hirs_avhrr/runs",
		},
		Telemetry: Telemetry{
			TraceFile:  ".hirs_avhrr/traces/spans.jsonl",
			SampleRate: 1.0,
		},
	}
}

// Load reads a YAML configuration file, layers it on Default and validates
// the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeConfigNotFound, errors.KindConfig,
			fmt.Sprintf("read config %s", path), err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes, layers them on Default and
// validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.NewConfigInvalidError("yaml", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks struct constraints and the cross-field rules the tags
// cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.NewConfigInvalidError(describeValidation(err), err)
	}
	for _, ft := range []string{FileTypeHIR1B, FileTypePTMSX} {
		if strings.TrimSpace(c.InputSources.InputData[ft]) == "" {
			return errors.NewConfigInvalidError(fmt.Sprintf("input_sources.input_data.%s is required", ft), nil)
		}
	}
	if c.Batch.RetryMax > 0 && c.Batch.RetryBase > c.Batch.RetryMax {
		return errors.NewConfigInvalidError("batch.retry_base exceeds batch.retry_max", nil)
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ForSatellite returns a copy with {satellite} placeholders in data list
// paths replaced by satellite.
func (c Config) ForSatellite(satellite string) Config {
	out := c
	out.InputSources.InputData = make(map[string]string, len(c.InputSources.InputData))
	for ft, path := range c.InputSources.InputData {
		out.InputSources.InputData[ft] = strings.ReplaceAll(path, SatellitePlaceholder, satellite)
	}
	out.InputSources.Collection = make(map[string]string, len(c.InputSources.Collection))
	for ft, coll := range c.InputSources.Collection {
		out.InputSources.Collection[ft] = coll
	}
	return out
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
