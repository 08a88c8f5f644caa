// Package config loads the YAML run configuration shared by every
// subcommand.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-flowgraph/pkg/community"
	"github.com/dd0wney/cluso-flowgraph/pkg/entitygraph"
	"github.com/dd0wney/cluso-flowgraph/pkg/ingest"
	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/propagation"
	"github.com/dd0wney/cluso-flowgraph/pkg/validation"
)

// EnvLogLevel overrides Logging.Level when set.
const EnvLogLevel = "FLOWGRAPH_LOG_LEVEL"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete run configuration.
type Config struct {
	Ingest      IngestConfig      `yaml:"ingest"`
	Community   CommunityConfig   `yaml:"community"`
	Propagation PropagationConfig `yaml:"propagation"`
	Entity      EntityConfig      `yaml:"entity"`
	Output      OutputConfig      `yaml:"output"`
	Store       StoreConfig       `yaml:"store"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// IngestConfig names the input tables.
type IngestConfig struct {
	Flows    []string `yaml:"flows"`
	Internal string   `yaml:"internal"` // one internal key per line; empty keeps all
	ASNMap   string   `yaml:"asn_map"`
	Groups   string   `yaml:"groups"`
	Service  string   `yaml:"service"`
	// ResolveASN maps external addresses to autonomous systems through ASNMap.
	ResolveASN bool `yaml:"resolve_asn"`
	Binary     bool `yaml:"binary"`

	// Snapshot loads the flow matrix from a saved snapshot instead of
	// building it from Flows.
	Snapshot string `yaml:"snapshot"`
}

// CommunityConfig configures label propagation and merging.
type CommunityConfig struct {
	Mode          string  `yaml:"mode" validate:"oneof=single-pass single alternate full"`
	MaxIterations int     `yaml:"max_iterations" validate:"gte=1"`
	MinGain       float64 `yaml:"min_gain" validate:"gte=0"`
	Merge         bool    `yaml:"merge"`
	// SeedGroups seeds internal hosts with their primary group label.
	SeedGroups bool `yaml:"seed_groups"`
}

// PropagationConfig configures score propagation.
// Zero tolerance and iterations, and an unset LogWeights, use the mode
// defaults.
type PropagationConfig struct {
	Mode          string  `yaml:"mode" validate:"oneof=bipartite community"`
	Labels        string  `yaml:"labels"` // key,score training file
	Tolerance     float64 `yaml:"tolerance" validate:"gte=0"`
	MaxIterations int     `yaml:"max_iterations" validate:"gte=0"`
	LogWeights    *bool   `yaml:"log_weights"`
}

// EntityConfig configures the entity significance graph.
type EntityConfig struct {
	Mode string `yaml:"mode" validate:"oneof=influence hierarchy"`
	// MinDays of 0 uses the mode default.
	MinDays    int     `yaml:"min_days" validate:"gte=0"`
	Alpha      float64 `yaml:"alpha" validate:"gt=0,lt=1"`
	Ratio      float64 `yaml:"ratio" validate:"gt=0"`
	Jump       float64 `yaml:"jump" validate:"gt=0,lt=1"`
	Tolerance  float64 `yaml:"tolerance" validate:"gt=0"`
	Workers    int     `yaml:"workers" validate:"gte=0"`
	Clustering string  `yaml:"clustering" validate:"oneof=none mroc louvain"`
	Resolution float64 `yaml:"resolution" validate:"gt=0"`
	Seed       uint64  `yaml:"seed"`
}

// OutputConfig places result files.
type OutputConfig struct {
	Dir string `yaml:"dir" validate:"required"`
	GML bool   `yaml:"gml"`
	// GMLCells sets summary edge values from the number of member edges
	// ("edges") or their summed weight ("weights").
	GMLCells string `yaml:"gml_cells" validate:"oneof=edges weights"`
	// Snapshot also saves the flow matrix in the binary snapshot format.
	Snapshot bool `yaml:"snapshot"`
}

// StoreConfig selects the result database. An empty driver disables it.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=sqlite postgres"`
	DSN    string `yaml:"dsn"`
}

// ArtifactsConfig enables upload of result files to S3.
type ArtifactsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // S3-compatible endpoint; empty uses AWS
	// Static credentials; empty uses the default AWS chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// MetricsConfig enables the textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LoggingConfig configures the run logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Default returns the built-in configuration.
func Default() *Config {
	lpa := community.DefaultConfig()
	ent := entitygraph.DefaultInfluenceOptions()
	return &Config{
		Community: CommunityConfig{
			Mode:          lpa.Mode.String(),
			MaxIterations: lpa.MaxIterations,
			MinGain:       lpa.MinGain,
			Merge:         true,
			SeedGroups:    true,
		},
		Propagation: PropagationConfig{
			Mode: "bipartite",
		},
		Entity: EntityConfig{
			Mode:       "influence",
			Alpha:      ent.Alpha,
			Ratio:      ent.Ratio,
			Jump:       ent.Jump,
			Tolerance:  ent.Tolerance,
			Workers:    runtime.NumCPU(),
			Clustering: "mroc",
			Resolution: 1,
		},
		Output: OutputConfig{
			Dir:      "out",
			GML:      true,
			GMLCells: "edges",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads only the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cv := validation.NewConfigValidator("Config")
	cv.When(c.Store.Driver != "", func(v *validation.ConfigValidator) {
		v.Required("Store.DSN", c.Store.DSN)
	})
	cv.When(c.Artifacts.Enabled, func(v *validation.ConfigValidator) {
		v.Required("Artifacts.Bucket", c.Artifacts.Bucket)
	})
	cv.When(c.Artifacts.AccessKeyID != "", func(v *validation.ConfigValidator) {
		v.Required("Artifacts.SecretAccessKey", c.Artifacts.SecretAccessKey)
	})
	cv.When(c.Ingest.ResolveASN, func(v *validation.ConfigValidator) {
		v.Required("Ingest.ASNMap", c.Ingest.ASNMap)
	})
	cv.When(c.Ingest.Service != "", func(v *validation.ConfigValidator) {
		v.OneOf("Ingest.Service", c.Ingest.Service, ingest.Services)
	})
	if err := cv.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LPAConfig returns the label propagation settings.
func (c *Config) LPAConfig(logger logging.Logger) community.Config {
	mode, _ := community.ParseMode(c.Community.Mode)
	return community.Config{
		Mode:          mode,
		MaxIterations: c.Community.MaxIterations,
		MinGain:       c.Community.MinGain,
		Logger:        logger,
	}
}

// PropagationOptions returns the solver settings for the configured mode,
// with explicit values layered over the mode defaults.
func (c *Config) PropagationOptions(logger logging.Logger) propagation.Options {
	opts := propagation.DefaultBipartiteOptions()
	if c.Propagation.Mode == "community" {
		opts = propagation.DefaultCommunityOptions()
	}
	if c.Propagation.Tolerance > 0 {
		opts.Tolerance = c.Propagation.Tolerance
	}
	if c.Propagation.MaxIterations > 0 {
		opts.MaxIterations = c.Propagation.MaxIterations
	}
	if c.Propagation.LogWeights != nil {
		opts.LogWeights = *c.Propagation.LogWeights
	}
	opts.Logger = logger
	return opts
}

// EntityOptions returns the significance graph settings for the configured
// mode.
func (c *Config) EntityOptions(logger logging.Logger) entitygraph.Options {
	opts := entitygraph.DefaultInfluenceOptions()
	if c.Entity.Mode == "hierarchy" {
		opts = entitygraph.DefaultHierarchyOptions()
	}
	if c.Entity.MinDays > 0 {
		opts.MinDays = c.Entity.MinDays
	}
	opts.Alpha = c.Entity.Alpha
	opts.Ratio = c.Entity.Ratio
	opts.Jump = c.Entity.Jump
	opts.Tolerance = c.Entity.Tolerance
	opts.Workers = c.Entity.Workers
	opts.Logger = logger
	return opts
}

// NewLogger builds the run logger writing to stderr.
func (c *Config) NewLogger() (logging.Logger, error) {
	return logging.New(os.Stderr, logging.ParseLevel(c.Logging.Level), c.Logging.Format)
}
