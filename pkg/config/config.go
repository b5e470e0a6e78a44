// Package config loads engine configuration as a struct of defaults,
// optionally overlaid with a TOML/YAML/JSON file via koanf, plus per-job
// option overrides merged on top for a single task.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/plagiscan/engine/pkg/model"
)

// Config holds process-wide defaults for the engine.
type Config struct {
	K                    int     `koanf:"k"`
	W                    int     `koanf:"w"`
	MinSubtreeTokens     int     `koanf:"min_subtree_tokens"`
	CandidateThreshold   float64 `koanf:"candidate_threshold"`
	Gap                  int     `koanf:"gap"`
	MinMatchKgrams       int     `koanf:"min_match_kgrams"`
	MaxCandidatesPerFile int     `koanf:"max_candidates_per_file"`

	Store StoreConfig `koanf:"store"`
}

// StoreConfig controls the fingerprint store's eviction policy.
type StoreConfig struct {
	TTLHours int    `koanf:"ttl_hours"`
	MaxBytes int64  `koanf:"max_bytes"`
	BoltPath string `koanf:"bolt_path"`
}

// Default returns the engine's built-in defaults.
func Default() Config {
	return Config{
		K:                    6,
		W:                    5,
		MinSubtreeTokens:     20,
		CandidateThreshold:   0.15,
		Gap:                  2,
		MinMatchKgrams:       2,
		MaxCandidatesPerFile: 256,
		Store: StoreConfig{
			TTLHours: 24,
			MaxBytes: 512 * 1024 * 1024,
		},
	}
}

// Load reads defaults, then overlays a config file if path is non-empty.
// The file format is inferred from its extension (.toml, .yaml/.yml, .json).
func Load(path string) (Config, error) {
	def := Default()
	k := koanf.New(".")
	if err := k.Load(structs.Provider(def, "koanf"), nil); err != nil {
		return def, fmt.Errorf("config: seed defaults: %w", err)
	}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return def, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return def, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	var out Config
	if err := k.Unmarshal("", &out); err != nil {
		return def, fmt.Errorf("config: unmarshal: %w", err)
	}
	return out, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := extOf(path); ext {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unrecognized extension %q", ext)
	}
}

// ToOptions converts the process-wide Config into per-job model.Options, the
// shape the similarity engine consumes.
func (c Config) ToOptions() model.Options {
	return model.Options{
		K:                    c.K,
		W:                    c.W,
		MinSubtreeTokens:     c.MinSubtreeTokens,
		CandidateThreshold:   c.CandidateThreshold,
		Gap:                  c.Gap,
		MinMatchKgrams:       c.MinMatchKgrams,
		MaxCandidatesPerFile: c.MaxCandidatesPerFile,
	}
}

// Merge overlays a job's per-call options on top of c, treating a zero value
// in override as "use the default".
func (c Config) Merge(override model.Options) model.Options {
	out := c.ToOptions()
	if override.K != 0 {
		out.K = override.K
	}
	if override.W != 0 {
		out.W = override.W
	}
	if override.MinSubtreeTokens != 0 {
		out.MinSubtreeTokens = override.MinSubtreeTokens
	}
	if override.CandidateThreshold != 0 {
		out.CandidateThreshold = override.CandidateThreshold
	}
	if override.Gap != 0 {
		out.Gap = override.Gap
	}
	if override.MinMatchKgrams != 0 {
		out.MinMatchKgrams = override.MinMatchKgrams
	}
	if override.MaxCandidatesPerFile != 0 {
		out.MaxCandidatesPerFile = override.MaxCandidatesPerFile
	}
	return out
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}
