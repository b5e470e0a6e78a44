package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/plagiscan/engine/pkg/model"
)

// jobOptionsSchema constrains the `options` map a broker-delivered job may
// carry. It is intentionally permissive about omission — every
// property is optional, since an absent field falls back to the engine
// default — but rejects out-of-range values outright rather than letting
// them silently degrade into nonsensical fingerprints.
const jobOptionsSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"k":                       {"type": "integer", "minimum": 1},
		"w":                       {"type": "integer", "minimum": 1},
		"min_subtree_tokens":      {"type": "integer", "minimum": 1},
		"candidate_threshold":     {"type": "number", "minimum": 0, "maximum": 1},
		"gap":                     {"type": "integer", "minimum": 0},
		"min_match_kgrams":        {"type": "integer", "minimum": 1},
		"max_candidates_per_file": {"type": "integer", "minimum": 1}
	},
	"additionalProperties": false
}`

var compiledJobOptionsSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(jobOptionsSchema)))
	if err != nil {
		panic(fmt.Sprintf("config: invalid embedded job options schema: %v", err))
	}
	const resourceURL = "mem://plagiscan/job-options.schema.json"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		panic(fmt.Sprintf("config: add embedded schema resource: %v", err))
	}
	compiledJobOptionsSchema, err = compiler.Compile(resourceURL)
	if err != nil {
		panic(fmt.Sprintf("config: compile embedded job options schema: %v", err))
	}
}

// ValidateJobOptions validates a raw, broker-delivered options payload
// against the schema above and decodes it into model.Options. A schema
// violation returns a wrapped model.ErrInvalidOptions so the task runner can
// treat it as unrecoverable and dead-letter the job.
func ValidateJobOptions(raw map[string]any) (model.Options, error) {
	if raw == nil {
		return model.Options{}, nil
	}
	if err := compiledJobOptionsSchema.Validate(raw); err != nil {
		return model.Options{}, fmt.Errorf("%w: %v", model.ErrInvalidOptions, err)
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return model.Options{}, fmt.Errorf("%w: %v", model.ErrInvalidOptions, err)
	}

	var opts struct {
		K                    int     `json:"k"`
		W                    int     `json:"w"`
		MinSubtreeTokens     int     `json:"min_subtree_tokens"`
		CandidateThreshold   float64 `json:"candidate_threshold"`
		Gap                  int     `json:"gap"`
		MinMatchKgrams       int     `json:"min_match_kgrams"`
		MaxCandidatesPerFile int     `json:"max_candidates_per_file"`
	}
	if err := json.Unmarshal(encoded, &opts); err != nil {
		return model.Options{}, fmt.Errorf("%w: %v", model.ErrInvalidOptions, err)
	}

	return model.Options{
		K:                    opts.K,
		W:                    opts.W,
		MinSubtreeTokens:     opts.MinSubtreeTokens,
		CandidateThreshold:   opts.CandidateThreshold,
		Gap:                  opts.Gap,
		MinMatchKgrams:       opts.MinMatchKgrams,
		MaxCandidatesPerFile: opts.MaxCandidatesPerFile,
	}, nil
}
