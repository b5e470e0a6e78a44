package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plagiscan/engine/pkg/model"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Equal(t, 6, cfg.K)
	require.Equal(t, 5, cfg.W)
	require.Equal(t, 20, cfg.MinSubtreeTokens)
	require.InDelta(t, 0.15, cfg.CandidateThreshold, 1e-9)
	require.Equal(t, 2, cfg.Gap)
	require.Equal(t, 2, cfg.MinMatchKgrams)
	require.Equal(t, 256, cfg.MaxCandidatesPerFile)
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plagiscan.toml")
	require.NoError(t, os.WriteFile(path, []byte("k = 8\ngap = 4\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.K)
	require.Equal(t, 4, cfg.Gap)
	// Untouched fields keep their defaults.
	require.Equal(t, 5, cfg.W)
	require.Equal(t, 256, cfg.MaxCandidatesPerFile)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plagiscan.ini")
	require.NoError(t, os.WriteFile(path, []byte("k=8"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestMergeZeroValuesFallBackToDefault(t *testing.T) {
	cfg := Default()
	merged := cfg.Merge(model.Options{K: 10})

	require.Equal(t, 10, merged.K)
	require.Equal(t, cfg.W, merged.W)
	require.Equal(t, cfg.Gap, merged.Gap)
}

func TestValidateJobOptionsNil(t *testing.T) {
	opts, err := ValidateJobOptions(nil)
	require.NoError(t, err)
	require.Equal(t, model.Options{}, opts)
}

func TestValidateJobOptionsValid(t *testing.T) {
	opts, err := ValidateJobOptions(map[string]any{
		"k":                   8.0,
		"candidate_threshold": 0.2,
	})
	require.NoError(t, err)
	require.Equal(t, 8, opts.K)
	require.InDelta(t, 0.2, opts.CandidateThreshold, 1e-9)
}

func TestValidateJobOptionsOutOfRange(t *testing.T) {
	_, err := ValidateJobOptions(map[string]any{"candidate_threshold": 1.5})
	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrInvalidOptions)
}

func TestValidateJobOptionsUnknownField(t *testing.T) {
	_, err := ValidateJobOptions(map[string]any{"bogus_field": 1})
	require.Error(t, err)
}
