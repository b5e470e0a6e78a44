// Package candidate implements a pre-filter over the inverted index that
// proposes cross-task comparison targets beyond a task's own files, capped
// at max_candidates_per_file.
package candidate

import (
	"github.com/plagiscan/engine/pkg/index"
	"github.com/plagiscan/engine/pkg/model"
)

// Scope controls whether candidates are drawn from the task's own files or
// from the whole index.
type Scope int

const (
	// ScopeWithinTask is a no-op pre-filter: within a task, all unordered
	// pairs are always compared regardless of what the index says — the
	// selector is a pre-filter, not a gate.
	ScopeWithinTask Scope = iota
	// ScopeGlobal draws candidates from the entire index.
	ScopeGlobal
)

const defaultMaxCandidatesPerFile = 256

// Selector wraps an InvertedIndex with scope handling and the
// max_candidates_per_file cap.
type Selector struct {
	idx *index.InvertedIndex
}

// New constructs a Selector over idx.
func New(idx *index.InvertedIndex) *Selector {
	return &Selector{idx: idx}
}

// CandidatesFor returns candidate content hashes for fp. For ScopeWithinTask
// it returns within, unfiltered and uncapped, since within-task comparison
// is mandatory rather than index-gated. For ScopeGlobal it queries the
// inverted index and caps the result at maxPerFile (default 256 when
// maxPerFile <= 0), using candidate_threshold as the index's
// min_overlap_ratio.
func (s *Selector) CandidatesFor(fp *model.TokenFingerprint, scope Scope, within []model.ContentHash, candidateThreshold float64, maxPerFile int) []model.ContentHash {
	if scope == ScopeWithinTask {
		out := make([]model.ContentHash, 0, len(within))
		for _, h := range within {
			if h != fp.ContentHash {
				out = append(out, h)
			}
		}
		return out
	}

	if maxPerFile <= 0 {
		maxPerFile = defaultMaxCandidatesPerFile
	}
	cands := s.idx.CandidatesForToken(fp, candidateThreshold)
	if len(cands) > maxPerFile {
		cands = cands[:maxPerFile]
	}
	out := make([]model.ContentHash, len(cands))
	for i, c := range cands {
		out[i] = c.ContentHash
	}
	return out
}
