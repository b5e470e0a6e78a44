// Package model defines the core data types shared by every stage of the
// plagiarism engine: source files, fingerprints, the inverted index's
// posting keys, and pairwise results.
package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// EngineVersion is mixed into every fingerprint hash seed. Bumping it
// invalidates fingerprints computed by a prior version without requiring an
// explicit cache migration — old entries simply miss and get recomputed.
const EngineVersion uint64 = 1

// Language tags recognized by the built-in adapters. Callers may pass other
// tags; unsupported ones fail with ErrUnsupportedLanguage at tokenize/parse
// time.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangJava       Language = "java"
	LangGo         Language = "go"
	LangRust       Language = "rust"
)

// Sentinel errors distinguishing degraded-but-continuable failures from
// ones that abort a whole task.
var (
	ErrUnsupportedLanguage = errors.New("plagiscan: unsupported language")
	ErrParseFailed         = errors.New("plagiscan: parse error")
	ErrTokenizeFailed      = errors.New("plagiscan: tokenize error")
	ErrFingerprintUnavail  = errors.New("plagiscan: fingerprint unavailable")
	ErrStoreUnavailable    = errors.New("plagiscan: store unavailable")
	ErrTimeout             = errors.New("plagiscan: timeout")
	ErrInvalidOptions      = errors.New("plagiscan: invalid options")
)

// ContentHash is a hex-encoded BLAKE3-256 digest of a file's raw bytes. It
// never mixes in language or path, so identical bytes always hash the same
// regardless of where they were submitted from.
type ContentHash string

// HashBytes computes the ContentHash of raw file bytes.
func HashBytes(b []byte) ContentHash {
	sum := blake3.Sum256(b)
	return ContentHash(hex.EncodeToString(sum[:]))
}

func (h ContentHash) String() string { return string(h) }

// SourceFile is the immutable, read-only view the engine holds of a
// submitted file. Ownership of the bytes belongs to the submission record;
// the engine never mutates this.
type SourceFile struct {
	ContentHash ContentHash
	Language    Language
	LineCount   int
	Bytes       []byte
}

// Span is a 1-based, inclusive line range within a SourceFile.
type Span struct {
	StartLine int
	EndLine   int
}

// union returns the smallest span enclosing both s and o.
func (s Span) union(o Span) Span {
	out := s
	if o.StartLine < out.StartLine {
		out.StartLine = o.StartLine
	}
	if o.EndLine > out.EndLine {
		out.EndLine = o.EndLine
	}
	return out
}

// TokenFingerprint is the winnowed k-gram fingerprint of a file's
// normalized token stream.
type TokenFingerprint struct {
	ContentHash  ContentHash
	Hashes       []uint64
	Positions    map[uint64][]Span
	TotalKgrams  int
}

// HasHash reports whether h was emitted by this fingerprint.
func (fp *TokenFingerprint) HasHash(h uint64) bool {
	_, ok := fp.Positions[h]
	return ok
}

// AstFingerprint is the set of canonical subtree hashes of a file's AST
// whose subtree size meets the configured minimum.
type AstFingerprint struct {
	ContentHash   ContentHash
	Hashes        []uint64
	TotalSubtrees int
}

// Match is a line-range correspondence between file A and file B grounded
// in at least one shared token-fingerprint hash.
type Match struct {
	AStart int
	AEnd   int
	BStart int
	BEnd   int
}

// PairResult is the outcome of comparing two files.
type PairResult struct {
	HashA           ContentHash
	HashB           ContentHash
	TokenSimilarity float64
	AstSimilarity   float64
	Matches         []Match
	Reason          string // set when a degraded or early-exit result was produced, e.g. "below candidate threshold"
}

// CanonicalPair orders two hashes so hashA < hashB lexicographically, so a
// pair is cached and indexed under one key regardless of submission order.
// It returns whether the inputs were already in order (swapped == false) or
// needed flipping.
func CanonicalPair(a, b ContentHash) (hashA, hashB ContentHash, swapped bool) {
	if a == b {
		return a, b, false
	}
	if strings.Compare(string(a), string(b)) <= 0 {
		return a, b, false
	}
	return b, a, true
}

// PairKey is the string cache/index key for a canonicalized pair.
func PairKey(a, b ContentHash) string {
	ca, cb, _ := CanonicalPair(a, b)
	return fmt.Sprintf("%s:%s", ca, cb)
}

// SortMatches sorts matches by AStart ascending for stable, readable reports.
func SortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool { return matches[i].AStart < matches[j].AStart })
}

// Task is the external job descriptor the task runner consumes. It is
// referenced only by ID elsewhere in the engine; the runner resolves file
// bytes via the caller-supplied FileRef.BytesRef.
type Task struct {
	TaskID   string
	Files    []FileRef
	Language Language
	Options  Options
}

// FileRef identifies one file within a Task.
type FileRef struct {
	FileID      string
	ContentHash ContentHash
	Language    Language
	BytesRef    string // opaque handle resolved by the runner's BytesFetcher
}

// Options holds the tunable parameters of a comparison job. Zero values
// mean "use the default" and are filled in by the task runner
// (internal/runner) before reaching the engine.
type Options struct {
	K                    int
	W                    int
	MinSubtreeTokens     int
	CandidateThreshold   float64
	Gap                  int
	MinMatchKgrams       int
	MaxCandidatesPerFile int
}
