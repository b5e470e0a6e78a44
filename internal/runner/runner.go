// Package runner implements the Task Runner: it turns a Task into indexed
// fingerprints, an enumerated set of pairs, and a written PairResult per
// pair, while honoring idempotency, retry, and cancellation rules.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plagiscan/engine/internal/fileproc"
	"github.com/plagiscan/engine/internal/progress"
	"github.com/plagiscan/engine/pkg/candidate"
	"github.com/plagiscan/engine/pkg/config"
	"github.com/plagiscan/engine/pkg/fingerprint"
	"github.com/plagiscan/engine/pkg/index"
	"github.com/plagiscan/engine/pkg/model"
	"github.com/plagiscan/engine/pkg/similarity"
	"github.com/plagiscan/engine/pkg/store"
)

// DefaultTimeout is the job timeout used when the caller supplies none.
const DefaultTimeout = 10 * time.Minute

// BytesFetcher resolves a FileRef's bytes_ref to raw content. This is the
// one true I/O boundary of a job; everything downstream works in content
// hashes.
type BytesFetcher interface {
	Fetch(ctx context.Context, ref model.FileRef) ([]byte, error)
}

// ResultSink is the persistent store interface: upserts keyed by
// (task_id, hash_a, hash_b), with a way to check whether a pair was
// already written so retries can skip it.
type ResultSink interface {
	WritePairResult(ctx context.Context, taskID string, result model.PairResult) error
	HasResult(ctx context.Context, taskID string, hashA, hashB model.ContentHash) (bool, error)
}

// Runner executes Tasks against a shared Store/Index. One Runner is meant
// to be shared across many concurrent jobs; per-job state (the resolved
// file set, the task-scoped Engine) lives only in Run's locals.
type Runner struct {
	fpStore        *store.FingerprintStore
	index          *index.InvertedIndex
	builder        *fingerprint.Builder
	selector       *candidate.Selector
	cache          *store.ResultCache
	globalResolver similarity.FileResolver
	fetcher        BytesFetcher
	sink           ResultSink
}

// New wires a Runner from its collaborators. globalResolver answers for
// content hashes outside the current task (cross-task candidates already
// indexed by a prior job); fpStore's eviction listener should already be
// bound to index.Remove so the two stay consistent. The result cache is
// constructed once here and shared by every Run call, so single-flight
// de-duplication and cache hits span concurrent and successive jobs.
func New(fpStore *store.FingerprintStore, idx *index.InvertedIndex, builder *fingerprint.Builder, globalResolver similarity.FileResolver, fetcher BytesFetcher, sink ResultSink) *Runner {
	return &Runner{
		fpStore:        fpStore,
		index:          idx,
		builder:        builder,
		selector:       candidate.New(idx),
		cache:          store.NewResultCache(fpStore),
		globalResolver: globalResolver,
		fetcher:        fetcher,
		sink:           sink,
	}
}

// taskResolver answers similarity.FileResolver from the set of files
// already resolved for the running task, without touching the network
// again; every hash a within-task compare needs was already fetched in
// step 1. Cross-task candidate hashes fall through to the Runner's
// globalResolver.
type taskResolver struct {
	files    map[model.ContentHash]model.SourceFile
	fallback similarity.FileResolver
}

func (r *taskResolver) Resolve(hash model.ContentHash) (model.SourceFile, error) {
	if f, ok := r.files[hash]; ok {
		return f, nil
	}
	if r.fallback != nil {
		return r.fallback.Resolve(hash)
	}
	return model.SourceFile{}, fmt.Errorf("content hash %s not resolvable", hash)
}

// Run executes one Task end to end: validate options, resolve bytes,
// fingerprint and index, enumerate pairs, compare, and write results. It
// returns a non-nil error only when the job as a whole is unrecoverable:
// invalid options, unsupported language, store unavailability, a
// FingerprintUnavailable that survived its one retry, or timeout.
// Tolerated per-pair errors (TokenizeError, ParseError) never reach the
// caller — they are folded into degraded PairResults instead.
func (r *Runner) Run(ctx context.Context, task model.Task, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	validated, err := config.ValidateJobOptions(rawOptionsMap(task.Options))
	if err != nil {
		return err
	}
	opts := fillDefaults(validated)

	files, err := r.resolveFiles(ctx, task)
	if err != nil {
		return err
	}

	resolver := &taskResolver{
		files:    make(map[model.ContentHash]model.SourceFile, len(files)),
		fallback: r.globalResolver,
	}
	withinTask := make([]model.ContentHash, 0, len(files))
	for _, f := range files {
		resolver.files[f.ContentHash] = f
		withinTask = append(withinTask, f.ContentHash)
	}
	engine := similarity.New(r.fpStore, r.cache, r.builder, resolver)

	if err := r.fingerprintAndIndex(ctx, files, opts); err != nil {
		return err
	}

	pairs := r.enumeratePairs(files, withinTask, opts)

	tracker := progress.NewTracker(task.TaskID, len(pairs))
	ctx = progress.WithTracker(ctx, tracker)
	defer tracker.FinishSuccess()

	items := make([]fileproc.Item[pairKey], len(pairs))
	for i, p := range pairs {
		items[i] = fileproc.Item[pairKey]{Label: string(p.a) + ":" + string(p.b), Value: p}
	}

	_, procErrs := fileproc.MapItems(ctx, items, func(ctx context.Context, p pairKey) (struct{}, error) {
		return struct{}{}, r.comparePair(ctx, engine, task.TaskID, p.a, p.b, opts)
	})

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", model.ErrTimeout, ctx.Err())
	}
	if procErrs != nil {
		for _, e := range procErrs.Errors {
			if isUnrecoverable(e.Err) {
				return e.Err
			}
		}
	}
	return nil
}

func (r *Runner) resolveFiles(ctx context.Context, task model.Task) ([]model.SourceFile, error) {
	items := make([]fileproc.Item[model.FileRef], len(task.Files))
	for i, ref := range task.Files {
		items[i] = fileproc.Item[model.FileRef]{Label: ref.FileID, Value: ref}
	}

	results, procErrs := fileproc.MapItems(ctx, items, func(ctx context.Context, ref model.FileRef) (model.SourceFile, error) {
		bytes, err := r.fetcher.Fetch(ctx, ref)
		if err != nil {
			return model.SourceFile{}, fmt.Errorf("%w: fetching %s: %v", model.ErrStoreUnavailable, ref.FileID, err)
		}
		language := ref.Language
		if language == "" {
			language = task.Language
		}
		return model.SourceFile{
			ContentHash: model.HashBytes(bytes),
			Language:    language,
			Bytes:       bytes,
		}, nil
	})
	if procErrs != nil {
		return nil, procErrs.Errors[0].Err
	}
	return results, nil
}

// fingerprintAndIndex builds and stores both fingerprints per file, and
// indexes the file once both are available. An UnsupportedLanguage error
// aborts the whole task; a TokenizeError is tolerated per file — that
// file simply has no token fingerprint to index.
func (r *Runner) fingerprintAndIndex(ctx context.Context, files []model.SourceFile, opts model.Options) error {
	items := make([]fileproc.Item[model.SourceFile], len(files))
	for i, f := range files {
		items[i] = fileproc.Item[model.SourceFile]{Label: string(f.ContentHash), Value: f}
	}

	_, procErrs := fileproc.MapItems(ctx, items, func(_ context.Context, f model.SourceFile) (struct{}, error) {
		if tokenFP, ok := r.fpStore.GetTokenFP(f.ContentHash); ok {
			// Already fingerprinted (e.g. loaded from a durable store);
			// IndexFile is idempotent, so indexing again is harmless.
			astFP, _ := r.fpStore.GetAstFP(f.ContentHash)
			r.index.IndexFile(f.ContentHash, tokenFP, astFP)
			return struct{}{}, nil
		}

		tokenFP, err := r.builder.BuildToken(f, opts.K, opts.W)
		if err != nil {
			if errors.Is(err, model.ErrUnsupportedLanguage) {
				return struct{}{}, err
			}
			// TokenizeError: no fingerprint for this file, but the task
			// continues.
			return struct{}{}, nil
		}
		r.fpStore.PutTokenFP(f.ContentHash, tokenFP)

		astFP, _ := r.builder.BuildAst(f, opts.MinSubtreeTokens) // ParseError tolerated, yields empty fp
		r.fpStore.PutAstFP(f.ContentHash, astFP)

		r.index.IndexFile(f.ContentHash, tokenFP, astFP)
		return struct{}{}, nil
	})

	if procErrs != nil {
		for _, e := range procErrs.Errors {
			if errors.Is(e.Err, model.ErrUnsupportedLanguage) {
				return e.Err
			}
		}
	}
	return nil
}

type pairKey struct {
	a, b model.ContentHash
}

// enumeratePairs builds the within-task N*(N-1)/2 set plus cross-task
// global candidates not already covered. Byte-identical files share a
// content hash, so their pair is the single (hash, hash) pair; it is kept,
// since identical submissions are the plainest case to report.
func (r *Runner) enumeratePairs(files []model.SourceFile, withinTask []model.ContentHash, opts model.Options) []pairKey {
	seen := make(map[string]bool)
	var pairs []pairKey

	addPair := func(a, b model.ContentHash) {
		key := model.PairKey(a, b)
		if seen[key] {
			return
		}
		seen[key] = true
		hashA, hashB, _ := model.CanonicalPair(a, b)
		pairs = append(pairs, pairKey{a: hashA, b: hashB})
	}

	for i := 0; i < len(withinTask); i++ {
		for j := i + 1; j < len(withinTask); j++ {
			addPair(withinTask[i], withinTask[j])
		}
	}

	for _, f := range files {
		tokenFP, ok := r.fpStore.GetTokenFP(f.ContentHash)
		if !ok {
			continue
		}
		cands := r.selector.CandidatesFor(tokenFP, candidate.ScopeGlobal, withinTask, opts.CandidateThreshold, opts.MaxCandidatesPerFile)
		for _, c := range cands {
			addPair(f.ContentHash, c)
		}
	}

	return pairs
}

// comparePair writes a PairResult for (a, b) unless one already exists for
// this task, making retries idempotent. FingerprintUnavailable is retried
// once with the backing fingerprints evicted; a second failure propagates.
func (r *Runner) comparePair(ctx context.Context, engine *similarity.Engine, taskID string, a, b model.ContentHash, opts model.Options) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	already, err := r.sink.HasResult(ctx, taskID, a, b)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	if already {
		return nil
	}

	result, err := engine.Compare(a, b, opts)
	if err != nil && errors.Is(err, model.ErrFingerprintUnavail) {
		r.fpStore.Evict(a)
		r.fpStore.Evict(b)
		result, err = engine.Compare(a, b, opts)
	}
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		// Abandon without writing: a cancelled job must not leave a
		// partial write behind.
		return ctx.Err()
	}

	if err := r.sink.WritePairResult(ctx, taskID, *result); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

func isUnrecoverable(err error) bool {
	return errors.Is(err, model.ErrUnsupportedLanguage) ||
		errors.Is(err, model.ErrStoreUnavailable) ||
		errors.Is(err, model.ErrFingerprintUnavail) ||
		errors.Is(err, model.ErrInvalidOptions)
}

// rawOptionsMap reduces a Task's already-typed Options back to the sparse
// map shape config.ValidateJobOptions expects: only fields the caller
// actually set are present, so an unset (zero) field still falls back to
// the engine default rather than tripping the schema's minimums.
func rawOptionsMap(o model.Options) map[string]any {
	raw := make(map[string]any, 7)
	if o.K != 0 {
		raw["k"] = o.K
	}
	if o.W != 0 {
		raw["w"] = o.W
	}
	if o.MinSubtreeTokens != 0 {
		raw["min_subtree_tokens"] = o.MinSubtreeTokens
	}
	if o.CandidateThreshold != 0 {
		raw["candidate_threshold"] = o.CandidateThreshold
	}
	if o.Gap != 0 {
		raw["gap"] = o.Gap
	}
	if o.MinMatchKgrams != 0 {
		raw["min_match_kgrams"] = o.MinMatchKgrams
	}
	if o.MaxCandidatesPerFile != 0 {
		raw["max_candidates_per_file"] = o.MaxCandidatesPerFile
	}
	return raw
}

func fillDefaults(o model.Options) model.Options {
	if o.K <= 0 {
		o.K = 6
	}
	if o.W <= 0 {
		o.W = 5
	}
	if o.MinSubtreeTokens <= 0 {
		o.MinSubtreeTokens = 20
	}
	if o.CandidateThreshold <= 0 {
		o.CandidateThreshold = 0.15
	}
	if o.Gap <= 0 {
		o.Gap = 2
	}
	if o.MinMatchKgrams <= 0 {
		o.MinMatchKgrams = 2
	}
	if o.MaxCandidatesPerFile <= 0 {
		o.MaxCandidatesPerFile = 256
	}
	return o
}
