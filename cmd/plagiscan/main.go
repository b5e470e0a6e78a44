// Command plagiscan is the local CLI entrypoint for the plagiarism
// detection engine: it turns a directory of source files into a Task,
// runs it against the Store/Index/Runner pipeline, persists results in
// BadgerDB, and prints a report — standing in for the broker/HTTP
// submission surface that production deployments would use instead.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/plagiscan/engine/internal/logging"
	"github.com/plagiscan/engine/internal/runner"
	"github.com/plagiscan/engine/pkg/config"
	"github.com/plagiscan/engine/pkg/fingerprint"
	"github.com/plagiscan/engine/pkg/index"
	"github.com/plagiscan/engine/pkg/model"
	"github.com/plagiscan/engine/pkg/persist/badgerstore"
	"github.com/plagiscan/engine/pkg/report"
	"github.com/plagiscan/engine/pkg/store"
	"github.com/plagiscan/engine/pkg/store/boltstore"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "plagiscan",
		Usage:   "Source code plagiarism detection engine",
		Version: version,
		Description: `plagiscan fingerprints and compares source files for shared origin,
using token winnowing and AST subtree hashing.

Supports: Python, JavaScript, TypeScript, Java, Go, Rust, C, C++`,
		Commands: []*cli.Command{
			runCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Compare every file under the given paths pairwise",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to config file (TOML, YAML, or JSON)"},
			&cli.StringFlag{Name: "task-id", Value: "local", Usage: "Task identifier to group results under"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Output format: text, json, markdown, toon"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write report to file instead of stdout"},
			&cli.StringFlag{Name: "results-db", Value: "plagiscan-results.badger", Usage: "Path to the BadgerDB results store"},
			&cli.StringFlag{Name: "bolt-store", Usage: "Optional path to a durable bbolt fingerprint store"},
			&cli.DurationFlag{Name: "timeout", Value: runner.DefaultTimeout, Usage: "Job timeout"},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable verbose logging"},
		},
		Action: runRunCmd,
	}
}

func getPaths(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return []string{"."}
}

func runRunCmd(c *cli.Context) error {
	log := logging.New()
	if c.Bool("verbose") {
		log = log.WithLevel(logging.LevelDebug)
	}
	log = log.With("task_id", c.String("task-id"))

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	paths := getPaths(c.Args().Slice())
	files, err := discoverFiles(paths)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		color.Yellow("No recognized source files found")
		return nil
	}
	log.Info("discovered %d files", len(files))

	idx := index.New()
	fpStore := store.NewFingerprintStore(
		time.Duration(cfg.Store.TTLHours)*time.Hour,
		cfg.Store.MaxBytes,
		idx.Remove, // eviction must purge the inverted index's postings too
	)

	var bstore *boltstore.Store
	if boltPath := c.String("bolt-store"); boltPath != "" {
		bstore, err = boltstore.Open(boltPath)
		if err != nil {
			return err
		}
		defer bstore.Close()
		log.Info("using durable fingerprint store at %s", boltPath)
		warmStart(fpStore, bstore, files)
	}

	resultsDB, err := badgerstore.Open(c.String("results-db"))
	if err != nil {
		return err
	}
	defer resultsDB.Close()

	builder := fingerprint.NewBuilder()
	r := runner.New(fpStore, idx, builder, nil, localFetcher{}, resultsDB)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	task := model.Task{
		TaskID:  c.String("task-id"),
		Files:   files,
		Options: cfg.ToOptions(),
	}

	log.Info("running task with %d files", len(files))
	if err := r.Run(ctx, task, c.Duration("timeout")); err != nil {
		return fmt.Errorf("task failed: %w", err)
	}

	if bstore != nil {
		persistBack(fpStore, bstore, files)
	}

	results, err := resultsDB.ResultsForTask(task.TaskID)
	if err != nil {
		return err
	}

	rows := make([]report.PairRow, 0, len(results))
	byHash := fileLabelsByHash(files)
	for _, res := range results {
		rows = append(rows, report.PairRow{
			FileA:  byHash[res.HashA],
			FileB:  byHash[res.HashB],
			Result: res,
		})
	}

	formatter, err := report.NewFormatter(report.ParseFormat(c.String("format")), c.String("output"), true)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(report.NewTaskReport(task.TaskID, rows))
}

// localFetcher resolves a FileRef's bytes_ref as a local filesystem path —
// the engine's one I/O boundary when run without a submission broker.
type localFetcher struct{}

func (localFetcher) Fetch(_ context.Context, ref model.FileRef) ([]byte, error) {
	return os.ReadFile(ref.BytesRef)
}

// warmStart loads any fingerprints already on disk from a prior run into
// the in-memory store, so a restarted process skips recomputation for
// files it has already fingerprinted.
func warmStart(fpStore *store.FingerprintStore, bstore *boltstore.Store, files []model.FileRef) {
	for _, f := range files {
		if tokenFP, ok, err := bstore.GetTokenFP(f.ContentHash); err == nil && ok {
			fpStore.PutTokenFP(f.ContentHash, tokenFP)
		}
		if astFP, ok, err := bstore.GetAstFP(f.ContentHash); err == nil && ok {
			fpStore.PutAstFP(f.ContentHash, astFP)
		}
	}
}

// persistBack mirrors freshly computed fingerprints into the durable
// store so the next run's warmStart can pick them up.
func persistBack(fpStore *store.FingerprintStore, bstore *boltstore.Store, files []model.FileRef) {
	for _, f := range files {
		if tokenFP, ok := fpStore.GetTokenFP(f.ContentHash); ok {
			bstore.PutTokenFP(f.ContentHash, tokenFP)
		}
		if astFP, ok := fpStore.GetAstFP(f.ContentHash); ok {
			bstore.PutAstFP(f.ContentHash, astFP)
		}
	}
}

func fileLabelsByHash(files []model.FileRef) map[model.ContentHash]string {
	labels := make(map[model.ContentHash]string, len(files))
	for _, f := range files {
		labels[f.ContentHash] = f.FileID
	}
	return labels
}

var extToLanguage = map[string]model.Language{
	".py":   model.LangPython,
	".js":   model.LangJavaScript,
	".jsx":  model.LangJavaScript,
	".ts":   model.LangTypeScript,
	".tsx":  model.LangTypeScript,
	".java": model.LangJava,
	".go":   model.LangGo,
	".rs":   model.LangRust,
	".c":    model.LangC,
	".h":    model.LangC,
	".cpp":  model.LangCPP,
	".cc":   model.LangCPP,
	".hpp":  model.LangCPP,
}

func discoverFiles(paths []string) ([]model.FileRef, error) {
	var refs []model.FileRef
	for _, root := range paths {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			language, ok := extToLanguage[filepath.Ext(path)]
			if !ok {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			refs = append(refs, model.FileRef{
				FileID:      path,
				ContentHash: model.HashBytes(content),
				Language:    language,
				BytesRef:    path,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return refs, nil
}
