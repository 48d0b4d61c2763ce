// File: internal/usecase/batch_uc.go
package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/infra/logging"
)

// Compile-time check
var _ BatchUseCase = (*batchUC)(nil)

type BatchUseCase interface {
	// Run converts every supported document under sourceDir and writes the
	// combined notes file next to the per-document outputs.
	Run(ctx context.Context, sourceDir string) (*BatchReport, error)
	// RunFiles converts an explicit file list with an optional custom prompt.
	// Outputs live in a scratch directory; the text is returned in the report.
	RunFiles(ctx context.Context, paths []string, prompt string) (*BatchReport, error)
}

// BatchReport is the aggregated outcome of one batch.
type BatchReport struct {
	BatchID   string
	Source    string
	OutputDir string
	NotesPath string // Run only
	Text      string // RunFiles only: "# <file>\n<cards>\n" sections
	Summary   model.BatchSummary
	Results   *model.ResultSet
}

type batchUC struct {
	exec      *BatchExecutor
	outputDir string
	prompt    string
	log       *zerolog.Logger
}

// NewBatchUseCase builds the batch flow. An empty prompt selects DefaultPrompt.
func NewBatchUseCase(exec *BatchExecutor, outputDir, prompt string, logger *zerolog.Logger) *batchUC {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &batchUC{exec: exec, outputDir: outputDir, prompt: prompt, log: logger}
}

func (b *batchUC) Run(ctx context.Context, sourceDir string) (*BatchReport, error) {
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, err
	}
	inputs, err := CollectInputs(abs, b.log)
	if err != nil {
		return nil, err
	}

	folder := filepath.Base(abs)
	outDir := filepath.Join(b.outputDir, folder)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	b.log.Info().Int("files", len(inputs)).Str("output", outDir).Msg("found files to process")

	jobs := buildJobs(inputs, b.prompt, outDir)
	rs, err := b.exec.Execute(ctx, folder, batchLockKey(outDir), jobs)
	if err != nil {
		return nil, err
	}

	notesPath := filepath.Join(outDir, folder+"_notes.txt")
	if err := os.WriteFile(notesPath, []byte(rs.Notes()), 0o644); err != nil {
		return nil, fmt.Errorf("write notes: %w", err)
	}
	b.log.Info().Str("path", notesPath).Msg("combined notes saved")

	return &BatchReport{
		BatchID:   rs.BatchID,
		Source:    abs,
		OutputDir: outDir,
		NotesPath: notesPath,
		Summary:   rs.Summary(),
		Results:   rs,
	}, nil
}

func (b *batchUC) RunFiles(ctx context.Context, paths []string, prompt string) (*BatchReport, error) {
	inputs, err := FilterInputs(paths)
	if err != nil {
		return nil, err
	}
	if prompt == "" {
		prompt = b.prompt
	}

	scratch, err := os.MkdirTemp("", "flashcards-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	rs, err := b.exec.Execute(ctx, "upload", "", buildJobs(inputs, prompt, scratch))
	if err != nil {
		return nil, err
	}
	return &BatchReport{
		BatchID: rs.BatchID,
		Source:  "upload",
		Text:    rs.Sections(),
		Summary: rs.Summary(),
		Results: rs,
	}, nil
}

// buildJobs creates one job per input. Inputs from different sub-directories
// that share a stem get a numeric suffix so no output is overwritten.
func buildJobs(inputs []string, prompt, outDir string) []*model.Job {
	jobs := make([]*model.Job, 0, len(inputs))
	seen := map[string]int{}
	for i, p := range inputs {
		job := model.NewJob(i, p, prompt, outDir)
		stem := model.Stem(p)
		seen[stem]++
		if n := seen[stem]; n > 1 {
			job.OutputPath = filepath.Join(outDir, stem+"_"+strconv.Itoa(n)+model.OutputSuffix)
		}
		jobs = append(jobs, job)
	}
	return jobs
}
