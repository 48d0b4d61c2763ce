// File: internal/usecase/compare_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
	"flashcard-generator/internal/infra/logging"
)

// Compile-time check
var _ CompareUseCase = (*compareUC)(nil)

type CompareUseCase interface {
	// Compare runs every prompt variant against one document and asks the
	// service to rank the results.
	Compare(ctx context.Context, inputFile string, variants []model.PromptVariant) (*CompareReport, error)
}

// Truncator bounds a variant's output before it is embedded in the ranking prompt.
type Truncator interface {
	Truncate(text string) (string, bool)
}

type CompareReport struct {
	BatchID        string
	InputFile      string
	Summary        model.BatchSummary
	Results        *model.ResultSet
	Evaluation     *model.Evaluation // nil when nothing succeeded or ranking failed
	EvaluationPath string
	EvaluationErr  error
}

const (
	defaultEvalRunes = 2000
	truncatedMarker  = "... [truncated]"
)

type compareUC struct {
	exec      *BatchExecutor
	ai        adapter.DocumentAI
	trunc     Truncator
	outputDir string
	log       *zerolog.Logger
}

func NewCompareUseCase(exec *BatchExecutor, ai adapter.DocumentAI, trunc Truncator, outputDir string, logger *zerolog.Logger) *compareUC {
	if trunc == nil {
		trunc = runeTruncator(defaultEvalRunes)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &compareUC{exec: exec, ai: ai, trunc: trunc, outputDir: outputDir, log: logger}
}

func (c *compareUC) Compare(ctx context.Context, inputFile string, variants []model.PromptVariant) (*CompareReport, error) {
	if len(variants) == 0 {
		return nil, domain.ErrNoPrompts
	}
	if _, err := FilterInputs([]string{inputFile}); err != nil {
		return nil, fmt.Errorf("%s: %w", inputFile, err)
	}
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	stem := model.Stem(inputFile)
	jobs := make([]*model.Job, 0, len(variants))
	tokens := variantTokens(variants)
	for i, v := range variants {
		job := model.NewJob(i, inputFile, v.Text, c.outputDir)
		job.PromptName = v.Name
		job.Header = CompareHeader(v.Name)
		job.OutputPath = filepath.Join(c.outputDir, stem+"_"+tokens[i]+model.OutputSuffix)
		job.SkipExisting = true
		jobs = append(jobs, job)
	}

	c.log.Info().Str("file", inputFile).Int("prompts", len(variants)).Msg("testing prompts")
	rs, err := c.exec.Execute(ctx, filepath.Base(inputFile), batchLockKey(filepath.Join(c.outputDir, stem)), jobs)
	if err != nil {
		return nil, err
	}

	report := &CompareReport{
		BatchID:        rs.BatchID,
		InputFile:      inputFile,
		Summary:        rs.Summary(),
		Results:        rs,
		EvaluationPath: filepath.Join(c.outputDir, stem+"_evaluation.txt"),
	}
	report.Evaluation, report.EvaluationErr = c.evaluate(ctx, report.EvaluationPath, rs)
	if report.EvaluationErr != nil {
		c.log.Error().Err(report.EvaluationErr).Msg("evaluation failed")
	} else if report.Evaluation != nil {
		c.log.Info().Strs("top_templates", report.Evaluation.TopTemplates).
			Str("path", report.EvaluationPath).Msg("evaluation complete")
	}
	return report, nil
}

// evaluate reuses a saved evaluation, or ranks the successful variants and saves the answer.
func (c *compareUC) evaluate(ctx context.Context, path string, rs *model.ResultSet) (*model.Evaluation, error) {
	if b, err := os.ReadFile(path); err == nil {
		text := string(b)
		return &model.Evaluation{Text: text, TopTemplates: ParseTopTemplates(text), Reused: true}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	ok := rs.Succeeded()
	if len(ok) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := c.ai.GenerateText(ctx, EvaluationPrompt(c.sections(ok)))
	if err != nil {
		return nil, fmt.Errorf("rank prompts: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write evaluation: %w", err)
	}
	return &model.Evaluation{Text: text, TopTemplates: ParseTopTemplates(text)}, nil
}

func (c *compareUC) sections(jobs []*model.Job) string {
	var b strings.Builder
	for _, j := range jobs {
		content, cut := c.trunc.Truncate(j.Result)
		if cut {
			content += truncatedMarker
		}
		fmt.Fprintf(&b, "\n### %s\n%s\n\n", j.PromptName, content)
	}
	return b.String()
}

// variantTokens returns a distinct file token per variant. Names that
// sanitize to the same token get a numeric suffix in input order.
func variantTokens(variants []model.PromptVariant) []string {
	used := make(map[string]bool, len(variants))
	out := make([]string, len(variants))
	for i, v := range variants {
		tok := v.FileToken()
		for n := 2; used[tok]; n++ {
			tok = v.FileToken() + "_" + strconv.Itoa(n)
		}
		used[tok] = true
		out[i] = tok
	}
	return out
}

type runeTruncator int

func (n runeTruncator) Truncate(text string) (string, bool) {
	r := []rune(text)
	if len(r) <= int(n) {
		return text, false
	}
	return string(r[:n]), true
}
