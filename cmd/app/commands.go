package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"flashcard-generator/internal/usecase"
)

var errUsage = errors.New("usage")

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "batch":
		return a.runBatch(ctx, args)
	case "files":
		return a.runFiles(ctx, args, os.Stdout)
	case "compare":
		return a.runCompare(ctx, args)
	case "serve":
		return a.serve(ctx)
	default:
		return errUsage
	}
}

func (a *app) runBatch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	report, err := a.batch.Run(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(report.Summary.Message())
	fmt.Printf("Combined notes saved to: %s\n", report.NotesPath)
	return nil
}

func (a *app) runFiles(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("files", flag.ContinueOnError)
	promptFile := fs.String("prompt", "", "file with a custom prompt")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}
	prompt := ""
	if *promptFile != "" {
		p, err := usecase.LoadPrompt(*promptFile)
		if err != nil {
			return err
		}
		prompt = p
	}
	report, err := a.batch.RunFiles(ctx, fs.Args(), prompt)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, report.Text)
	fmt.Fprintln(out, report.Summary.Message())
	return nil
}

func (a *app) runCompare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	promptsFile := fs.String("prompts", a.cfg.Compare.PromptsFile, "markdown file with ## titled prompt blocks")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}
	variants, err := usecase.LoadPrompts(*promptsFile)
	if err != nil {
		return err
	}
	a.log.Info().Int("prompts", len(variants)).Str("file", *promptsFile).Msg("loaded prompt templates")

	uc := usecase.NewCompareUseCase(a.exec, a.ai, a.trunc, a.cfg.Compare.OutputDir, a.log)
	var failed int
	for _, input := range fs.Args() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report, err := uc.Compare(ctx, input, variants)
		if err != nil {
			a.log.Error().Err(err).Str("file", input).Msg("compare failed")
			failed++
			continue
		}
		printEvaluation(report)
	}
	if failed == fs.NArg() {
		return fmt.Errorf("all %d comparisons failed", failed)
	}
	return nil
}

func printEvaluation(r *usecase.CompareReport) {
	fmt.Printf("%s: %s\n", r.InputFile, r.Summary.Message())
	switch {
	case r.EvaluationErr != nil:
		fmt.Printf("  evaluation failed: %v\n", r.EvaluationErr)
	case r.Evaluation == nil:
		fmt.Println("  no successful templates to evaluate")
	default:
		for i, name := range r.Evaluation.TopTemplates {
			fmt.Printf("  %d. %s\n", i+1, name)
		}
		fmt.Printf("  evaluation saved to: %s\n", r.EvaluationPath)
	}
	for _, j := range r.Results.Failed() {
		fmt.Printf("  failed: %s (%s)\n", j.PromptName, j.LastError)
	}
}

func (a *app) serve(ctx context.Context) error {
	if a.admin == nil {
		return fmt.Errorf("serve: admin.port is not set")
	}
	a.log.Info().Msg("serving until interrupted")
	<-ctx.Done()
	return nil
}
