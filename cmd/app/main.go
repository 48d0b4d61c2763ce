// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"flashcard-generator/internal/config"
	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/ports/adapter"
	"flashcard-generator/internal/domain/ports/repository"
	aiAdapters "flashcard-generator/internal/infra/adapters/ai"
	tele "flashcard-generator/internal/infra/adapters/telegram"
	"flashcard-generator/internal/infra/api"
	pg "flashcard-generator/internal/infra/db/postgres"
	"flashcard-generator/internal/infra/inspect"
	"flashcard-generator/internal/infra/logging"
	"flashcard-generator/internal/infra/metrics"
	red "flashcard-generator/internal/infra/redis"
	"flashcard-generator/internal/infra/tokens"
	"flashcard-generator/internal/infra/worker"
	"flashcard-generator/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

const usage = `usage: flashcards [-config file] [-dev] <command> [args]

commands:
  batch <folder>                       convert every PDF/image under folder
  files [-prompt file] <file>...       convert the given files, print the cards
  compare [-prompts file] <file>...    run each prompt template against each file and rank them
  serve                                run the admin server only
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: noop document service, console logs")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled: documents are not sent to any service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	a, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup")
	}
	defer a.close()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		logger.Error().Err(err).Msg("run failed")
		a.close()
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	log     *zerolog.Logger
	ai      adapter.DocumentAI
	batch   usecase.BatchUseCase
	exec    *usecase.BatchExecutor
	trunc   usecase.Truncator
	admin   *api.Server
	closers []func()
	closed  bool
}

func build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger}

	// ---- Document service ----
	ai, err := newDocumentAI(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)
	logger.Info().Str("provider", ai.Name()).Str("model", cfg.AI.Model).Msg("document service ready")

	var (
		dispatchOpts = []worker.DispatcherOption{worker.WithPageCounter(inspect.NewInspector())}
		execOpts     []usecase.ExecutorOption
		ledger       repository.JobRepository
	)

	// ---- Redis (result cache + batch lock) ----
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		dispatchOpts = append(dispatchOpts, worker.WithResultCache(red.NewResultCache(rc, cfg.Redis.TTL)))
		execOpts = append(execOpts, usecase.WithLocker(red.NewLocker(rc), time.Hour))
		logger.Info().Dur("ttl", cfg.Redis.TTL).Msg("result cache enabled")
	}

	// ---- Postgres (job ledger) ----
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		go pg.ReportPoolStats(ctx, pool, 15*time.Second)
		ledger = pg.NewJobRepo(pool, pg.NewTxManager(pool))
		execOpts = append(execOpts, usecase.WithJobRepository(ledger))
		logger.Info().Msg("job ledger enabled")
	}

	// ---- Notifier ----
	var notifier adapter.Notifier = tele.NewNoopNotifier(logger)
	if t := cfg.Notify.Telegram; t.Token != "" && t.ChatID != 0 {
		bot, err := tele.NewBotNotifier(t.Token, t.ChatID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier = bot
		}
	}
	execOpts = append(execOpts, usecase.WithNotifier(notifier))

	// ---- Admin server ----
	if cfg.Admin.Port > 0 {
		a.admin = api.NewServer(ledger, logger)
		go func() {
			if err := a.admin.Start(cfg.Admin.Port); err != nil {
				logger.Error().Err(err).Msg("admin server")
			}
		}()
		a.closers = append(a.closers, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.admin.Shutdown(sctx)
		})
	}

	// ---- Use cases ----
	d := worker.NewDispatcher(a.ai, worker.Options{
		MaxWorkers:       cfg.Dispatch.MaxWorkers,
		MaxAttempts:      cfg.Dispatch.MaxAttempts,
		RateLimitDelay:   cfg.Dispatch.RateLimitDelay,
		RetryDelay:       cfg.Dispatch.RetryDelay,
		PostSuccessPause: cfg.PostSuccessPause(),
		CallTimeout:      cfg.AI.CallTimeout,
		SkipExisting:     cfg.SkipExisting(),
		Model:            cfg.AI.Model,
	}, logger, dispatchOpts...)
	a.exec = usecase.NewBatchExecutor(d, logger, execOpts...)

	prompt, err := usecase.LoadPrompt(cfg.Output.PromptFile)
	if err != nil {
		a.close()
		return nil, err
	}
	a.batch = usecase.NewBatchUseCase(a.exec, cfg.Output.Dir, prompt, logger)
	a.trunc = tokens.NewTruncator(cfg.Compare.Encoding, cfg.Compare.EvalTokenBudget, logger)
	return a, nil
}

func newDocumentAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.DocumentAI, error) {
	if cfg.Runtime.Dev && cfg.APIKey() == "" {
		return aiAdapters.NewNoopAIAdapter(logger), nil
	}
	switch cfg.AI.Provider {
	case "openai":
		return aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.Model, cfg.AI.MaxOutputTokens)
	case "metis":
		return aiAdapters.NewMetisAdapter(cfg.AI.MetisKey, cfg.AI.Model, cfg.AI.MetisBaseURL, cfg.AI.MaxOutputTokens)
	case "gemini":
		return aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.Model, cfg.AI.MaxOutputTokens)
	default:
		return nil, fmt.Errorf("ai.provider %q: %w", cfg.AI.Provider, domain.ErrInvalidArgument)
	}
}

func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
