package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/reviewbot/internal/bot"
	"github.com/example/reviewbot/internal/config"
	"github.com/example/reviewbot/internal/conversation"
	"github.com/example/reviewbot/internal/database"
	"github.com/example/reviewbot/internal/excel"
	"github.com/example/reviewbot/internal/logging"
	"github.com/example/reviewbot/internal/scheduler"
	"github.com/example/reviewbot/internal/spaced_repetition"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "reviewbot",
		Short:         "Telegram bot that reminds you to review vocabulary",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config yaml")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the review scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireToken(); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, cfg)
		},
	}

	var userID int64
	var sheet string
	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import words for a user from an xlsx or csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg, args[0], userID, sheet)
		},
	}
	importCmd.Flags().Int64Var(&userID, "user", 0, "telegram user id that owns the words")
	importCmd.Flags().StringVar(&sheet, "sheet", "Sheet1", "sheet name for xlsx files")
	_ = importCmd.MarkFlagRequired("user")

	root.AddCommand(serve, importCmd)
	return root
}

func openStore(cfg *config.Config, log zerolog.Logger) (*database.Store, error) {
	store, err := database.Open(database.Config{Type: cfg.Database.Type, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Str("type", cfg.Database.Type).Msg("database connected")
	return store, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging.Level, cfg.Logging.Console)

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	api, err := bot.NewAPI(cfg.Telegram.Token, cfg.Telegram.Debug)
	if err != nil {
		return err
	}
	log.Info().Str("account", api.Self.UserName).Msg("authorized")

	strategy, err := spaced_repetition.NewStrategy(cfg.Review.RatingStrategy)
	if err != nil {
		return err
	}
	predictor := spaced_repetition.LoadPredictor(cfg.Review.ModelsDir, log)
	evaluator := spaced_repetition.NewEvaluator(store, predictor, strategy, log)

	b := bot.New(api, store, bot.Config{
		RatePerSec:  cfg.Telegram.RatePerSec,
		PollTimeout: cfg.Telegram.PollTimeout,
	}, log)
	machine := conversation.NewMachine(conversation.NewRegistry(), evaluator, b, store, log)
	b.SetConversations(machine)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(scheduler.Config{
			ReviewInterval:   cfg.Scheduler.ReviewInterval,
			RetryBackoff:     cfg.Scheduler.RetryBackoff,
			ConversationTTL:  cfg.Scheduler.ConversationTTL,
			BroadcastEnabled: cfg.Scheduler.BroadcastEnabled,
			BroadcastHour:    cfg.Scheduler.BroadcastHour,
			BroadcastMinute:  cfg.Scheduler.BroadcastMinute,
			Location:         time.UTC,
		}, store, b, machine, log)
		if err := sched.Start(ctx); err != nil {
			return err
		}
	} else {
		log.Warn().Msg("scheduler disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Start(gctx) })

	log.Info().Str("strategy", strategy.Name()).Str("predictor", predictor.Name()).Msg("bot started")
	err = g.Wait()

	if sched != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := sched.Stop(shutdownCtx); stopErr != nil {
			log.Error().Err(stopErr).Msg("error during shutdown")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("bot stopped")
	return nil
}

func runImport(ctx context.Context, cfg *config.Config, path string, userID int64, sheet string) error {
	log := logging.New(cfg.Logging.Level, cfg.Logging.Console)

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("user %d: %w", userID, err)
	}

	ic := excel.DefaultImportConfig()
	ic.FilePath = path
	ic.UserID = userID
	ic.SheetName = sheet

	res, err := excel.ImportWords(ctx, store, ic, time.Now().UTC())
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		log.Warn().Str("file", path).Msg(e)
	}
	log.Info().
		Int("processed", res.TotalProcessed).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Msg("import finished")
	return nil
}
