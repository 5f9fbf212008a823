package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ruralpay/payments-engine/internal/audit"
	"github.com/ruralpay/payments-engine/internal/config"
	"github.com/ruralpay/payments-engine/internal/database"
	"github.com/ruralpay/payments-engine/internal/handlers"
	"github.com/ruralpay/payments-engine/internal/ingest"
	"github.com/ruralpay/payments-engine/internal/logging"
	"github.com/ruralpay/payments-engine/internal/models"
	"github.com/ruralpay/payments-engine/internal/report"
	"github.com/ruralpay/payments-engine/internal/services"
)

const usage = `usage:
  payments-engine [flags] transactions.csv > accounts.csv
  payments-engine serve [flags]

flags:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("payments-engine", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}
	defer logger.Sync()

	policy, err := services.ParseLockedPolicy(cfg.Engine.LockedPolicy)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rest := flags.Args()
	if len(rest) == 1 && rest[0] == "serve" {
		if err := serve(ctx, cfg, policy, logger); err != nil {
			logger.Error("server failed", zap.Error(err))
			return 1
		}
		return 0
	}
	if len(rest) != 1 {
		flags.Usage()
		return 2
	}

	if err := replayFile(ctx, rest[0], os.Stdout, cfg, policy, logger); err != nil {
		logger.Error("replay failed", zap.String("path", rest[0]), zap.Error(err))
		return 1
	}
	return 0
}

// replayFile replays a CSV file and writes the report to out. When the
// source fails mid-stream the state accumulated so far is still reported.
func replayFile(ctx context.Context, path string, out io.Writer, cfg *config.Config, policy services.LockedPolicy, logger *zap.Logger) error {
	writer, err := report.NewWriter(cfg.Engine.OutputFormat)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	src, err := ingest.NewCSVSource(f)
	if err != nil {
		return err
	}

	book := services.NewAccountBook(nil, policy)
	replayer := services.NewReplayer(book, audit.NewAuditLogger(logger), logger)
	summary, runErr := replayer.Run(ctx, src)

	snapshots := book.Snapshot()
	if err := writer.Write(out, snapshots); err != nil {
		return errors.Join(runErr, fmt.Errorf("writing report: %w", err))
	}

	if cfg.Engine.ExportToDB {
		if err := exportSnapshot(ctx, cfg, summary, snapshots, logger); err != nil {
			return errors.Join(runErr, fmt.Errorf("exporting snapshot: %w", err))
		}
	}
	return runErr
}

func exportSnapshot(ctx context.Context, cfg *config.Config, summary services.RunSummary, snapshots []models.AccountSnapshot, logger *zap.Logger) error {
	db, err := database.OpenPostgres(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := services.NewSnapshotStore(db).Save(ctx, summary, snapshots); err != nil {
		return err
	}
	logger.Info("snapshot exported", zap.String("run_id", summary.RunID), zap.Int("accounts", len(snapshots)))
	return nil
}

func serve(ctx context.Context, cfg *config.Config, policy services.LockedPolicy, logger *zap.Logger) error {
	redisClient := database.InitRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := services.NewReportCache(redisClient, cfg.Redis.CacheTTL)

	replayHandler := handlers.NewReplayHandler(cache, policy, cfg.Server.MaxBodyBytes, logger)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(replayHandler, cfg.AuthKey),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
