package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/adapters/driving/api"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/logger"
)

var (
	serveAddr          string
	serveWithScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves search, document browsing, statistics and streamed chat over HTTP.

Routes:
  GET  /api/health
  GET  /api/search?q=...&page=&per_page=&source=
  GET  /api/documents?page=&per_page=&source=&status=
  GET  /api/documents/{id}
  GET  /api/documents/{id}/file
  GET  /api/sources
  GET  /api/stats
  POST /api/chat            (server-sent events)
  GET  /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run pipeline tasks on their schedules",
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler in the foreground",
	Long: `Runs acquisition, extraction, index update and vector ingestion on their
configured cron schedules until interrupted. A task never overlaps itself.`,
	Args: cobra.NoArgs,
	RunE: runScheduleRun,
}

var scheduleNowCmd = &cobra.Command{
	Use:   "now [task-id]",
	Short: "Run one task immediately",
	Long:  "Runs one task now, regardless of its schedule. Tasks: " + strings.Join(domain.TaskIDs, ", ") + ".",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleNow,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8000)")
	serveCmd.Flags().BoolVar(&serveWithScheduler, "with-scheduler", false, "also run scheduled tasks in the background")
	rootCmd.AddCommand(serveCmd)

	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleNowCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if searchService == nil || documentService == nil {
		return errors.New("search and document services not configured")
	}

	ctx := cmd.Context()

	if serveWithScheduler && scheduler != nil {
		schedulerCtx, schedulerCancel := context.WithCancel(ctx)
		defer schedulerCancel()

		go func() {
			if err := scheduler.Start(schedulerCtx); err != nil {
				logger.Error("scheduler stopped: %v", err)
			}
		}()

		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Error("scheduler stop: %v", err)
			}
		}()
	}

	cfg := serverConfig
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	server := api.NewServer(cfg, api.Services{
		Search:      searchService,
		Documents:   documentService,
		Stats:       statsService,
		Acquisition: acquisitionService,
		Chat:        chatService,
		Metrics:     metricsHandler,
	})

	cmd.Printf("HTTP API listening on %s\n", server.Addr())
	return server.Run(ctx)
}

func runScheduleRun(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}
	cmd.Println("Scheduler running (Ctrl+C to stop)...")
	if err := scheduler.Start(cmd.Context()); err != nil {
		return fmt.Errorf("scheduler failed: %w", err)
	}
	return nil
}

func runScheduleNow(cmd *cobra.Command, args []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}
	taskID := args[0]
	cmd.Printf("Running task %s...\n", taskID)
	if err := scheduler.RunNow(cmd.Context(), taskID); err != nil {
		return fmt.Errorf("task %s failed: %w", taskID, err)
	}
	cmd.Printf("Task %s completed.\n", taskID)
	return nil
}
