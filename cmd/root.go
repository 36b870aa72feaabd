package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/telegrab/internal/config"
	"github.com/tanq16/telegrab/internal/delivery"
	"github.com/tanq16/telegrab/internal/engine"
	"github.com/tanq16/telegrab/internal/queue"
	"github.com/tanq16/telegrab/internal/session"
	"github.com/tanq16/telegrab/internal/telegram"
	"github.com/tanq16/telegrab/internal/types"
	"github.com/tanq16/telegrab/internal/upload"
	"github.com/tanq16/telegrab/internal/utils"
	"github.com/tanq16/telegrab/internal/worker"
)

var (
	configPath string
	debug      bool
)

var TelegrabVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "telegrab",
	Short:   "Telegrab is a chat bot that fetches media from links you send it",
	Version: TelegrabVersion,
	RunE: func(cmd *cobra.Command, args []string) error {
		utils.InitLogger(debug)
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading config: %v", err)
		}
		return run(cfg)
	},
}

func run(cfg *config.Config) error {
	eng, err := engine.New(cfg)
	if err != nil {
		return fmt.Errorf("error setting up download engine: %v", err)
	}

	var uploader types.Uploader
	if cfg.S3.Bucket != "" {
		host, err := upload.NewS3Host(cfg.S3)
		if err != nil {
			return fmt.Errorf("error setting up fallback host: %v", err)
		}
		uploader = host
	} else {
		log.Warn().Str("op", "cmd/run").Msg("no fallback host configured, oversized files cannot be delivered")
	}

	sessions := session.NewStore()
	jobs := queue.New()
	bot, err := telegram.NewBot(cfg.BotToken, cfg.PollTimeout, eng, sessions, jobs)
	if err != nil {
		return fmt.Errorf("error connecting to Telegram: %v", err)
	}

	strategy := delivery.New(bot, uploader, cfg.InlineLimitBytes(), time.Duration(cfg.FetchTimeout))
	w := worker.New(jobs, eng, bot, strategy, cfg.DownloadDir, cfg.AdminChatID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The worker gets its own context so queued jobs still finish after a
	// shutdown signal stops the update stream.
	workerDone := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(workerDone)
	}()

	bot.Run(ctx)

	// Drain everything already queued before exiting.
	log.Info().Str("op", "cmd/run").Msg("shutting down, finishing queued jobs")
	jobs.Close()
	<-workerDone
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (TELEGRAB_* env vars override)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
