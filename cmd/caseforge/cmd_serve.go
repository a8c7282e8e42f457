package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"caseforge/internal/config"
	"caseforge/internal/logging"
	"caseforge/internal/server"
	"caseforge/internal/toon"
)

var (
	serveHost     string
	servePort     int
	serveStateDir string
	serveSchema   string
	serveCorpus   string
	serveSeed     int64
	serveWatch    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Démarre le coordinateur HTTP",
	Long: `Charge le schema maître et le corpus de seeds, rejoue les journaux du
répertoire d'état, puis sert les routes /health, /dashboard,
/next-instruction et /submit-case jusqu'à SIGINT ou SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		if cmd.Flags().Changed("state-dir") {
			cfg.StateDir = serveStateDir
		}
		if cmd.Flags().Changed("schema") {
			cfg.SchemaFile = serveSchema
		}
		if cmd.Flags().Changed("corpus") {
			cfg.CorpusFile = serveCorpus
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = serveSeed
		}
		if cmd.Flags().Changed("watch-schema") {
			cfg.WatchSchema = serveWatch
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := logging.Initialize(cfg.LogDir()); err != nil {
			return err
		}
		defer logging.Close()
		logging.SetLevel(cfg.Log.Level)
		if verbose {
			logging.SetLevel("debug")
		}

		timeout, err := cfg.CodecTimeout()
		if err != nil {
			return err
		}
		cacheTTL, err := cfg.CodecCacheTTL()
		if err != nil {
			return err
		}
		codec := toon.NewCLI(cfg.Codec.Command, timeout, cacheTTL, cfg.Codec.Retries)

		app, err := server.New(cfg, codec)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("coordinateur démarré",
			zap.String("addr", cfg.Addr()),
			zap.String("state_dir", cfg.StateDir),
			zap.String("schema", cfg.SchemaFile))
		return app.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "adresse d'écoute")
	serveCmd.Flags().IntVar(&servePort, "port", 8765, "port d'écoute")
	serveCmd.Flags().StringVar(&serveStateDir, "state-dir", "", "répertoire d'état de la campagne")
	serveCmd.Flags().StringVar(&serveSchema, "schema", "", "schema maître (exemplaire JSON)")
	serveCmd.Flags().StringVar(&serveCorpus, "corpus", "", "corpus de seeds (JSONL)")
	serveCmd.Flags().Int64Var(&serveSeed, "seed", 42, "graine déterministe de la campagne")
	serveCmd.Flags().BoolVar(&serveWatch, "watch-schema", false, "recharge le schema à chaud")
}
