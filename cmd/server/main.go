// Package main is the entry point for the voice translation bridge server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voice-translation-bridge/internal/app"
	"voice-translation-bridge/internal/config"
	api "voice-translation-bridge/internal/http"
	"voice-translation-bridge/internal/observability"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "voice-translation-bridge",
	Short: "Live bidirectional voice translation for contact-center calls",
	Long: `voice-translation-bridge runs the dual-channel translation pipeline:
capture, streaming transcription, translation, synthesis and playback,
one direction per channel.

Configuration comes from a YAML file plus environment overrides
(TRANSCRIBE_ENDPOINT, KAFKA_BROKERS, LOG_LEVEL, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	if err := application.Start(); err != nil {
		return err
	}

	obs := observability.NewDiagnostics(":" + cfg.MetricsPort)
	obs.Start()

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(application),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		application.Logger.Info().Str("addr", server.Addr).Msg("control API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		application.Logger.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-errCh:
		application.Logger.Error().Err(err).Msg("control API server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		application.Logger.Warn().Err(err).Msg("control API shutdown failed")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		application.Logger.Warn().Err(err).Msg("observability shutdown failed")
	}
	application.Shutdown()
	return nil
}
