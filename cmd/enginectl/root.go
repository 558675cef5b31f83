// Package main hosts the enginectl CLI: a thin cobra/viper wrapper around
// the voice engine for file-mode batch processing and live microphone
// capture, mirroring the teacher's cmd/root.go + cmd/file subcommand
// layout.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	enginefile "github.com/tphakala/voiceengine/cmd/enginectl/file"
	enginemic "github.com/tphakala/voiceengine/cmd/enginectl/mic"
	"github.com/tphakala/voiceengine/internal/config"
	"github.com/tphakala/voiceengine/internal/logging"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	cfg := &config.EngineConfig{}

	root := &cobra.Command{
		Use:   "enginectl",
		Short: "Voice enhancement engine CLI",
	}

	var logLevel string
	if err := setupFlags(root, cfg, &logLevel); err != nil {
		slog.Error("error setting up flags", "error", err)
	}

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg.LogLevel = parseLogLevel(logLevel)
		logging.Init(logging.Config{Level: cfg.LogLevel})
	}

	root.AddCommand(enginefile.Command(cfg), enginemic.Command(cfg))
	return root
}

func setupFlags(cmd *cobra.Command, cfg *config.EngineConfig, logLevel *string) error {
	cmd.PersistentFlags().BoolVar(&cfg.AllowDegraded, "allow-degraded", viper.GetBool("allow_degraded"), "Run without a real denoiser if one is unavailable")
	cmd.PersistentFlags().BoolVar(&cfg.AGCEnabled, "agc", viper.GetBool("agc"), "Enable automatic gain control")
	cmd.PersistentFlags().Float64Var(&cfg.AGCTargetLevel, "agc-target", viper.GetFloat64("agc_target"), "AGC target RMS level (0,1]")
	cmd.PersistentFlags().Float64Var(&cfg.InputGain, "input-gain", viper.GetFloat64("input_gain"), "Static input gain multiplier [0.5,10.0]")
	cmd.PersistentFlags().StringVar(logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return viper.BindPFlags(cmd.PersistentFlags())
}

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
