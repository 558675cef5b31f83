// Package file implements the enginectl "file" subcommand: run the full
// frame pipeline over a WAV file to completion and write the enhanced
// result, grounded on the teacher's cmd/file subcommand.
package file

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/voiceengine/internal/config"
	"github.com/tphakala/voiceengine/internal/denoiser"
	"github.com/tphakala/voiceengine/internal/engine"
)

// Command builds the "file" subcommand.
func Command(cfg *config.EngineConfig) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Denoise a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading input file: %w", err)
			}

			validated, err := config.New(*cfg)
			if err != nil {
				return fmt.Errorf("invalid engine config: %w", err)
			}

			e, err := engine.New(validated, denoiser.NewNoopAdapter())
			if err != nil {
				return fmt.Errorf("constructing engine: %w", err)
			}
			defer func() { _ = e.Destroy(true) }()

			if err := e.Initialize(); err != nil {
				return fmt.Errorf("initializing engine: %w", err)
			}

			out, err := e.ProcessFile(data)
			if err != nil {
				return fmt.Errorf("processing file: %w", err)
			}

			if outputPath == "" {
				outputPath = args[0] + ".denoised.wav"
			}
			if err := os.WriteFile(outputPath, out, 0o644); err != nil {
				return fmt.Errorf("writing output file: %w", err)
			}

			fmt.Printf("wrote %s\n", outputPath)
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().StringVarP(&outputPath, "output", "o", viper.GetString("output"), "Path to write the enhanced WAV")
	_ = viper.BindPFlags(cmd.Flags())

	return cmd
}
