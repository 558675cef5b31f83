// Package mic implements the enginectl "mic" subcommand: capture from the
// default input device, run it through the live stream pipeline, and print
// a one-line metrics summary per chunk until interrupted.
package mic

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tphakala/voiceengine/internal/chunkassembler"
	"github.com/tphakala/voiceengine/internal/config"
	"github.com/tphakala/voiceengine/internal/denoiser"
	"github.com/tphakala/voiceengine/internal/engine"
	"github.com/tphakala/voiceengine/internal/source"
)

// Command builds the "mic" subcommand.
func Command(cfg *config.EngineConfig) *cobra.Command {
	var chunkMs int

	cmd := &cobra.Command{
		Use:   "mic",
		Short: "Process live microphone audio until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
			go func() {
				<-sigChan
				fmt.Println("\nshutting down...")
				cancel()
			}()

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

			e.On("chunk", func(payload any) {
				if c, ok := payload.(chunkassembler.Chunk); ok {
					fmt.Printf("chunk %d: %+v\n", c.Index, c.Metrics)
				}
			})

			mic := source.NewMicSource("default", source.MicConfig{})
			sc, err := e.ProcessStream(mic.SampleRate(), &engine.ChunkOptions{ChunkDurationMs: chunkMs})
			if err != nil {
				return fmt.Errorf("starting stream: %w", err)
			}

			if err := mic.Start(ctx, func(samples []float32) {
				sc.PushInput(samples)
			}); err != nil {
				return fmt.Errorf("starting microphone: %w", err)
			}

			<-ctx.Done()
			_ = mic.Stop()
			e.StopStream(sc.ID())
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.Flags().IntVar(&chunkMs, "chunk-ms", 1000, "Chunk duration in milliseconds")

	return cmd
}
