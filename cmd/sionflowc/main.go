// Command sionflowc compiles a tensor-dataflow manifest into a
// cartridge (§6.3).
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sionflow/sionflowc/internal/config"
	"github.com/sionflow/sionflowc/pkg/compiler"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Config{}

	cmd := &cobra.Command{
		Use:   "sionflowc <input.mfapp|input.json> [output.sfc]",
		Short: "Compile a sionflow manifest into a cartridge",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.InputPath = args[0]
			if len(args) == 2 {
				cfg.OutputPath = args[1]
			} else {
				ext := filepath.Ext(cfg.InputPath)
				cfg.OutputPath = strings.TrimSuffix(cfg.InputPath, ext) + ".sfc"
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&cfg.KeepIR, "keep-ir", false, "dump compile stats (totals over all kernels) as JSON alongside the cartridge")
	flags.IntVar(&cfg.Threads, "threads", 0, "override runtime.threads from the manifest")

	return cmd
}

func run(cfg config.Config) error {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	c := compiler.Compiler{SourceFile: cfg.InputPath, Threads: cfg.Threads, Log: log}
	result, err := c.Compile()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	if err := os.WriteFile(cfg.OutputPath, result.Cartridge, 0o644); err != nil {
		return fmt.Errorf("write cartridge %s: %w", cfg.OutputPath, err)
	}

	if cfg.KeepIR {
		statsPath := strings.TrimSuffix(cfg.OutputPath, filepath.Ext(cfg.OutputPath)) + ".stats.json"
		if err := dumpStats(statsPath, result.Stats); err != nil {
			return err
		}
	}

	log.Info("wrote cartridge", "path", cfg.OutputPath, "bytes", len(result.Cartridge))
	return nil
}

func dumpStats(path string, stats compiler.Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
