// Package main provides the Lumen ML framework CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumen-ml/lumen/internal/config"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/train"

	// Model plugins register themselves at init time.
	_ "github.com/lumen-ml/lumen/models/classifier"
	_ "github.com/lumen-ml/lumen/models/vae"
)

const version = "v0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lumen",
		Short:         "Lumen ML - plugin-based model training for Go",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTrainCmd(), newModelsCmd(), newVersionCmd())
	return root
}

func newTrainCmd() *cobra.Command {
	var (
		configPath string
		model      string
		epochs     int
		resume     string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model plugin from an experiment configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.Experiment{}
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if model != "" {
				cfg.Model = model
			}
			if epochs > 0 {
				cfg.Train.Epochs = epochs
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			trainer, err := train.New(cfg, logger)
			if err != nil {
				return err
			}
			if resume != "" {
				if err := trainer.LoadCheckpoint(resume); err != nil {
					return err
				}
			}
			return trainer.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "experiment configuration file (YAML)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model plugin name, overrides the configuration")
	cmd.Flags().IntVarP(&epochs, "epochs", "e", 0, "number of epochs, overrides the configuration")
	cmd.Flags().StringVar(&resume, "resume", "", "checkpoint file to resume from")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered model plugins",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(plugin.Names(), "\n"))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Lumen ML %s\n", version)
		},
	}
}
