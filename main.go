package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/tictactoe-gym/internal"
	"github.com/rocketscienceinc/tictactoe-gym/internal/config"
)

var (
	configPath string
	episodes   int
	seed       uint64
)

// main - is the entry point of the application. It parses the command line and runs the selected command.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "tictactoe-gym",
		Short:        "Tic-Tac-Toe environment with a self-play Q-learning driver",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default ./config.yml)")

	root.AddCommand(trainCommand())
	root.AddCommand(playCommand())

	return root
}

func trainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train both players by self-play",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf := initConfig()
			if episodes > 0 {
				conf.Training.Episodes = episodes
			}
			if cmd.Flags().Changed("seed") {
				conf.Training.Seed = seed
			}

			if err := app.RunTraining(initLogger(conf), conf, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("train failed: %w", err)
			}

			return nil
		},
	}
	cmd.Flags().IntVarP(&episodes, "episodes", "e", 0, "Number of episodes to run (overrides the config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed, 0 seeds from the clock (overrides the config)")

	return cmd
}

func playCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play one greedy game between the stored players",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf := initConfig()

			if err := app.RunPlay(initLogger(conf), conf, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("play failed: %w", err)
			}

			return nil
		},
	}
}

// initialize config.
func initConfig() *config.Config {
	if configPath != "" {
		return config.MustLoad(configPath)
	}

	baseDir, err := os.Getwd()
	if err != nil {
		panic(fmt.Errorf("failed to get current directory: %w", err))
	}

	return config.MustLoad(filepath.Join(baseDir, "./config.yml"))
}

// initialize logger.
func initLogger(conf *config.Config) *slog.Logger {
	var level slog.Level

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
