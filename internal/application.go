package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/tictactoe-gym/internal/config"
	"github.com/rocketscienceinc/tictactoe-gym/internal/entity"
	"github.com/rocketscienceinc/tictactoe-gym/internal/environment"
	"github.com/rocketscienceinc/tictactoe-gym/internal/render"
	"github.com/rocketscienceinc/tictactoe-gym/internal/report"
	"github.com/rocketscienceinc/tictactoe-gym/internal/repository"
	"github.com/rocketscienceinc/tictactoe-gym/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-gym/internal/training"
)

const (
	tableNameP1 = "player-x"
	tableNameP2 = "player-o"

	storageTimeout = 10 * time.Second
)

var (
	ErrAddrNotFound      = errors.New("redis address string is empty")
	ErrTableSizeMismatch = errors.New("stored q-table does not match the board")
)

// RunTraining - trains both players by self-play, reports the run and stores the tables when Redis is enabled.
// An interrupted run still reports and stores what it learned.
func RunTraining(logger *slog.Logger, conf *config.Config, out io.Writer) error {
	log := logger.With("component", "app")

	ctx, cancel := signalContext(log)
	defer cancel()

	env, err := newEnvironment(logger, conf, render.New(conf.Render.Mode, out, logger))
	if err != nil {
		return err
	}

	var repo repository.QTableRepository
	if conf.Redis.Enabled {
		redisStorage, closeStorage, storageErr := connect(ctx, log, conf)
		if storageErr != nil {
			return storageErr
		}
		defer closeStorage()

		repo = repository.NewQTableRepository(redisStorage.Connection)
	}

	trainer := training.NewTrainer(logger, env, trainingConfig(conf))

	log.Info("Starting training",
		"episodes", conf.Training.Episodes,
		"size", env.Size(),
		"win_run_length", env.WinRunLength(),
	)

	stats, err := trainer.Run(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			return fmt.Errorf("training failed: %w", err)
		}
		log.Info("Training interrupted", "completed", stats.Completed())
	}

	summary := report.Summarize(stats)
	log.Info("Training finished",
		"episodes", summary.Episodes,
		"mean_reward_p1", summary.MeanRewardP1,
		"mean_reward_p2", summary.MeanRewardP2,
		"wins_p1", summary.WinsP1,
		"wins_p2", summary.WinsP2,
		"draws", summary.Draws,
		"illegal", summary.Illegal,
		"final_epsilon", summary.FinalEpsilon,
		"states_p1", trainer.Table(entity.Player1).Len(),
		"states_p2", trainer.Table(entity.Player2).Len(),
	)

	for _, learner := range []entity.Mark{entity.Player1, entity.Player2} {
		if conf.Training.EvalGames <= 0 {
			break
		}

		evaluation, evalErr := trainer.Evaluate(learner, conf.Training.EvalGames)
		if evalErr != nil {
			return fmt.Errorf("evaluation failed: %w", evalErr)
		}

		evalSummary := report.Summarize(evaluation)
		log.Info("Evaluation against random bot",
			"learner", learner.String(),
			"games", evalSummary.Episodes,
			"wins_p1", evalSummary.WinsP1,
			"wins_p2", evalSummary.WinsP2,
			"draws", evalSummary.Draws,
		)
	}

	if conf.Report.PlotPath != "" && stats.Completed() > 0 {
		if err = report.PlotRewards(stats, conf.Report.PlotPath, conf.Report.Window); err != nil {
			return fmt.Errorf("could not write reward plot: %w", err)
		}
		log.Info("Reward plot written", "path", conf.Report.PlotPath)
	}

	if repo == nil {
		return nil
	}

	// the run context may already be cancelled here
	saveCtx, saveCancel := context.WithTimeout(context.Background(), storageTimeout)
	defer saveCancel()

	if err = repo.CreateOrUpdate(saveCtx, tableNameP1, trainer.Table(entity.Player1)); err != nil {
		return fmt.Errorf("could not store q-table %s: %w", tableNameP1, err)
	}
	if err = repo.CreateOrUpdate(saveCtx, tableNameP2, trainer.Table(entity.Player2)); err != nil {
		return fmt.Errorf("could not store q-table %s: %w", tableNameP2, err)
	}

	log.Info("Q-tables stored", "p1", tableNameP1, "p2", tableNameP2)

	return nil
}

// RunPlay - plays one greedy game between the stored tables and renders it as text to out.
// Without Redis, or when nothing is stored yet, both players start from empty tables.
func RunPlay(logger *slog.Logger, conf *config.Config, out io.Writer) error {
	log := logger.With("component", "app")

	ctx, cancel := signalContext(log)
	defer cancel()

	env, err := newEnvironment(logger, conf, render.NewText(out))
	if err != nil {
		return err
	}

	p1 := training.NewQTable(env.ActionSpace())
	p2 := training.NewQTable(env.ActionSpace())

	if conf.Redis.Enabled {
		redisStorage, closeStorage, storageErr := connect(ctx, log, conf)
		if storageErr != nil {
			return storageErr
		}
		defer closeStorage()

		repo := repository.NewQTableRepository(redisStorage.Connection)

		if p1, err = loadTable(ctx, log, repo, tableNameP1, env.ActionSpace()); err != nil {
			return err
		}
		if p2, err = loadTable(ctx, log, repo, tableNameP2, env.ActionSpace()); err != nil {
			return err
		}
	}

	stats, err := training.Play(env, p1, p2, conf.Training.MaxSteps)
	if err != nil {
		return fmt.Errorf("game failed: %w", err)
	}

	log.Info("Game finished",
		"outcome", string(stats.Outcome),
		"moves", stats.Moves,
		"reward_p1", stats.RewardP1,
		"reward_p2", stats.RewardP2,
	)

	return nil
}

func newEnvironment(logger *slog.Logger, conf *config.Config, r render.Renderer) (*environment.Env, error) {
	env, err := environment.New(logger,
		environment.WithSize(conf.Board.Size),
		environment.WithWinRunLength(conf.Board.WinRunLength),
		environment.WithRewards(environment.Rewards{
			Win:  conf.Rewards.Win,
			Loss: conf.Rewards.Loss,
			Draw: conf.Rewards.Draw,
			Step: conf.Rewards.Step,
		}),
		environment.WithRenderer(r),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create environment: %w", err)
	}

	return env, nil
}

func trainingConfig(conf *config.Config) training.Config {
	return training.Config{
		Episodes:    conf.Training.Episodes,
		MaxSteps:    conf.Training.MaxSteps,
		Eta:         conf.Training.Eta,
		Discount:    conf.Training.Discount,
		MaxEpsilon:  conf.Training.MaxEpsilon,
		MinEpsilon:  conf.Training.MinEpsilon,
		Decay:       conf.Training.Decay,
		AvoidFilled: conf.Training.AvoidFilled,
		Seed:        conf.Training.Seed,
		LogEvery:    conf.Training.LogEvery,
	}
}

func connect(ctx context.Context, log *slog.Logger, conf *config.Config) (*storage.RedisStorage, func(), error) {
	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	return redisStorage, func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}, nil
}

func loadTable(ctx context.Context, log *slog.Logger, repo repository.QTableRepository, name string, actions int) (*training.QTable, error) {
	table, err := repo.GetByName(ctx, name)
	if errors.Is(err, repository.ErrQTableNotFound) {
		log.Warn("No stored q-table, playing untrained", "name", name)
		return training.NewQTable(actions), nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not load q-table %s: %w", name, err)
	}

	if table.Actions() != actions {
		return nil, fmt.Errorf("%w: %s has %d actions, board has %d", ErrTableSizeMismatch, name, table.Actions(), actions)
	}

	return table, nil
}

func signalContext(log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
