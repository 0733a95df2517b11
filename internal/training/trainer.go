package training

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"github.com/rocketscienceinc/tictactoe-gym/internal/entity"
	"github.com/rocketscienceinc/tictactoe-gym/internal/environment"
	"github.com/rocketscienceinc/tictactoe-gym/internal/tictactoe"
)

// Config - tabular Q-learning hyperparameters. Eta is the weight kept on the old value.
type Config struct {
	Episodes    int
	MaxSteps    int
	Eta         float64
	Discount    float64
	MaxEpsilon  float64
	MinEpsilon  float64
	Decay       float64
	AvoidFilled bool
	Seed        uint64
	LogEvery    int
}

func DefaultConfig() Config {
	return Config{
		Episodes:    2000,
		MaxSteps:    100,
		Eta:         0.7,
		Discount:    0.618,
		MaxEpsilon:  1,
		MinEpsilon:  0.01,
		Decay:       0.01,
		AvoidFilled: true,
		LogEvery:    500,
	}
}

// Epsilon - exploration rate for an episode: min + (max-min)*exp(-decay*episode).
func (that Config) Epsilon(episode int) float64 {
	return that.MinEpsilon + (that.MaxEpsilon-that.MinEpsilon)*math.Exp(-that.Decay*float64(episode))
}

type gameEnv interface {
	Reset() (entity.Observation, environment.Info)
	Step(player entity.Mark, action int) (environment.StepResult, error)
	ActionSpace() int
	Rewards() environment.Rewards
}

type EpisodeStats struct {
	Episode  int
	RewardP1 float64
	RewardP2 float64
	Epsilon  float64
	Outcome  entity.Outcome
	Moves    int
}

type Stats struct {
	Episodes []EpisodeStats
	Outcomes map[entity.Outcome]int
}

func (that Stats) Completed() int {
	return len(that.Episodes)
}

type transition struct {
	key    string
	action int
}

type Option func(trainer *Trainer)

// WithTables - continue learning from existing tables instead of empty ones.
func WithTables(p1, p2 *QTable) Option {
	return func(trainer *Trainer) {
		if p1 != nil {
			trainer.tables[entity.Player1] = p1
		}
		if p2 != nil {
			trainer.tables[entity.Player2] = p2
		}
	}
}

// Trainer - self-play Q-learning with one table per player.
type Trainer struct {
	logger *slog.Logger
	env    gameEnv
	cfg    Config
	rng    *rand.Rand

	tables map[entity.Mark]*QTable
}

func NewTrainer(logger *slog.Logger, env gameEnv, cfg Config, opts ...Option) *Trainer {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	trainer := &Trainer{
		logger: logger.With("component", "trainer"),
		env:    env,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		tables: map[entity.Mark]*QTable{
			entity.Player1: NewQTable(env.ActionSpace()),
			entity.Player2: NewQTable(env.ActionSpace()),
		},
	}

	for _, opt := range opts {
		opt(trainer)
	}

	return trainer
}

func (that *Trainer) Table(player entity.Mark) *QTable {
	return that.tables[player]
}

// Run - trains for the configured number of episodes. Cancellation is honoured between episodes
// and returns the statistics gathered so far together with the context error.
func (that *Trainer) Run(ctx context.Context) (Stats, error) {
	stats := Stats{
		Episodes: make([]EpisodeStats, 0, that.cfg.Episodes),
		Outcomes: make(map[entity.Outcome]int),
	}

	for episode := 0; episode < that.cfg.Episodes; episode++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("training stopped after %d episodes: %w", episode, err)
		}

		result, err := that.runEpisode(episode)
		if err != nil {
			return stats, fmt.Errorf("failed run episode %d: %w", episode, err)
		}

		stats.Episodes = append(stats.Episodes, result)
		stats.Outcomes[result.Outcome]++

		if that.cfg.LogEvery > 0 && (episode+1)%that.cfg.LogEvery == 0 {
			that.logger.Info("training progress",
				"episode", episode+1,
				"epsilon", result.Epsilon,
				"p1_wins", stats.Outcomes[entity.OutcomeWonByP1],
				"p2_wins", stats.Outcomes[entity.OutcomeWonByP2],
				"draws", stats.Outcomes[entity.OutcomeDraw],
				"illegal", stats.Outcomes[entity.OutcomeIllegal],
			)
		}
	}

	return stats, nil
}

func (that *Trainer) runEpisode(episode int) (EpisodeStats, error) {
	epsilon := that.cfg.Epsilon(episode)
	stats := EpisodeStats{Episode: episode, Epsilon: epsilon, Outcome: entity.OutcomeInProgress}
	rewards := that.env.Rewards()

	obs, info := that.env.Reset()
	last := make(map[entity.Mark]transition, 2)
	player := entity.Player1

	for step := 0; step < that.cfg.MaxSteps; step++ {
		table := that.tables[player]
		key := tictactoe.Key(obs)
		action := that.choose(table, key, info, epsilon)

		result, err := that.env.Step(player, action)
		if err != nil {
			return stats, fmt.Errorf("failed step for %s: %w", player, err)
		}

		done := result.Terminated || result.Truncated
		nextKey := tictactoe.Key(result.Observation)
		that.learn(table, key, action, result.Reward, nextKey, that.allowed(result.Info), done)
		stats.addReward(player, result.Reward)
		stats.Moves++
		last[player] = transition{key: key, action: action}

		if done {
			stats.Outcome = result.Outcome
			that.settleOpponent(player.Opponent(), result.Outcome, rewards, last, &stats)

			return stats, nil
		}

		obs, info = result.Observation, result.Info
		player = player.Opponent()
	}

	return stats, nil
}

// settleOpponent - the environment only rewards the acting player, so the opponent's last move
// receives the mirrored loss on a win and the draw reward on a draw.
func (that *Trainer) settleOpponent(opponent entity.Mark, outcome entity.Outcome, rewards environment.Rewards, last map[entity.Mark]transition, stats *EpisodeStats) {
	move, ok := last[opponent]
	if !ok {
		return
	}

	var reward float64
	switch outcome {
	case entity.OutcomeWonByP1, entity.OutcomeWonByP2:
		reward = rewards.Loss
	case entity.OutcomeDraw:
		reward = rewards.Draw
	default:
		return
	}

	that.learn(that.tables[opponent], move.key, move.action, reward, "", nil, true)
	stats.addReward(opponent, reward)
}

// learn - Q(s,a) = eta*Q(s,a) + (1-eta)*(r + discount*max Q(s',.)); terminal moves have no future value.
func (that *Trainer) learn(table *QTable, key string, action int, reward float64, nextKey string, nextAllowed []int, terminal bool) {
	future := 0.0
	if !terminal {
		future = that.cfg.Discount * table.Max(nextKey, nextAllowed)
	}

	old := table.Get(key, action)
	table.Set(key, action, that.cfg.Eta*old+(1-that.cfg.Eta)*(reward+future))
}

// choose - epsilon-greedy over the allowed cells.
func (that *Trainer) choose(table *QTable, key string, info environment.Info, epsilon float64) int {
	allowed := that.allowed(info)
	if len(allowed) == 0 {
		allowed = make([]int, table.Actions())
		for i := range allowed {
			allowed[i] = i
		}
	}

	if that.rng.Float64() < epsilon {
		return allowed[that.rng.Intn(len(allowed))]
	}

	return table.Best(key, allowed)
}

// allowed - cells the driver may propose; nil means every cell.
func (that *Trainer) allowed(info environment.Info) []int {
	if !that.cfg.AvoidFilled {
		return nil
	}

	return freeCells(that.env.ActionSpace(), info)
}

func freeCells(actions int, info environment.Info) []int {
	cells := make([]int, 0, actions)
	for cell := 0; cell < actions; cell++ {
		if !info.IsFilled(cell) {
			cells = append(cells, cell)
		}
	}

	return cells
}

func (that *EpisodeStats) addReward(player entity.Mark, reward float64) {
	if player == entity.Player1 {
		that.RewardP1 += reward
	} else {
		that.RewardP2 += reward
	}
}
