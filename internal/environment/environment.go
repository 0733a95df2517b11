package environment

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/rocketscienceinc/tictactoe-gym/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-gym/internal/entity"
	"github.com/rocketscienceinc/tictactoe-gym/internal/tictactoe"
)

const DefaultSize = 3

// Rewards - the reward handed to the acting player for each kind of step result.
// Step is paid for a legal move that neither wins nor fills the board.
type Rewards struct {
	Win  float64 `json:"win"`
	Loss float64 `json:"loss"`
	Draw float64 `json:"draw"`
	Step float64 `json:"step"`
}

// DefaultRewards - the reference scheme: +10 win, -10 loss, +1 draw, and an inconclusive move is paid like a loss.
func DefaultRewards() Rewards {
	return Rewards{Win: 10, Loss: -10, Draw: 1, Step: -10}
}

type renderer interface {
	Render(frame entity.Frame) error
}

// Info - per-player move history and the set of claimed cells. Both are copies.
type Info struct {
	History map[entity.Mark][]int
	Filled  map[int]struct{}
}

func (that Info) IsFilled(cell int) bool {
	_, ok := that.Filled[cell]
	return ok
}

type StepResult struct {
	Observation entity.Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
	Outcome     entity.Outcome
}

type Option func(env *Env)

func WithSize(size int) Option {
	return func(env *Env) {
		env.size = size
	}
}

func WithWinRunLength(winRunLength int) Option {
	return func(env *Env) {
		env.winRunLength = winRunLength
	}
}

func WithRewards(rewards Rewards) Option {
	return func(env *Env) {
		env.rewards = rewards
	}
}

func WithRenderer(r renderer) Option {
	return func(env *Env) {
		if r != nil {
			env.renderer = r
		}
	}
}

// Env - two-player Tic-Tac-Toe with a reset/step contract. Not safe for concurrent use.
type Env struct {
	logger   *slog.Logger
	renderer renderer

	size         int
	winRunLength int
	rewards      Rewards

	state      *tictactoe.State
	history    map[entity.Mark][]int
	outcome    entity.Outcome
	terminated bool
	truncated  bool
}

// New - builds and resets an environment. Board misconfiguration is reported here and never at step time.
func New(logger *slog.Logger, opts ...Option) (*Env, error) {
	env := &Env{
		logger:   logger.With("component", "environment"),
		renderer: nopRenderer{},
		size:     DefaultSize,
		rewards:  DefaultRewards(),
	}

	for _, opt := range opts {
		opt(env)
	}

	if _, err := tictactoe.New(env.size, env.winRunLength); err != nil {
		return nil, fmt.Errorf("failed create environment: %w", err)
	}

	env.Reset()

	return env, nil
}

// Reset - starts a new episode on an empty board.
func (that *Env) Reset() (entity.Observation, Info) {
	// size and run length were validated in New
	state, _ := tictactoe.New(that.size, that.winRunLength)

	that.state = state
	that.history = map[entity.Mark][]int{
		entity.Player1: {},
		entity.Player2: {},
	}
	that.outcome = entity.OutcomeInProgress
	that.terminated = false
	that.truncated = false

	that.notify(entity.NoAction, entity.Empty)

	return that.state.Cells(), that.info()
}

// Step - plays action for player and reports the reward of the acting player only.
// Occupied cells end the episode with the loss reward instead of an error.
func (that *Env) Step(player entity.Mark, action int) (StepResult, error) {
	if action < 0 || action >= that.ActionSpace() {
		return StepResult{}, fmt.Errorf("%w: action %d not in [0, %d)", apperror.ErrInvalidActionIndex, action, that.ActionSpace())
	}

	if !player.IsPlayer() {
		return StepResult{}, fmt.Errorf("%w: %d", apperror.ErrInvalidPlayer, player)
	}

	if that.terminated {
		return StepResult{}, fmt.Errorf("%w: %s", apperror.ErrEpisodeFinished, that.outcome)
	}

	// nothing left to play for this player
	if that.state.IsFull() {
		that.outcome = entity.OutcomeDraw
		that.truncated = true

		return that.result(that.rewards.Draw), nil
	}

	if err := that.state.ApplyMove(player, action); err != nil {
		if !errors.Is(err, apperror.ErrIllegalMove) {
			return StepResult{}, fmt.Errorf("failed apply move: %w", err)
		}

		that.logger.Debug("illegal move", "player", player.String(), "action", action)

		that.outcome = entity.OutcomeIllegal
		that.terminated = true
		that.notify(action, player)

		return that.result(that.rewards.Loss), nil
	}

	that.history[player] = append(that.history[player], action)

	var reward float64
	switch {
	case that.state.CheckWin(player):
		that.outcome = entity.WonBy(player)
		that.terminated = true
		reward = that.rewards.Win
	case that.state.IsFull():
		that.outcome = entity.OutcomeDraw
		that.truncated = true
		reward = that.rewards.Draw
	default:
		reward = that.rewards.Step
	}

	that.notify(action, player)

	return that.result(reward), nil
}

func (that *Env) Outcome() entity.Outcome {
	return that.outcome
}

// Done - reports whether the episode reached a terminal state.
func (that *Env) Done() bool {
	return that.terminated || that.truncated
}

func (that *Env) Size() int {
	return that.size
}

func (that *Env) WinRunLength() int {
	return that.state.WinRunLength()
}

func (that *Env) Rewards() Rewards {
	return that.rewards
}

// ActionSpace - number of cells, legal or not.
func (that *Env) ActionSpace() int {
	return that.size * that.size
}

// ObservationSpace - number of distinct grids, 3^(size*size), saturating at math.MaxInt.
func (that *Env) ObservationSpace() int {
	space := 1
	for i := 0; i < that.ActionSpace(); i++ {
		if space > math.MaxInt/3 {
			return math.MaxInt
		}
		space *= 3
	}

	return space
}

// Key - canonical serialization of the current board.
func (that *Env) Key() string {
	return that.state.Key()
}

func (that *Env) String() string {
	return that.state.String()
}

func (that *Env) result(reward float64) StepResult {
	return StepResult{
		Observation: that.state.Cells(),
		Reward:      reward,
		Terminated:  that.terminated,
		Truncated:   that.truncated,
		Info:        that.info(),
		Outcome:     that.outcome,
	}
}

func (that *Env) info() Info {
	info := Info{
		History: make(map[entity.Mark][]int, len(that.history)),
		Filled:  make(map[int]struct{}),
	}

	for player, moves := range that.history {
		info.History[player] = append([]int{}, moves...)
	}

	for cell, mark := range that.state.Cells() {
		if mark != entity.Empty {
			info.Filled[cell] = struct{}{}
		}
	}

	return info
}

// notify - renderer failures never reach the caller.
func (that *Env) notify(action int, player entity.Mark) {
	frame := entity.Frame{
		Cells:   that.state.Cells(),
		Size:    that.size,
		Action:  action,
		Player:  player,
		Outcome: that.outcome,
	}

	if err := that.renderer.Render(frame); err != nil {
		that.logger.Warn("renderer failed", "action", action, "player", player.String(), "error", err)
	}
}

type nopRenderer struct{}

func (nopRenderer) Render(entity.Frame) error {
	return nil
}
