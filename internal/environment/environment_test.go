package environment

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-gym/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-gym/internal/entity"
)

var errDisplayGone = errors.New("display gone")

type mockRenderer struct {
	mock.Mock
}

func (that *mockRenderer) Render(frame entity.Frame) error {
	args := that.Called(frame)
	return args.Error(0)
}

type move struct {
	player entity.Mark
	action int
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	env, err := New(newLogger(), opts...)
	require.NoError(t, err)

	return env
}

func play(t *testing.T, env *Env, moves ...move) StepResult {
	t.Helper()

	var result StepResult
	for i, m := range moves {
		var err error
		result, err = env.Step(m.player, m.action)
		require.NoError(t, err)

		if i < len(moves)-1 {
			require.False(t, result.Terminated || result.Truncated, "move %d ended the episode early", i)
		}
	}

	return result
}

func TestNew(t *testing.T) {
	t.Run("Uses the reference defaults", func(t *testing.T) {
		env := newEnv(t)

		assert.Equal(t, 3, env.Size())
		assert.Equal(t, 3, env.WinRunLength())
		assert.Equal(t, DefaultRewards(), env.Rewards())
		assert.Equal(t, 9, env.ActionSpace())
		assert.Equal(t, 19683, env.ObservationSpace())
		assert.Equal(t, entity.OutcomeInProgress, env.Outcome())
	})

	t.Run("Rejects misconfigured boards at construction", func(t *testing.T) {
		_, err := New(newLogger(), WithSize(2))
		require.ErrorIs(t, err, apperror.ErrMisconfiguredBoard)

		_, err = New(newLogger(), WithSize(4), WithWinRunLength(5))
		require.ErrorIs(t, err, apperror.ErrMisconfiguredBoard)
	})

	t.Run("Observation space saturates on large boards", func(t *testing.T) {
		env := newEnv(t, WithSize(8))

		assert.Equal(t, math.MaxInt, env.ObservationSpace())
	})
}

func TestEnv_Reset(t *testing.T) {
	t.Run("Returns an empty board and empty histories", func(t *testing.T) {
		// Given: an environment in the middle of an episode
		env := newEnv(t, WithSize(4))
		play(t, env, move{entity.Player1, 0}, move{entity.Player2, 5})

		// When: it is reset
		obs, info := env.Reset()

		// Then: nothing is claimed and the episode is running again
		assert.Len(t, obs, 16)
		for _, mark := range obs {
			assert.Equal(t, entity.Empty, mark)
		}
		assert.Empty(t, info.History[entity.Player1])
		assert.Empty(t, info.History[entity.Player2])
		assert.Empty(t, info.Filled)
		assert.False(t, env.Done())
		assert.Equal(t, entity.OutcomeInProgress, env.Outcome())
	})

	t.Run("Observation is a snapshot", func(t *testing.T) {
		env := newEnv(t)
		obs, _ := env.Reset()

		obs[0] = entity.Player2

		result := play(t, env, move{entity.Player1, 0})
		assert.Equal(t, entity.Player1, result.Observation[0])
	})
}

func TestEnv_Step(t *testing.T) {
	t.Run("Top row wins for player one on the third move", func(t *testing.T) {
		// Given: a fresh 3×3 environment
		env := newEnv(t)

		// When: P1→0, P2→4, P1→1, P2→5, P1→2
		result := play(t, env,
			move{entity.Player1, 0},
			move{entity.Player2, 4},
			move{entity.Player1, 1},
			move{entity.Player2, 5},
			move{entity.Player1, 2},
		)

		// Then: player one wins with the win reward
		assert.True(t, result.Terminated)
		assert.False(t, result.Truncated)
		assert.Equal(t, entity.OutcomeWonByP1, result.Outcome)
		assert.InDelta(t, 10.0, result.Reward, 1e-9)
		assert.Equal(t, []int{0, 1, 2}, result.Info.History[entity.Player1])
		assert.Equal(t, []int{4, 5}, result.Info.History[entity.Player2])
	})

	t.Run("Player two can win too", func(t *testing.T) {
		env := newEnv(t)

		result := play(t, env,
			move{entity.Player1, 0},
			move{entity.Player2, 2},
			move{entity.Player1, 1},
			move{entity.Player2, 4},
			move{entity.Player1, 5},
			move{entity.Player2, 6},
		)

		assert.True(t, result.Terminated)
		assert.Equal(t, entity.OutcomeWonByP2, result.Outcome)
		assert.Equal(t, entity.Player2, result.Outcome.Winner())
	})

	t.Run("Replaying an occupied cell is terminal with the loss reward", func(t *testing.T) {
		for _, replayer := range []entity.Mark{entity.Player1, entity.Player2} {
			// Given: player one owns cell 0
			env := newEnv(t)
			play(t, env, move{entity.Player1, 0})

			// When: cell 0 is played again
			result, err := env.Step(replayer, 0)

			// Then: the episode ends with the loss reward and the owner is unchanged
			require.NoError(t, err)
			assert.True(t, result.Terminated)
			assert.False(t, result.Truncated)
			assert.Equal(t, entity.OutcomeIllegal, result.Outcome)
			assert.InDelta(t, -10.0, result.Reward, 1e-9)
			assert.Equal(t, entity.Player1, result.Observation[0])
			assert.Equal(t, []int{0}, result.Info.History[entity.Player1])
		}
	})

	t.Run("Replaying is illegal regardless of board state", func(t *testing.T) {
		rewards := Rewards{Win: 1, Loss: -3, Draw: 0.5, Step: 0}
		sequence := []move{
			{entity.Player1, 0}, {entity.Player2, 1}, {entity.Player1, 2},
			{entity.Player2, 4}, {entity.Player1, 3}, {entity.Player2, 5},
			{entity.Player1, 7}, {entity.Player2, 6},
		}

		for played := 1; played <= len(sequence); played++ {
			for _, taken := range sequence[:played] {
				env := newEnv(t, WithRewards(rewards))
				play(t, env, sequence[:played]...)

				result, err := env.Step(entity.Player1, taken.action)
				require.NoError(t, err)
				assert.True(t, result.Terminated)
				assert.InDelta(t, rewards.Loss, result.Reward, 1e-9)
			}
		}
	})

	t.Run("Exhausting the board without a winner is a single truncated draw", func(t *testing.T) {
		// Given: a fresh 3×3 environment
		env := newEnv(t)
		sequence := []move{
			{entity.Player1, 0}, {entity.Player2, 1}, {entity.Player1, 2},
			{entity.Player2, 4}, {entity.Player1, 3}, {entity.Player2, 5},
			{entity.Player1, 7}, {entity.Player2, 6}, {entity.Player1, 8},
		}

		// When: all nine cells are filled
		draws := 0
		var last StepResult
		for _, m := range sequence {
			result, err := env.Step(m.player, m.action)
			require.NoError(t, err)
			assert.False(t, result.Terminated)
			assert.NotEqual(t, entity.OutcomeWonByP1, result.Outcome)
			assert.NotEqual(t, entity.OutcomeWonByP2, result.Outcome)
			if result.Truncated {
				draws++
			}
			last = result
		}

		// Then: only the last step reports the draw
		assert.Equal(t, 1, draws)
		assert.True(t, last.Truncated)
		assert.Equal(t, entity.OutcomeDraw, last.Outcome)
		assert.InDelta(t, 1.0, last.Reward, 1e-9)
		assert.Len(t, last.Info.Filled, 9)
	})

	t.Run("Stepping on a full board reports the draw without a move", func(t *testing.T) {
		// Given: a drawn board
		renderer := &mockRenderer{}
		renderer.On("Render", mock.Anything).Return(nil)
		env := newEnv(t, WithRenderer(renderer))
		play(t, env,
			move{entity.Player1, 0}, move{entity.Player2, 1}, move{entity.Player1, 2},
			move{entity.Player2, 4}, move{entity.Player1, 3}, move{entity.Player2, 5},
			move{entity.Player1, 7}, move{entity.Player2, 6}, move{entity.Player1, 8},
		)
		calls := len(renderer.Calls)

		// When: player two is asked to move
		result, err := env.Step(entity.Player2, 4)

		// Then: the draw is repeated, nothing is applied and the renderer is not notified
		require.NoError(t, err)
		assert.True(t, result.Truncated)
		assert.False(t, result.Terminated)
		assert.Equal(t, entity.OutcomeDraw, result.Outcome)
		assert.InDelta(t, 1.0, result.Reward, 1e-9)
		assert.Len(t, renderer.Calls, calls)
		assert.NotContains(t, result.Info.History[entity.Player2], 8)
	})

	t.Run("Inconclusive moves pay the configured step reward", func(t *testing.T) {
		// Given: the reference rewards, and a scheme with a neutral step
		reference := newEnv(t)
		neutral := newEnv(t, WithRewards(Rewards{Win: 10, Loss: -10, Draw: 1, Step: 0}))

		// When: a non-terminal move is played
		refResult := play(t, reference, move{entity.Player1, 4})
		neutralResult := play(t, neutral, move{entity.Player1, 4})

		// Then: the reference pays the loss value, the other pays nothing
		assert.InDelta(t, -10.0, refResult.Reward, 1e-9)
		assert.InDelta(t, 0.0, neutralResult.Reward, 1e-9)
		assert.False(t, refResult.Terminated || refResult.Truncated)
		assert.Equal(t, entity.OutcomeInProgress, refResult.Outcome)
	})

	t.Run("Info exposes the filled set", func(t *testing.T) {
		env := newEnv(t)

		result := play(t, env, move{entity.Player1, 4}, move{entity.Player2, 0})

		assert.True(t, result.Info.IsFilled(4))
		assert.True(t, result.Info.IsFilled(0))
		assert.False(t, result.Info.IsFilled(8))

		// mutating the returned info must not leak back into the environment
		result.Info.History[entity.Player1][0] = 8
		delete(result.Info.Filled, 4)
		next := play(t, env, move{entity.Player1, 8})
		assert.Equal(t, []int{4, 8}, next.Info.History[entity.Player1])
		assert.True(t, next.Info.IsFilled(4))
	})

	t.Run("Out of range actions are hard errors", func(t *testing.T) {
		env := newEnv(t)

		for _, action := range []int{-1, 9} {
			_, err := env.Step(entity.Player1, action)
			require.ErrorIs(t, err, apperror.ErrInvalidActionIndex)
		}
		assert.False(t, env.Done())
	})

	t.Run("Unknown players are hard errors", func(t *testing.T) {
		env := newEnv(t)

		_, err := env.Step(entity.Empty, 0)
		require.ErrorIs(t, err, apperror.ErrInvalidPlayer)
	})

	t.Run("Steps after a terminated episode are rejected until reset", func(t *testing.T) {
		// Given: an episode ended by an illegal move
		env := newEnv(t)
		play(t, env, move{entity.Player1, 0})
		_, err := env.Step(entity.Player2, 0)
		require.NoError(t, err)

		// When: another step is attempted
		_, err = env.Step(entity.Player1, 1)

		// Then: it is refused, and reset makes the env usable again
		require.ErrorIs(t, err, apperror.ErrEpisodeFinished)

		env.Reset()
		_, err = env.Step(entity.Player1, 1)
		require.NoError(t, err)
	})

	t.Run("Larger boards use the configured run length", func(t *testing.T) {
		env := newEnv(t, WithSize(5), WithWinRunLength(3))

		result := play(t, env,
			move{entity.Player1, 6},
			move{entity.Player2, 0},
			move{entity.Player1, 12},
			move{entity.Player2, 1},
			move{entity.Player1, 18},
		)

		assert.True(t, result.Terminated)
		assert.Equal(t, entity.OutcomeWonByP1, result.Outcome)
	})
}

func TestEnv_Renderer(t *testing.T) {
	t.Run("Is notified on reset and after every move", func(t *testing.T) {
		// Given: a renderer expecting a reset frame and two move frames
		renderer := &mockRenderer{}
		renderer.On("Render", mock.MatchedBy(func(frame entity.Frame) bool {
			return frame.Action == entity.NoAction && frame.Player == entity.Empty
		})).Return(nil).Once()
		renderer.On("Render", mock.MatchedBy(func(frame entity.Frame) bool {
			return frame.Action == 4 && frame.Player == entity.Player1 && frame.Cells[4] == entity.Player1
		})).Return(nil).Once()
		renderer.On("Render", mock.MatchedBy(func(frame entity.Frame) bool {
			return frame.Action == 0 && frame.Player == entity.Player2 && frame.Size == 3
		})).Return(nil).Once()

		// When: the environment is created and two moves are played
		env := newEnv(t, WithRenderer(renderer))
		play(t, env, move{entity.Player1, 4}, move{entity.Player2, 0})

		// Then: every expectation is met
		renderer.AssertExpectations(t)
	})

	t.Run("Failures do not affect the step result", func(t *testing.T) {
		// Given: a renderer that always fails
		renderer := &mockRenderer{}
		renderer.On("Render", mock.Anything).Return(errDisplayGone)
		env := newEnv(t, WithRenderer(renderer))

		// When: a winning sequence is played
		result := play(t, env,
			move{entity.Player1, 0},
			move{entity.Player2, 4},
			move{entity.Player1, 1},
			move{entity.Player2, 5},
			move{entity.Player1, 2},
		)

		// Then: the game result is unaffected
		assert.True(t, result.Terminated)
		assert.Equal(t, entity.OutcomeWonByP1, result.Outcome)
		renderer.AssertNumberOfCalls(t, "Render", 6)
	})
}
