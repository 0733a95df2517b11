package training

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-gym/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-gym/internal/entity"
	"github.com/rocketscienceinc/tictactoe-gym/internal/tictactoe"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// Evaluate - greedy play of one trained player against a bot that picks uniformly among free cells.
// Nothing is learned; the outcome counts measure the learner against a random baseline.
func (that *Trainer) Evaluate(learner entity.Mark, games int) (Stats, error) {
	if !learner.IsPlayer() {
		return Stats{}, fmt.Errorf("%w: %d", apperror.ErrInvalidPlayer, learner)
	}

	stats := Stats{
		Episodes: make([]EpisodeStats, 0, games),
		Outcomes: make(map[entity.Outcome]int),
	}

	for game := 0; game < games; game++ {
		result, err := that.evaluateGame(learner)
		if err != nil {
			return stats, fmt.Errorf("failed evaluation game %d: %w", game, err)
		}
		result.Episode = game

		stats.Episodes = append(stats.Episodes, result)
		stats.Outcomes[result.Outcome]++
	}

	return stats, nil
}

func (that *Trainer) evaluateGame(learner entity.Mark) (EpisodeStats, error) {
	stats := EpisodeStats{Outcome: entity.OutcomeInProgress}
	table := that.tables[learner]

	obs, info := that.env.Reset()
	player := entity.Player1

	for step := 0; step < that.cfg.MaxSteps; step++ {
		availableCells := freeCells(that.env.ActionSpace(), info)
		if len(availableCells) == 0 {
			return stats, ErrNoAvailableMoves
		}

		var action int
		if player == learner {
			action = table.Best(tictactoe.Key(obs), availableCells)
		} else {
			action = availableCells[that.rng.Intn(len(availableCells))]
		}

		result, err := that.env.Step(player, action)
		if err != nil {
			return stats, fmt.Errorf("failed step for %s: %w", player, err)
		}

		stats.addReward(player, result.Reward)
		stats.Moves++

		if result.Terminated || result.Truncated {
			stats.Outcome = result.Outcome
			return stats, nil
		}

		obs, info = result.Observation, result.Info
		player = player.Opponent()
	}

	return stats, nil
}
