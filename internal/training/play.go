package training

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-gym/internal/entity"
	"github.com/rocketscienceinc/tictactoe-gym/internal/tictactoe"
)

// Play - one greedy episode between two tables without learning. Player one moves first.
// Only free cells are proposed, so the game ends in a win or a draw.
func Play(env gameEnv, p1, p2 *QTable, maxSteps int) (EpisodeStats, error) {
	tables := map[entity.Mark]*QTable{entity.Player1: p1, entity.Player2: p2}
	stats := EpisodeStats{Outcome: entity.OutcomeInProgress}

	obs, info := env.Reset()
	player := entity.Player1

	for step := 0; step < maxSteps; step++ {
		action := tables[player].Best(tictactoe.Key(obs), freeCells(env.ActionSpace(), info))
		if action < 0 {
			// full board: let the environment report the draw
			action = 0
		}

		result, err := env.Step(player, action)
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
