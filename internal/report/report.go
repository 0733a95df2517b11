package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/rocketscienceinc/tictactoe-gym/internal/entity"
	"github.com/rocketscienceinc/tictactoe-gym/internal/training"
)

var ErrNoEpisodes = errors.New("no episodes to report")

// Summary - aggregate view of a training run.
type Summary struct {
	Episodes     int     `json:"episodes"`
	MeanRewardP1 float64 `json:"mean_reward_p1"`
	StdRewardP1  float64 `json:"std_reward_p1"`
	MeanRewardP2 float64 `json:"mean_reward_p2"`
	StdRewardP2  float64 `json:"std_reward_p2"`
	WinsP1       int     `json:"wins_p1"`
	WinsP2       int     `json:"wins_p2"`
	Draws        int     `json:"draws"`
	Illegal      int     `json:"illegal"`
	MeanMoves    float64 `json:"mean_moves"`
	FinalEpsilon float64 `json:"final_epsilon"`
}

func Summarize(stats training.Stats) Summary {
	summary := Summary{
		Episodes: stats.Completed(),
		WinsP1:   stats.Outcomes[entity.OutcomeWonByP1],
		WinsP2:   stats.Outcomes[entity.OutcomeWonByP2],
		Draws:    stats.Outcomes[entity.OutcomeDraw],
		Illegal:  stats.Outcomes[entity.OutcomeIllegal],
	}

	if summary.Episodes == 0 {
		return summary
	}

	p1, p2 := rewards(stats)
	moves := make([]float64, len(stats.Episodes))
	for i, episode := range stats.Episodes {
		moves[i] = float64(episode.Moves)
	}

	summary.MeanRewardP1, summary.StdRewardP1 = meanStdDev(p1)
	summary.MeanRewardP2, summary.StdRewardP2 = meanStdDev(p2)
	summary.MeanMoves = stat.Mean(moves, nil)
	summary.FinalEpsilon = stats.Episodes[len(stats.Episodes)-1].Epsilon

	return summary
}

// MovingAverage - trailing mean over at most window values. A window below 1 is treated as 1.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}

	averages := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		averages[i] = stat.Mean(values[start:i+1], nil)
	}

	return averages
}

// PlotRewards - writes a PNG of the moving-average reward of both players.
func PlotRewards(stats training.Stats, path string, window int) error {
	if stats.Completed() == 0 {
		return ErrNoEpisodes
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
	}

	p := plot.New()
	p.Title.Text = "Self-play rewards"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = fmt.Sprintf("Reward (moving average over %d)", window)

	p1, p2 := rewards(stats)
	series := []struct {
		name   string
		values []float64
	}{
		{name: "player X", values: MovingAverage(p1, window)},
		{name: "player O", values: MovingAverage(p2, window)},
	}

	for i, s := range series {
		points := make(plotter.XYs, len(s.values))
		for j, v := range s.values {
			points[j] = plotter.XY{X: float64(j), Y: v}
		}

		line, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("failed to build %s line: %w", s.name, err)
		}
		line.Color = plotutil.Color(i)

		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}

	return nil
}

func rewards(stats training.Stats) ([]float64, []float64) {
	p1 := make([]float64, len(stats.Episodes))
	p2 := make([]float64, len(stats.Episodes))
	for i, episode := range stats.Episodes {
		p1[i] = episode.RewardP1
		p2[i] = episode.RewardP2
	}

	return p1, p2
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) < 2 {
		return stat.Mean(values, nil), 0
	}

	return stat.MeanStdDev(values, nil)
}
