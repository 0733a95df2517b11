package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-gym/internal/entity"
	"github.com/rocketscienceinc/tictactoe-gym/internal/tictactoe"
)

const (
	ModeNone = "none"
	ModeText = "text"
	ModeLog  = "log"
)

type Renderer interface {
	Render(frame entity.Frame) error
}

// New - picks a renderer by mode name; unknown modes render nothing.
func New(mode string, w io.Writer, logger *slog.Logger) Renderer {
	switch mode {
	case ModeText:
		return NewText(w)
	case ModeLog:
		return NewLog(logger)
	default:
		return Nop{}
	}
}

type Text struct {
	w io.Writer
}

// NewText - draws each frame as an ASCII grid followed by a caption.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

func (that *Text) Render(frame entity.Frame) error {
	if _, err := io.WriteString(that.w, tictactoe.Format(frame.Cells, frame.Size)); err != nil {
		return fmt.Errorf("failed write board: %w", err)
	}

	if _, err := fmt.Fprintln(that.w, Caption(frame)); err != nil {
		return fmt.Errorf("failed write caption: %w", err)
	}

	return nil
}

// Caption - one line describing what produced the frame.
func Caption(frame entity.Frame) string {
	var caption string
	if frame.Action == entity.NoAction {
		caption = "reset"
	} else {
		caption = fmt.Sprintf("%s -> %d", frame.Player, frame.Action)
	}

	switch frame.Outcome {
	case entity.OutcomeWonByP1, entity.OutcomeWonByP2:
		caption += fmt.Sprintf(" (winner: %s)", frame.Outcome.Winner())
	case entity.OutcomeDraw:
		caption += " (draw)"
	case entity.OutcomeIllegal:
		caption += " (illegal move)"
	}

	return caption
}

type Log struct {
	logger *slog.Logger
}

// NewLog - records frames as debug entries instead of drawing them.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "renderer")}
}

func (that *Log) Render(frame entity.Frame) error {
	that.logger.LogAttrs(context.Background(), slog.LevelDebug, "frame",
		slog.String("board", tictactoe.Key(frame.Cells)),
		slog.Int("action", frame.Action),
		slog.String("player", frame.Player.String()),
		slog.String("outcome", string(frame.Outcome)),
	)

	return nil
}

type Nop struct{}

func (Nop) Render(entity.Frame) error {
	return nil
}
