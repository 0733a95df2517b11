package entity

// Mark - the owner of a single cell. The numeric values double as player ids.
type Mark uint8

const (
	Empty Mark = iota
	Player1
	Player2
)

// NoAction - the action reported to observers when no cell was played, e.g. on reset.
const NoAction = -1

type Outcome string

const (
	OutcomeInProgress Outcome = "in-progress"
	OutcomeWonByP1    Outcome = "won-by-p1"
	OutcomeWonByP2    Outcome = "won-by-p2"
	OutcomeDraw       Outcome = "draw"
	OutcomeIllegal    Outcome = "illegal"
)

// Observation - flattened snapshot of the board, row by row.
type Observation []Mark

// Frame - what an observer receives after a reset or a move.
type Frame struct {
	Cells   Observation
	Size    int
	Action  int
	Player  Mark
	Outcome Outcome
}

func (that Mark) String() string {
	switch that {
	case Player1:
		return "X"
	case Player2:
		return "O"
	default:
		return "."
	}
}

// IsPlayer - reports whether the mark is one of the two participants.
func (that Mark) IsPlayer() bool {
	return that == Player1 || that == Player2
}

func (that Mark) Opponent() Mark {
	switch that {
	case Player1:
		return Player2
	case Player2:
		return Player1
	default:
		return Empty
	}
}

// WonBy - the terminal outcome for a win of the given player.
func WonBy(player Mark) Outcome {
	if player == Player2 {
		return OutcomeWonByP2
	}
	return OutcomeWonByP1
}

func (that Outcome) IsTerminal() bool {
	return that != OutcomeInProgress && that != ""
}

// Winner - the winning player, Empty when the outcome is not a win.
func (that Outcome) Winner() Mark {
	switch that {
	case OutcomeWonByP1:
		return Player1
	case OutcomeWonByP2:
		return Player2
	default:
		return Empty
	}
}
