package training

import (
	"errors"
	"fmt"
	"math"
)

var ErrMalformedSnapshot = errors.New("malformed q-table snapshot")

// QTable - action values per board, keyed by the canonical board serialization.
// Unknown boards read as all zeros.
type QTable struct {
	actions int
	values  map[string][]float64
}

// Snapshot - serializable form of a QTable.
type Snapshot struct {
	Actions int                  `json:"actions"`
	Values  map[string][]float64 `json:"values"`
}

func NewQTable(actions int) *QTable {
	return &QTable{
		actions: actions,
		values:  make(map[string][]float64),
	}
}

func FromSnapshot(snapshot Snapshot) (*QTable, error) {
	if snapshot.Actions <= 0 {
		return nil, fmt.Errorf("%w: %d actions", ErrMalformedSnapshot, snapshot.Actions)
	}

	table := NewQTable(snapshot.Actions)
	for key, row := range snapshot.Values {
		if len(row) != snapshot.Actions {
			return nil, fmt.Errorf("%w: board %q has %d values, want %d", ErrMalformedSnapshot, key, len(row), snapshot.Actions)
		}
		table.values[key] = append([]float64{}, row...)
	}

	return table, nil
}

func (that *QTable) Actions() int {
	return that.actions
}

// Len - number of boards with at least one stored value.
func (that *QTable) Len() int {
	return len(that.values)
}

func (that *QTable) Get(key string, action int) float64 {
	row, ok := that.values[key]
	if !ok {
		return 0
	}

	return row[action]
}

func (that *QTable) Set(key string, action int, value float64) {
	row, ok := that.values[key]
	if !ok {
		row = make([]float64, that.actions)
		that.values[key] = row
	}

	row[action] = value
}

// Values - a copy of the row for key.
func (that *QTable) Values(key string) []float64 {
	row := make([]float64, that.actions)
	copy(row, that.values[key])

	return row
}

// Max - highest value among allowed actions; nil allowed means every action. No candidates yields 0.
func (that *QTable) Max(key string, allowed []int) float64 {
	action, ok := that.best(key, allowed)
	if !ok {
		return 0
	}

	return that.Get(key, action)
}

// Best - greedy action among allowed ones, ties going to the lowest index; -1 when nothing is allowed.
func (that *QTable) Best(key string, allowed []int) int {
	action, ok := that.best(key, allowed)
	if !ok {
		return -1
	}

	return action
}

func (that *QTable) Snapshot() Snapshot {
	values := make(map[string][]float64, len(that.values))
	for key, row := range that.values {
		values[key] = append([]float64{}, row...)
	}

	return Snapshot{Actions: that.actions, Values: values}
}

func (that *QTable) best(key string, allowed []int) (int, bool) {
	if allowed == nil {
		allowed = make([]int, that.actions)
		for i := range allowed {
			allowed[i] = i
		}
	}

	bestAction, bestValue := -1, math.Inf(-1)
	for _, action := range allowed {
		if value := that.Get(key, action); value > bestValue || (value == bestValue && action < bestAction) {
			bestAction, bestValue = action, value
		}
	}

	return bestAction, bestAction >= 0
}
