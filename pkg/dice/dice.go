// Package dice rolls dice for the table.
package dice

import (
	"math/rand/v2"
	"time"
)

// DefaultSides is the die rolled when the caller doesn't specify one.
const DefaultSides = 20

// Result is one die roll.
type Result struct {
	Sides  int       `json:"sides"`
	Result int       `json:"result"`
	At     time.Time `json:"at"`
}

// Roll rolls a die with the given number of sides, returning a result in
// [1, sides]. Non-positive sides fall back to DefaultSides.
func Roll(sides int) Result {
	if sides <= 0 {
		sides = DefaultSides
	}

	return Result{
		Sides:  sides,
		Result: rand.IntN(sides) + 1,
		At:     time.Now().UTC(),
	}
}
