package bingo

import (
	"math/rand"
	"slices"
)

const (
	// GridSize is the number of cells on one board.
	GridSize = 25

	// MaxNumber is the highest value a cell can hold; grids are permutations
	// of 1..MaxNumber.
	MaxNumber = 25
)

// NewGrid returns a random permutation of the numbers 1..25.
func NewGrid() []int {
	grid := make([]int, GridSize)
	for i, v := range rand.Perm(MaxNumber) { //nolint: gosec // board shuffling needs no crypto rand
		grid[i] = v + 1
	}
	return grid
}

// NewGridPair returns two grids that are guaranteed to differ as ordered
// sequences. The second grid is resampled on collision; with 25! orderings
// the loop effectively never repeats.
func NewGridPair() ([]int, []int) {
	first := NewGrid()
	second := NewGrid()
	for slices.Equal(first, second) {
		second = NewGrid()
	}
	return first, second
}
