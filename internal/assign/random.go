package assign

import "math/rand/v2"

// Source produces one uniformly distributed integer per call, inclusive on
// both ends. Implementations must be safe for concurrent use; the engine
// calls Draw from parallel request transactions. The interface exists so
// tests can substitute deterministic sequences for the coin toss.
type Source interface {
	Draw(low, high int) int
}

// UniformSource draws from the math/rand/v2 global generator, which is
// seeded randomly at process start and safe for concurrent use without
// extra locking.
type UniformSource struct{}

// Draw returns a uniform random integer in [low, high].
func (UniformSource) Draw(low, high int) int {
	return low + rand.IntN(high-low+1)
}
