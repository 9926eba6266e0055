package acoustic

import (
	"math/rand"
)

// Generate samples one observation sequence from m. The state path starts in
// the first emitting state and follows the transition matrix until it moves
// into the exit state; every visited frame is drawn from the current state's
// Gaussian. It also returns the sampled state path.
func Generate(m *Model, rng *rand.Rand) ([][]float64, []int) {
	var obs [][]float64
	var path []int
	exit := m.topo.Exit()
	s := 1
	for s != exit {
		frame := make([]float64, m.dim)
		m.states[s].Sample(frame, rng)
		obs = append(obs, frame)
		path = append(path, s)
		if rng.Float64() >= m.trans.At(s, s) {
			s++
		}
	}
	return obs, path
}
