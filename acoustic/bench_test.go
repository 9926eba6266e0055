package acoustic

import (
	"context"
	"math/rand"
	"testing"
)

func benchModel(b *testing.B, numStates, dim, frames int) (*Model, [][][]float64) {
	rng := rand.New(rand.NewSource(1))
	seqs := synthBatch(rng, 10, numStates, dim, frames)
	return seedModel(b, numStates, seqs), seqs
}

func BenchmarkEmissions_100frames_13dim(b *testing.B) {
	m, seqs := benchModel(b, 6, 13, 100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Emissions(seqs[0])
	}
}

func BenchmarkForward_Scaled_500frames(b *testing.B) {
	m, seqs := benchModel(b, 6, 13, 500)
	em, _ := m.Emissions(seqs[0])
	eng := NewEngine(ScaledLinear)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.Forward(m, em)
	}
}

func BenchmarkForward_Log_500frames(b *testing.B) {
	m, seqs := benchModel(b, 6, 13, 500)
	em, _ := m.Emissions(seqs[0])
	eng := NewEngine(LogDomain)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.Forward(m, em)
	}
}

func BenchmarkBaumWelch_10seq_50frames(b *testing.B) {
	m, seqs := benchModel(b, 6, 13, 50)
	cfg := TrainingConfig{MaxIterations: 3, ConvergenceThresh: 1e-3}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Train(context.Background(), m, seqs, cfg)
	}
}
