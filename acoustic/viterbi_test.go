package acoustic

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestViterbi(t *testing.T) {
	m := separatedModel(t)
	obs := [][]float64{{0.0}, {0.5}, {3.0}, {3.5}, {6.0}, {6.5}}
	em, err := m.Emissions(obs)
	if err != nil {
		t.Fatal(err)
	}
	path, score, err := Viterbi(m, em)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{1, 1, 2, 2, 3, 3}; !reflect.DeepEqual(path, want) {
		t.Errorf("path = %v, want %v", path, want)
	}

	// The best path can never beat the total likelihood.
	ll, _ := LogLikelihood(NewEngine(LogDomain), m, obs)
	if score > ll+1e-9 || math.IsInf(score, -1) {
		t.Errorf("viterbi score %f, total LL %f", score, ll)
	}
}

func TestViterbi_TooShort(t *testing.T) {
	m := separatedModel(t)
	em, _ := m.Emissions([][]float64{{0}, {6}})
	if _, _, err := Viterbi(m, em); !errors.Is(err, ErrZeroLikelihood) {
		t.Errorf("error = %v, want ErrZeroLikelihood", err)
	}
}

func TestSegments(t *testing.T) {
	got := Segments([]int{1, 1, 2, 3, 3, 3})
	want := []Segment{
		{State: 1, StartFrame: 0, EndFrame: 2},
		{State: 2, StartFrame: 2, EndFrame: 3},
		{State: 3, StartFrame: 3, EndFrame: 6},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segments = %+v, want %+v", got, want)
	}
	if Segments(nil) != nil {
		t.Error("Segments(nil) != nil")
	}
}
