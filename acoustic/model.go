package acoustic

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Params is the plain-data form of a Model. Every float is stored as-is, so
// a round trip preserves full precision and the exact zero pattern of the
// transition matrix. Covariances are row-major D*D.
type Params struct {
	NumStates int         `msgpack:"num_states"`
	Dim       int         `msgpack:"dim"`
	VarFloor  float64     `msgpack:"var_floor"`
	Version   int         `msgpack:"version"`
	Trans     [][]float64 `msgpack:"trans"`
	Means     [][]float64 `msgpack:"means"`
	Covs      [][]float64 `msgpack:"covs"`
}

// Params exports the snapshot parameters.
func (m *Model) Params() Params {
	n := m.topo.Total()
	p := Params{
		NumStates: m.topo.NumStates,
		Dim:       m.dim,
		VarFloor:  m.varFloor,
		Version:   m.version,
		Trans:     make([][]float64, n),
		Means:     make([][]float64, n),
		Covs:      make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		p.Trans[i] = mat.Row(nil, i, m.trans)
		p.Means[i] = append([]float64(nil), m.means[i].RawVector().Data...)
		cov := make([]float64, 0, m.dim*m.dim)
		for r := 0; r < m.dim; r++ {
			for c := 0; c < m.dim; c++ {
				cov = append(cov, m.covs[i].At(r, c))
			}
		}
		p.Covs[i] = cov
	}
	return p
}

// FromParams rebuilds and validates a Model from exported parameters.
func FromParams(p Params) (*Model, error) {
	topo, err := NewTopology(p.NumStates)
	if err != nil {
		return nil, err
	}
	if p.Dim < 1 {
		return nil, fmt.Errorf("%w: feature dimension %d", ErrInvalidModel, p.Dim)
	}
	n := topo.Total()
	if len(p.Trans) != n || len(p.Means) != n || len(p.Covs) != n {
		return nil, fmt.Errorf("%w: parameters do not cover %d states", ErrDimensionMismatch, n)
	}
	trans := mat.NewDense(n, n, nil)
	for i, row := range p.Trans {
		if len(row) != n {
			return nil, fmt.Errorf("%w: transition row %d has %d entries", ErrDimensionMismatch, i, len(row))
		}
		trans.SetRow(i, row)
	}
	means := make([]*mat.VecDense, n)
	covs := make([]*mat.SymDense, n)
	for s := 0; s < n; s++ {
		if len(p.Means[s]) != p.Dim || len(p.Covs[s]) != p.Dim*p.Dim {
			return nil, &StateError{State: s, Err: fmt.Errorf("%w: want dimension %d", ErrDimensionMismatch, p.Dim)}
		}
		means[s] = mat.NewVecDense(p.Dim, append([]float64(nil), p.Means[s]...))
		covs[s] = mat.NewSymDense(p.Dim, append([]float64(nil), p.Covs[s]...))
	}
	m, err := NewModel(topo, trans, means, covs, p.VarFloor)
	if err != nil {
		return nil, err
	}
	return m.withVersion(p.Version), nil
}

// Save serializes the model to a writer using gob encoding.
func (m *Model) Save(w io.Writer) error {
	return gob.NewEncoder(w).Encode(m.Params())
}

// Load deserializes a model from a reader.
func Load(r io.Reader) (*Model, error) {
	var p Params
	if err := gob.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	return FromParams(p)
}

// WordModels holds one trained model per vocabulary word.
type WordModels struct {
	Models map[string]*Model
}

// NewWordModels returns an empty set.
func NewWordModels() *WordModels {
	return &WordModels{Models: make(map[string]*Model)}
}

// Words returns the vocabulary in sorted order.
func (wm *WordModels) Words() []string {
	words := make([]string, 0, len(wm.Models))
	for w := range wm.Models {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// serializable form for gob encoding
type serializedWordModels struct {
	Words map[string]Params
}

// Save serializes every word model using gob encoding.
func (wm *WordModels) Save(w io.Writer) error {
	sm := serializedWordModels{Words: make(map[string]Params, len(wm.Models))}
	for word, m := range wm.Models {
		sm.Words[word] = m.Params()
	}
	return gob.NewEncoder(w).Encode(sm)
}

// LoadWordModels deserializes a word model set from a reader.
func LoadWordModels(r io.Reader) (*WordModels, error) {
	var sm serializedWordModels
	if err := gob.NewDecoder(r).Decode(&sm); err != nil {
		return nil, err
	}
	wm := NewWordModels()
	for word, p := range sm.Words {
		m, err := FromParams(p)
		if err != nil {
			return nil, fmt.Errorf("word %q: %w", word, err)
		}
		wm.Models[word] = m
	}
	return wm, nil
}
