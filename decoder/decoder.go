package decoder

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/ieee0824/wordhmm/acoustic"
)

// ErrNoMatch is returned when no word model can produce the observations.
var ErrNoMatch = errors.New("no word model matches the observation sequence")

// Config holds isolated-word decoding parameters.
type Config struct {
	Mode    acoustic.Mode // arithmetic used to score word models
	Workers int           // parallel word scorers, 0 = GOMAXPROCS
	Align   bool          // compute the Viterbi state alignment of the best word
}

// DefaultConfig returns reasonable default parameters.
func DefaultConfig() Config {
	return Config{
		Mode:  acoustic.LogDomain,
		Align: true,
	}
}

// Decode scores features against every word model and returns the word with
// the highest likelihood. Words whose model cannot produce the sequence (for
// example because it is shorter than the model) are left out of the scores.
func Decode(features [][]float64, wm *acoustic.WordModels, cfg Config) (*Result, error) {
	words := wm.Words()
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no word models loaded", ErrNoMatch)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(words))

	eng := acoustic.NewEngine(cfg.Mode)
	scores := make([]float64, len(words))
	errs := make([]error, len(words))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				scores[i], errs[i] = acoustic.LogLikelihood(eng, wm.Models[words[i]], features)
			}
		}()
	}
	for i := range words {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	res := &Result{}
	for i, err := range errs {
		switch {
		case err == nil:
			res.Scores = append(res.Scores, Score{Word: words[i], LogScore: scores[i]})
		case errors.Is(err, acoustic.ErrZeroLikelihood):
		default:
			return nil, fmt.Errorf("word %q: %w", words[i], err)
		}
	}
	if len(res.Scores) == 0 {
		return nil, ErrNoMatch
	}
	sort.SliceStable(res.Scores, func(a, b int) bool {
		return res.Scores[a].LogScore > res.Scores[b].LogScore
	})
	res.Word = res.Scores[0].Word
	res.LogScore = res.Scores[0].LogScore

	if cfg.Align {
		m := wm.Models[res.Word]
		em, err := m.Emissions(features)
		if err != nil {
			return nil, err
		}
		path, _, err := acoustic.Viterbi(m, em)
		if err != nil {
			return nil, fmt.Errorf("align %q: %w", res.Word, err)
		}
		res.Segments = acoustic.Segments(path)
	}
	return res, nil
}
