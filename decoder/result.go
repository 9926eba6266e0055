package decoder

import "github.com/ieee0824/wordhmm/acoustic"

// Result holds the recognition output.
type Result struct {
	Word     string    // best-scoring word
	LogScore float64   // log P(obs | best word model)
	Scores   []Score   // every word that could produce obs, best first
	Segments []Segment // state alignment under the best model
}

// Score is the likelihood of one word model.
type Score struct {
	Word     string
	LogScore float64
}

// Segment is a span of frames aligned to one emitting state of the best word.
type Segment = acoustic.Segment

// Margin returns the log-likelihood ratio between the best and the
// runner-up word, 0 when only one word scored.
func (r *Result) Margin() float64 {
	if len(r.Scores) < 2 {
		return 0
	}
	return r.Scores[0].LogScore - r.Scores[1].LogScore
}
