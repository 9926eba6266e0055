package main

import (
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ieee0824/wordhmm/acoustic"
)

// plotLogLikelihoods draws the total log-likelihood of every word after each
// M-step; point 0 is the seed.
func plotLogLikelihoods(path string, results map[string]*acoustic.Result) error {
	p := plot.New()
	p.Title.Text = "Baum-Welch training"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "log-likelihood"
	p.Legend.Top = false

	words := make([]string, 0, len(results))
	for w := range results {
		words = append(words, w)
	}
	sort.Strings(words)

	var lines []any
	for _, w := range words {
		lls := results[w].LogLikelihoods
		pts := make(plotter.XYs, len(lls))
		for i, ll := range lls {
			pts[i].X = float64(i)
			pts[i].Y = ll
		}
		lines = append(lines, w, pts)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
