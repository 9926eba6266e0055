package feature

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ErrRaggedFrame is returned when frames of one sequence differ in dimension.
var ErrRaggedFrame = errors.New("ragged feature frame")

// ErrNoFrames is returned for a feature file without any frame.
var ErrNoFrames = errors.New("feature file has no frames")

// Sequence is one utterance as a matrix of shape [numFrames][featureDim].
type Sequence = [][]float64

// Corpus maps a word (class label) to its training sequences.
type Corpus map[string][]Sequence

// Words returns the class labels in sorted order.
func (c Corpus) Words() []string {
	words := make([]string, 0, len(c))
	for w := range c {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// All returns every sequence of every class, classes in sorted order.
func (c Corpus) All() []Sequence {
	var all []Sequence
	for _, w := range c.Words() {
		all = append(all, c[w]...)
	}
	return all
}

// Dim returns the feature dimension shared by all sequences, or an error
// if the corpus mixes dimensions.
func (c Corpus) Dim() (int, error) {
	dim := 0
	for _, w := range c.Words() {
		for i, seq := range c[w] {
			if len(seq) == 0 {
				continue
			}
			d := len(seq[0])
			if dim == 0 {
				dim = d
			} else if d != dim {
				return 0, fmt.Errorf("%w: %s[%d] has %d dims, corpus has %d", ErrRaggedFrame, w, i, d, dim)
			}
		}
	}
	return dim, nil
}

// Read parses one sequence: one frame per line, values separated by commas
// or whitespace. Blank lines and lines starting with '#' are skipped.
func Read(r io.Reader) (Sequence, error) {
	var seq Sequence
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})
		frame := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			frame[i] = v
		}
		if len(seq) > 0 && len(frame) != len(seq[0]) {
			return nil, fmt.Errorf("%w: line %d has %d values, want %d", ErrRaggedFrame, lineNum, len(frame), len(seq[0]))
		}
		seq = append(seq, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, ErrNoFrames
	}
	return seq, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	seq, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// LoadDir reads a feature directory. Two layouts are accepted and may be
// mixed: <dir>/<word>/*.csv, and flat files <dir>/<word>_<n>.csv. Files
// ending in .txt are read the same way.
func LoadDir(dir string) (Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	c := make(Corpus)
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			seqs, err := loadClassDir(path)
			if err != nil {
				return nil, err
			}
			if len(seqs) > 0 {
				c[e.Name()] = append(c[e.Name()], seqs...)
			}
			continue
		}
		if !isFeatureFile(e.Name()) {
			continue
		}
		seq, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		w := WordOf(e.Name())
		c[w] = append(c[w], seq)
	}
	return c, nil
}

// LoadWord reads only the sequences of one word from dir.
func LoadWord(dir, word string) ([]Sequence, error) {
	c, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	seqs, ok := c[word]
	if !ok {
		return nil, fmt.Errorf("no sequences for word %q in %s", word, dir)
	}
	return seqs, nil
}

// WordOf derives the class label of a flat feature file name:
// "heed_03.csv" and "heed.csv" both belong to "heed".
func WordOf(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.LastIndex(base, "_"); i > 0 {
		if _, err := strconv.Atoi(base[i+1:]); err == nil {
			return base[:i]
		}
	}
	return base
}

func loadClassDir(dir string) ([]Sequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var seqs []Sequence
	for _, e := range entries {
		if e.IsDir() || !isFeatureFile(e.Name()) {
			continue
		}
		seq, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

func isFeatureFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return true
	}
	return false
}
