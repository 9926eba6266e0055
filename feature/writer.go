package feature

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Write emits seq in the format accepted by Read, one comma-separated frame
// per line. Values are written with the shortest representation that parses
// back to the same float64.
func Write(w io.Writer, seq Sequence) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for _, frame := range seq {
		for d, v := range frame {
			if d > 0 {
				bw.WriteByte(',')
			}
			buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
			bw.Write(buf)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// SaveFile writes seq to path, creating parent directories.
func SaveFile(path string, seq Sequence) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, seq); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
