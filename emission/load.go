package emission

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Format selects the on-disk layout of a frame matrix.
type Format int

const (
	// FormatText is one frame per line, values separated by whitespace.
	FormatText Format = iota
	// FormatJSON is a JSON array of arrays, or an object with a "frames" key.
	FormatJSON
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatText
}

// Load reads a frame matrix from r.
func Load(r io.Reader, format Format) ([][]float64, error) {
	var (
		frames [][]float64
		err    error
	)
	switch format {
	case FormatJSON:
		frames, err = loadJSON(r)
	default:
		frames, err = loadText(r)
	}
	if err != nil {
		return nil, err
	}
	if _, err := Width(frames); err != nil {
		return nil, err
	}
	return frames, nil
}

// LoadFile opens path and loads it in the format implied by its extension.
func LoadFile(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frames, err := Load(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("load frames %s: %w", path, err)
	}
	return frames, nil
}

func loadJSON(r io.Reader) ([][]float64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var doc struct {
			Frames [][]float64 `json:"frames"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse frames JSON: %w", err)
		}
		return doc.Frames, nil
	}
	var frames [][]float64
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("parse frames JSON: %w", err)
	}
	return frames, nil
}

func loadText(r io.Reader) ([][]float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	var frames [][]float64
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse value %q: %w", lineNum, f, err)
			}
			row[i] = v
		}
		frames = append(frames, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}
