package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ieee0824/ctcdecode"
	"github.com/ieee0824/ctcdecode/emission"
	"github.com/ieee0824/ctcdecode/evaluate"
)

// manifestEntry pairs a frame file with its reference transcript.
type manifestEntry struct {
	Path      string
	Reference string
}

// loadManifest reads tab-separated frame path and reference lines. Blank
// lines and lines starting with # are skipped; relative paths are resolved
// against the manifest's directory.
func loadManifest(path string) ([]manifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var entries []manifestEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		framesPath, ref, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("manifest %s line %d: want frames path, tab, reference", path, lineNum)
		}
		framesPath = strings.TrimSpace(framesPath)
		if !filepath.IsAbs(framesPath) {
			framesPath = filepath.Join(dir, framesPath)
		}
		entries = append(entries, manifestEntry{Path: framesPath, Reference: strings.TrimSpace(ref)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest %s has no entries", path)
	}
	return entries, nil
}

// loadManifestUtterances loads every frame file of entries.
func loadManifestUtterances(entries []manifestEntry) ([]ctcdecode.Utterance, error) {
	utts := make([]ctcdecode.Utterance, len(entries))
	for i, e := range entries {
		frames, err := emission.LoadFile(e.Path)
		if err != nil {
			return nil, err
		}
		utts[i] = ctcdecode.Utterance{ID: e.Path, Frames: frames}
	}
	return utts, nil
}

// score compares results with the references of entries, which must be in
// the same order. A failed utterance counts as an empty hypothesis.
func score(entries []manifestEntry, results []ctcdecode.BatchResult, normalize bool) (acc evaluate.Accumulator, failed int) {
	for i, r := range results {
		ref, hyp := entries[i].Reference, r.Text
		if r.Err != nil {
			failed++
			hyp = ""
		}
		if normalize {
			ref, hyp = evaluate.Normalize(ref), evaluate.Normalize(hyp)
		}
		acc.Add(ref, hyp)
	}
	return acc, failed
}
