package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anatolykoptev/photoverify"
)

// defaultWindow is how many recent submissions the rolling history keeps.
const defaultWindow = 200

// loadHistory reads a JSON or YAML array of {id, phash}, most-recent-first.
// An empty path means no history.
func loadHistory(path string) ([]photoverify.HistoryEntry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var entries []photoverify.HistoryEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("decode history %s: %w", path, err)
	}
	return entries, nil
}

// rollingHistory is a bounded most-recent-first window of scored submissions.
type rollingHistory struct {
	entries []photoverify.HistoryEntry
	size    int
}

func newRollingHistory(size int, seed []photoverify.HistoryEntry) *rollingHistory {
	if size <= 0 {
		size = defaultWindow
	}
	h := &rollingHistory{size: size}
	h.entries = append(h.entries, seed[:min(len(seed), size)]...)
	return h
}

// Push records e as the most recent submission and drops the oldest beyond size.
func (h *rollingHistory) Push(e photoverify.HistoryEntry) {
	h.entries = append([]photoverify.HistoryEntry{e}, h.entries...)
	if len(h.entries) > h.size {
		h.entries = h.entries[:h.size]
	}
}

// Entries returns the window, most recent first.
func (h *rollingHistory) Entries() []photoverify.HistoryEntry {
	return h.entries
}
