package photoverify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ValidClassName is the class-map entry that marks a valid report.
const ValidClassName = "dirty_places"

// ClassMapOutcome records how the valid index was resolved.
type ClassMapOutcome int

const (
	ClassMapLoaded    ClassMapOutcome = iota // map read and sentinel found
	ClassMapNotFound                         // no candidate file exists
	ClassMapMalformed                        // file exists but could not be parsed
	ClassMapNoMatch                          // map read but no entry names the sentinel
)

func (o ClassMapOutcome) String() string {
	switch o {
	case ClassMapLoaded:
		return "loaded"
	case ClassMapNotFound:
		return "not_found"
	case ClassMapMalformed:
		return "malformed"
	case ClassMapNoMatch:
		return "no_match"
	default:
		return "unknown"
	}
}

// ClassEntry is one index → name pair of a class map.
type ClassEntry struct {
	Index int
	Name  string
}

// ClassMap is the resolved model class map. It is read-only after construction.
type ClassMap struct {
	Entries    []ClassEntry // ascending by Index
	ValidIndex int
	Source     string // file the entries came from; empty when not found
	Outcome    ClassMapOutcome
}

// Name returns the class name at idx, or "" when the map does not list it.
func (m *ClassMap) Name(idx int) string {
	for _, e := range m.Entries {
		if e.Index == idx {
			return e.Name
		}
	}
	return ""
}

// classMapCandidates lists the search order: override, <model stem>.json, default location.
func classMapCandidates(override, modelPath string) []string {
	if override != "" {
		return []string{override}
	}
	var paths []string
	if modelPath != "" {
		paths = append(paths, strings.TrimSuffix(modelPath, filepath.Ext(modelPath))+".json")
	}
	return append(paths, DefaultClassMapPath)
}

// ResolveClassMap finds and parses the class map for modelPath and resolves the
// valid index. It never fails: a missing or malformed map falls back to
// defaultIndex and the reason is logged and recorded in Outcome.
func ResolveClassMap(override, modelPath string, defaultIndex int, log *slog.Logger) *ClassMap {
	if log == nil {
		log = slog.Default()
	}
	cm := &ClassMap{ValidIndex: defaultIndex, Outcome: ClassMapNotFound}

	for _, p := range classMapCandidates(override, modelPath) {
		if !isFile(p) {
			continue
		}
		cm.Source = p
		entries, err := parseClassMap(p)
		if err != nil {
			cm.Outcome = ClassMapMalformed
			log.Warn("photoverify: class map unreadable, using default index",
				"path", p, "valid_index", defaultIndex, "error", err.Error())
			return cm
		}
		cm.Entries = entries
		cm.Outcome = ClassMapNoMatch
		for _, e := range entries {
			if strings.EqualFold(e.Name, ValidClassName) {
				cm.ValidIndex = e.Index
				cm.Outcome = ClassMapLoaded
				break
			}
		}
		log.Info("photoverify: class map loaded",
			"path", p, "classes", len(entries), "valid_index", cm.ValidIndex, "outcome", cm.Outcome.String())
		return cm
	}

	log.Info("photoverify: class map not found, using default index", "valid_index", defaultIndex)
	return cm
}

// parseClassMap reads a flat {"<int>": "<name>"} object. Keys that are not
// integers are dropped.
func parseClassMap(path string) ([]ClassEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode class map: %w", err)
	}

	entries := make([]ClassEntry, 0, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		entries = append(entries, ClassEntry{Index: idx, Name: fmt.Sprint(v)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries, nil
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
