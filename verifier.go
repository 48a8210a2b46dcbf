// Package photoverify scores uploaded report photos. A score fuses optional
// model inference (or a model-free heuristic), perceptual near-duplicate
// detection against caller-supplied history, and an EXIF capture-timestamp
// check into a bounded action score with a label and status.
package photoverify

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// relevanceScorer is the relevance path chosen once in New.
type relevanceScorer interface {
	relevance(li *loadedImage) (float64, error)
}

// Verifier scores images. Construction resolves the class map and the model
// backend once; Score is then safe for concurrent use.
type Verifier struct {
	cfg      Config
	log      *slog.Logger
	classMap *ClassMap
	backend  Backend
	scorer   relevanceScorer
	attempts []LoadAttempt
	version  string

	// mu is held for reading by in-flight Score calls so Close cannot
	// release the backend underneath them.
	mu       sync.RWMutex
	closed   bool
	closeErr error
}

// New builds a Verifier from cfg. Model and class-map problems never fail
// construction; they degrade to the heuristic scorer and the default class
// index. Only an invalid cfg returns an error.
func New(cfg Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.logger()

	v := &Verifier{cfg: cfg, log: log}
	v.classMap = ResolveClassMap(cfg.ClassMapPath, cfg.ModelPath, cfg.ValidClassIndex, log)
	v.backend, v.attempts = selectBackend(cfg.runtimes(), cfg.ModelPath, log, cfg.OnBackendLoad)

	if v.backend.Kind() == BackendHeuristic {
		v.scorer = &heuristicScorer{floor: cfg.HeuristicFloor, bias: cfg.HeuristicBias}
	} else {
		v.scorer = &modelScorer{backend: v.backend, validIndex: v.classMap.ValidIndex}
	}
	v.version = cfg.ModelVersion + "_" + string(v.backend.Kind())

	log.Info("photoverify: verifier ready", "backend", v.backend.Kind(), "model_version", v.version,
		"valid_index", v.classMap.ValidIndex)
	return v, nil
}

// Backend returns the kind of backend that produces relevance scores.
func (v *Verifier) Backend() BackendKind { return v.backend.Kind() }

// ModelVersion returns the version tag written into every ScoreResult.
func (v *Verifier) ModelVersion() string { return v.version }

// ClassMap returns the resolved class map.
func (v *Verifier) ClassMap() *ClassMap { return v.classMap }

// LoadAttempts returns the runtime probes made during construction.
func (v *Verifier) LoadAttempts() []LoadAttempt {
	out := make([]LoadAttempt, len(v.attempts))
	copy(out, v.attempts)
	return out
}

// Config returns a copy of the configuration the Verifier was built with.
func (v *Verifier) Config() Config { return v.cfg }

// Score verifies the image at path against history, which is ordered
// most-recent-first by convention. The returned error matches
// ErrImageNotFound, ErrImageCorrupt, ErrClassIndexMismatch, ErrInference or
// ErrClosed.
func (v *Verifier) Score(path string, history []HistoryEntry) (*ScoreResult, error) {
	start := time.Now()
	res, err := v.score(path, history)
	if v.cfg.OnScore != nil {
		v.cfg.OnScore(ScoreEvent{
			Path:     path,
			Backend:  v.backend.Kind(),
			Result:   res,
			Duration: time.Since(start),
			Err:      err,
		})
	}
	return res, err
}

func (v *Verifier) score(path string, history []HistoryEntry) (*ScoreResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, ErrClosed
	}

	li, err := loadImage(path)
	if err != nil {
		return nil, err
	}

	hash, err := PerceptualHash(li.img)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: phash: %v", ErrImageCorrupt, path, err)
	}
	res := &ScoreResult{PHash: FormatHash(hash), ModelVersion: v.version}

	var dup *duplicateMatch
	penalty := 0.0
	if !v.cfg.DisableDuplicatePenalty {
		dup = findDuplicate(hash, history, v.cfg.DuplicateDistance, v.cfg.DuplicatePolicy)
		penalty = v.cfg.DuplicatePenalty
		if dup != nil {
			id, dist := dup.ID, dup.Distance
			res.DuplicateOf, res.DuplicateDistance = &id, &dist
		}
	}

	meta := ReadPhotoMetadata(li.data, li.format)
	res.Timestamp = meta.Timestamp
	res.ExifTimeOK = meta.Timestamp.Bool()
	res.Location = meta.Location

	rel, err := v.scorer.relevance(li)
	if err != nil {
		if errors.Is(err, ErrClassIndexMismatch) {
			v.log.Error("photoverify: class map does not match model output", "path", path, "error", err.Error())
		}
		return nil, err
	}

	fuse(fusionInput{
		relevance: rel,
		timestamp: meta.Timestamp,
		duplicate: dup,
		penalty:   penalty,
		cutoff:    v.cfg.ActionCutoff,
	}, res)

	v.log.Debug("photoverify: scored", "path", path, "action_score", res.ActionScore,
		"label", res.Label, "duplicate", dup != nil, "exif", meta.Timestamp.String())
	return res, nil
}

// Close waits for in-flight Score calls and releases the loaded model. It is
// safe to call more than once; the backend is released exactly once.
func (v *Verifier) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.closed = true
		v.closeErr = v.backend.Close()
	}
	return v.closeErr
}
