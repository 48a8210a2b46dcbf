package photoverify

// Fusion weights for action_score.
const (
	weightRelevance = 0.55
	weightAuth      = 0.30
	exifBonus       = 0.08
)

// Labels and statuses. Both are exposed; status is the operational view of label.
const (
	LabelValid    = "valid_report"
	LabelInvalid  = "invalid"
	StatusAutoOK  = "AUTO_OK"
	StatusRecheck = "RECHECK"
)

// Signal is one contribution to the action score.
type Signal struct {
	Source string  `json:"source" yaml:"source"` // "relevance", "auth", "exif_bonus", "duplicate"
	Detail string  `json:"detail" yaml:"detail"`
	Value  float64 `json:"value" yaml:"value"`   // raw signal
	Weight float64 `json:"weight" yaml:"weight"` // multiplier applied to Value
	Delta  float64 `json:"delta" yaml:"delta"`   // Value * Weight, signed
}

// ScoreResult is the verdict for one image. It is produced fresh per call.
type ScoreResult struct {
	PHash             string         `json:"phash" yaml:"phash"`
	DuplicateOf       *string        `json:"duplicate_of" yaml:"duplicate_of"`
	DuplicateDistance *int           `json:"duplicate_distance,omitempty" yaml:"duplicate_distance,omitempty"`
	ExifTimeOK        *bool          `json:"exif_time_ok" yaml:"exif_time_ok"`
	Timestamp         TimestampState `json:"exif_timestamp" yaml:"-"`
	RelevanceScore    float64        `json:"relevance_score" yaml:"relevance_score"`
	AuthScore         float64        `json:"auth_score" yaml:"auth_score"`
	ActionScore       float64        `json:"action_score" yaml:"action_score"`
	Label             string         `json:"label" yaml:"label"`
	Status            string         `json:"status" yaml:"status"`
	ModelVersion      string         `json:"model_version" yaml:"model_version"`
	Location          *GeoPoint      `json:"location,omitempty" yaml:"location,omitempty"`
	Signals           []Signal       `json:"signals,omitempty" yaml:"signals,omitempty"`
}

// Valid reports whether the label is LabelValid.
func (r *ScoreResult) Valid() bool { return r.Label == LabelValid }

// fusionInput gathers the per-call signals.
type fusionInput struct {
	relevance float64
	timestamp TimestampState
	duplicate *duplicateMatch
	penalty   float64 // 0 when duplicate detection is disabled
	cutoff    float64
}

// fuse combines the signals into action_score, label and status, and records
// every contribution.
func fuse(in fusionInput, r *ScoreResult) {
	rel := clamp01(in.relevance)
	auth := in.timestamp.AuthScore()

	signals := make([]Signal, 0, 4) //nolint:mnd // up to 4 contributions
	signals = append(signals,
		Signal{Source: "relevance", Detail: "relevance score", Value: rel, Weight: weightRelevance, Delta: weightRelevance * rel},
		Signal{Source: "auth", Detail: "capture timestamp " + in.timestamp.String(), Value: auth, Weight: weightAuth, Delta: weightAuth * auth},
	)

	score := weightRelevance*rel + weightAuth*auth
	if in.timestamp == TimestampPresent {
		score += exifBonus
		signals = append(signals, Signal{Source: "exif_bonus", Detail: "capture timestamp present", Value: 1, Weight: exifBonus, Delta: exifBonus})
	}
	if in.duplicate != nil && in.penalty > 0 {
		score -= in.penalty
		signals = append(signals, Signal{Source: "duplicate", Detail: "near-duplicate of " + in.duplicate.ID, Value: 1, Weight: -in.penalty, Delta: -in.penalty})
	}

	r.RelevanceScore = rel
	r.AuthScore = auth
	r.ActionScore = clamp01(score)
	r.Signals = signals

	if r.ActionScore >= in.cutoff {
		r.Label, r.Status = LabelValid, StatusAutoOK
	} else {
		r.Label, r.Status = LabelInvalid, StatusRecheck
	}
}
