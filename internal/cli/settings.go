package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anatolykoptev/photoverify"
)

// Viper keys. With the PV prefix they double as environment variable names.
const (
	keyActionCutoff      = "action_cutoff"
	keyValidClassIndex   = "valid_class_index"
	keyHeuristicFloor    = "heuristic_floor"
	keyHeuristicBias     = "heuristic_bias"
	keyDisableDupPenalty = "disable_dup_penalty"
	keyDupDistance       = "dup_distance"
	keyDupPenalty        = "dup_penalty"
	keyDupPolicy         = "dup_policy"
	keyModelPath         = "model_path"
	keyModelVersion      = "model_version"
	keyClassMapPath      = "class_map_path"
	keyONNXLibraryPath   = "onnx_library_path"
	keyTFLiteThreads     = "tflite_threads"
)

// settings is the file/env/flag view of photoverify.Config.
type settings struct {
	ActionCutoff      float64 `mapstructure:"action_cutoff" yaml:"action_cutoff"`
	ValidClassIndex   int     `mapstructure:"valid_class_index" yaml:"valid_class_index"`
	HeuristicFloor    float64 `mapstructure:"heuristic_floor" yaml:"heuristic_floor"`
	HeuristicBias     float64 `mapstructure:"heuristic_bias" yaml:"heuristic_bias"`
	DisableDupPenalty bool    `mapstructure:"disable_dup_penalty" yaml:"disable_dup_penalty"`
	DupDistance       int     `mapstructure:"dup_distance" yaml:"dup_distance"`
	DupPenalty        float64 `mapstructure:"dup_penalty" yaml:"dup_penalty"`
	DupPolicy         string  `mapstructure:"dup_policy" yaml:"dup_policy"`
	ModelPath         string  `mapstructure:"model_path" yaml:"model_path"`
	ModelVersion      string  `mapstructure:"model_version" yaml:"model_version"`
	ClassMapPath      string  `mapstructure:"class_map_path" yaml:"class_map_path"`
	ONNXLibraryPath   string  `mapstructure:"onnx_library_path" yaml:"onnx_library_path"`
	TFLiteThreads     int     `mapstructure:"tflite_threads" yaml:"tflite_threads"`
}

// bindScoringFlags registers one persistent flag per key and binds it to v.
func bindScoringFlags(cmd *cobra.Command, v *viper.Viper) error {
	d := photoverify.DefaultConfig()
	pf := cmd.PersistentFlags()

	pf.Float64(flagName(keyActionCutoff), d.ActionCutoff, "action_score cutoff for valid_report/AUTO_OK")
	pf.Int(flagName(keyValidClassIndex), d.ValidClassIndex, "fallback valid-class index when no class map resolves")
	pf.Float64(flagName(keyHeuristicFloor), d.HeuristicFloor, "lower clamp for the heuristic relevance score")
	pf.Float64(flagName(keyHeuristicBias), d.HeuristicBias, "bias added to the heuristic relevance score")
	pf.Bool(flagName(keyDisableDupPenalty), false, "compute hashes but never report duplicates")
	pf.Int(flagName(keyDupDistance), d.DuplicateDistance, "maximum Hamming distance for a duplicate")
	pf.Float64(flagName(keyDupPenalty), d.DuplicatePenalty, "penalty subtracted from action_score on a duplicate")
	pf.String(flagName(keyDupPolicy), d.DuplicatePolicy.String(), "duplicate selection: first or nearest")
	pf.String("model", d.ModelPath, "model artifact (.onnx for onnxruntime, anything else for tflite)")
	pf.String(flagName(keyModelVersion), d.ModelVersion, "model version tag")
	pf.String("class-map", "", "class map override (JSON {\"<index>\": \"<name>\"})")
	pf.String("onnx-library", "", "path to the onnxruntime shared library")
	pf.Int(flagName(keyTFLiteThreads), 0, "tflite interpreter threads (0 = all CPUs)")

	bind := map[string]string{
		keyActionCutoff:      flagName(keyActionCutoff),
		keyValidClassIndex:   flagName(keyValidClassIndex),
		keyHeuristicFloor:    flagName(keyHeuristicFloor),
		keyHeuristicBias:     flagName(keyHeuristicBias),
		keyDisableDupPenalty: flagName(keyDisableDupPenalty),
		keyDupDistance:       flagName(keyDupDistance),
		keyDupPenalty:        flagName(keyDupPenalty),
		keyDupPolicy:         flagName(keyDupPolicy),
		keyModelPath:         "model",
		keyModelVersion:      flagName(keyModelVersion),
		keyClassMapPath:      "class-map",
		keyONNXLibraryPath:   "onnx-library",
		keyTFLiteThreads:     flagName(keyTFLiteThreads),
	}
	return bindFlags(v, pf, bind)
}

// bindFlags binds each viper key to the named flag in fs.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, bind map[string]string) error {
	for key, name := range bind {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("bind %s: no flag --%s", key, name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// loadSettings resolves every key through viper's precedence chain.
func loadSettings(v *viper.Viper) (settings, error) {
	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// toConfig validates s and converts it to a library Config.
func (s settings) toConfig() (photoverify.Config, error) {
	policy, err := photoverify.ParseDuplicatePolicy(s.DupPolicy)
	if err != nil {
		return photoverify.Config{}, err
	}
	cfg := photoverify.Config{
		ActionCutoff:            s.ActionCutoff,
		ValidClassIndex:         s.ValidClassIndex,
		HeuristicFloor:          s.HeuristicFloor,
		HeuristicBias:           s.HeuristicBias,
		DisableDuplicatePenalty: s.DisableDupPenalty,
		DuplicateDistance:       s.DupDistance,
		DuplicatePenalty:        s.DupPenalty,
		DuplicatePolicy:         policy,
		ModelPath:               s.ModelPath,
		ModelVersion:            s.ModelVersion,
		ClassMapPath:            s.ClassMapPath,
		ONNXLibraryPath:         s.ONNXLibraryPath,
		TFLiteThreads:           s.TFLiteThreads,
	}
	return cfg, cfg.Validate()
}
