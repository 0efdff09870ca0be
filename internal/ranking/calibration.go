package ranking

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/goccy/go-json"
)

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version   string    `json:"version"`   // Config version for future compatibility
	Overrides Overrides `json:"overrides"` // Applied over the built-in defaults
}

// LoadCalibration loads the default ranking configuration from a JSON
// calibration file. Partial files are merged over the built-in defaults, with
// weights and fields merging key by key.
//
// An empty path returns the built-in defaults. If the file can't be read or
// parsed, the built-in defaults are returned together with the error so the
// caller can keep serving.
func LoadCalibration(filePath string) (Config, error) {
	if filePath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var calibration CalibrationConfig
	if err := json.Unmarshal(data, &calibration); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := Merge(defaultConfig, calibration.Overrides)
	if err := merged.Validate(); err != nil {
		slog.Warn("invalid calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), fmt.Errorf("invalid calibration file: %w", err)
	}

	logCalibrationOverrides(defaultConfig, merged)
	return merged, nil
}

// logCalibrationOverrides logs which weights and fields differ from defaults.
func logCalibrationOverrides(defaults, loaded Config) {
	var overrides []string

	for _, key := range sortedKeys(loaded.Weights) {
		old, ok := defaults.Weights[key]
		if !ok || old != loaded.Weights[key] {
			overrides = append(overrides, fmt.Sprintf("weights.%s: %.2f -> %.2f",
				key, old, loaded.Weights[key]))
		}
	}
	for _, key := range sortedKeys(loaded.Fields) {
		old, ok := defaults.Fields[key]
		if !ok || old != loaded.Fields[key] {
			overrides = append(overrides, fmt.Sprintf("fields.%s: %q -> %q",
				key, old, loaded.Fields[key]))
		}
	}
	if loaded.TopCount != defaults.TopCount {
		overrides = append(overrides, fmt.Sprintf("top_count: %d -> %d",
			defaults.TopCount, loaded.TopCount))
	}
	if loaded.IncludeScore != defaults.IncludeScore {
		overrides = append(overrides, fmt.Sprintf("include_score: %t -> %t",
			defaults.IncludeScore, loaded.IncludeScore))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
