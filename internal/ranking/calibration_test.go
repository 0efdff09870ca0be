package ranking

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// TestLoadCalibration_DefaultFile tests loading the shipped calibration file.
func TestLoadCalibration_DefaultFile(t *testing.T) {
	configPath := filepath.Join("..", "..", "configs", "ranking.calibration.json")
	cfg, err := LoadCalibration(configPath)

	if _, statErr := os.Stat(configPath); statErr == nil {
		if err != nil {
			t.Fatalf("expected no error loading default calibration file, got: %v", err)
		}
		if !reflect.DeepEqual(cfg, DefaultConfig()) {
			t.Errorf("shipped calibration doesn't match defaults:\nloaded: %+v\ndefaults: %+v",
				cfg, DefaultConfig())
		}
	} else if err == nil {
		t.Error("expected error when file doesn't exist")
	}
}

// TestLoadCalibration_EmptyPath tests loading with empty file path.
func TestLoadCalibration_EmptyPath(t *testing.T) {
	cfg, err := LoadCalibration("")
	if err != nil {
		t.Errorf("expected no error with empty path, got: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Error("should return defaults when path is empty")
	}
}

// TestLoadCalibration_NonExistentFile tests loading a non-existent file.
func TestLoadCalibration_NonExistentFile(t *testing.T) {
	cfg, err := LoadCalibration("/nonexistent/path/to/file.json")
	if err == nil {
		t.Error("expected error when file doesn't exist")
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Error("should return defaults when file doesn't exist")
	}
}

// TestLoadCalibration_PartialOverrides tests merging a partial file.
func TestLoadCalibration_PartialOverrides(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "custom.json")
	data := `{
		"version": "1.0",
		"overrides": {
			"weights": {"impressions": 4, "max_age_penalty": 48},
			"fields": {"impressions": "views"},
			"top_count": 25,
			"include_score": false
		}
	}`
	if err := os.WriteFile(tmpFile, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := LoadCalibration(tmpFile)
	if err != nil {
		t.Fatalf("expected no error loading custom file, got: %v", err)
	}

	if cfg.Weights["impressions"] != 4 || cfg.Weights[WeightMaxAgePenalty] != 48 {
		t.Errorf("expected overridden weights, got %v", cfg.Weights)
	}
	if cfg.Weights["last_24hrs"] != 50 {
		t.Errorf("expected last_24hrs unchanged at 50, got %f", cfg.Weights["last_24hrs"])
	}
	if cfg.Fields["impressions"] != "views" || cfg.Fields["user_count"] != "user_count" {
		t.Errorf("unexpected fields %v", cfg.Fields)
	}
	if cfg.TopCount != 25 || cfg.IncludeScore {
		t.Errorf("expected top_count 25 and include_score false, got %d and %t", cfg.TopCount, cfg.IncludeScore)
	}
}

// TestLoadCalibration_InvalidJSON tests loading invalid JSON.
func TestLoadCalibration_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(tmpFile, []byte("{invalid json}"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := LoadCalibration(tmpFile)
	if err == nil {
		t.Error("expected error when JSON is invalid")
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Error("should return defaults when JSON is invalid")
	}
}

// TestLoadCalibration_InvalidConfig tests a well-formed file with a bad value.
func TestLoadCalibration_InvalidConfig(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "bad.json")
	data := `{"version": "1.0", "overrides": {"return_fields": ["id", ""]}}`
	if err := os.WriteFile(tmpFile, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := LoadCalibration(tmpFile)
	if err == nil {
		t.Error("expected error for invalid calibration values")
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Error("should return defaults when calibration is invalid")
	}
}
