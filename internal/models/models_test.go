package models

import (
	"encoding/json"
	"testing"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"color_palette": []string{"red", "blue"},
		"mood":          "dramatic",
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["mood"] != "dramatic" {
		t.Errorf("expected mood=dramatic, got %v", result["mood"])
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"color": "blue", "size": 10}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["color"] != "blue" {
		t.Errorf("expected color=blue, got %v", j["color"])
	}

	if j["size"].(float64) != 10 {
		t.Errorf("expected size=10, got %v", j["size"])
	}
}

func TestJSONBNilValue(t *testing.T) {
	var j JSONB
	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal nil JSONB: %v", err)
	}
	if string(data.([]byte)) != "{}" {
		t.Errorf("expected {}, got %s", data)
	}
}

func TestVideoStatus(t *testing.T) {
	statuses := []VideoStatus{
		VideoStatusPending,
		VideoStatusProcessing,
		VideoStatusCompleted,
		VideoStatusFailed,
	}

	for _, status := range statuses {
		if !status.Valid() {
			t.Errorf("expected %q to be valid", status)
		}
	}

	if VideoStatus("queued").Valid() {
		t.Error("unexpected valid status queued")
	}
	if VideoStatusProcessing.Terminal() || !VideoStatusFailed.Terminal() {
		t.Error("terminal statuses are completed and failed")
	}
}

func TestVideoRecordPaths(t *testing.T) {
	video := "/data/videos/a.mp4"
	empty := ""
	rec := VideoRecord{VideoPath: &video, PreviewPath: &empty}

	paths := rec.Paths()
	if len(paths) != 1 || paths[ArtifactVideo] != video {
		t.Errorf("expected only the video path, got %v", paths)
	}
}
