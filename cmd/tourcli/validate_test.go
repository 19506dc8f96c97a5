package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validTour = `{
	"name": "Test Tour",
	"description": "Two stops on a straight road",
	"track": {"control_points": [{"x": 0.1, "y": 0.5}, {"x": 0.9, "y": 0.5}]},
	"stops": [
		{"id": "a", "name": "A", "games": [
			{"id": "q", "kind": "quiz", "question": "?", "options": ["yes", "no"], "correct_index": 1}
		]},
		{"id": "b", "name": "B"}
	]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestValidateTour(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantValid bool
		wantError string
	}{
		{
			name:      "valid tour",
			content:   validTour,
			wantValid: true,
		},
		{
			name:      "invalid json",
			content:   `{"name": `,
			wantError: "Invalid JSON",
		},
		{
			name:      "unknown field",
			content:   `{"name": "x", "grid_size": 5}`,
			wantError: "Invalid JSON",
		},
		{
			name:      "missing name",
			content:   `{"track": {"control_points": [{"x": 0, "y": 0}, {"x": 1, "y": 1}]}}`,
			wantError: "name is required",
		},
		{
			name:      "single control point",
			content:   `{"name": "x", "track": {"control_points": [{"x": 0.5, "y": 0.5}]}}`,
			wantError: "at least 2 control points",
		},
		{
			name: "quiz answer out of range",
			content: `{"name": "x", "track": {"control_points": [{"x": 0, "y": 0}, {"x": 1, "y": 1}]},
				"stops": [{"id": "a", "games": [{"id": "q", "kind": "quiz", "options": ["one"], "correct_index": 3}]}]}`,
			wantError: "correct_index 3 out of 1 options",
		},
		{
			name: "unknown game kind",
			content: `{"name": "x", "track": {"control_points": [{"x": 0, "y": 0}, {"x": 1, "y": 1}]},
				"stops": [{"id": "a", "games": [{"id": "g", "kind": "chess"}]}]}`,
			wantError: "unknown mini-game kind",
		},
		{
			name: "short sequence",
			content: `{"name": "x", "track": {"control_points": [{"x": 0, "y": 0}, {"x": 1, "y": 1}]},
				"stops": [{"id": "a", "games": [{"id": "s", "kind": "sequence", "steps": ["only"]}]}]}`,
			wantError: "at least 2 steps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "tour.json", tt.content)
			result := validateTour(path)

			if result.Valid != tt.wantValid {
				t.Fatalf("Expected valid=%v, got %v (errors: %v)", tt.wantValid, result.Valid, result.Errors)
			}
			if tt.wantError != "" && !strings.Contains(strings.Join(result.Errors, "\n"), tt.wantError) {
				t.Errorf("Expected error containing %q, got %v", tt.wantError, result.Errors)
			}
			if tt.wantValid && len(result.Info) == 0 {
				t.Error("Expected info lines for a valid tour")
			}
		})
	}
}

func TestValidateTour_MissingFile(t *testing.T) {
	result := validateTour(filepath.Join(t.TempDir(), "missing.json"))
	if result.Valid {
		t.Error("Expected missing file to be invalid")
	}
}

func TestShippedToursAreValid(t *testing.T) {
	files, err := tourFiles(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Skipf("Skipping test - configs directory not found: %v", err)
	}

	for _, r := range ValidateFiles(files) {
		if !r.Valid {
			t.Errorf("Expected %s to be valid, got %v", r.File, r.Errors)
		}
	}
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	PrintResults(&buf, []ValidationResult{
		{File: "good.json", Valid: true, Info: []string{"✓ Stops: 2"}},
		{File: "bad.json", Errors: []string{"Invalid JSON"}},
	})

	out := buf.String()
	for _, want := range []string{"✅ good.json", "✓ Stops: 2", "❌ bad.json", "- Invalid JSON"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
	if n := countInvalid([]ValidationResult{{Valid: true}, {}, {}}); n != 2 {
		t.Errorf("Expected 2 invalid, got %d", n)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.json", validTour)

	var buf bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &buf

	if err := cmd.Run(context.Background(), []string{"tourcli", "--config-dir", dir, "validate"}); err != nil {
		t.Fatalf("Expected validate to succeed, got %v", err)
	}
	if !strings.Contains(buf.String(), "✅ good.json") {
		t.Errorf("Expected good.json to be reported, got:\n%s", buf.String())
	}
}
