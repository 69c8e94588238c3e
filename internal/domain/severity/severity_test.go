package severity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestLevel_ColorAndMessage(t *testing.T) {
	tests := []struct {
		level   Level
		color   string
		message string
	}{
		{NoInformation, "#c1b9b6", "no information"},
		{Normal, "#4ca851", "normal"},
		{Warning, "#f9d965", "warning"},
		{Critical, "#eb4c44", "critical"},
		{Level(7), "#c1b9b6", "no information"},
		{Level(-1), "#c1b9b6", "no information"},
	}
	for _, tt := range tests {
		if got := tt.level.Color(); got != tt.color {
			t.Errorf("Level(%d).Color() = %q, want %q", tt.level, got, tt.color)
		}
		if got := tt.level.Message(); got != tt.message {
			t.Errorf("Level(%d).Message() = %q, want %q", tt.level, got, tt.message)
		}
	}
}

func TestLevelFor(t *testing.T) {
	if got := LevelFor("Palpitation"); got != Warning {
		t.Errorf("expected warning for Palpitation, got %v", got)
	}
	if got := LevelFor("Fatigue"); got != Normal {
		t.Errorf("expected normal for Fatigue, got %v", got)
	}
	if got := LevelFor("Headache"); got != NoInformation {
		t.Errorf("expected no information for untracked symptom, got %v", got)
	}
}

func TestSymptomCategoriesAllConfigured(t *testing.T) {
	if len(SymptomCategories) != len(SymptomStates) {
		t.Fatalf("expected %d configured symptoms, got %d", len(SymptomCategories), len(SymptomStates))
	}
	for _, name := range SymptomCategories {
		if _, ok := SymptomStates[name]; !ok {
			t.Errorf("symptom %q has no configured level", name)
		}
	}
}

func TestHandler_GetTable(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/severity", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewHandler().GetTable(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var cfg Config
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cfg.States) != 4 {
		t.Errorf("expected 4 states, got %d", len(cfg.States))
	}
	if cfg.Symptoms[0].Name != "Shortness of Breath" {
		t.Errorf("expected display order to start with Shortness of Breath, got %s", cfg.Symptoms[0].Name)
	}
	if cfg.States[3].Color != "#eb4c44" {
		t.Errorf("expected critical colour #eb4c44, got %s", cfg.States[3].Color)
	}
}
