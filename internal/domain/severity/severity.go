// Package severity holds the dashboard's static symptom severity tables:
// the colour palette, the labels and the default level per symptom.
package severity

// Level is a symptom severity. Values index StateColors and StateMessages.
type Level int

const (
	NoInformation Level = iota
	Normal
	Warning
	Critical
)

// StateColors is the palette indexed by Level.
var StateColors = [...]string{"#c1b9b6", "#4ca851", "#f9d965", "#eb4c44"}

// StateMessages is the label indexed by Level.
var StateMessages = [...]string{"no information", "normal", "warning", "critical"}

// SymptomCategories lists the tracked symptoms in display order.
var SymptomCategories = []string{
	"Shortness of Breath",
	"Palpitation",
	"Chest Discomfort",
	"Swelling",
	"Fatigue",
	"Syncope",
}

// SymptomStates maps each tracked symptom to its default level.
var SymptomStates = map[string]Level{
	"Shortness of Breath": Normal,
	"Chest Discomfort":    Normal,
	"Swelling":            Normal,
	"Fatigue":             Normal,
	"Palpitation":         Warning,
	"Syncope":             Warning,
}

func (l Level) Valid() bool {
	return l >= NoInformation && l <= Critical
}

// Color returns the palette entry for l. Out of range levels get the
// no-information colour.
func (l Level) Color() string {
	if !l.Valid() {
		return StateColors[NoInformation]
	}
	return StateColors[l]
}

func (l Level) Message() string {
	if !l.Valid() {
		return StateMessages[NoInformation]
	}
	return StateMessages[l]
}

func (l Level) String() string {
	return l.Message()
}

// LevelFor returns the configured level of a symptom, NoInformation when the
// symptom is not tracked.
func LevelFor(symptom string) Level {
	if l, ok := SymptomStates[symptom]; ok {
		return l
	}
	return NoInformation
}

// State describes one level for the UI.
type State struct {
	Level   Level  `json:"level"`
	Color   string `json:"color"`
	Message string `json:"message"`
}

// Symptom is a tracked symptom and its default level.
type Symptom struct {
	Name  string `json:"name"`
	Level Level  `json:"level"`
}

// Config is the whole table as served to the dashboard.
type Config struct {
	States   []State   `json:"states"`
	Symptoms []Symptom `json:"symptoms"`
}

// Table returns the severity configuration with symptoms in display order.
func Table() Config {
	cfg := Config{
		States:   make([]State, 0, len(StateColors)),
		Symptoms: make([]Symptom, 0, len(SymptomCategories)),
	}
	for l := NoInformation; l <= Critical; l++ {
		cfg.States = append(cfg.States, State{Level: l, Color: l.Color(), Message: l.Message()})
	}
	for _, name := range SymptomCategories {
		cfg.Symptoms = append(cfg.Symptoms, Symptom{Name: name, Level: LevelFor(name)})
	}
	return cfg
}
