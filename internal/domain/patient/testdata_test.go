package patient

import (
	"encoding/json"
	"testing"
)

const fixtureRoster = `[
  {
    "id": "p1",
    "name": "Ada Moreno",
    "age": 67,
    "gender": "female",
    "riskLevel": "high",
    "room": "4B",
    "wearableSensorData": {
      "heartRate": {"10days": [{"date": "2025-03-01", "value": 88}, {"date": "2025-03-02", "value": 91}]},
      "spo2": {"10days": [{"date": "2025-03-02", "value": 95}]}
    },
    "conversationLog": {"date": "3/5/2025", "entries": [{"role": "bot", "content": "How are you?"}]},
    "aiRiskPrediction": {"score": 0.72, "historicalData": [{"date": "2025-02-28", "score": 0.6}]}
  },
  {
    "id": "p2",
    "name": "Ben Okafor",
    "age": 54,
    "wearableSensorData": null,
    "conversationLog": {}
  }
]`

func fixturePatients(t *testing.T) []*Patient {
	t.Helper()
	var roster []*Patient
	if err := json.Unmarshal([]byte(fixtureRoster), &roster); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return roster
}
