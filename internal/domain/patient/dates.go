package patient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// wearableSensors are the series of wearableSensorData that carry dates.
var wearableSensors = []string{"heartRate", "respiration", "spo2", "skinTemperature"}

type datedEntry struct {
	Date string `json:"date"`
}

type wearableSeries struct {
	TenDays []datedEntry `json:"10days"`
}

type riskPrediction struct {
	HistoricalData []datedEntry `json:"historicalData"`
}

type conversationLog struct {
	Date string `json:"date"`
}

// NormalizeDate turns a US style M/D/YYYY date into YYYY-MM-DD. Any other
// input is returned trimmed but otherwise unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		return s
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s
	}
	return fmt.Sprintf("%s-%s-%s", parts[2], zeroPad(parts[0]), zeroPad(parts[1]))
}

func zeroPad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// AvailableDates collects every date the patient has data for: wearable
// ten-day series, the conversation log and historical risk predictions.
// The result is de-duplicated and sorted.
func AvailableDates(p *Patient) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(d string) {
		if d != "" {
			seen[d] = struct{}{}
		}
	}

	var wearable map[string]json.RawMessage
	if _, err := p.Decode(AttrWearableData, &wearable); err != nil {
		return nil, err
	}
	for _, sensor := range wearableSensors {
		raw, ok := wearable[sensor]
		if !ok || isEmpty(raw) {
			continue
		}
		var series wearableSeries
		if err := json.Unmarshal(raw, &series); err != nil {
			return nil, fmt.Errorf("decode %s series for patient %s: %w", sensor, p.ID, err)
		}
		for _, e := range series.TenDays {
			add(e.Date)
		}
	}

	var log conversationLog
	if _, err := p.Decode(AttrConversation, &log); err != nil {
		return nil, err
	}
	add(NormalizeDate(log.Date))

	var risk riskPrediction
	if _, err := p.Decode(AttrRiskPrediction, &risk); err != nil {
		return nil, err
	}
	for _, e := range risk.HistoricalData {
		add(e.Date)
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

// sameDay compares two dates after normalising both to YYYY-MM-DD.
func sameDay(a, b string) bool {
	return NormalizeDate(a) == NormalizeDate(b)
}
