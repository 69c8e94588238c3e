package patient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrMissingID is returned when a roster document has no string "id".
var ErrMissingID = errors.New("patient record has no id")

// Patient is a roster entry. ID is the only field the dashboard relies on;
// every other attribute of the source document is kept verbatim in
// Attributes so new fields flow through without code changes.
type Patient struct {
	ID         string
	Attributes map[string]json.RawMessage
}

// Attribute names read by the API.
const (
	AttrName           = "name"
	AttrAge            = "age"
	AttrGender         = "gender"
	AttrRiskLevel      = "riskLevel"
	AttrWearableData   = "wearableSensorData"
	AttrRiskPrediction = "aiRiskPrediction"
	AttrConversation   = "conversationLog"
)

// summaryAttrs is the projection shown in the roster sidebar.
var summaryAttrs = []string{AttrName, AttrAge, AttrGender, AttrRiskLevel}

// New builds a patient from an id and optional attributes. Attribute values
// are marshalled to JSON; a value that cannot be marshalled is an error.
func New(id string, attrs map[string]any) (*Patient, error) {
	p := &Patient{ID: id, Attributes: make(map[string]json.RawMessage, len(attrs))}
	for k, v := range attrs {
		if k == "id" {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal attribute %s: %w", k, err)
		}
		p.Attributes[k] = raw
	}
	return p, nil
}

func (p *Patient) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode patient: %w", err)
	}
	rawID, ok := doc["id"]
	if !ok {
		return ErrMissingID
	}
	var id string
	if err := json.Unmarshal(rawID, &id); err != nil {
		return fmt.Errorf("%w: id is not a string", ErrMissingID)
	}
	delete(doc, "id")
	p.ID = id
	p.Attributes = doc
	return nil
}

// MarshalJSON writes id first, then the attributes in key order.
func (p Patient) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	id, err := json.Marshal(p.ID)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"id":`)
	buf.Write(id)
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		if err := json.Compact(&buf, p.Attributes[k]); err != nil {
			return nil, fmt.Errorf("encode attribute %s: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Attribute returns the raw value of an attribute. JSON null and empty
// objects, arrays or strings count as absent.
func (p *Patient) Attribute(name string) (json.RawMessage, bool) {
	raw, ok := p.Attributes[name]
	if !ok || isEmpty(raw) {
		return nil, false
	}
	return raw, true
}

// Decode unmarshals an attribute into v. It reports false when the
// attribute is absent.
func (p *Patient) Decode(name string, v any) (bool, error) {
	raw, ok := p.Attribute(name)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s for patient %s: %w", name, p.ID, err)
	}
	return true, nil
}

// Summary is the sidebar projection of a patient.
type Summary map[string]json.RawMessage

// Summary projects the patient onto id, name, age, gender and riskLevel.
// Attributes the record does not carry are omitted.
func (p *Patient) Summary() Summary {
	s := Summary{}
	id, _ := json.Marshal(p.ID)
	s["id"] = id
	for _, name := range summaryAttrs {
		if raw, ok := p.Attributes[name]; ok {
			s[name] = raw
		}
	}
	return s
}

func isEmpty(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}
