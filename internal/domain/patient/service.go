package patient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrNoLogForDate    = errors.New("no conversation log for date")
)

// Service exposes read access to the roster and write access to the
// selection. Writes to the roster are out of scope.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Store returns the underlying selection store.
func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) ListSummaries() []Summary {
	patients := s.store.Patients()
	out := make([]Summary, 0, len(patients))
	for _, p := range patients {
		out = append(out, p.Summary())
	}
	return out
}

func (s *Service) GetPatient(id string) (*Patient, error) {
	p, ok := s.store.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	return p, nil
}

func (s *Service) WearableData(id string) (json.RawMessage, error) {
	return s.section(id, AttrWearableData)
}

func (s *Service) RiskPrediction(id string) (json.RawMessage, error) {
	return s.section(id, AttrRiskPrediction)
}

// ConversationLog returns the patient's conversation log. When date is set
// and the log carries a date, the two must be the same day.
func (s *Service) ConversationLog(id, date string) (json.RawMessage, error) {
	raw, err := s.section(id, AttrConversation)
	if err != nil {
		return nil, err
	}
	if date == "" {
		return raw, nil
	}
	var log conversationLog
	if err := json.Unmarshal(raw, &log); err != nil {
		return nil, fmt.Errorf("decode %s for patient %s: %w", AttrConversation, id, err)
	}
	if log.Date != "" && !sameDay(date, log.Date) {
		return nil, fmt.Errorf("%w %s", ErrNoLogForDate, date)
	}
	return raw, nil
}

func (s *Service) AvailableDates(id string) ([]string, error) {
	p, err := s.GetPatient(id)
	if err != nil {
		return nil, err
	}
	return AvailableDates(p)
}

// Select forwards to the store and returns the resulting selection.
func (s *Service) Select(id string) Selection {
	return s.store.selectPatient(id)
}

func (s *Service) Selection() Selection {
	return s.store.Snapshot()
}

func (s *Service) section(id, attr string) (json.RawMessage, error) {
	p, err := s.GetPatient(id)
	if err != nil {
		return nil, err
	}
	raw, ok := p.Attribute(attr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, attr)
	}
	return raw, nil
}
