package patient

import "sync"

// Selection is the observable state of a Store: the patient chosen by the
// most recent SelectPatient call, or nil when that call matched nothing.
type Selection struct {
	RequestedID string   `json:"requestedId"`
	Patient     *Patient `json:"patient"`
	Version     uint64   `json:"version"`
}

// Observer receives every selection written to a Store.
type Observer func(Selection)

// Store holds the roster handed to it at construction and a single
// selection slot. The roster is never modified after NewStore.
//
// Observers run synchronously on the goroutine that called SelectPatient,
// after the store lock is released. Version increases on every write, so an
// observer fed from several goroutines can discard stale notifications.
type Store struct {
	mu        sync.RWMutex
	patients  []*Patient
	selection Selection

	obsMu     sync.Mutex
	nextObs   int
	observers map[int]Observer
}

// NewStore wraps an already parsed roster. The selection starts empty.
func NewStore(roster []*Patient) *Store {
	patients := make([]*Patient, len(roster))
	copy(patients, roster)
	return &Store{
		patients:  patients,
		observers: make(map[int]Observer),
	}
}

// Patients returns the roster in source order. The slice is a copy; the
// records are the store's own.
func (s *Store) Patients() []*Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Patient, len(s.patients))
	copy(out, s.patients)
	return out
}

// Len returns the roster size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patients)
}

// Find returns the first roster entry whose id equals id exactly.
func (s *Store) Find(id string) (*Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.find(id)
	return p, p != nil
}

func (s *Store) find(id string) *Patient {
	for _, p := range s.patients {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Selected returns the selected patient, or nil when nothing is selected.
func (s *Store) Selected() *Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection.Patient
}

// Snapshot returns the current selection together with its version.
func (s *Store) Snapshot() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// SelectPatient replaces the selection with the roster entry matching
// patientID, or clears it when there is no match. An unknown id is not an
// error. Every call is published to the observers.
func (s *Store) SelectPatient(patientID string) {
	s.selectPatient(patientID)
}

func (s *Store) selectPatient(patientID string) Selection {
	s.mu.Lock()
	s.selection = Selection{
		RequestedID: patientID,
		Patient:     s.find(patientID),
		Version:     s.selection.Version + 1,
	}
	sel := s.selection
	s.mu.Unlock()

	s.publish(sel)
	return sel
}

// Subscribe registers fn for every future selection and returns a function
// that removes it. Calling the returned function more than once is a no-op.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

// ObserverCount returns the number of registered observers.
func (s *Store) ObserverCount() int {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	return len(s.observers)
}

func (s *Store) publish(sel Selection) {
	s.obsMu.Lock()
	fns := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(sel)
	}
}
