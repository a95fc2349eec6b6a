package appraisal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"appraisal/internal/domain/rbac"
	"appraisal/internal/domain/timer"
)

type memoryStore struct {
	mu          sync.Mutex
	employees   map[string]Employee
	tracks      map[string]Track
	details     map[string]Details
	archives    []ArchiveRecord
	markers     map[Capability]map[string]bool
	failArchive map[string]bool
	trackWrites int
	listErr     error
}

func newMemoryStore(employees ...Employee) *memoryStore {
	s := &memoryStore{
		employees:   map[string]Employee{},
		tracks:      map[string]Track{},
		details:     map[string]Details{},
		markers:     map[Capability]map[string]bool{},
		failArchive: map[string]bool{},
	}
	for _, emp := range employees {
		s.employees[emp.ID] = emp
	}
	return s
}

func (s *memoryStore) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	emp, ok := s.employees[employeeID]
	if !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	return emp, nil
}

func (s *memoryStore) ListActiveEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Employee
	for _, emp := range s.employees {
		if emp.Active {
			out = append(out, emp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) UpsertEmployee(ctx context.Context, emp Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[emp.ID] = emp
	return nil
}

func (s *memoryStore) GetTrack(ctx context.Context, employeeID string) (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[employeeID]
	if !ok {
		return Track{}, ErrTrackNotFound
	}
	return t, nil
}

func (s *memoryStore) CreateTrack(ctx context.Context, t Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[t.EmployeeID]; ok {
		return ErrTrackExists
	}
	s.tracks[t.EmployeeID] = t
	s.trackWrites++
	return nil
}

func (s *memoryStore) UpdateTrack(ctx context.Context, t Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[t.EmployeeID]; !ok {
		return ErrTrackNotFound
	}
	s.tracks[t.EmployeeID] = t
	s.trackWrites++
	return nil
}

func (s *memoryStore) ListTracks(ctx context.Context) ([]Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (s *memoryStore) GetDetails(ctx context.Context, employeeID string) (Details, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[employeeID]
	if !ok {
		return Details{}, ErrDetailsNotFound
	}
	return d, nil
}

func (s *memoryStore) UpsertDetails(ctx context.Context, d Details) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[d.EmployeeID] = d
	return nil
}

func (s *memoryStore) ArchiveEmployee(ctx context.Context, batch ArchiveBatch) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := batch.Record.EmployeeID
	if s.failArchive[id] {
		return "", errors.New("archive write failed")
	}
	if _, ok := s.tracks[id]; !ok {
		return "", ErrTrackNotFound
	}
	rec := batch.Record
	rec.ID = fmt.Sprintf("archive-%d", len(s.archives)+1)
	s.archives = append(s.archives, rec)
	s.tracks[id] = batch.Reset
	s.trackWrites++
	delete(s.details, id)
	if batch.Next != nil {
		s.details[id] = *batch.Next
	}
	return rec.ID, nil
}

func (s *memoryStore) ListArchives(ctx context.Context, employeeID string) ([]ArchiveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ArchiveRecord
	for _, rec := range s.archives {
		if rec.EmployeeID == employeeID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memoryStore) GetArchive(ctx context.Context, archiveID string) (ArchiveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.archives {
		if rec.ID == archiveID {
			return rec, nil
		}
	}
	return ArchiveRecord{}, ErrArchiveNotFound
}

func (s *memoryStore) HasMarker(ctx context.Context, employeeID string, c Capability) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers[c][employeeID], nil
}

func (s *memoryStore) AddMarker(ctx context.Context, employeeID string, c Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markers[c] == nil {
		s.markers[c] = map[string]bool{}
	}
	s.markers[c][employeeID] = true
	return nil
}

func (s *memoryStore) RemoveMarker(ctx context.Context, employeeID string, c Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers[c], employeeID)
	return nil
}

func (s *memoryStore) ListHolders(ctx context.Context, c Capability) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id := range s.markers[c] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

type sentNotification struct {
	RecipientID string
	Kind        string
	Title       string
	Body        string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Create(ctx context.Context, recipientID, kind, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{RecipientID: recipientID, Kind: kind, Title: title, Body: body})
	return nil
}

func (n *recordingNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.RecipientID)
	}
	return out
}

type fakeTimers struct {
	mu      sync.Mutex
	timers  map[timer.Scope]timer.Timer
	claimed map[string]bool
}

func newFakeTimers(timers ...timer.Timer) *fakeTimers {
	f := &fakeTimers{timers: map[timer.Scope]timer.Timer{}, claimed: map[string]bool{}}
	for _, t := range timers {
		f.timers[t.Scope] = t
	}
	return f
}

func (f *fakeTimers) Get(ctx context.Context, scope timer.Scope) (timer.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.timers[scope]
	if !ok {
		return timer.Timer{}, timer.ErrNotFound
	}
	return t, nil
}

func (f *fakeTimers) ClaimReminder(ctx context.Context, scope timer.Scope, day time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(scope) + day.Format("2006-01-02")
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func grant(role, sub string, actions ...string) rbac.Grant {
	g := rbac.Grant{Role: role, Workspace: Workspace, SubWorkspace: sub}
	for _, a := range actions {
		switch a {
		case rbac.ActionView:
			g.View = true
		case rbac.ActionCreate:
			g.Create = true
		case rbac.ActionEdit:
			g.Edit = true
		case rbac.ActionDelete:
			g.Delete = true
		}
	}
	return g
}

var testCalendar = Calendar{
	CycleCutoff:      date(2023, time.April, 1),
	ArchiveMonth:     time.March,
	ArchiveHour:      0,
	RemindOffsetDays: 7,
	Location:         time.UTC,
}

type harness struct {
	store    *memoryStore
	notifier *recordingNotifier
	timers   *fakeTimers
	engine   *Engine
}

func newHarness(grants []rbac.Grant, employees ...Employee) *harness {
	store := newMemoryStore(employees...)
	notifier := &recordingNotifier{}
	timers := newFakeTimers()
	resolver := NewResolver(store, rbac.NewStaticLookup(grants))
	return &harness{
		store:    store,
		notifier: notifier,
		timers:   timers,
		engine:   NewEngine(store, resolver, notifier, timers, testCalendar),
	}
}
