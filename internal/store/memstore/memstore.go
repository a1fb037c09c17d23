// Package memstore keeps appointments and users in process memory. It backs
// STORE_DRIVER=memory and the service tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/scheduling"
)

type slotKey struct {
	doctorID string
	at       int64
}

type Store struct {
	mu        sync.RWMutex
	appts     map[string]model.Appointment
	scheduled map[slotKey]string // mirrors the partial unique index of the pg store
	users     map[string]model.User
	byEmail   map[string]string
}

func New() *Store {
	return &Store{
		appts:     make(map[string]model.Appointment),
		scheduled: make(map[slotKey]string),
		users:     make(map[string]model.User),
		byEmail:   make(map[string]string),
	}
}

func key(a *model.Appointment) slotKey {
	return slotKey{doctorID: a.DoctorID, at: a.Date.UnixNano()}
}

func (s *Store) Create(_ context.Context, a *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Status == model.StatusScheduled {
		if _, taken := s.scheduled[key(a)]; taken {
			return scheduling.ErrDuplicateSlot
		}
		s.scheduled[key(a)] = a.ID
	}
	s.appts[a.ID] = strip(*a)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appts[id]
	if !ok {
		return nil, scheduling.ErrRecordNotFound
	}
	return &a, nil
}

func (s *Store) Find(_ context.Context, f scheduling.Filter, limit, offset int) ([]model.Appointment, error) {
	s.mu.RLock()
	out := make([]model.Appointment, 0)
	for _, a := range s.appts {
		if f.Match(&a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	if offset > 0 {
		if offset >= len(out) {
			return []model.Appointment{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Count(_ context.Context, f scheduling.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.appts {
		if f.Match(&a) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Update(_ context.Context, a *model.Appointment, expect model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.appts[a.ID]
	if !ok {
		return scheduling.ErrRecordNotFound
	}
	if cur.Status != expect {
		return scheduling.ErrStaleWrite
	}
	k := key(&cur)
	if cur.Status == model.StatusScheduled && a.Status.Terminal() {
		delete(s.scheduled, k)
	}
	cur.Status = a.Status
	cur.Notes = a.Notes
	cur.UpdatedAt = a.UpdatedAt
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = time.Now()
	}
	s.appts[a.ID] = cur
	return nil
}

// strip drops the read-side joins before storing.
func strip(a model.Appointment) model.Appointment {
	a.Patient, a.Doctor = nil, nil
	return a
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, dup := s.byEmail[email]; dup {
		return scheduling.ErrDuplicateEmail
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = *u
	s.byEmail[email] = u.ID
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, scheduling.ErrRecordNotFound
	}
	return &u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, scheduling.ErrRecordNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) Ping(context.Context) error { return nil }
