package checkin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/volunteer-hub/checkin/internal/models"
)

type regKey struct {
	slot      uuid.UUID
	volunteer uuid.UUID
}

// memStore is an in-memory Store with the same conditional-update
// semantics as the slot_volunteers table.
type memStore struct {
	mu         sync.Mutex
	slots      map[uuid.UUID]models.Slot
	volunteers map[string]*models.Volunteer
	regs       map[regKey]*models.Registration

	// failures injected per method name
	fail map[string]error
	// markCalls counts MarkCheckedIn invocations.
	markCalls int
	// beforeMark runs inside MarkCheckedIn before the row is inspected.
	beforeMark func()
}

func newMemStore() *memStore {
	return &memStore{
		slots:      make(map[uuid.UUID]models.Slot),
		volunteers: make(map[string]*models.Volunteer),
		regs:       make(map[regKey]*models.Registration),
		fail:       make(map[string]error),
	}
}

func (m *memStore) addSlot(positionID uuid.UUID, start, end *time.Time, capacity int) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.slots[id] = models.Slot{ID: id, PositionID: positionID, StartTime: start, EndTime: end, Capacity: capacity, CreatedAt: time.Now()}
	return id
}

// register creates a volunteer (if needed) and a registration, as an organizer would.
func (m *memStore) register(slotID uuid.UUID, email, name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volunteers[email]
	if !ok {
		v = &models.Volunteer{ID: uuid.New(), Email: email, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		m.volunteers[email] = v
	}
	m.regs[regKey{slotID, v.ID}] = &models.Registration{SlotID: slotID, VolunteerID: v.ID, CreatedAt: time.Now()}
	return v.ID
}

func (m *memStore) registration(slotID, volunteerID uuid.UUID) (models.Registration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[regKey{slotID, volunteerID}]
	if !ok {
		return models.Registration{}, false
	}
	return *r, true
}

func (m *memStore) volunteerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.volunteers)
}

func (m *memStore) volunteer(email string) (models.Volunteer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volunteers[email]
	if !ok {
		return models.Volunteer{}, false
	}
	return *v, true
}

func (m *memStore) setFail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[method] = err
}

// details builds the slot_details view row. Caller holds mu.
func (m *memStore) details(slot models.Slot) models.SlotWithVolunteers {
	out := models.SlotWithVolunteers{Slot: slot, VolunteerList: []models.SlotVolunteer{}}
	byID := make(map[uuid.UUID]*models.Volunteer, len(m.volunteers))
	for _, v := range m.volunteers {
		byID[v.ID] = v
	}
	for k, r := range m.regs {
		if k.slot != slot.ID {
			continue
		}
		v := byID[k.volunteer]
		entry := models.SlotVolunteer{
			Volunteer: models.VolunteerRef{ID: v.ID, Email: v.Email, CreatedAt: v.CreatedAt},
			Name:      v.Name,
			CheckedIn: r.CheckedIn,
		}
		if r.CheckInTime != nil {
			at := *r.CheckInTime
			entry.CheckInTime = &at
		}
		if r.CheckedIn {
			out.CheckedInCount++
		}
		out.VolunteerList = append(out.VolunteerList, entry)
	}
	sort.Slice(out.VolunteerList, func(i, j int) bool {
		return out.VolunteerList[i].Volunteer.Email < out.VolunteerList[j].Volunteer.Email
	})
	return out
}

func (m *memStore) GetSlot(_ context.Context, slotID uuid.UUID) (*models.SlotWithVolunteers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["GetSlot"]; err != nil {
		return nil, err
	}
	s, ok := m.slots[slotID]
	if !ok {
		return nil, ErrNotFound
	}
	d := m.details(s)
	return &d, nil
}

func (m *memStore) FindActiveSlots(_ context.Context, positionID uuid.UUID, now time.Time, limit int) ([]models.SlotWithVolunteers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["FindActiveSlots"]; err != nil {
		return nil, err
	}
	var out []models.SlotWithVolunteers
	for _, s := range m.slots {
		if s.PositionID != positionID || s.StartTime == nil || s.EndTime == nil {
			continue
		}
		if s.StartTime.After(now) || s.EndTime.Before(now) {
			continue
		}
		out = append(out, m.details(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(*out[j].StartTime) {
			return out[i].StartTime.Before(*out[j].StartTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListSlots(_ context.Context, positionID uuid.UUID) ([]models.SlotSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["ListSlots"]; err != nil {
		return nil, err
	}
	var out []models.SlotSummary
	for _, s := range m.slots {
		if s.PositionID != positionID {
			continue
		}
		d := m.details(s)
		out = append(out, models.SlotSummary{Slot: d.Slot, RegisteredCount: len(d.VolunteerList)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].StartTime, out[j].StartTime
		switch {
		case a == nil && b == nil:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return out, nil
}

func (m *memStore) UpsertVolunteer(_ context.Context, email, name string) (*models.Volunteer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["UpsertVolunteer"]; err != nil {
		return nil, err
	}
	v, ok := m.volunteers[email]
	if !ok {
		v = &models.Volunteer{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
		m.volunteers[email] = v
	}
	v.Name = name
	v.UpdatedAt = time.Now()
	out := *v
	return &out, nil
}

func (m *memStore) GetRegistration(_ context.Context, slotID, volunteerID uuid.UUID) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["GetRegistration"]; err != nil {
		return nil, err
	}
	r, ok := m.regs[regKey{slotID, volunteerID}]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *memStore) MarkCheckedIn(_ context.Context, slotID, volunteerID uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	hook := m.beforeMark
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++
	if err := m.fail["MarkCheckedIn"]; err != nil {
		return false, err
	}
	r, ok := m.regs[regKey{slotID, volunteerID}]
	if !ok || r.CheckedIn {
		return false, nil
	}
	r.CheckedIn = true
	r.CheckInTime = &at
	return true, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) PublishCheckIn(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) published() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
