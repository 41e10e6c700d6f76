package checkin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volunteer-hub/checkin/internal/models"
)

// Resolution is the slot a check-in page refers to, with the volunteers who
// have not checked in yet.
type Resolution struct {
	Slot    *models.SlotWithVolunteers `json:"slot"`
	Pending []models.SlotVolunteer     `json:"pending"`
}

// Service resolves check-in slots and performs the check-in transition.
// It holds no state of its own; the store is the source of truth.
type Service struct {
	store     Store
	publisher Publisher
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	timeout   time.Duration
}

// NewService creates a check-in service. publisher may be nil.
func NewService(store Store, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for window checks and check-in times.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetTimeout bounds every operation; zero disables the bound.
func (s *Service) SetTimeout(d time.Duration) {
	s.timeout = d
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ResolveSlot picks the slot for a check-in request: the explicitly named
// slot, or the timed slot of the position whose window contains now.
func (s *Service) ResolveSlot(ctx context.Context, positionID, slotID string) (*Resolution, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	positionID = strings.TrimSpace(positionID)
	if positionID == "" {
		return nil, newError(KindInvalidInput, msgPositionRequired)
	}
	posID, err := uuid.Parse(positionID)
	if err != nil {
		return nil, newError(KindInvalidInput, msgInvalidPosition)
	}

	var slot *models.SlotWithVolunteers
	if slotID = strings.TrimSpace(slotID); slotID != "" {
		id, err := uuid.Parse(slotID)
		if err != nil {
			return nil, newError(KindInvalidInput, msgInvalidSlotID)
		}
		slot, err = s.store.GetSlot(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, newError(KindNotFound, msgNoActiveSlot)
		}
		if err != nil {
			s.logger.Error("get slot failed", zap.Error(err), zap.String("slot_id", slotID))
			return nil, transient("failed to load slot details", err)
		}
		if slot.PositionID != posID {
			return nil, newError(KindNotFound, msgNoActiveSlot)
		}
	} else {
		slots, err := s.store.FindActiveSlots(ctx, posID, s.now(), 2)
		if err != nil {
			s.logger.Error("find active slots failed", zap.Error(err), zap.String("position_id", positionID))
			return nil, transient("failed to load slot details", err)
		}
		if len(slots) == 0 {
			return nil, newError(KindNotFound, msgNoActiveSlot)
		}
		if len(slots) > 1 {
			s.logger.Warn("overlapping active slots for position",
				zap.String("position_id", positionID),
				zap.String("chosen_slot_id", slots[0].ID.String()),
				zap.String("other_slot_id", slots[1].ID.String()),
			)
		}
		slot = &slots[0]
	}

	// The window may have closed between the query and now.
	if !slot.IsFlexible() && !IsTimeSlotActive(slot.StartTime, slot.EndTime, s.now()) {
		return nil, newError(KindSlotInactive, msgSlotInactive)
	}

	return &Resolution{Slot: slot, Pending: slot.Pending()}, nil
}

// CheckIn marks the volunteer with the given email present at the slot and
// returns the refreshed slot. The checks run in a fixed order and the first
// failure wins.
func (s *Service) CheckIn(ctx context.Context, slotID, email, name string) (*models.SlotWithVolunteers, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := uuid.Parse(strings.TrimSpace(slotID))
	if err != nil {
		return nil, newError(KindInvalidSlot, msgInvalidSlot)
	}
	slot, err := s.store.GetSlot(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindInvalidSlot, msgInvalidSlot)
	}
	if err != nil {
		s.logger.Error("get slot failed", zap.Error(err), zap.String("slot_id", id.String()))
		return nil, transient("failed to load slot details", err)
	}
	if !IsTimeSlotActive(slot.StartTime, slot.EndTime, s.now()) {
		return nil, newError(KindSlotInactive, msgSlotInactive)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, newError(KindInvalidInput, msgInvalidEmail)
	}

	// The volunteer row is upserted before the registration is verified, so
	// an unregistered email still leaves a volunteer behind.
	volunteer, err := s.store.UpsertVolunteer(ctx, email, strings.TrimSpace(name))
	if err != nil {
		s.logger.Error("upsert volunteer failed", zap.Error(err), zap.String("slot_id", id.String()))
		return nil, transient("failed to process volunteer", err)
	}

	reg, err := s.store.GetRegistration(ctx, id, volunteer.ID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("check-in without registration", zap.String("slot_id", id.String()), zap.String("volunteer_id", volunteer.ID.String()))
		return nil, newError(KindNotRegistered, msgNotRegistered)
	}
	if err != nil {
		s.logger.Error("get registration failed", zap.Error(err), zap.String("slot_id", id.String()))
		return nil, transient("failed to verify registration", err)
	}
	if reg.CheckedIn {
		return nil, newError(KindAlreadyCheckedIn, msgAlreadyCheckedIn)
	}

	at := s.now().UTC()
	updated, err := s.store.MarkCheckedIn(ctx, id, volunteer.ID, at)
	if err != nil {
		s.logger.Error("mark checked in failed", zap.Error(err), zap.String("slot_id", id.String()))
		return nil, transient("failed to update check-in status", err)
	}
	if !updated {
		// Lost the race against a concurrent check-in for the same row.
		return nil, newError(KindAlreadyCheckedIn, msgAlreadyCheckedIn)
	}
	s.logger.Info("volunteer checked in", zap.String("slot_id", id.String()), zap.String("volunteer_id", volunteer.ID.String()))

	refreshed, err := s.store.GetSlot(ctx, id)
	if err != nil {
		s.logger.Warn("refresh slot after check-in failed", zap.Error(err), zap.String("slot_id", id.String()))
		refreshed = markLocally(slot, volunteer, at)
	}

	s.publish(ctx, Event{
		SlotID:         id,
		PositionID:     refreshed.PositionID,
		VolunteerID:    volunteer.ID,
		Email:          volunteer.Email,
		Name:           volunteer.Name,
		CheckedInAt:    at,
		CheckedInCount: refreshed.CheckedInCount,
	})
	return refreshed, nil
}

// PendingVolunteers returns the registrations of a slot that have not checked in.
func (s *Service) PendingVolunteers(ctx context.Context, slotID string) ([]models.SlotVolunteer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := uuid.Parse(strings.TrimSpace(slotID))
	if err != nil {
		return nil, newError(KindInvalidInput, msgInvalidSlotID)
	}
	slot, err := s.store.GetSlot(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindNotFound, msgSlotNotFound)
	}
	if err != nil {
		s.logger.Error("get slot failed", zap.Error(err), zap.String("slot_id", id.String()))
		return nil, transient("failed to fetch volunteers", err)
	}
	return slot.Pending(), nil
}

// ListSlots returns every slot of a position with its counts.
func (s *Service) ListSlots(ctx context.Context, positionID string) ([]models.SlotSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	positionID = strings.TrimSpace(positionID)
	if positionID == "" {
		return nil, newError(KindInvalidInput, msgPositionRequired)
	}
	posID, err := uuid.Parse(positionID)
	if err != nil {
		return nil, newError(KindInvalidInput, msgInvalidPosition)
	}
	list, err := s.store.ListSlots(ctx, posID)
	if err != nil {
		s.logger.Error("list slots failed", zap.Error(err), zap.String("position_id", positionID))
		return nil, transient("failed to list slots", err)
	}
	if list == nil {
		list = []models.SlotSummary{}
	}
	return list, nil
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCheckIn(ctx, ev); err != nil {
		s.logger.Warn("publish check-in event failed", zap.Error(err), zap.String("slot_id", ev.SlotID.String()))
	}
}

// markLocally applies a confirmed check-in to a copy of the pre-write snapshot.
func markLocally(slot *models.SlotWithVolunteers, volunteer *models.Volunteer, at time.Time) *models.SlotWithVolunteers {
	out := *slot
	out.VolunteerList = make([]models.SlotVolunteer, len(slot.VolunteerList))
	copy(out.VolunteerList, slot.VolunteerList)
	for i := range out.VolunteerList {
		if out.VolunteerList[i].Volunteer.ID == volunteer.ID {
			out.VolunteerList[i].CheckedIn = true
			out.VolunteerList[i].CheckInTime = &at
			out.VolunteerList[i].Name = volunteer.Name
			out.CheckedInCount++
			break
		}
	}
	return &out
}
