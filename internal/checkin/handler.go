package checkin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volunteer-hub/checkin/internal/models"
	"github.com/volunteer-hub/checkin/pkg/response"
	"github.com/volunteer-hub/checkin/pkg/timefmt"
)

// keepAliveInterval spaces SSE comments so proxies keep idle streams open.
const keepAliveInterval = 25 * time.Second

// Subscriber delivers check-in events of one slot until cancel is called.
type Subscriber interface {
	SubscribeSlot(ctx context.Context, slotID uuid.UUID, handler func(Event)) (cancel func(), err error)
}

// CheckInRequest is the body for POST /slots/:id/checkin.
// Email is validated by the service so its failure order is preserved.
type CheckInRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SlotView is a slot with its display window label.
type SlotView struct {
	*models.SlotWithVolunteers
	Window string `json:"window"`
}

// Handler handles check-in HTTP endpoints.
type Handler struct {
	svc    *Service
	events Subscriber
	loc    *time.Location
	logger *zap.Logger
}

// NewHandler creates a check-in handler. events may be nil, which disables
// the live event stream.
func NewHandler(svc *Service, events Subscriber, loc *time.Location, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, events: events, loc: loc, logger: logger}
}

// ResolveSlot handles GET /positions/:id/checkin?slot=<slot id>.
func (h *Handler) ResolveSlot(c *gin.Context) {
	res, err := h.svc.ResolveSlot(c.Request.Context(), c.Param("id"), c.Query("slot"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{
		"slot":    h.view(res.Slot),
		"pending": res.Pending,
	})
}

// CheckIn handles POST /slots/:id/checkin.
func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, KindInvalidInput.String(), "invalid request body")
		return
	}
	slot, err := h.svc.CheckIn(c.Request.Context(), c.Param("id"), req.Email, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"slot": h.view(slot)})
}

// PendingVolunteers handles GET /slots/:id/pending.
func (h *Handler) PendingVolunteers(c *gin.Context) {
	list, err := h.svc.PendingVolunteers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"pending": list})
}

// ListSlots handles GET /positions/:id/slots.
func (h *Handler) ListSlots(c *gin.Context) {
	list, err := h.svc.ListSlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	type row struct {
		models.SlotSummary
		Window string `json:"window"`
	}
	out := make([]row, 0, len(list))
	for _, s := range list {
		out = append(out, row{SlotSummary: s, Window: timefmt.FormatWindow(s.StartTime, s.EndTime, h.loc)})
	}
	response.OK(c, gin.H{"slots": out})
}

// StreamEvents handles GET /slots/:id/events as server-sent events.
func (h *Handler) StreamEvents(c *gin.Context) {
	if h.events == nil {
		response.ServiceUnavailable(c, "live updates are not enabled")
		return
	}
	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, KindInvalidInput.String(), msgInvalidSlotID)
		return
	}

	ctx := c.Request.Context()
	ch := make(chan Event, 16)
	cancel, err := h.events.SubscribeSlot(ctx, slotID, func(ev Event) {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping check-in event for slow client", zap.String("slot_id", slotID.String()))
		}
	})
	if err != nil {
		h.logger.Error("subscribe slot events failed", zap.Error(err), zap.String("slot_id", slotID.String()))
		response.ServiceUnavailable(c, "live updates are unavailable")
		return
	}
	defer cancel()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-ch:
			c.SSEvent("checkin", ev)
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
}

func (h *Handler) view(slot *models.SlotWithVolunteers) SlotView {
	return SlotView{
		SlotWithVolunteers: slot,
		Window:             timefmt.FormatWindow(slot.StartTime, slot.EndTime, h.loc),
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	kind := KindOf(err)
	msg := err.Error()
	var ce *Error
	if !errors.As(err, &ce) {
		h.logger.Error("unclassified check-in error", zap.Error(err))
		msg = "something went wrong, please try again"
	}
	response.Fail(c, statusFor(kind), kind.String(), msg)
}

func statusFor(k Kind) int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound, KindInvalidSlot, KindNotRegistered:
		return http.StatusNotFound
	case KindSlotInactive, KindAlreadyCheckedIn:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}
