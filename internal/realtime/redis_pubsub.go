package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/volunteer-hub/checkin/internal/checkin"
)

const (
	channelPrefix  = "slot:"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub carries check-in events between server instances over Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for slot events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// ChannelForSlot returns the Redis channel of a slot.
func ChannelForSlot(slotID uuid.UUID) string {
	return channelPrefix + slotID.String()
}

// PublishCheckIn publishes a check-in event to the slot's channel.
func (r *RedisPubSub) PublishCheckIn(ctx context.Context, ev checkin.Event) error {
	body, err := encode(ev, time.Now())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, ChannelForSlot(ev.SlotID), body).Err()
}

// SubscribeSlot subscribes to a slot's channel and calls handler for each
// check-in event until cancel is called or ctx ends.
func (r *RedisPubSub) SubscribeSlot(ctx context.Context, slotID uuid.UUID, handler func(checkin.Event)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(ctx)
	pubsub := r.client.Subscribe(ctx, ChannelForSlot(slotID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := decode([]byte(msg.Payload))
				if err != nil {
					r.logger.Warn("invalid slot event payload", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(ev)
			}
		}
	}()
	return cancelCtx, nil
}

const eventCheckIn = "checkin"

func encode(ev checkin.Event, at time.Time) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return json.Marshal(redisPayload{Event: eventCheckIn, Data: data, At: at.Unix()})
}

func decode(raw []byte) (checkin.Event, error) {
	var p redisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return checkin.Event{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.Event != eventCheckIn {
		return checkin.Event{}, fmt.Errorf("unexpected event %q", p.Event)
	}
	var ev checkin.Event
	if err := json.Unmarshal(p.Data, &ev); err != nil {
		return checkin.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}
