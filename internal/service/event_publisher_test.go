package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher records published events for assertions
type MockEventPublisher struct {
	mu           sync.Mutex
	events       []*domain.LifecycleEvent
	publishError error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]*domain.LifecycleEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, event *domain.LifecycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventPublisher) Close() error {
	return nil
}

// EventsOf returns the recorded events of one type in publish order
func (m *MockEventPublisher) EventsOf(eventType domain.EventType) []*domain.LifecycleEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.LifecycleEvent
	for _, e := range m.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestNoOpEventPublisher(t *testing.T) {
	publisher := NewNoOpEventPublisher()
	res := domain.NewReservation("user-1", domain.ReservationRequest{
		ConcertID: "concert-1",
		Date:      time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC),
		Band:      domain.PriceBandA,
		Count:     1,
	}, []domain.Seat{{Row: "A", Number: 1}}, time.Now(), time.Second)

	assert.NoError(t, publisher.Publish(context.Background(), domain.NewReservationEvent(domain.EventReservationCreated, res, "evt-1", time.Now())))
	assert.NoError(t, publisher.Close())
}

func TestNewKafkaEventPublisher_Validation(t *testing.T) {
	_, err := NewKafkaEventPublisher(context.Background(), nil)
	require.Error(t, err)

	_, err = NewKafkaEventPublisher(context.Background(), &EventPublisherConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brokers")
}

func TestNewAMQPEventPublisher_Validation(t *testing.T) {
	_, err := NewAMQPEventPublisher(context.Background(), nil)
	require.Error(t, err)

	_, err = NewAMQPEventPublisher(context.Background(), &EventPublisherConfig{})
	require.Error(t, err)
}

func TestEventHeaders(t *testing.T) {
	event := &domain.LifecycleEvent{
		EventID:   "evt-1",
		EventType: domain.EventBookingConfirmed,
		ConcertID: "concert-1",
	}

	headers := eventHeaders(event, "concert-booking")

	assert.Equal(t, "booking.confirmed", headers["event_type"])
	assert.Equal(t, "evt-1", headers["event_id"])
	assert.Equal(t, "concert-booking", headers["source"])
	assert.Equal(t, "application/json", headers["content_type"])
	assert.Equal(t, "concert-1", event.Key())
}

func TestEventPublisherConfig_ServiceName(t *testing.T) {
	assert.Equal(t, "concert-booking", (&EventPublisherConfig{}).serviceName())
	assert.Equal(t, "edge", (&EventPublisherConfig{ServiceName: "edge"}).serviceName())
}
