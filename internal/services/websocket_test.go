package services

import (
	"encoding/json"
	"testing"
)

func testClient(id uint, userType string) *Client {
	return &Client{
		ID:       id,
		UserType: userType,
		Send:     make(chan []byte, 4),
		topics:   make(map[string]bool),
	}
}

func attach(h *Hub, c *Client) {
	h.mutex.Lock()
	h.clients[c] = true
	h.mutex.Unlock()
}

func TestHub_PublishReachesSubscribersOnly(t *testing.T) {
	hub := NewHub()

	subscriber := testClient(1, "passenger")
	bystander := testClient(2, "passenger")
	attach(hub, subscriber)
	attach(hub, bystander)

	if !hub.Subscribe(subscriber, TopicTripPositions) {
		t.Fatal("position topic should be open to everyone")
	}

	hub.Publish(TopicTripPositions, PositionUpdate{BusID: 9, Lat: -6.2, Lng: 106.8})

	select {
	case raw := <-subscriber.Send:
		var msg WebSocketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "event" || msg.Topic != TopicTripPositions {
			t.Errorf("envelope = %+v", msg)
		}
	default:
		t.Fatal("subscriber received nothing")
	}

	select {
	case <-bystander.Send:
		t.Fatal("unsubscribed client received a topic payload")
	default:
	}
}

func TestHub_AlertTopicIsAdminOnly(t *testing.T) {
	hub := NewHub()

	passenger := testClient(1, "passenger")
	admin := testClient(2, "admin")
	attach(hub, passenger)
	attach(hub, admin)

	if hub.Subscribe(passenger, TopicDeviationAlerts) {
		t.Error("passenger must not subscribe to the alert topic")
	}
	if !hub.Subscribe(admin, TopicDeviationAlerts) {
		t.Fatal("admin subscription refused")
	}

	hub.Publish(TopicDeviationAlerts, DeviationAlert{TripID: 5, BusID: 9})

	if len(admin.Send) != 1 {
		t.Errorf("admin received %d messages, want 1", len(admin.Send))
	}
	if len(passenger.Send) != 0 {
		t.Errorf("passenger received %d alert messages", len(passenger.Send))
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()

	c := testClient(1, "passenger")
	attach(hub, c)
	hub.Subscribe(c, TopicTripPositions)
	hub.Unsubscribe(c, TopicTripPositions)

	hub.Publish(TopicTripPositions, PositionUpdate{BusID: 9})

	if len(c.Send) != 0 {
		t.Errorf("unsubscribed client received %d messages", len(c.Send))
	}
	if n := hub.SubscriberCount(TopicTripPositions); n != 0 {
		t.Errorf("subscriber count = %d", n)
	}
}

func TestHub_FullClientIsSkipped(t *testing.T) {
	hub := NewHub()

	slow := testClient(1, "passenger")
	slow.Send = make(chan []byte) // unbuffered, nobody reading
	attach(hub, slow)
	hub.Subscribe(slow, TopicTripPositions)

	// Must not block.
	hub.Publish(TopicTripPositions, PositionUpdate{BusID: 9})
}
