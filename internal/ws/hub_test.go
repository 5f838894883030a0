package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		send: make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if !hub.clients[client] {
		t.Fatal("client not registered")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.clients[client] {
		t.Fatal("client still registered after unregister")
	}

	// send channel must be closed so WritePump exits
	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected send channel to be closed")
		}
	default:
		t.Fatal("send channel not closed")
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub)
	client2 := mockClient(hub)
	client3 := mockClient(hub)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast("order.created", map[string]interface{}{"id": "abc", "totalPrice": 4500})

	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "order.created" {
				t.Errorf("client%d: expected type 'order.created', got '%s'", i+1, received.Type)
			}
			var payload map[string]interface{}
			if err := json.Unmarshal(received.Payload, &payload); err != nil {
				t.Fatalf("client%d: payload not valid JSON: %v", i+1, err)
			}
			if payload["id"] != "abc" {
				t.Errorf("client%d: payload id: got %v", i+1, payload["id"])
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestBroadcastAfterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast("payment.added", map[string]interface{}{"amount": 1000})
	time.Sleep(10 * time.Millisecond)

	// Channel is closed; the only read should be the close signal, not a message.
	if msg, ok := <-client.send; ok {
		t.Fatalf("unregistered client received message: %s", msg)
	}
}

func TestBroadcastWithNoClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Must not block or panic with an empty client set.
	hub.Broadcast("order.deleted", map[string]interface{}{"id": "gone"})
	time.Sleep(10 * time.Millisecond)
}

func TestEventSerialization(t *testing.T) {
	testCases := []struct {
		name  string
		event Event
	}{
		{
			name: "order created event",
			event: Event{
				Type:    "order.created",
				Payload: json.RawMessage(`{"id":"abc","totalPrice":4500}`),
			},
		},
		{
			name: "order updated event",
			event: Event{
				Type:    "order.updated",
				Payload: json.RawMessage(`{"id":"def","status":"COMPLETED"}`),
			},
		},
		{
			name: "payment added event",
			event: Event{
				Type:    "payment.added",
				Payload: json.RawMessage(`{"orderId":"jkl","amount":2000}`),
			},
		},
		{
			name: "payment deleted event",
			event: Event{
				Type:    "payment.deleted",
				Payload: json.RawMessage(`{"id":"mno"}`),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.event)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}

			var decoded Event
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}

			if decoded.Type != tc.event.Type {
				t.Errorf("Type mismatch: got %s, want %s", decoded.Type, tc.event.Type)
			}
			if string(decoded.Payload) != string(tc.event.Payload) {
				t.Errorf("Payload mismatch: got %s, want %s", decoded.Payload, tc.event.Payload)
			}
		})
	}
}

func TestSlowClientDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{hub: hub, send: make(chan []byte)} // unbuffered, never read
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast("order.updated", map[string]interface{}{"id": "x"})
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.clients[slow] {
		t.Fatal("slow client should have been dropped")
	}
}
