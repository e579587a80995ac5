// Package hub fans lifecycle events out to realtime subscribers. A
// customer subscribes to their own tickets; staff subscribe to a scope
// or service type.
package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Subscription filters events. Empty fields match everything, so a
// subscription with only CustomerID set receives that customer's
// events across all scopes.
type Subscription struct {
	Organization string
	LocationName string
	ServiceType  string
	CustomerID   string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action       string `json:"action"`
	Organization string `json:"organization"`
	LocationName string `json:"location_name"`
	ServiceType  string `json:"service_type"`
	CustomerID   string `json:"customer_id"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

// Broadcast delivers to every matching client. Slow clients drop the
// message rather than blocking the poller.
func (h *Hub) Broadcast(payload []byte, meta Subscription) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, meta) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

func match(sub Subscription, meta Subscription) bool {
	if sub.Organization != "" && meta.Organization != sub.Organization {
		return false
	}
	if sub.LocationName != "" && meta.LocationName != sub.LocationName {
		return false
	}
	if sub.ServiceType != "" && meta.ServiceType != sub.ServiceType {
		return false
	}
	if sub.CustomerID != "" && meta.CustomerID != sub.CustomerID {
		return false
	}
	return true
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
