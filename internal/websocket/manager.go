package websocket

import (
	"sync"
)

// ClientManager tracks the connected clients so the server can find them by
// user and close them all on shutdown.
type ClientManager struct {
	clients map[string]*Client
	users   map[string]map[string]bool // userID -> set of client IDs
	mu      sync.RWMutex
}

// NewClientManager creates a new ClientManager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[string]*Client),
		users:   make(map[string]map[string]bool),
	}
}

// Add registers a new client.
func (m *ClientManager) Add(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client.ID] = client

	if client.UserID != "" {
		if _, ok := m.users[client.UserID]; !ok {
			m.users[client.UserID] = make(map[string]bool)
		}
		m.users[client.UserID][client.ID] = true
	}
}

// Remove unregisters a client and closes its send queue.
func (m *ClientManager) Remove(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
		if ids := m.users[client.UserID]; ids != nil {
			delete(ids, clientID)
			if len(ids) == 0 {
				delete(m.users, client.UserID)
			}
		}
	}
	m.mu.Unlock()

	if ok {
		client.Close()
	}
}

// GetByUser returns all clients for a given user ID.
func (m *ClientManager) GetByUser(userID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var userClients []*Client
	for id := range m.users[userID] {
		if client, ok := m.clients[id]; ok {
			userClients = append(userClients, client)
		}
	}
	return userClients
}

// Count returns the number of connected clients.
func (m *ClientManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// CloseAll closes every client. Their streams end once the writers drain.
func (m *ClientManager) CloseAll() {
	m.mu.RLock()
	all := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		all = append(all, client)
	}
	m.mu.RUnlock()

	for _, client := range all {
		client.Close()
	}
}
