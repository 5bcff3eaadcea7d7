package store

import (
	"sync"

	"github.com/MKhiriev/go-immers-client/models"
)

type memoryStore struct {
	mu         sync.RWMutex
	handle     string
	credential *models.Credential
}

// NewMemoryStore returns a SessionStore that keeps everything in process
// memory. Used when durable storage is not enabled.
func NewMemoryStore() SessionStore {
	return &memoryStore{}
}

func (m *memoryStore) Handle() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle, m.handle != ""
}

func (m *memoryStore) SetHandle(handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handle = handle
	return nil
}

func (m *memoryStore) Credential() (models.Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.credential == nil {
		return models.Credential{}, false
	}
	return *m.credential, true
}

func (m *memoryStore) SetCredential(cred models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = &cred
	return nil
}

func (m *memoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handle = ""
	m.credential = nil
	return nil
}
