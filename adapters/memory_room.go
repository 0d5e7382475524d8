package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/satriahrh/rapat/domain/entities"
)

// MemoryRoomRepository is an in-memory implementation of RoomRepository.
// It is suitable as a storage backend for development and single-node deployments.
type MemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*entities.Room // id -> room mapping
}

// NewMemoryRoomRepository creates a new in-memory room repository
func NewMemoryRoomRepository() *MemoryRoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[string]*entities.Room),
	}
}

// Create implements RoomRepository interface
func (m *MemoryRoomRepository) Create(ctx context.Context, room *entities.Room) error {
	if room == nil {
		return errors.New("room cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if not provided
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if _, exists := m.rooms[room.ID]; exists {
		return errors.New("room with this ID already exists")
	}

	now := time.Now()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	roomCopy := copyRoom(room)
	m.rooms[room.ID] = roomCopy

	return nil
}

// GetByID implements RoomRepository interface
func (m *MemoryRoomRepository) GetByID(ctx context.Context, id string) (*entities.Room, error) {
	if id == "" {
		return nil, errors.New("room ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	room, exists := m.rooms[id]
	if !exists {
		return nil, nil // No room found, return nil without error
	}

	return copyRoom(room), nil
}

// List implements RoomRepository interface
func (m *MemoryRoomRepository) List(ctx context.Context) ([]*entities.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		result = append(result, copyRoom(room))
	}

	// Newest rooms first, matching the persistent backend
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Update implements RoomRepository interface
func (m *MemoryRoomRepository) Update(ctx context.Context, room *entities.Room) error {
	if room == nil {
		return errors.New("room cannot be nil")
	}
	if room.ID == "" {
		return errors.New("room ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.rooms[room.ID]
	if !exists {
		return errors.New("room not found")
	}

	room.CreatedAt = existing.CreatedAt // Preserve original creation time
	room.UpdatedAt = time.Now()

	updated := copyRoom(room)
	updated.Reports = existing.Reports // Reports only change through AppendReport
	m.rooms[room.ID] = updated

	return nil
}

// Delete implements RoomRepository interface
func (m *MemoryRoomRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("room ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[id]; !exists {
		return errors.New("room not found")
	}

	delete(m.rooms, id)
	return nil
}

// AppendReport implements RoomRepository interface
func (m *MemoryRoomRepository) AppendReport(ctx context.Context, roomID string, report entities.RoomReport) error {
	if roomID == "" {
		return errors.New("room ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return errors.New("room not found")
	}

	room.Reports = append(room.Reports, report)
	room.UpdatedAt = time.Now()
	return nil
}

// copyRoom returns a deep enough copy to prevent external modifications
func copyRoom(room *entities.Room) *entities.Room {
	roomCopy := *room
	roomCopy.Resources = append([]entities.RoomResource(nil), room.Resources...)
	roomCopy.Reports = append([]entities.RoomReport(nil), room.Reports...)
	return &roomCopy
}
