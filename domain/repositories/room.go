package repositories

import (
	"context"

	"github.com/satriahrh/rapat/domain/entities"
)

// RoomRepository persists rooms with their resources and reports.
type RoomRepository interface {
	Create(ctx context.Context, room *entities.Room) error
	GetByID(ctx context.Context, id string) (*entities.Room, error)
	List(ctx context.Context) ([]*entities.Room, error)
	Update(ctx context.Context, room *entities.Room) error
	Delete(ctx context.Context, id string) error
	// AppendReport stores a generated report against the room.
	AppendReport(ctx context.Context, roomID string, report entities.RoomReport) error
}
