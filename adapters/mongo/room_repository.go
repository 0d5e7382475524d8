package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/satriahrh/rapat/domain/entities"
	"github.com/satriahrh/rapat/domain/repositories"
)

type RoomRepository struct {
	collection *mongo.Collection
}

// NewRoomRepository creates a new MongoDB room repository
func NewRoomRepository(db *mongo.Database) repositories.RoomRepository {
	return &RoomRepository{
		collection: db.Collection("rooms"),
	}
}

// Create implements repositories.RoomRepository
func (r *RoomRepository) Create(ctx context.Context, room *entities.Room) error {
	if room == nil {
		return errors.New("room cannot be nil")
	}

	now := time.Now()
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, room); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetByID implements repositories.RoomRepository
func (r *RoomRepository) GetByID(ctx context.Context, id string) (*entities.Room, error) {
	if id == "" {
		return nil, errors.New("room ID cannot be empty")
	}

	var room entities.Room
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // No room found, return nil without error
		}
		return nil, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return &room, nil
}

// List implements repositories.RoomRepository
func (r *RoomRepository) List(ctx context.Context) ([]*entities.Room, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var rooms []*entities.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return rooms, nil
}

// Update implements repositories.RoomRepository
func (r *RoomRepository) Update(ctx context.Context, room *entities.Room) error {
	if room == nil {
		return errors.New("room cannot be nil")
	}
	if room.ID == "" {
		return errors.New("room ID cannot be empty")
	}

	room.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"name":       room.Name,
			"persona":    room.Persona,
			"resources":  room.Resources,
			"updated_at": room.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": room.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("room with ID %s not found", room.ID)
	}
	return nil
}

// Delete implements repositories.RoomRepository
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("room ID cannot be empty")
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("room with ID %s not found", id)
	}
	return nil
}

// AppendReport implements repositories.RoomRepository
func (r *RoomRepository) AppendReport(ctx context.Context, roomID string, report entities.RoomReport) error {
	if roomID == "" {
		return errors.New("room ID cannot be empty")
	}

	update := bson.M{
		"$push": bson.M{"reports": report},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": roomID}, update)
	if err != nil {
		return fmt.Errorf("failed to append report to room %s: %w", roomID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("room with ID %s not found", roomID)
	}
	return nil
}
