package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Staff struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	PhoneNumber    string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}

type ClothingType struct {
	ID           uuid.UUID
	Name         string
	Measurements []string
	CreatedAt    time.Time
}

type Order struct {
	ID              uuid.UUID
	Name            string
	PhoneNumber     string
	Type            string
	Status          string
	Delivery        string
	DueDate         time.Time
	AdditionalNotes pgtype.Text
	CreatedByID     uuid.UUID
	UpdatedByID     pgtype.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ClothingTypeID uuid.UUID
	Price          int64
	Measurements   []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type SubOrderItem struct {
	ID             uuid.UUID
	OrderItemID    uuid.UUID
	ClothingTypeID uuid.UUID
	Price          int64
	Measurements   []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Amount      int64
	Mode        string
	Reference   pgtype.Text
	IsDeleted   bool
	UpdatedByID uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
