package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chama represents a savings group document in the MongoDB database
type Chama struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	InviteCode  string             `bson:"invite_code" json:"invite_code"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// ChamaMember links a user to a chama with a role of "admin" or "member".
type ChamaMember struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChamaID  primitive.ObjectID `bson:"chama_id" json:"chama_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role     string             `bson:"role" json:"role"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}
