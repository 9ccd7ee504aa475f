package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Contribution is a ledger entry created only when a collection transaction
// completes. It is never updated after creation.
type Contribution struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	ChamaID        primitive.ObjectID `bson:"chama_id" json:"chama_id"`
	Amount         float64            `bson:"amount" json:"amount"`
	Status         string             `bson:"status" json:"status"`
	PaymentMethod  string             `bson:"payment_method" json:"payment_method"`
	TransactionRef string             `bson:"transaction_ref" json:"transaction_ref"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}
