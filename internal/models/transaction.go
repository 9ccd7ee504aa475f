package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction statuses.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Transaction types.
const (
	TxTypeContribution     = "contribution"
	TxTypeLoanDisbursement = "loan_disbursement"
)

// Transaction is the unit of money movement. MpesaRef holds the
// CheckoutRequestID while the transaction is pending and is overwritten with
// the M-Pesa receipt number once the payment settles.
type Transaction struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	ChamaID     primitive.ObjectID `bson:"chama_id" json:"chama_id"`
	Amount      float64            `bson:"amount" json:"amount"`
	Type        string             `bson:"type" json:"type"`
	Status      string             `bson:"status" json:"status"`
	PhoneNumber string             `bson:"phone_number" json:"phone_number"`
	Description string             `bson:"description" json:"description"`
	MpesaRef    string             `bson:"mpesa_ref,omitempty" json:"mpesa_ref,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
