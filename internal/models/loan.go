package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Loan statuses.
const (
	LoanStatusPending   = "pending"
	LoanStatusApproved  = "approved"
	LoanStatusRejected  = "rejected"
	LoanStatusDisbursed = "disbursed"
)

// Loan model
type Loan struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChamaID     primitive.ObjectID `bson:"chama_id" json:"chama_id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Amount      float64            `bson:"amount" json:"amount"`
	Purpose     string             `bson:"purpose" json:"purpose"`
	Status      string             `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	ApprovedAt  *time.Time         `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	DisbursedAt *time.Time         `bson:"disbursed_at,omitempty" json:"disbursed_at,omitempty"`
}
