package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chamapay/chamapay-gobackend.git/internal/models"
)

type LoanService struct {
	db *mongo.Database
}

func NewLoanService(db *mongo.Database) *LoanService {
	return &LoanService{db: db}
}

// Apply files a loan application in pending state.
func (s *LoanService) Apply(ctx context.Context, chamaID, userID primitive.ObjectID, amount float64, purpose string) (*models.Loan, error) {
	if amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, errors.New("purpose is required")
	}

	loan := &models.Loan{
		ID:        primitive.NewObjectID(),
		ChamaID:   chamaID,
		UserID:    userID,
		Amount:    amount,
		Purpose:   purpose,
		Status:    models.LoanStatusPending,
		CreatedAt: time.Now(),
	}

	if _, err := s.db.Collection("loans").InsertOne(ctx, loan); err != nil {
		return nil, err
	}

	return loan, nil
}

// Get returns a loan by id.
func (s *LoanService) Get(ctx context.Context, loanID primitive.ObjectID) (*models.Loan, error) {
	var loan models.Loan
	if err := s.db.Collection("loans").FindOne(ctx, bson.M{"_id": loanID}).Decode(&loan); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("loan not found")
		}
		return nil, err
	}
	return &loan, nil
}

// Approve moves a pending loan to approved. The transition is filtered on
// the pending status so a loan cannot be approved twice.
func (s *LoanService) Approve(ctx context.Context, loanID primitive.ObjectID) (*models.Loan, error) {
	now := time.Now()
	res := s.db.Collection("loans").FindOneAndUpdate(ctx,
		bson.M{"_id": loanID, "status": models.LoanStatusPending},
		bson.M{"$set": bson.M{"status": models.LoanStatusApproved, "approved_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var loan models.Loan
	if err := res.Decode(&loan); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("loan not found or already processed")
		}
		return nil, err
	}
	return &loan, nil
}

// Reject moves a pending loan to rejected.
func (s *LoanService) Reject(ctx context.Context, loanID primitive.ObjectID) (*models.Loan, error) {
	res := s.db.Collection("loans").FindOneAndUpdate(ctx,
		bson.M{"_id": loanID, "status": models.LoanStatusPending},
		bson.M{"$set": bson.M{"status": models.LoanStatusRejected}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var loan models.Loan
	if err := res.Decode(&loan); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("loan not found or already processed")
		}
		return nil, err
	}
	return &loan, nil
}

// ListByChama returns a chama's loans, newest first.
func (s *LoanService) ListByChama(ctx context.Context, chamaID primitive.ObjectID) ([]models.Loan, error) {
	cur, err := s.db.Collection("loans").Find(ctx,
		bson.M{"chama_id": chamaID},
		options.Find().SetSort(bson.M{"created_at": -1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch loans: %v", err)
	}
	defer cur.Close(ctx)

	var loans []models.Loan
	if err := cur.All(ctx, &loans); err != nil {
		return nil, fmt.Errorf("failed to decode loans: %v", err)
	}

	return loans, nil
}
