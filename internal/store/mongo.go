package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chamapay/chamapay-gobackend.git/internal/models"
)

// ErrNotFound is returned when a keyed lookup or a status-filtered update
// matches no document.
var ErrNotFound = errors.New("not found")

// Mongo persists the payment core's entities. State transitions are single
// FindOneAndUpdate calls filtered on the prior status, so concurrent or
// redelivered callbacks cannot claim the same transaction twice.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

// EnsureIndexes creates the indexes the reconciler's lookups depend on.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.db.Collection("transactions").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"mpesa_ref": 1}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction indexes: %v", err)
	}
	_, err = m.db.Collection("contributions").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "chama_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create contribution indexes: %v", err)
	}
	return nil
}

// CreateTransaction inserts a new transaction and returns its id.
func (m *Mongo) CreateTransaction(ctx context.Context, tx *models.Transaction) (primitive.ObjectID, error) {
	tx.ID = primitive.NewObjectID()
	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if _, err := m.db.Collection("transactions").InsertOne(ctx, tx); err != nil {
		return primitive.NilObjectID, err
	}
	return tx.ID, nil
}

// SetTransactionMpesaRef records the gateway correlation identifier on a
// transaction.
func (m *Mongo) SetTransactionMpesaRef(ctx context.Context, id primitive.ObjectID, ref string) error {
	_, err := m.db.Collection("transactions").UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"mpesa_ref": ref, "updated_at": time.Now()},
	})
	return err
}

// MarkTransactionFailed flips a transaction to failed.
func (m *Mongo) MarkTransactionFailed(ctx context.Context, id primitive.ObjectID) error {
	_, err := m.db.Collection("transactions").UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": models.TxStatusFailed, "updated_at": time.Now()},
	})
	return err
}

// CompletePendingTransaction atomically claims the pending transaction whose
// mpesa_ref equals checkoutID, marking it completed and overwriting the ref
// with the settlement receipt. The transaction as it was before the update is
// returned; ErrNotFound means no pending transaction matched.
func (m *Mongo) CompletePendingTransaction(ctx context.Context, checkoutID, receipt string) (*models.Transaction, error) {
	res := m.db.Collection("transactions").FindOneAndUpdate(ctx,
		bson.M{"mpesa_ref": checkoutID, "status": models.TxStatusPending},
		bson.M{"$set": bson.M{
			"status":     models.TxStatusCompleted,
			"mpesa_ref":  receipt,
			"updated_at": time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	)

	var tx models.Transaction
	if err := res.Decode(&tx); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FailPendingTransaction atomically claims the pending transaction whose
// mpesa_ref equals checkoutID, marking it failed and appending the gateway's
// failure reason to its description.
func (m *Mongo) FailPendingTransaction(ctx context.Context, checkoutID, reason string) (*models.Transaction, error) {
	res := m.db.Collection("transactions").FindOneAndUpdate(ctx,
		bson.M{"mpesa_ref": checkoutID, "status": models.TxStatusPending},
		bson.M{"$set": bson.M{"status": models.TxStatusFailed, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	)

	var tx models.Transaction
	if err := res.Decode(&tx); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	desc := tx.Description + " - Failed: " + reason
	if _, err := m.db.Collection("transactions").UpdateByID(ctx, tx.ID, bson.M{
		"$set": bson.M{"description": desc},
	}); err != nil {
		return &tx, err
	}
	return &tx, nil
}

// CreateContribution inserts a contribution ledger entry.
func (m *Mongo) CreateContribution(ctx context.Context, c *models.Contribution) error {
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now()
	_, err := m.db.Collection("contributions").InsertOne(ctx, c)
	return err
}

// DisburseLoan atomically moves an approved loan to disbursed, stamping the
// disbursement time exactly once. ErrNotFound means the loan does not exist
// or is not in approved state.
func (m *Mongo) DisburseLoan(ctx context.Context, loanID primitive.ObjectID, at time.Time) (*models.Loan, error) {
	res := m.db.Collection("loans").FindOneAndUpdate(ctx,
		bson.M{"_id": loanID, "status": models.LoanStatusApproved},
		bson.M{"$set": bson.M{"status": models.LoanStatusDisbursed, "disbursed_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var loan models.Loan
	if err := res.Decode(&loan); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &loan, nil
}

// ListTransactionsByUser returns a user's transactions, newest first.
func (m *Mongo) ListTransactionsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Transaction, error) {
	cur, err := m.db.Collection("transactions").Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.M{"created_at": -1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var txs []models.Transaction
	if err := cur.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// ListContributionsByChama returns a chama's contributions, newest first.
func (m *Mongo) ListContributionsByChama(ctx context.Context, chamaID primitive.ObjectID) ([]models.Contribution, error) {
	cur, err := m.db.Collection("contributions").Find(ctx,
		bson.M{"chama_id": chamaID},
		options.Find().SetSort(bson.M{"created_at": -1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var contribs []models.Contribution
	if err := cur.All(ctx, &contribs); err != nil {
		return nil, err
	}
	return contribs, nil
}
