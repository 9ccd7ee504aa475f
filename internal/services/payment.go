package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/chamapay/chamapay-gobackend.git/internal/models"
	"github.com/chamapay/chamapay-gobackend.git/internal/mpesa"
	"github.com/chamapay/chamapay-gobackend.git/internal/store"
)

var (
	// ErrMissingField means a required request field is absent or invalid.
	ErrMissingField = errors.New("missing required fields")

	// ErrStorage means a record-store operation failed before the money
	// movement was requested.
	ErrStorage = errors.New("storage operation failed")
)

// PaymentStore is the slice of persistence the payment core needs. The
// pending-claim operations must be atomic (see store.Mongo).
type PaymentStore interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) (primitive.ObjectID, error)
	SetTransactionMpesaRef(ctx context.Context, id primitive.ObjectID, ref string) error
	MarkTransactionFailed(ctx context.Context, id primitive.ObjectID) error
	CompletePendingTransaction(ctx context.Context, checkoutID, receipt string) (*models.Transaction, error)
	FailPendingTransaction(ctx context.Context, checkoutID, reason string) (*models.Transaction, error)
	CreateContribution(ctx context.Context, c *models.Contribution) error
	DisburseLoan(ctx context.Context, loanID primitive.ObjectID, at time.Time) (*models.Loan, error)
	ListTransactionsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Transaction, error)
	ListContributionsByChama(ctx context.Context, chamaID primitive.ObjectID) ([]models.Contribution, error)
}

// Gateway is the outbound face of the M-Pesa client.
type Gateway interface {
	CollectionConfigured() bool
	PayoutConfigured() bool
	Authenticate(ctx context.Context) (string, error)
	RequestSTKPush(ctx context.Context, token, phone string, amount float64, accountRef, description string) (string, error)
	SendB2C(ctx context.Context, phone string, amount float64) (string, error)
}

// PaymentService orchestrates contributions and loan disbursements against
// the M-Pesa gateway.
type PaymentService struct {
	store   PaymentStore
	gateway Gateway
}

func NewPaymentService(store PaymentStore, gateway Gateway) *PaymentService {
	return &PaymentService{store: store, gateway: gateway}
}

type ContributionRequest struct {
	PhoneNumber string
	Amount      float64
	ChamaID     string
	UserID      string
	Description string
}

type ContributionResult struct {
	TransactionID     string
	CheckoutRequestID string
	Message           string
}

// InitiateContribution validates the request, creates a pending transaction,
// and submits an STK push. The transaction row exists before the push call is
// made, so a record survives even if the outbound call never completes. The
// transaction stays pending on success; the callback decides its fate.
func (s *PaymentService) InitiateContribution(ctx context.Context, req ContributionRequest) (*ContributionResult, error) {
	if req.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: phone_number", ErrMissingField)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount", ErrMissingField)
	}
	if req.ChamaID == "" {
		return nil, fmt.Errorf("%w: chama_id", ErrMissingField)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingField)
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user_id", ErrMissingField)
	}
	chamaID, err := primitive.ObjectIDFromHex(req.ChamaID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid chama_id", ErrMissingField)
	}

	phone := mpesa.NormalizeMSISDN(req.PhoneNumber)

	if !s.gateway.CollectionConfigured() {
		return nil, mpesa.ErrNotConfigured
	}

	token, err := s.gateway.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Chama contribution"
	}

	txID, err := s.store.CreateTransaction(ctx, &models.Transaction{
		UserID:      userID,
		ChamaID:     chamaID,
		Amount:      req.Amount,
		Type:        models.TxTypeContribution,
		Status:      models.TxStatusPending,
		PhoneNumber: phone,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// Daraja caps AccountReference at 12 characters.
	accountRef := txID.Hex()
	if len(accountRef) > 12 {
		accountRef = accountRef[:12]
	}

	checkoutID, err := s.gateway.RequestSTKPush(ctx, token, phone, req.Amount, accountRef, description)
	if err != nil {
		var rejected *mpesa.RejectedError
		if errors.As(err, &rejected) {
			if markErr := s.store.MarkTransactionFailed(ctx, txID); markErr != nil {
				log.Printf("Failed to mark transaction %s failed: %v", txID.Hex(), markErr)
			}
		}
		return nil, err
	}

	if err := s.store.SetTransactionMpesaRef(ctx, txID, checkoutID); err != nil {
		// The push was accepted and the prompt is already on the payer's
		// device; report success and leave the mismatch to the logs.
		log.Printf("Failed to record checkout request id %s on transaction %s: %v", checkoutID, txID.Hex(), err)
	}

	log.Printf("STK push accepted: transaction=%s checkout_request_id=%s", txID.Hex(), checkoutID)
	return &ContributionResult{
		TransactionID:     txID.Hex(),
		CheckoutRequestID: checkoutID,
		Message:           "STK Push sent. Please enter your M-Pesa PIN.",
	}, nil
}

// STKCallback is the reconciler's view of the gateway's webhook payload.
type STKCallback struct {
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Metadata          []CallbackItem
}

type CallbackItem struct {
	Name  string
	Value any
}

// HandleSTKCallback reconciles a gateway callback against its transaction.
// There is no caller-visible error path: the webhook must be acknowledged no
// matter what, so every failure here terminates in a log line. The pending
// claim is atomic, which makes a redelivered callback a no-op.
func (s *PaymentService) HandleSTKCallback(ctx context.Context, cb STKCallback) {
	if cb.ResultCode != 0 {
		tx, err := s.store.FailPendingTransaction(ctx, cb.CheckoutRequestID, cb.ResultDesc)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Printf("No pending transaction for checkout request %s, dropping callback", cb.CheckoutRequestID)
				return
			}
			log.Printf("Failed to record failure for checkout request %s: %v", cb.CheckoutRequestID, err)
			return
		}
		log.Printf("Payment failed for transaction %s: %s", tx.ID.Hex(), cb.ResultDesc)
		return
	}

	receipt := ""
	var amount float64
	hasAmount := false
	for _, item := range cb.Metadata {
		switch item.Name {
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok {
				receipt = v
			}
		case "Amount":
			if v, ok := metadataAmount(item.Value); ok {
				amount = v
				hasAmount = true
			}
		}
	}

	ref := receipt
	if ref == "" {
		ref = cb.CheckoutRequestID
	}

	tx, err := s.store.CompletePendingTransaction(ctx, cb.CheckoutRequestID, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("No pending transaction for checkout request %s, dropping callback", cb.CheckoutRequestID)
			return
		}
		log.Printf("Failed to complete transaction for checkout request %s: %v", cb.CheckoutRequestID, err)
		return
	}

	if !hasAmount {
		amount = tx.Amount
	}

	if err := s.store.CreateContribution(ctx, &models.Contribution{
		UserID:         tx.UserID,
		ChamaID:        tx.ChamaID,
		Amount:         amount,
		Status:         models.TxStatusCompleted,
		PaymentMethod:  "mpesa",
		TransactionRef: ref,
	}); err != nil {
		log.Printf("Failed to create contribution for transaction %s: %v", tx.ID.Hex(), err)
		return
	}

	log.Printf("Payment processed successfully: transaction=%s receipt=%s", tx.ID.Hex(), ref)
}

// metadataAmount coerces the callback metadata Amount item, which arrives as
// a JSON number.
func metadataAmount(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

type DisbursementRequest struct {
	LoanID      string
	PhoneNumber string
	Amount      float64
	UserID      string
}

type DisbursementResult struct {
	Message string
}

// DisburseLoan moves an approved loan to disbursed and sends the payout. The
// loan transition happens before the gateway is contacted; if it fails
// nothing is sent. There is no confirmation loop: once the payout primitive
// returns, the loan and its transaction are final.
func (s *PaymentService) DisburseLoan(ctx context.Context, req DisbursementRequest) (*DisbursementResult, error) {
	if req.LoanID == "" {
		return nil, fmt.Errorf("%w: loan_id", ErrMissingField)
	}
	if req.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: phone_number", ErrMissingField)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount", ErrMissingField)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingField)
	}

	loanID, err := primitive.ObjectIDFromHex(req.LoanID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid loan_id", ErrMissingField)
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user_id", ErrMissingField)
	}

	phone := mpesa.NormalizeMSISDN(req.PhoneNumber)

	if !s.gateway.PayoutConfigured() {
		return nil, mpesa.ErrNotConfigured
	}

	loan, err := s.store.DisburseLoan(ctx, loanID, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: loan not found or not approved", ErrStorage)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	ref, err := s.gateway.SendB2C(ctx, phone, req.Amount)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.CreateTransaction(ctx, &models.Transaction{
		UserID:      userID,
		ChamaID:     loan.ChamaID,
		Amount:      req.Amount,
		Type:        models.TxTypeLoanDisbursement,
		Status:      models.TxStatusCompleted,
		PhoneNumber: phone,
		Description: "Loan disbursement",
		MpesaRef:    ref,
	}); err != nil {
		// The payout has already gone out; the missing ledger row is a
		// reconciliation problem, not a reason to fail the request.
		log.Printf("Failed to record disbursement transaction for loan %s: %v", loanID.Hex(), err)
	}

	log.Printf("Loan %s disbursed: KES %.0f to %s (ref %s)", loanID.Hex(), req.Amount, phone, ref)
	return &DisbursementResult{
		Message: "Loan disbursed successfully. Check your M-Pesa for the funds.",
	}, nil
}

// ListTransactionsByUser returns a user's transactions, newest first.
func (s *PaymentService) ListTransactionsByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user_id", ErrMissingField)
	}
	txs, err := s.store.ListTransactionsByUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return txs, nil
}

// ListContributionsByChama returns a chama's contributions, newest first.
func (s *PaymentService) ListContributionsByChama(ctx context.Context, chamaID string) ([]models.Contribution, error) {
	id, err := primitive.ObjectIDFromHex(chamaID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid chama_id", ErrMissingField)
	}
	contribs, err := s.store.ListContributionsByChama(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return contribs, nil
}
