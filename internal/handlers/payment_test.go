package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/chamapay/chamapay-gobackend.git/internal/handlers"
	"github.com/chamapay/chamapay-gobackend.git/internal/models"
	"github.com/chamapay/chamapay-gobackend.git/internal/mpesa"
	"github.com/chamapay/chamapay-gobackend.git/internal/services"
	"github.com/chamapay/chamapay-gobackend.git/internal/store"
)

// memStore is a minimal in-memory services.PaymentStore for handler tests.
type memStore struct {
	transactions  map[primitive.ObjectID]*models.Transaction
	contributions []models.Contribution
	loans         map[primitive.ObjectID]*models.Loan
}

func newMemStore() *memStore {
	return &memStore{
		transactions: make(map[primitive.ObjectID]*models.Transaction),
		loans:        make(map[primitive.ObjectID]*models.Loan),
	}
}

func (m *memStore) CreateTransaction(ctx context.Context, tx *models.Transaction) (primitive.ObjectID, error) {
	tx.ID = primitive.NewObjectID()
	copied := *tx
	m.transactions[tx.ID] = &copied
	return tx.ID, nil
}

func (m *memStore) SetTransactionMpesaRef(ctx context.Context, id primitive.ObjectID, ref string) error {
	if tx, ok := m.transactions[id]; ok {
		tx.MpesaRef = ref
		return nil
	}
	return store.ErrNotFound
}

func (m *memStore) MarkTransactionFailed(ctx context.Context, id primitive.ObjectID) error {
	if tx, ok := m.transactions[id]; ok {
		tx.Status = models.TxStatusFailed
		return nil
	}
	return store.ErrNotFound
}

func (m *memStore) CompletePendingTransaction(ctx context.Context, checkoutID, receipt string) (*models.Transaction, error) {
	for _, tx := range m.transactions {
		if tx.MpesaRef == checkoutID && tx.Status == models.TxStatusPending {
			before := *tx
			tx.Status = models.TxStatusCompleted
			tx.MpesaRef = receipt
			return &before, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) FailPendingTransaction(ctx context.Context, checkoutID, reason string) (*models.Transaction, error) {
	for _, tx := range m.transactions {
		if tx.MpesaRef == checkoutID && tx.Status == models.TxStatusPending {
			before := *tx
			tx.Status = models.TxStatusFailed
			tx.Description += " - Failed: " + reason
			return &before, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateContribution(ctx context.Context, c *models.Contribution) error {
	m.contributions = append(m.contributions, *c)
	return nil
}

func (m *memStore) DisburseLoan(ctx context.Context, loanID primitive.ObjectID, at time.Time) (*models.Loan, error) {
	loan, ok := m.loans[loanID]
	if !ok || loan.Status != models.LoanStatusApproved {
		return nil, store.ErrNotFound
	}
	loan.Status = models.LoanStatusDisbursed
	loan.DisbursedAt = &at
	copied := *loan
	return &copied, nil
}

func (m *memStore) ListTransactionsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Transaction, error) {
	var txs []models.Transaction
	for _, tx := range m.transactions {
		if tx.UserID == userID {
			txs = append(txs, *tx)
		}
	}
	return txs, nil
}

func (m *memStore) ListContributionsByChama(ctx context.Context, chamaID primitive.ObjectID) ([]models.Contribution, error) {
	var contribs []models.Contribution
	for _, c := range m.contributions {
		if c.ChamaID == chamaID {
			contribs = append(contribs, c)
		}
	}
	return contribs, nil
}

// stubGateway is a happy-path services.Gateway unless an error is installed.
type stubGateway struct {
	pushErr    error
	checkoutID string
}

func (g *stubGateway) CollectionConfigured() bool { return true }
func (g *stubGateway) PayoutConfigured() bool     { return true }

func (g *stubGateway) Authenticate(ctx context.Context) (string, error) {
	return "tok", nil
}

func (g *stubGateway) RequestSTKPush(ctx context.Context, token, phone string, amount float64, accountRef, description string) (string, error) {
	if g.pushErr != nil {
		return "", g.pushErr
	}
	return g.checkoutID, nil
}

func (g *stubGateway) SendB2C(ctx context.Context, phone string, amount float64) (string, error) {
	return "SIM1700000000000", nil
}

func newPaymentHandler(ms *memStore, gw *stubGateway) *handlers.PaymentHandler {
	return handlers.NewPaymentHandler(services.NewPaymentService(ms, gw), "test-secret")
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSTKPushHandler(t *testing.T) {
	ms := newMemStore()
	h := newPaymentHandler(ms, &stubGateway{checkoutID: "ws_CO_1"})

	rec := postJSON(t, h.STKPush, "/api/mpesa/stkpush", map[string]any{
		"phone_number": "0712345678",
		"amount":       500,
		"chama_id":     primitive.NewObjectID().Hex(),
		"user_id":      primitive.NewObjectID().Hex(),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success           bool   `json:"success"`
		Message           string `json:"message"`
		TransactionID     string `json:"transaction_id"`
		CheckoutRequestID string `json:"checkout_request_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
	assert.NotEmpty(t, resp.TransactionID)
	assert.Contains(t, resp.Message, "M-Pesa PIN")
}

func TestSTKPushHandlerMissingFields(t *testing.T) {
	h := newPaymentHandler(newMemStore(), &stubGateway{})

	rec := postJSON(t, h.STKPush, "/api/mpesa/stkpush", map[string]any{
		"amount": 500,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing required fields")
}

func TestSTKPushHandlerGatewayRejected(t *testing.T) {
	ms := newMemStore()
	h := newPaymentHandler(ms, &stubGateway{pushErr: &mpesa.RejectedError{Message: "Invalid PhoneNumber"}})

	rec := postJSON(t, h.STKPush, "/api/mpesa/stkpush", map[string]any{
		"phone_number": "0712345678",
		"amount":       500,
		"chama_id":     primitive.NewObjectID().Hex(),
		"user_id":      primitive.NewObjectID().Hex(),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid PhoneNumber")

	require.Len(t, ms.transactions, 1)
	for _, tx := range ms.transactions {
		assert.Equal(t, models.TxStatusFailed, tx.Status)
	}
}

func TestCallbackHandlerCompletesTransaction(t *testing.T) {
	ms := newMemStore()
	tx := &models.Transaction{
		ID:          primitive.NewObjectID(),
		UserID:      primitive.NewObjectID(),
		ChamaID:     primitive.NewObjectID(),
		Amount:      500,
		Type:        models.TxTypeContribution,
		Status:      models.TxStatusPending,
		Description: "Chama contribution",
		MpesaRef:    "ws_CO_1",
	}
	ms.transactions[tx.ID] = tx
	h := newPaymentHandler(ms, &stubGateway{})

	rec := postJSON(t, h.Callback, "/api/mpesa/callback", map[string]any{
		"Body": map[string]any{
			"stkCallback": map[string]any{
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode":        0,
				"ResultDesc":        "The service request is processed successfully.",
				"CallbackMetadata": map[string]any{
					"Item": []map[string]any{
						{"Name": "Amount", "Value": 500},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					},
				},
			},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ResultCode": 0, "ResultDesc": "Accepted"}`, rec.Body.String())

	assert.Equal(t, models.TxStatusCompleted, ms.transactions[tx.ID].Status)
	require.Len(t, ms.contributions, 1)
	assert.Equal(t, "NLJ7RT61SV", ms.contributions[0].TransactionRef)
}

func TestCallbackHandlerAlwaysAcks(t *testing.T) {
	h := newPaymentHandler(newMemStore(), &stubGateway{})

	t.Run("unknown checkout id", func(t *testing.T) {
		rec := postJSON(t, h.Callback, "/api/mpesa/callback", map[string]any{
			"Body": map[string]any{
				"stkCallback": map[string]any{
					"CheckoutRequestID": "ws_CO_unknown",
					"ResultCode":        0,
				},
			},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ResultCode": 0, "ResultDesc": "Accepted"}`, rec.Body.String())
	})

	t.Run("undecodable payload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/mpesa/callback", strings.NewReader("not json"))
		rec := httptest.NewRecorder()
		h.Callback(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ResultCode": 0, "ResultDesc": "Accepted"}`, rec.Body.String())
	})
}

func TestB2CHandler(t *testing.T) {
	ms := newMemStore()
	now := time.Now()
	loan := &models.Loan{
		ID:         primitive.NewObjectID(),
		ChamaID:    primitive.NewObjectID(),
		UserID:     primitive.NewObjectID(),
		Amount:     5000,
		Status:     models.LoanStatusApproved,
		ApprovedAt: &now,
	}
	ms.loans[loan.ID] = loan
	h := newPaymentHandler(ms, &stubGateway{})

	rec := postJSON(t, h.B2C, "/api/mpesa/b2c", map[string]any{
		"loan_id":      loan.ID.Hex(),
		"phone_number": "+254712345678",
		"amount":       5000,
		"user_id":      loan.UserID.Hex(),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Loan disbursed successfully")
	assert.Equal(t, models.LoanStatusDisbursed, ms.loans[loan.ID].Status)
}

func TestB2CHandlerLoanNotApproved(t *testing.T) {
	ms := newMemStore()
	loan := &models.Loan{
		ID:      primitive.NewObjectID(),
		ChamaID: primitive.NewObjectID(),
		Status:  models.LoanStatusPending,
	}
	ms.loans[loan.ID] = loan
	h := newPaymentHandler(ms, &stubGateway{})

	rec := postJSON(t, h.B2C, "/api/mpesa/b2c", map[string]any{
		"loan_id":      loan.ID.Hex(),
		"phone_number": "0712345678",
		"amount":       5000,
		"user_id":      primitive.NewObjectID().Hex(),
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, ms.transactions)
}

func TestSTKPushHandlerGatewayUnavailable(t *testing.T) {
	h := newPaymentHandler(newMemStore(), &stubGateway{
		pushErr: mpesa.ErrUnavailable,
	})

	rec := postJSON(t, h.STKPush, "/api/mpesa/stkpush", map[string]any{
		"phone_number": "0712345678",
		"amount":       500,
		"chama_id":     primitive.NewObjectID().Hex(),
		"user_id":      primitive.NewObjectID().Hex(),
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")
}
