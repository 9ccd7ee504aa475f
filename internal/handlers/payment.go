package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chamapay/chamapay-gobackend.git/internal/mpesa"
	"github.com/chamapay/chamapay-gobackend.git/internal/services"
)

type PaymentHandler struct {
	service   *services.PaymentService
	jwtSecret string
}

func NewPaymentHandler(service *services.PaymentService, jwtSecret string) *PaymentHandler {
	return &PaymentHandler{service: service, jwtSecret: jwtSecret}
}

// callbackAck is the acknowledgement M-Pesa expects on every callback,
// regardless of what happened internally.
var callbackAck = map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"}

// STKPush handles POST /api/mpesa/stkpush
func (h *PaymentHandler) STKPush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string  `json:"phone_number"`
		Amount      float64 `json:"amount"`
		ChamaID     string  `json:"chama_id"`
		UserID      string  `json:"user_id"`
		Description string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.InitiateContribution(r.Context(), services.ContributionRequest{
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
		ChamaID:     req.ChamaID,
		UserID:      req.UserID,
		Description: req.Description,
	})
	if err != nil {
		writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"message":             result.Message,
		"transaction_id":      result.TransactionID,
		"checkout_request_id": result.CheckoutRequestID,
	})
}

// Callback handles POST /api/mpesa/callback. Every invocation, well-formed
// or not, is answered with the acceptance acknowledgement; M-Pesa does not
// retry delivery and an error response would only confuse the gateway.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Body struct {
			StkCallback struct {
				CheckoutRequestID string `json:"CheckoutRequestID"`
				ResultCode        int    `json:"ResultCode"`
				ResultDesc        string `json:"ResultDesc"`
				CallbackMetadata  struct {
					Item []struct {
						Name  string `json:"Name"`
						Value any    `json:"Value"`
					} `json:"Item"`
				} `json:"CallbackMetadata"`
			} `json:"stkCallback"`
		} `json:"Body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("Undecodable M-Pesa callback payload: %v", err)
		writeJSON(w, http.StatusOK, callbackAck)
		return
	}

	stk := payload.Body.StkCallback
	cb := services.STKCallback{
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultCode:        stk.ResultCode,
		ResultDesc:        stk.ResultDesc,
	}
	for _, item := range stk.CallbackMetadata.Item {
		cb.Metadata = append(cb.Metadata, services.CallbackItem{Name: item.Name, Value: item.Value})
	}

	h.service.HandleSTKCallback(r.Context(), cb)

	writeJSON(w, http.StatusOK, callbackAck)
}

// B2C handles POST /api/mpesa/b2c
func (h *PaymentHandler) B2C(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoanID      string  `json:"loan_id"`
		PhoneNumber string  `json:"phone_number"`
		Amount      float64 `json:"amount"`
		UserID      string  `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.DisburseLoan(r.Context(), services.DisbursementRequest{
		LoanID:      req.LoanID,
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
		UserID:      req.UserID,
	})
	if err != nil {
		writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": result.Message,
	})
}

// GetTransactionsByUser handles GET /api/userid/{userID}/transactions
func (h *PaymentHandler) GetTransactionsByUser(w http.ResponseWriter, r *http.Request) {
	callerID, ok := authenticate(w, r, h.jwtSecret)
	if !ok {
		return
	}

	userID := mux.Vars(r)["userID"]
	if userID != callerID {
		writeError(w, http.StatusForbidden, "Unauthorized to view transactions for this user")
		return
	}

	txs, err := h.service.ListTransactionsByUser(r.Context(), userID)
	if err != nil {
		writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, txs)
}

// GetContributionsByChama handles GET /api/chama/{chamaID}/contributions
func (h *PaymentHandler) GetContributionsByChama(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(w, r, h.jwtSecret); !ok {
		return
	}

	contribs, err := h.service.ListContributionsByChama(r.Context(), mux.Vars(r)["chamaID"])
	if err != nil {
		writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contribs)
}

// writePaymentError maps the payment error taxonomy to HTTP statuses:
// missing input and gateway rejections are the caller's problem (400),
// configuration, auth, availability and storage failures are ours (500).
func writePaymentError(w http.ResponseWriter, err error) {
	var rejected *mpesa.RejectedError
	switch {
	case errors.Is(err, services.ErrMissingField):
		writeError(w, http.StatusBadRequest, "Missing required fields")
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   rejected.Message,
		})
	case errors.Is(err, mpesa.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "M-Pesa integration not configured")
	case errors.Is(err, mpesa.ErrAuthFailed):
		writeError(w, http.StatusInternalServerError, "Failed to authenticate with M-Pesa")
	case errors.Is(err, mpesa.ErrUnavailable):
		writeError(w, http.StatusInternalServerError, "M-Pesa gateway unavailable")
	case errors.Is(err, services.ErrStorage):
		writeError(w, http.StatusInternalServerError, "Failed to initiate transaction")
	default:
		log.Printf("Unexpected payment error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
