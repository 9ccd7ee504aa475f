package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/chamapay/chamapay-gobackend.git/internal/services"
)

type LoanHandler struct {
	loans     *services.LoanService
	chamas    *services.ChamaService
	jwtSecret string
}

func NewLoanHandler(loans *services.LoanService, chamas *services.ChamaService, jwtSecret string) *LoanHandler {
	return &LoanHandler{loans: loans, chamas: chamas, jwtSecret: jwtSecret}
}

// ApplyLoan handles POST /api/loan
func (h *LoanHandler) ApplyLoan(w http.ResponseWriter, r *http.Request) {
	callerID, ok := authenticate(w, r, h.jwtSecret)
	if !ok {
		return
	}
	userID, err := primitive.ObjectIDFromHex(callerID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token subject")
		return
	}

	var req struct {
		ChamaID string  `json:"chama_id"`
		Amount  float64 `json:"amount"`
		Purpose string  `json:"purpose"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chamaID, err := primitive.ObjectIDFromHex(req.ChamaID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chama_id")
		return
	}

	loan, err := h.loans.Apply(r.Context(), chamaID, userID, req.Amount, req.Purpose)
	if err != nil {
		switch err.Error() {
		case "amount must be positive", "purpose is required":
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to apply for loan: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, loan)
}

// ApproveLoan handles POST /api/loan/{loanID}/approve. Only a chama admin
// may approve.
func (h *LoanHandler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	callerID, ok := authenticate(w, r, h.jwtSecret)
	if !ok {
		return
	}
	userID, err := primitive.ObjectIDFromHex(callerID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token subject")
		return
	}

	loanID, err := primitive.ObjectIDFromHex(mux.Vars(r)["loanID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan ID")
		return
	}

	loan, err := h.loans.Get(r.Context(), loanID)
	if err != nil {
		if err.Error() == "loan not found" {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch loan")
		return
	}

	isAdmin, err := h.chamas.IsAdmin(r.Context(), loan.ChamaID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to verify membership")
		return
	}
	if !isAdmin {
		writeError(w, http.StatusForbidden, "Only a chama admin can approve loans")
		return
	}

	loan, err = h.loans.Approve(r.Context(), loanID)
	if err != nil {
		if err.Error() == "loan not found or already processed" {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to approve loan: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

// RejectLoan handles POST /api/loan/{loanID}/reject. Only a chama admin may
// reject.
func (h *LoanHandler) RejectLoan(w http.ResponseWriter, r *http.Request) {
	callerID, ok := authenticate(w, r, h.jwtSecret)
	if !ok {
		return
	}
	userID, err := primitive.ObjectIDFromHex(callerID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token subject")
		return
	}

	loanID, err := primitive.ObjectIDFromHex(mux.Vars(r)["loanID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan ID")
		return
	}

	loan, err := h.loans.Get(r.Context(), loanID)
	if err != nil {
		if err.Error() == "loan not found" {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch loan")
		return
	}

	isAdmin, err := h.chamas.IsAdmin(r.Context(), loan.ChamaID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to verify membership")
		return
	}
	if !isAdmin {
		writeError(w, http.StatusForbidden, "Only a chama admin can reject loans")
		return
	}

	loan, err = h.loans.Reject(r.Context(), loanID)
	if err != nil {
		if err.Error() == "loan not found or already processed" {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to reject loan: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

// GetLoansByChama handles GET /api/chama/{chamaID}/loans
func (h *LoanHandler) GetLoansByChama(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(w, r, h.jwtSecret); !ok {
		return
	}

	chamaID, err := primitive.ObjectIDFromHex(mux.Vars(r)["chamaID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chama ID")
		return
	}

	loans, err := h.loans.ListByChama(r.Context(), chamaID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch loans")
		return
	}

	writeJSON(w, http.StatusOK, loans)
}
