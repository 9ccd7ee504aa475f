package handlers

import (
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/chamapay/chamapay-gobackend.git/internal/services"
)

type ChamaHandler struct {
	service   *services.ChamaService
	jwtSecret string
}

func NewChamaHandler(service *services.ChamaService, jwtSecret string) *ChamaHandler {
	return &ChamaHandler{service: service, jwtSecret: jwtSecret}
}

// CreateChama handles POST /api/chama
func (h *ChamaHandler) CreateChama(w http.ResponseWriter, r *http.Request) {
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
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chama, err := h.service.Create(r.Context(), req.Name, req.Description, userID)
	if err != nil {
		if err.Error() == "chama name is required" {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create chama: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, chama)
}

// GetChamas handles GET /api/chamas
func (h *ChamaHandler) GetChamas(w http.ResponseWriter, r *http.Request) {
	callerID, ok := authenticate(w, r, h.jwtSecret)
	if !ok {
		return
	}
	userID, err := primitive.ObjectIDFromHex(callerID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token subject")
		return
	}

	chamas, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch chamas")
		return
	}

	writeJSON(w, http.StatusOK, chamas)
}

// JoinChama handles POST /api/chama/join
func (h *ChamaHandler) JoinChama(w http.ResponseWriter, r *http.Request) {
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
		InviteCode string `json:"invite_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chama, err := h.service.Join(r.Context(), req.InviteCode, userID)
	if err != nil {
		switch err.Error() {
		case "invite code is required", "already a member of this chama":
			writeError(w, http.StatusBadRequest, err.Error())
		case "chama not found for this invite code":
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to join chama: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, chama)
}
