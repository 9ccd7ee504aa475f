package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chamapay/chamapay-gobackend.git/internal/services"
)

type UserHandler struct {
	service   *services.UserService
	jwtSecret string
}

func NewUserHandler(service *services.UserService, jwtSecret string) *UserHandler {
	return &UserHandler{service: service, jwtSecret: jwtSecret}
}

// Register handles POST /api/user
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName    string `json:"fullname"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.service.Register(r.Context(), req.FullName, req.Email, req.PhoneNumber, req.Password)
	if err != nil {
		if err.Error() == "user with this email already exists" {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Login handles POST /api/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := IssueToken(h.jwtSecret, user.ID.Hex(), user.FullName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":   token,
		"user_id": user.ID.Hex(),
	})
}

// GetUser handles GET /api/user/{userID}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(w, r, h.jwtSecret); !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	user.HPassword = ""

	writeJSON(w, http.StatusOK, user)
}

// GetUsers handles GET /api/users
func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(w, r, h.jwtSecret); !ok {
		return
	}

	users, err := h.service.UserList(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}
