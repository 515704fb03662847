package transport

import (
	"net/http"

	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/middleware"
	"kiosk-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	Operator    OperatorProfile `json:"operator"`
}

// OperatorProfile represents operator profile data
type OperatorProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

func newOperatorProfile(operator *domain.Operator) OperatorProfile {
	return OperatorProfile{
		ID:       operator.ID.String(),
		Username: operator.Username,
		Email:    operator.Email,
		Role:     operator.Role(),
	}
}

// UserHandler handles login and profile requests
type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the auth routes. loginLimiter may be nil.
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware, loginLimiter func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if loginLimiter != nil {
				r.Use(loginLimiter)
			}
			r.Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/profile", h.GetProfile)
		})
	})
}

// Login handles operator authentication
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	token, operator, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Login failed")
		return
	}

	h.logger.Info("Operator logged in", zap.String("user_id", operator.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		Operator:    newOperatorProfile(operator),
	})
}

// GetProfile returns the authenticated operator
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	operator, err := h.userService.GetOperator(r.Context(), actor.OperatorID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to get profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newOperatorProfile(operator))
}
