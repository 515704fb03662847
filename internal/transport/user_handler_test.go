package transport

import (
	"context"
	"net/http"
	"testing"

	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUserService struct {
	service.UserService
	operators map[string]*domain.Operator
	passwords map[string]string
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{
		operators: map[string]*domain.Operator{},
		passwords: map[string]string{},
	}
}

func (f *fakeUserService) add(username, password string, superuser bool) *domain.Operator {
	operator := &domain.Operator{ID: uuid.New(), Username: username, IsSuperuser: superuser}
	f.operators[username] = operator
	f.passwords[username] = password
	return operator
}

func (f *fakeUserService) Login(ctx context.Context, username, password string) (string, *domain.Operator, error) {
	operator, ok := f.operators[username]
	if !ok || f.passwords[username] != password {
		return "", nil, service.ErrInvalidCredentials
	}
	return "token-for-" + username, operator, nil
}

func (f *fakeUserService) GetOperator(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	for _, operator := range f.operators {
		if operator.ID == id {
			return operator, nil
		}
	}
	return nil, domain.ErrNotFound
}

func newUserRouter(t *testing.T, svc service.UserService) http.Handler {
	handler := NewUserHandler(svc, zap.NewNop())
	return newTestRouter(t, func(r chi.Router, auth, admin func(http.Handler) http.Handler) {
		handler.RegisterRoutes(r, auth, nil)
	})
}

func TestProperty_LoginReturnsTokenAndRole(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid credentials yield a token and the operator role", prop.ForAll(
		func(username, password string, superuser bool) bool {
			svc := newFakeUserService()
			operator := svc.add(username, password, superuser)
			router := newUserRouter(t, svc)

			w := doJSON(t, router, nil, "POST", "/api/auth/login", map[string]string{
				"username": username,
				"password": password,
			})
			if w.Code != http.StatusOK {
				return false
			}

			var resp LoginResponse
			decodeBody(t, w, &resp)
			return resp.AccessToken == "token-for-"+username &&
				resp.Operator.ID == operator.ID.String() &&
				resp.Operator.Role == operator.Role()
		},
		gen.Identifier(),
		gen.RegexMatch(`[A-Za-z0-9]{8,16}`),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLoginRejections(t *testing.T) {
	svc := newFakeUserService()
	svc.add("ana", "correct-horse", false)
	router := newUserRouter(t, svc)

	w := doJSON(t, router, nil, "POST", "/api/auth/login", map[string]string{"username": "ana", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, nil, "POST", "/api/auth/login", map[string]string{"username": "ana"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProfile(t *testing.T) {
	svc := newFakeUserService()
	operator := svc.add("ana", "secret", true)
	router := newUserRouter(t, svc)

	actor := domain.ActorFor(operator)
	w := doJSON(t, router, &actor, "GET", "/api/auth/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profile OperatorProfile
	decodeBody(t, w, &profile)
	assert.Equal(t, "ana", profile.Username)
	assert.Equal(t, domain.RoleAdmin, profile.Role)

	w = doJSON(t, router, nil, "GET", "/api/auth/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
