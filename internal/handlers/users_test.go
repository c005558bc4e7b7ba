package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/carsi-commerce/api/internal/domain"
	"github.com/carsi-commerce/api/internal/services"
)

type stubUserService struct {
	registerFunc      func(ctx context.Context, cmd services.RegisterCommand) (services.AuthenticatedUser, error)
	loginFunc         func(ctx context.Context, email, password string) (services.AuthenticatedUser, error)
	getUserFunc       func(ctx context.Context, userID string) (services.User, error)
	updateProfileFunc func(ctx context.Context, userID string, cmd services.UpdateProfileCommand) (services.User, error)
	listUsersFunc     func(ctx context.Context, pager services.PageQuery) (domain.Page[services.User], error)
	createUserFunc    func(ctx context.Context, cmd services.AdminCreateUserCommand) (services.User, error)
	updateUserFunc    func(ctx context.Context, userID string, cmd services.AdminUpdateUserCommand) (services.User, error)
	deleteUserFunc    func(ctx context.Context, userID string) error
}

func (s *stubUserService) Register(ctx context.Context, cmd services.RegisterCommand) (services.AuthenticatedUser, error) {
	if s.registerFunc != nil {
		return s.registerFunc(ctx, cmd)
	}
	return services.AuthenticatedUser{}, nil
}

func (s *stubUserService) Login(ctx context.Context, email, password string) (services.AuthenticatedUser, error) {
	if s.loginFunc != nil {
		return s.loginFunc(ctx, email, password)
	}
	return services.AuthenticatedUser{}, nil
}

func (s *stubUserService) GetUser(ctx context.Context, userID string) (services.User, error) {
	if s.getUserFunc != nil {
		return s.getUserFunc(ctx, userID)
	}
	return services.User{}, nil
}

func (s *stubUserService) UpdateProfile(ctx context.Context, userID string, cmd services.UpdateProfileCommand) (services.User, error) {
	if s.updateProfileFunc != nil {
		return s.updateProfileFunc(ctx, userID, cmd)
	}
	return services.User{}, nil
}

func (s *stubUserService) ListUsers(ctx context.Context, pager services.PageQuery) (domain.Page[services.User], error) {
	if s.listUsersFunc != nil {
		return s.listUsersFunc(ctx, pager)
	}
	return domain.Page[services.User]{}, nil
}

func (s *stubUserService) CreateUser(ctx context.Context, cmd services.AdminCreateUserCommand) (services.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, cmd)
	}
	return services.User{}, nil
}

func (s *stubUserService) UpdateUser(ctx context.Context, userID string, cmd services.AdminUpdateUserCommand) (services.User, error) {
	if s.updateUserFunc != nil {
		return s.updateUserFunc(ctx, userID, cmd)
	}
	return services.User{}, nil
}

func (s *stubUserService) DeleteUser(ctx context.Context, userID string) error {
	if s.deleteUserFunc != nil {
		return s.deleteUserFunc(ctx, userID)
	}
	return nil
}

func newUserRouter(t *testing.T, service services.UserService) chi.Router {
	t.Helper()
	handler := NewUserHandlers(newTestAuthenticator(t), service)
	router := chi.NewRouter()
	router.Route("/users", handler.Routes)
	return router
}

func TestUsersRegisterReturnsTokenAndProfile(t *testing.T) {
	created := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	service := &stubUserService{
		registerFunc: func(ctx context.Context, cmd services.RegisterCommand) (services.AuthenticatedUser, error) {
			if cmd.Email != "ali@example.com" {
				t.Fatalf("unexpected email %q", cmd.Email)
			}
			return services.AuthenticatedUser{
				User: services.User{
					ID:        "usr_1",
					Name:      cmd.Name,
					Email:     cmd.Email,
					Role:      domain.RoleCustomer,
					CreatedAt: created,
					UpdatedAt: created,
				},
				Token: "signed-token",
			}, nil
		},
	}
	router := newUserRouter(t, service)

	body := `{"name":"Ali Veli","email":"ali@example.com","password":"gizli123"}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp authenticatedUserPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token != "signed-token" {
		t.Fatalf("expected token in response, got %q", resp.Token)
	}
	if resp.ID != "usr_1" || resp.Role != "customer" || resp.IsAdmin {
		t.Fatalf("unexpected profile payload: %+v", resp.userPayload)
	}
}

func TestUsersCreateWithAdminTokenUsesRequestedRole(t *testing.T) {
	var gotCmd services.AdminCreateUserCommand
	service := &stubUserService{
		createUserFunc: func(ctx context.Context, cmd services.AdminCreateUserCommand) (services.User, error) {
			gotCmd = cmd
			return services.User{ID: "usr_2", Name: cmd.Name, Email: cmd.Email, Role: cmd.Role}, nil
		},
		registerFunc: func(ctx context.Context, cmd services.RegisterCommand) (services.AuthenticatedUser, error) {
			t.Fatalf("register must not be called for an admin request")
			return services.AuthenticatedUser{}, nil
		},
	}
	router := newUserRouter(t, service)

	body := `{"name":"Depo Sorumlusu","email":"depo@example.com","password":"gizli123","role":"admin"}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role forwarded, got %q", gotCmd.Role)
	}

	var resp authenticatedUserPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token != "" {
		t.Fatalf("admin-created accounts must not receive a token, got %q", resp.Token)
	}
}

func TestUsersCreateWithCustomerTokenFallsBackToRegister(t *testing.T) {
	registered := false
	service := &stubUserService{
		registerFunc: func(ctx context.Context, cmd services.RegisterCommand) (services.AuthenticatedUser, error) {
			registered = true
			return services.AuthenticatedUser{User: services.User{ID: "usr_3", Role: domain.RoleCustomer}, Token: "t"}, nil
		},
		createUserFunc: func(ctx context.Context, cmd services.AdminCreateUserCommand) (services.User, error) {
			t.Fatalf("create must not be called for a customer token")
			return services.User{}, nil
		},
	}
	router := newUserRouter(t, service)

	body := `{"name":"Ali","email":"ali@example.com","password":"gizli123","role":"admin"}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer customer-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if !registered {
		t.Fatalf("expected fallback to registration")
	}
}

func TestUsersLoginInvalidCredentials(t *testing.T) {
	service := &stubUserService{
		loginFunc: func(ctx context.Context, email, password string) (services.AuthenticatedUser, error) {
			return services.AuthenticatedUser{}, services.ErrUserInvalidCredentials
		},
	}
	router := newUserRouter(t, service)

	body := `{"email":"ali@example.com","password":"yanlis"}`
	req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	resp := decodeErrorBody(t, rr)
	if resp["message"] != "Geçersiz e-posta veya şifre" {
		t.Fatalf("unexpected message %v", resp["message"])
	}
}

func TestUsersRegisterDuplicateEmailConflict(t *testing.T) {
	service := &stubUserService{
		registerFunc: func(ctx context.Context, cmd services.RegisterCommand) (services.AuthenticatedUser, error) {
			return services.AuthenticatedUser{}, services.ErrUserEmailTaken
		},
	}
	router := newUserRouter(t, service)

	body := `{"name":"Ali","email":"ali@example.com","password":"gizli123"}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestUsersProfileRequiresAuthentication(t *testing.T) {
	router := newUserRouter(t, &stubUserService{})

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestUsersProfileReturnsOwnAccount(t *testing.T) {
	service := &stubUserService{
		getUserFunc: func(ctx context.Context, userID string) (services.User, error) {
			if userID != "usr_customer" {
				t.Fatalf("expected lookup for token identity, got %q", userID)
			}
			return services.User{ID: userID, Name: "Ali", Email: "ali@example.com", Role: domain.RoleCustomer}, nil
		},
	}
	router := newUserRouter(t, service)

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	req.Header.Set("Authorization", "Bearer customer-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUsersListRequiresAdminRole(t *testing.T) {
	router := newUserRouter(t, &stubUserService{})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer customer-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestUsersDeleteRespondsWithMessage(t *testing.T) {
	deleted := ""
	service := &stubUserService{
		deleteUserFunc: func(ctx context.Context, userID string) error {
			deleted = userID
			return nil
		},
	}
	router := newUserRouter(t, service)

	req := httptest.NewRequest(http.MethodDelete, "/users/usr_9", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if deleted != "usr_9" {
		t.Fatalf("expected delete for usr_9, got %q", deleted)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["message"] != "Kullanıcı silindi" {
		t.Fatalf("unexpected message %q", resp["message"])
	}
}

func TestUsersGetUserNotFound(t *testing.T) {
	service := &stubUserService{
		getUserFunc: func(ctx context.Context, userID string) (services.User, error) {
			return services.User{}, services.ErrUserNotFound
		},
	}
	router := newUserRouter(t, service)

	req := httptest.NewRequest(http.MethodGet, "/users/usr_missing", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	resp := decodeErrorBody(t, rr)
	if resp["message"] != "Kullanıcı bulunamadı" {
		t.Fatalf("unexpected message %v", resp["message"])
	}
}

var _ services.UserService = (*stubUserService)(nil)
