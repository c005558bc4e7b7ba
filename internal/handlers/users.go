package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/platform/httpx"
	"github.com/carsi-commerce/api/internal/services"
)

const maxUserBodySize = 16 * 1024

// UserHandlers exposes registration, login, profile, and admin account endpoints.
type UserHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewUserHandlers constructs handlers backed by the user service.
func NewUserHandlers(authn *auth.Authenticator, users services.UserService) *UserHandlers {
	return &UserHandlers{
		authn: authn,
		users: users,
	}
}

// Routes wires the /users endpoints onto the provided router.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Post("/login", h.login)

	if h.authn != nil {
		r.Group(func(authed chi.Router) {
			authed.Use(h.authn.RequireAuth())
			authed.Get("/profile", h.getProfile)
			authed.Put("/profile", h.updateProfile)
		})
		r.Group(func(admin chi.Router) {
			admin.Use(h.authn.RequireAuth(auth.RoleAdmin))
			admin.Get("/", h.listUsers)
			admin.Get("/{id}", h.getUser)
			admin.Put("/{id}", h.updateUser)
			admin.Delete("/{id}", h.deleteUser)
		})
	}

	// POST /api/users registers when anonymous; an admin token creates any role.
	r.Post("/", h.createUser)
}

type userPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsAdmin   bool   `json:"isAdmin"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type authenticatedUserPayload struct {
	userPayload
	Token string `json:"token"`
}

func buildUserPayload(user services.User) userPayload {
	return userPayload{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		IsAdmin:   user.IsAdmin(),
		CreatedAt: formatTime(user.CreatedAt),
		UpdatedAt: formatTime(user.UpdatedAt),
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (h *UserHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req registerRequest
	if err := decodeJSONBody(r, maxUserBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	// An authenticated admin may create accounts with an explicit role.
	if identity, ok := h.adminIdentity(r); ok && identity != nil {
		user, err := h.users.CreateUser(ctx, services.AdminCreateUserCommand{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Role:     services.UserRoleFromString(req.Role),
		})
		if err != nil {
			h.writeUserError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, buildUserPayload(user))
		return
	}

	result, err := h.users.Register(ctx, services.RegisterCommand{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, authenticatedUserPayload{
		userPayload: buildUserPayload(result.User),
		Token:       result.Token,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req loginRequest
	if err := decodeJSONBody(r, maxUserBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	result, err := h.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, authenticatedUserPayload{
		userPayload: buildUserPayload(result.User),
		Token:       result.Token,
	})
}

func (h *UserHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUser(ctx, identity.UserID)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSONBody(r, maxUserBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	user, err := h.users.UpdateProfile(ctx, identity.UserID, services.UpdateProfileCommand{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

type userListPayload struct {
	Users []userPayload `json:"users"`
	pageMeta
}

func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := h.users.ListUsers(ctx, parsePageQuery(r))
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}

	payload := userListPayload{
		Users:    make([]userPayload, 0, len(page.Items)),
		pageMeta: pageMeta{Page: page.Page, Pages: page.Pages, Total: page.Total},
	}
	for _, user := range page.Items {
		payload.Users = append(payload.Users, buildUserPayload(user))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.users.GetUser(ctx, trimmedURLParam(r, "id"))
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

type adminUpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *UserHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req adminUpdateUserRequest
	if err := decodeJSONBody(r, maxUserBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	user, err := h.users.UpdateUser(ctx, trimmedURLParam(r, "id"), services.AdminUpdateUserCommand{
		Name:  req.Name,
		Email: req.Email,
		Role:  services.UserRoleFromString(req.Role),
	})
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

func (h *UserHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.users.DeleteUser(ctx, trimmedURLParam(r, "id")); err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Kullanıcı silindi"})
}

// adminIdentity inspects the bearer token without enforcing it, so POST /users
// can serve both anonymous registration and admin account creation.
func (h *UserHandlers) adminIdentity(r *http.Request) (*auth.Identity, bool) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.IsAdmin() {
		return identity, true
	}
	if h.authn == nil {
		return nil, false
	}
	identity, err := h.authn.VerifyRequest(r)
	if err != nil || identity == nil || !identity.IsAdmin() {
		return nil, false
	}
	return identity, true
}

func (h *UserHandlers) writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "Geçersiz kullanıcı bilgileri", http.StatusBadRequest))
	case errors.Is(err, services.ErrUserInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "Geçersiz e-posta veya şifre", http.StatusUnauthorized))
	case errors.Is(err, services.ErrUserEmailTaken):
		httpx.WriteError(ctx, w, httpx.NewError("email_in_use", "Bu e-posta adresi zaten kayıtlı", http.StatusConflict))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "Kullanıcı bulunamadı", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "Kullanıcı işlemi başarısız", http.StatusInternalServerError))
	}
}

func trimmedURLParam(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}
