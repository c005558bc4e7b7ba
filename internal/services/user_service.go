package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/carsi-commerce/api/internal/domain"
	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/repositories"
)

const (
	userIDPrefix      = "usr_"
	minPasswordLength = 6
)

var (
	errUserRepositoryRequired = errors.New("user service: repository is required")
	errUserIssuerRequired     = errors.New("user service: token issuer is required")
	errUserClockRequired      = errors.New("user service: clock is required")
)

// ErrUserInvalidInput indicates the caller supplied invalid account fields.
var ErrUserInvalidInput = errors.New("user service: invalid input")

// ErrUserNotFound indicates the requested account does not exist.
var ErrUserNotFound = errors.New("user service: not found")

// ErrUserEmailTaken indicates the email address belongs to another account.
var ErrUserEmailTaken = errors.New("user service: email already in use")

// ErrUserInvalidCredentials indicates an unknown email or a wrong password.
// The two cases are deliberately indistinguishable to callers.
var ErrUserInvalidCredentials = errors.New("user service: invalid credentials")

// ErrUserUnavailable indicates a backend failure while accessing accounts.
var ErrUserUnavailable = errors.New("user service: unavailable")

// bearerTokenIssuer is the slice of the auth package the service needs.
type bearerTokenIssuer interface {
	Issue(identity auth.Identity) (string, error)
}

// UserServiceDeps wires persistence and token issuing for account operations.
type UserServiceDeps struct {
	Repository  repositories.UserRepository
	Tokens      bearerTokenIssuer
	Clock       func() time.Time
	IDGenerator func() string
	BcryptCost  int
	Logger      func(context.Context, string, map[string]any)
}

type userService struct {
	repo       repositories.UserRepository
	tokens     bearerTokenIssuer
	now        func() time.Time
	newID      func() string
	bcryptCost int
	logger     func(context.Context, string, map[string]any)
}

// NewUserService constructs a UserService enforcing dependency validation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Repository == nil {
		return nil, errUserRepositoryRequired
	}
	if deps.Tokens == nil {
		return nil, errUserIssuerRequired
	}
	if deps.Clock == nil {
		return nil, errUserClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return userIDPrefix + ulid.Make().String() }
	}
	cost := deps.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		repo:       deps.Repository,
		tokens:     deps.Tokens,
		now:        func() time.Time { return deps.Clock().UTC() },
		newID:      idGen,
		bcryptCost: cost,
		logger:     logger,
	}, nil
}

// Register creates a customer account and returns it with a fresh token.
func (s *userService) Register(ctx context.Context, cmd RegisterCommand) (AuthenticatedUser, error) {
	if s == nil || s.repo == nil {
		return AuthenticatedUser{}, ErrUserUnavailable
	}

	name := strings.TrimSpace(cmd.Name)
	email := normaliseEmail(cmd.Email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return AuthenticatedUser{}, ErrUserInvalidInput
	}
	if len(cmd.Password) < minPasswordLength {
		return AuthenticatedUser{}, ErrUserInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.bcryptCost)
	if err != nil {
		return AuthenticatedUser{}, ErrUserUnavailable
	}

	now := s.now()
	user := User{
		ID:           s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrEmailInUse) {
			return AuthenticatedUser{}, ErrUserEmailTaken
		}
		return AuthenticatedUser{}, ErrUserUnavailable
	}

	token, err := s.issueToken(user)
	if err != nil {
		return AuthenticatedUser{}, ErrUserUnavailable
	}

	s.logger(ctx, "users.registered", map[string]any{"userID": user.ID})
	return AuthenticatedUser{User: user, Token: token}, nil
}

// Login verifies credentials and returns the account with a fresh token.
func (s *userService) Login(ctx context.Context, email, password string) (AuthenticatedUser, error) {
	if s == nil || s.repo == nil {
		return AuthenticatedUser{}, ErrUserUnavailable
	}

	email = normaliseEmail(email)
	if email == "" || password == "" {
		return AuthenticatedUser{}, ErrUserInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return AuthenticatedUser{}, ErrUserInvalidCredentials
		}
		return AuthenticatedUser{}, ErrUserUnavailable
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AuthenticatedUser{}, ErrUserInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return AuthenticatedUser{}, ErrUserUnavailable
	}
	return AuthenticatedUser{User: user, Token: token}, nil
}

func (s *userService) GetUser(ctx context.Context, userID string) (User, error) {
	if s == nil || s.repo == nil {
		return User{}, ErrUserUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, ErrUserInvalidInput
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return User{}, s.translateRepoError(err)
	}
	return user, nil
}

// UpdateProfile lets the caller change name, email, or password. Empty fields
// are kept as-is.
func (s *userService) UpdateProfile(ctx context.Context, userID string, cmd UpdateProfileCommand) (User, error) {
	if s == nil || s.repo == nil {
		return User{}, ErrUserUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, ErrUserInvalidInput
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return User{}, s.translateRepoError(err)
	}

	if name := strings.TrimSpace(cmd.Name); name != "" {
		user.Name = name
	}
	if email := normaliseEmail(cmd.Email); email != "" {
		if !strings.Contains(email, "@") {
			return User{}, ErrUserInvalidInput
		}
		user.Email = email
	}
	if cmd.Password != "" {
		if len(cmd.Password) < minPasswordLength {
			return User{}, ErrUserInvalidInput
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.bcryptCost)
		if err != nil {
			return User{}, ErrUserUnavailable
		}
		user.PasswordHash = string(hash)
	}
	user.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrEmailInUse) {
			return User{}, ErrUserEmailTaken
		}
		return User{}, s.translateRepoError(err)
	}
	return user, nil
}

// ListUsers returns customer accounts for the back office. Admin accounts are
// managed out of band and excluded from the listing.
func (s *userService) ListUsers(ctx context.Context, pager PageQuery) (domain.Page[User], error) {
	if s == nil || s.repo == nil {
		return domain.Page[User]{}, ErrUserUnavailable
	}

	page, err := s.repo.List(ctx, pager)
	if err != nil {
		return domain.Page[User]{}, s.translateRepoError(err)
	}

	filtered := make([]User, 0, len(page.Items))
	for _, user := range page.Items {
		if user.IsAdmin() {
			continue
		}
		filtered = append(filtered, user)
	}
	page.Items = filtered
	return page, nil
}

func (s *userService) CreateUser(ctx context.Context, cmd AdminCreateUserCommand) (User, error) {
	if s == nil || s.repo == nil {
		return User{}, ErrUserUnavailable
	}

	name := strings.TrimSpace(cmd.Name)
	email := normaliseEmail(cmd.Email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return User{}, ErrUserInvalidInput
	}
	if len(cmd.Password) < minPasswordLength {
		return User{}, ErrUserInvalidInput
	}
	role := cmd.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if role != domain.RoleCustomer && role != domain.RoleAdmin {
		return User{}, ErrUserInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.bcryptCost)
	if err != nil {
		return User{}, ErrUserUnavailable
	}

	now := s.now()
	user := User{
		ID:           s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrEmailInUse) {
			return User{}, ErrUserEmailTaken
		}
		return User{}, ErrUserUnavailable
	}
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, userID string, cmd AdminUpdateUserCommand) (User, error) {
	if s == nil || s.repo == nil {
		return User{}, ErrUserUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, ErrUserInvalidInput
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return User{}, s.translateRepoError(err)
	}

	if name := strings.TrimSpace(cmd.Name); name != "" {
		user.Name = name
	}
	if email := normaliseEmail(cmd.Email); email != "" {
		if !strings.Contains(email, "@") {
			return User{}, ErrUserInvalidInput
		}
		user.Email = email
	}
	if cmd.Role != "" {
		if cmd.Role != domain.RoleCustomer && cmd.Role != domain.RoleAdmin {
			return User{}, ErrUserInvalidInput
		}
		user.Role = cmd.Role
	}
	user.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrEmailInUse) {
			return User{}, ErrUserEmailTaken
		}
		return User{}, s.translateRepoError(err)
	}
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrUserUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserInvalidInput
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *userService) issueToken(user User) (string, error) {
	return s.tokens.Issue(auth.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   string(user.Role),
	})
}

func (s *userService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrUserNotFound) || isRepoNotFound(err) {
		return ErrUserNotFound
	}
	return ErrUserUnavailable
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRoleFromString maps client-supplied role strings onto domain roles.
// Unknown values pass through so validation can reject them explicitly.
func UserRoleFromString(role string) domain.UserRole {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "":
		return ""
	case string(domain.RoleAdmin):
		return domain.RoleAdmin
	case string(domain.RoleCustomer):
		return domain.RoleCustomer
	default:
		return domain.UserRole(strings.TrimSpace(role))
	}
}
