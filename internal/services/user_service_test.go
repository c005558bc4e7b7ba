package services

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/carsi-commerce/api/internal/domain"
	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/repositories"
)

func newUserServiceForTest(t *testing.T, repo repositories.UserRepository, tokens *stubTokenIssuer) UserService {
	t.Helper()
	if tokens == nil {
		tokens = &stubTokenIssuer{}
	}
	svc, err := NewUserService(UserServiceDeps{
		Repository:  repo,
		Tokens:      tokens,
		Clock:       fixedClock,
		IDGenerator: func() string { return "usr_test" },
		BcryptCost:  bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	return svc
}

func TestRegisterHashesPasswordAndIssuesToken(t *testing.T) {
	var saved domain.User
	repo := &stubUserRepository{
		InsertFunc: func(ctx context.Context, user domain.User) error {
			saved = user
			return nil
		},
	}
	var issued auth.Identity
	tokens := &stubTokenIssuer{
		IssueFunc: func(identity auth.Identity) (string, error) {
			issued = identity
			return "jwt-token", nil
		},
	}
	svc := newUserServiceForTest(t, repo, tokens)

	result, err := svc.Register(context.Background(), RegisterCommand{
		Name:     "Ayşe Yılmaz",
		Email:    "  Ayse@Example.COM ",
		Password: "gizli-sifre",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if saved.Email != "ayse@example.com" {
		t.Fatalf("email not normalised: %q", saved.Email)
	}
	if saved.Role != domain.RoleCustomer {
		t.Fatalf("registration must yield a customer, got %q", saved.Role)
	}
	if saved.PasswordHash == "gizli-sifre" || saved.PasswordHash == "" {
		t.Fatal("password stored without hashing")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("gizli-sifre")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if result.Token != "jwt-token" {
		t.Fatalf("token not returned: %q", result.Token)
	}
	if issued.UserID != "usr_test" || issued.Role != "customer" {
		t.Fatalf("unexpected token identity: %+v", issued)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newUserServiceForTest(t, &stubUserRepository{}, nil)

	cases := []struct {
		name string
		cmd  RegisterCommand
	}{
		{name: "empty name", cmd: RegisterCommand{Email: "a@b.com", Password: "123456"}},
		{name: "bad email", cmd: RegisterCommand{Name: "Ali", Email: "not-an-email", Password: "123456"}},
		{name: "short password", cmd: RegisterCommand{Name: "Ali", Email: "a@b.com", Password: "12345"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tc.cmd); !errors.Is(err, ErrUserInvalidInput) {
				t.Fatalf("expected ErrUserInvalidInput, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := &stubUserRepository{
		InsertFunc: func(ctx context.Context, user domain.User) error {
			return repositories.ErrEmailInUse
		},
	}
	svc := newUserServiceForTest(t, repo, nil)

	_, err := svc.Register(context.Background(), RegisterCommand{
		Name: "Ali", Email: "a@b.com", Password: "123456",
	})
	if !errors.Is(err, ErrUserEmailTaken) {
		t.Fatalf("expected ErrUserEmailTaken, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("dogru-sifre"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	repo := &stubUserRepository{
		FindByEmailFunc: func(ctx context.Context, email string) (domain.User, error) {
			if email != "ali@example.com" {
				return domain.User{}, repositories.ErrUserNotFound
			}
			return domain.User{
				ID:           "usr_1",
				Email:        email,
				PasswordHash: string(hash),
				Role:         domain.RoleCustomer,
			}, nil
		},
	}
	svc := newUserServiceForTest(t, repo, nil)

	result, err := svc.Login(context.Background(), "ALI@example.com", "dogru-sifre")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.User.ID != "usr_1" || result.Token == "" {
		t.Fatalf("unexpected login result: %+v", result)
	}

	// Wrong password and unknown email return the same sentinel.
	if _, err := svc.Login(context.Background(), "ali@example.com", "yanlis"); !errors.Is(err, ErrUserInvalidCredentials) {
		t.Fatalf("expected ErrUserInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "kimse@example.com", "dogru-sifre"); !errors.Is(err, ErrUserInvalidCredentials) {
		t.Fatalf("expected ErrUserInvalidCredentials, got %v", err)
	}
}

func TestUpdateProfileKeepsOmittedFields(t *testing.T) {
	existingHash := "$2a$04$existinghashvalue"
	var saved domain.User
	repo := &stubUserRepository{
		FindByIDFunc: func(ctx context.Context, userID string) (domain.User, error) {
			return domain.User{
				ID:           userID,
				Name:         "Ayşe",
				Email:        "ayse@example.com",
				PasswordHash: existingHash,
				Role:         domain.RoleCustomer,
			}, nil
		},
		UpdateFunc: func(ctx context.Context, user domain.User) error {
			saved = user
			return nil
		},
	}
	svc := newUserServiceForTest(t, repo, nil)

	updated, err := svc.UpdateProfile(context.Background(), "usr_1", UpdateProfileCommand{Name: "Ayşe Yılmaz"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Name != "Ayşe Yılmaz" {
		t.Fatalf("name not updated: %q", updated.Name)
	}
	if saved.Email != "ayse@example.com" {
		t.Fatalf("omitted email changed: %q", saved.Email)
	}
	if saved.PasswordHash != existingHash {
		t.Fatal("omitted password rehashed")
	}
	if !saved.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("UpdatedAt not stamped: %v", saved.UpdatedAt)
	}
}

func TestUpdateProfileRehashesNewPassword(t *testing.T) {
	var saved domain.User
	repo := &stubUserRepository{
		FindByIDFunc: func(ctx context.Context, userID string) (domain.User, error) {
			return domain.User{ID: userID, Name: "Ali", Email: "a@b.com", PasswordHash: "old"}, nil
		},
		UpdateFunc: func(ctx context.Context, user domain.User) error {
			saved = user
			return nil
		},
	}
	svc := newUserServiceForTest(t, repo, nil)

	if _, err := svc.UpdateProfile(context.Background(), "usr_1", UpdateProfileCommand{Password: "yeni-sifre"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("yeni-sifre")); err != nil {
		t.Fatalf("new password not hashed correctly: %v", err)
	}
}

func TestListUsersExcludesAdmins(t *testing.T) {
	repo := &stubUserRepository{
		ListFunc: func(ctx context.Context, pager domain.PageQuery) (domain.Page[domain.User], error) {
			return domain.Page[domain.User]{
				Items: []domain.User{
					{ID: "usr_1", Role: domain.RoleCustomer},
					{ID: "usr_admin", Role: domain.RoleAdmin},
					{ID: "usr_2", Role: domain.RoleCustomer},
				},
				Page: 1, Pages: 1, Total: 3,
			}, nil
		},
	}
	svc := newUserServiceForTest(t, repo, nil)

	page, err := svc.ListUsers(context.Background(), PageQuery{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(page.Items))
	}
	for _, user := range page.Items {
		if user.IsAdmin() {
			t.Fatalf("admin %q leaked into the listing", user.ID)
		}
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := newUserServiceForTest(t, &stubUserRepository{}, nil)
	_, err := svc.CreateUser(context.Background(), AdminCreateUserCommand{
		Name: "Ali", Email: "a@b.com", Password: "123456", Role: domain.UserRole("süper"),
	})
	if !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	svc := newUserServiceForTest(t, &stubUserRepository{}, nil)
	if _, err := svc.GetUser(context.Background(), "usr_ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
