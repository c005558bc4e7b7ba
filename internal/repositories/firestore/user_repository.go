package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/carsi-commerce/api/internal/domain"
	pfirestore "github.com/carsi-commerce/api/internal/platform/firestore"
	"github.com/carsi-commerce/api/internal/repositories"
)

const usersCollection = "users"

const (
	defaultUserPageSize = 20
	maxUserPageSize     = 100
)

type userDocument struct {
	Name         string    `firestore:"name"`
	Email        string    `firestore:"email"`
	PasswordHash string    `firestore:"passwordHash"`
	Role         string    `firestore:"role"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func newUserDocument(user domain.User) userDocument {
	return userDocument{
		Name:         strings.TrimSpace(user.Name),
		Email:        normaliseEmail(user.Email),
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}
}

func (d userDocument) toDomain(id string) domain.User {
	return domain.User{
		ID:           id,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         domain.UserRole(d.Role),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// UserRepository implements repositories.UserRepository backed by Firestore.
// Email uniqueness is enforced transactionally against the email field.
type UserRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.BaseRepository[userDocument]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		provider: provider,
		users:    pfirestore.NewBaseRepository[userDocument](provider, usersCollection, nil, nil),
	}, nil
}

func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	if r == nil || r.provider == nil {
		return errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user insert: id is required")
	}
	doc := newUserDocument(user)
	if doc.Email == "" {
		return errors.New("user insert: email is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		coll, err := r.users.CollectionRef(ctx)
		if err != nil {
			return err
		}
		if err := r.ensureEmailFree(tx, coll, doc.Email, ""); err != nil {
			return err
		}
		ref, err := r.users.DocumentRef(ctx, user.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(ref, doc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return fmt.Errorf("user %s already exists: %w", user.ID, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrEmailInUse) {
			return repositories.ErrEmailInUse
		}
		return pfirestore.WrapError("users.insert", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	if r == nil || r.provider == nil {
		return errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user update: id is required")
	}
	doc := newUserDocument(user)
	if doc.Email == "" {
		return errors.New("user update: email is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		coll, err := r.users.CollectionRef(ctx)
		if err != nil {
			return err
		}
		if err := r.ensureEmailFree(tx, coll, doc.Email, user.ID); err != nil {
			return err
		}
		ref, err := r.users.DocumentRef(ctx, user.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.ErrUserNotFound
			}
			return err
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrEmailInUse) || errors.Is(err, repositories.ErrUserNotFound) {
			return err
		}
		return pfirestore.WrapError("users.update", err)
	}
	return nil
}

// ensureEmailFree fails with ErrEmailInUse when another user owns the address.
// excludeID permits updates that keep the user's current email.
func (r *UserRepository) ensureEmailFree(tx *firestore.Transaction, coll *firestore.CollectionRef, email, excludeID string) error {
	iter := tx.Documents(coll.Where("email", "==", email).Limit(2))
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if snap.Ref.ID != excludeID {
			return repositories.ErrEmailInUse
		}
	}
}

func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	if r == nil || r.users == nil {
		return errors.New("user repository not initialised")
	}
	return r.users.Delete(ctx, userID, firestore.Exists)
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.users == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	doc, err := r.users.Get(ctx, userID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.User{}, repositories.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if r == nil || r.users == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	email = normaliseEmail(email)
	if email == "" {
		return domain.User{}, errors.New("user find by email: email is required")
	}

	docs, err := r.users.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("email", "==", email).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, repositories.ErrUserNotFound
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *UserRepository) List(ctx context.Context, pager domain.PageQuery) (domain.Page[domain.User], error) {
	if r == nil || r.users == nil {
		return domain.Page[domain.User]{}, errors.New("user repository not initialised")
	}

	page := pager.Page
	if page <= 0 {
		page = 1
	}
	limit := pager.Limit
	if limit <= 0 {
		limit = defaultUserPageSize
	}
	if limit > maxUserPageSize {
		limit = maxUserPageSize
	}

	total, err := r.users.Count(ctx, nil)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}

	docs, err := r.users.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			OrderBy("createdAt", firestore.Asc).
			Offset((page - 1) * limit).
			Limit(limit)
	})
	if err != nil {
		return domain.Page[domain.User]{}, err
	}

	items := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}

	return domain.Page[domain.User]{
		Items: items,
		Page:  page,
		Pages: pageCount(total, limit),
		Total: total,
	}, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role domain.UserRole) (int64, error) {
	if r == nil || r.users == nil {
		return 0, errors.New("user repository not initialised")
	}
	return r.users.Count(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("role", "==", string(role))
	})
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
