package principal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID identifies a principal. Valid ids are positive; zero means none.
type ID int64

// None is the zero ID.
const None ID = 0

// ErrPrincipalNotFound is returned when no principal has the requested id.
var ErrPrincipalNotFound = errors.New("principal not found")

// ParseID parses a decimal principal id. Empty or non-positive values are rejected.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None, fmt.Errorf("empty principal id")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return None, fmt.Errorf("invalid principal id %q: %w", s, err)
	}
	if n <= 0 {
		return None, fmt.Errorf("invalid principal id %q", s)
	}
	return ID(n), nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsNone reports whether id is the zero ID.
func (id ID) IsNone() bool {
	return id <= None
}

type Principal struct {
	ID          ID        `json:"id" yaml:"id"`
	Username    string    `json:"username" yaml:"username"`
	Email       string    `json:"email" yaml:"email"`
	DisplayName string    `json:"display_name,omitempty" yaml:"display_name"`
	Roles       []string  `json:"roles" yaml:"roles"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Repository looks up principals.
type Repository interface {
	GetByID(ctx context.Context, id ID) (Principal, error)
	List(ctx context.Context) ([]Principal, error)
	Save(ctx context.Context, p Principal) (Principal, error)
}

// Service wraps a Repository with the existence checks callers need.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the principal or ErrPrincipalNotFound.
func (s *Service) Get(ctx context.Context, id ID) (Principal, error) {
	if id.IsNone() {
		return Principal{}, ErrPrincipalNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Principal, error) {
	return s.repo.List(ctx)
}

// Seed stores every principal, keeping the first error.
func (s *Service) Seed(ctx context.Context, principals []Principal) error {
	for _, p := range principals {
		if p.ID.IsNone() || p.Username == "" {
			return fmt.Errorf("seed principal requires id and username: %+v", p)
		}
		if _, err := s.repo.Save(ctx, p); err != nil {
			return fmt.Errorf("failed to seed principal %d: %w", p.ID, err)
		}
	}
	return nil
}
