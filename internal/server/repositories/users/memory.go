package users

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps identities in process memory. It is meant for
// development and tests; nothing survives a restart.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*models.User
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[string]*models.User),
		now:  time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique("", u.Username, u.Email); err != nil {
		return nil, err
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := r.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	stored := *u
	r.byID[u.ID] = &stored
	return u, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *MemoryRepository) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if (username != "" && strings.EqualFold(u.Username, username)) ||
			(email != "" && strings.EqualFold(u.Email, email)) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	_, err := r.update(id, func(u *models.User) error {
		u.PasswordHash = hash
		return nil
	})
	return err
}

func (r *MemoryRepository) UpdateAccountDetails(_ context.Context, id, fullName, email string) (*models.User, error) {
	return r.update(id, func(u *models.User) error {
		if email != "" {
			if err := r.checkUnique(id, "", email); err != nil {
				return err
			}
			u.Email = email
		}
		if fullName != "" {
			u.FullName = fullName
		}
		return nil
	})
}

func (r *MemoryRepository) UpdateAvatar(_ context.Context, id, url string) (*models.User, error) {
	return r.update(id, func(u *models.User) error {
		u.Avatar = url
		return nil
	})
}

func (r *MemoryRepository) UpdateCoverImage(_ context.Context, id, url string) (*models.User, error) {
	return r.update(id, func(u *models.User) error {
		u.CoverImage = url
		return nil
	})
}

func (r *MemoryRepository) update(id string, fn func(u *models.User) error) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	next := *u
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = r.now().UTC()
	r.byID[id] = &next

	c := next
	return &c, nil
}

// checkUnique must be called with mu held.
func (r *MemoryRepository) checkUnique(selfID, username, email string) error {
	for id, u := range r.byID {
		if id == selfID {
			continue
		}
		if username != "" && strings.EqualFold(u.Username, username) {
			return fmt.Errorf("%w: username is already taken", common.ErrConflict)
		}
		if email != "" && strings.EqualFold(u.Email, email) {
			return fmt.Errorf("%w: email is already taken", common.ErrConflict)
		}
	}
	return nil
}
