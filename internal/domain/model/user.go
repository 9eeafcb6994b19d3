package model

import (
	"time"

	"telegram-max-bridge/internal/domain"

	"github.com/google/uuid"
)

// User is a registered tenant. It owns source connections, destination
// channels and links, and carries per-tenant limit overrides.
// A zero override (ConnectionsLimit/DailyPostsLimit == 0) means
// "use the system default" from config.
type User struct {
	ID               string
	Email            string
	ConnectionsLimit int
	DailyPostsLimit  int
	CreatedAt        time.Time
}

func NewUser(id, email string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:        id,
		Email:     email,
		CreatedAt: time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
