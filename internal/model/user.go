package model

import (
	"context"
	"time"
)

// UserStore defines persistence operations for users and their profile aggregate.
// Every set-valued mutation is applied atomically by the store.
type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	SetSkinType(ctx context.Context, id int64, skinType SkinType) error
	AddGoal(ctx context.Context, id int64, goal Goal) error
	// RemoveGoal fails with ErrInvalidInput when goal is the user's last goal.
	RemoveGoal(ctx context.Context, id int64, goal Goal) error
	AddToCollection(ctx context.Context, id int64, collection Collection, productID int64) error
	RemoveFromCollection(ctx context.Context, id int64, collection Collection, productID int64) error
	InCollection(ctx context.Context, id int64, collection Collection, productID int64) (bool, error)
	ListCollection(ctx context.Context, id int64, collection Collection, category *Category, page PageRequest) (Page[ProductSummary], error)
}

// User represents a stored user with authentication material and skin profile.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	SkinType     SkinType
	Goals        []Goal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile returns the public profile of the user.
func (u User) Profile() Profile {
	goals := u.Goals
	if goals == nil {
		goals = []Goal{}
	}
	return Profile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		SkinType: u.SkinType,
		Goals:    goals,
	}
}

// Profile is the matching-relevant, non-secret view of a user.
type Profile struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	SkinType SkinType `json:"skinType"`
	Goals    []Goal   `json:"goals"`
}

// Collection names a user-owned set of product references.
type Collection string

const (
	CollectionFavorites Collection = "favorites"
	CollectionInventory Collection = "inventory"
)
