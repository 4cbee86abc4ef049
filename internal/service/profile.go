package service

import (
	"context"
	"fmt"

	"github.com/klari-app/klari-server/internal/access"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// Profile exposes a user's skin profile and product collections. Every
// operation is restricted to the user themselves.
type Profile struct {
	userStore    model.UserStore
	productStore model.ProductStore
	logger       *logger.Logger
}

// NewProfile creates the profile service.
func NewProfile(userStore model.UserStore, productStore model.ProductStore, logger *logger.Logger) *Profile {
	return &Profile{
		userStore:    userStore,
		productStore: productStore,
		logger:       logger,
	}
}

// Get returns the user's skin profile.
func (s *Profile) Get(ctx context.Context, caller, userID int64) (model.Profile, error) {
	if err := access.AssertSelf(caller, userID); err != nil {
		return model.Profile{}, err
	}

	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user.Profile(), nil
}

func (s *Profile) SetSkinType(ctx context.Context, caller, userID int64, skinType model.SkinType) (model.Profile, error) {
	if err := access.AssertSelf(caller, userID); err != nil {
		return model.Profile{}, err
	}

	if err := s.userStore.SetSkinType(ctx, userID, skinType); err != nil {
		return model.Profile{}, fmt.Errorf("failed to set skin type: %w", err)
	}

	s.logger.Info("Profile service: skin type updated",
		"user_id", userID,
		"skin_type", skinType)

	return s.Get(ctx, caller, userID)
}

func (s *Profile) AddGoal(ctx context.Context, caller, userID int64, goal model.Goal) (model.Profile, error) {
	if err := access.AssertSelf(caller, userID); err != nil {
		return model.Profile{}, err
	}

	if err := s.userStore.AddGoal(ctx, userID, goal); err != nil {
		return model.Profile{}, fmt.Errorf("failed to add goal: %w", err)
	}
	return s.Get(ctx, caller, userID)
}

// RemoveGoal fails with ErrInvalidInput when goal is the user's last one.
func (s *Profile) RemoveGoal(ctx context.Context, caller, userID int64, goal model.Goal) (model.Profile, error) {
	if err := access.AssertSelf(caller, userID); err != nil {
		return model.Profile{}, err
	}

	if err := s.userStore.RemoveGoal(ctx, userID, goal); err != nil {
		return model.Profile{}, fmt.Errorf("failed to remove goal: %w", err)
	}
	return s.Get(ctx, caller, userID)
}

// AddToCollection files the product under collection. The product must exist.
func (s *Profile) AddToCollection(ctx context.Context, caller, userID int64, collection model.Collection, productID int64) error {
	if err := access.AssertSelf(caller, userID); err != nil {
		return err
	}

	if _, err := s.productStore.GetSummaryByID(ctx, productID); err != nil {
		return fmt.Errorf("failed to get product %d: %w", productID, err)
	}
	if err := s.userStore.AddToCollection(ctx, userID, collection, productID); err != nil {
		return fmt.Errorf("failed to add product to %s: %w", collection, err)
	}

	s.logger.Info("Profile service: product added to collection",
		"user_id", userID,
		"collection", collection,
		"product_id", productID)
	return nil
}

func (s *Profile) RemoveFromCollection(ctx context.Context, caller, userID int64, collection model.Collection, productID int64) error {
	if err := access.AssertSelf(caller, userID); err != nil {
		return err
	}

	if err := s.userStore.RemoveFromCollection(ctx, userID, collection, productID); err != nil {
		return fmt.Errorf("failed to remove product from %s: %w", collection, err)
	}
	return nil
}

func (s *Profile) InCollection(ctx context.Context, caller, userID int64, collection model.Collection, productID int64) (bool, error) {
	if err := access.AssertSelf(caller, userID); err != nil {
		return false, err
	}

	in, err := s.userStore.InCollection(ctx, userID, collection, productID)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", collection, err)
	}
	return in, nil
}

// ListCollection pages through a collection, optionally narrowed to category.
func (s *Profile) ListCollection(ctx context.Context, caller, userID int64, collection model.Collection, category *model.Category, page model.PageRequest) (model.Page[model.ProductSummary], error) {
	if err := access.AssertSelf(caller, userID); err != nil {
		return model.Page[model.ProductSummary]{}, err
	}

	products, err := s.userStore.ListCollection(ctx, userID, collection, category, page)
	if err != nil {
		return model.Page[model.ProductSummary]{}, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return products, nil
}
