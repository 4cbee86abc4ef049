package service

import (
	"context"
	"fmt"

	"github.com/klari-app/klari-server/internal/access"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
	"github.com/klari-app/klari-server/internal/recommend"
)

// RoutineBuilder fills a new routine from the type's template using the
// recommendation cascade.
type RoutineBuilder struct {
	routines  *Routine
	userStore model.UserStore
	matcher   recommend.Recommender
	logger    *logger.Logger
}

// NewRoutineBuilder creates a builder that fills routines from matcher results.
func NewRoutineBuilder(routines *Routine, userStore model.UserStore, matcher recommend.Recommender, logger *logger.Logger) *RoutineBuilder {
	return &RoutineBuilder{
		routines:  routines,
		userStore: userStore,
		matcher:   matcher,
		logger:    logger,
	}
}

// BuildInitial creates the user's active routine of the given type, taking the
// best match for every template category. Categories without a match are left
// out. The routine is stored once, after every slot was attempted.
func (b *RoutineBuilder) BuildInitial(ctx context.Context, caller, userID int64, routineType model.RoutineType) (model.Routine, error) {
	if err := access.AssertSelf(caller, userID); err != nil {
		return model.Routine{}, err
	}
	if err := b.routines.ensureNoActive(ctx, userID, routineType); err != nil {
		return model.Routine{}, err
	}

	user, err := b.userStore.GetByID(ctx, userID)
	if err != nil {
		return model.Routine{}, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	routine := model.Routine{OwnerID: userID, Type: routineType, Active: true}
	for _, category := range routineType.Template() {
		res, err := recommend.Top(ctx, b.matcher, recommend.Query{
			Category: category,
			Time:     routineType.ApplicationTime(),
			SkinType: user.SkinType,
			Goals:    user.Goals,
		}, 1)
		if err != nil {
			return model.Routine{}, fmt.Errorf("failed to match %s: %w", category, err)
		}
		if !res.Page.HasContent() {
			b.logger.Debug("RoutineBuilder: no product for slot",
				"user_id", userID,
				"category", category)
			continue
		}
		routine.PutProduct(res.Page.Content[0])
	}

	return b.routines.persist(ctx, routine)
}
