package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
)

type groupStore interface {
	ListByOrg(ctx context.Context, orgID int64) ([]models.Group, error)
	ListByIDs(ctx context.Context, orgID int64, ids []int64) ([]models.Group, error)
	Exists(ctx context.Context, orgID int64) (bool, error)
	VisibleGroupIDs(ctx context.Context, orgID int64, userID string) ([]int64, error)
	GrantRight(ctx context.Context, right *models.Right) error
	RevokeRight(ctx context.Context, orgID, groupID int64, userID string) error
	ListRights(ctx context.Context, orgID, groupID int64) ([]models.Right, error)
}

type visibilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GroupService resolves group hierarchies and manager visibility
// closures, caching the closure per manager.
type GroupService struct {
	repo    groupStore
	cache   visibilityCache
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// SetMetrics attaches cache hit/miss instrumentation. Optional.
func (s *GroupService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewGroupService builds a GroupService.
func NewGroupService(repo groupStore, cache visibilityCache, ttl time.Duration, logger *zap.Logger) *GroupService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func visibilityCacheKey(orgID int64, userID string) string {
	return fmt.Sprintf("biz:visible_groups:%d:%s", orgID, userID)
}

// List returns the groups the caller may see, ordered by group code. A
// restricted manager sees only the visible closure.
func (s *GroupService) List(ctx context.Context, scope models.RequestScope) ([]models.Group, error) {
	if scope.Restricted() {
		groups, err := s.repo.ListByIDs(ctx, scope.Org.ID, scope.VisibleGroupIDs)
		if err != nil {
			return nil, appErrors.ErrRetryLater
		}
		return groups, nil
	}
	groups, err := s.repo.ListByOrg(ctx, scope.Org.ID)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}
	return groups, nil
}

// ResolveVisibility computes the manager's visible group closure and
// whether the org has groups at all. Directors are unrestricted, so no
// closure is computed for them.
func (s *GroupService) ResolveVisibility(ctx context.Context, orgID int64, manager models.Manager) ([]int64, bool, error) {
	exists, err := s.repo.Exists(ctx, orgID)
	if err != nil {
		return nil, false, err
	}
	if !exists || manager.IsDirector() {
		return nil, exists, nil
	}

	key := visibilityCacheKey(orgID, manager.UserID)
	var ids []int64
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &ids); err == nil {
			s.metrics.RecordCacheOperation(true)
			return ids, true, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	ids, err = s.repo.VisibleGroupIDs(ctx, orgID, manager.UserID)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, ids, s.ttl); err != nil {
			s.logger.Warn("failed to cache visibility closure", zap.Error(err))
		}
	}
	return ids, true, nil
}

// GrantRight gives a manager visibility over a group subtree. Directors
// only; the cached closure for the org is invalidated.
func (s *GroupService) GrantRight(ctx context.Context, scope models.RequestScope, groupID int64, userID string) error {
	if !scope.Manager.IsDirector() {
		return appErrors.ErrForbidden
	}
	right := &models.Right{OrgID: scope.Org.ID, GroupID: groupID, UserID: userID}
	if err := s.repo.GrantRight(ctx, right); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant right")
	}
	s.invalidate(ctx, scope.Org.ID)
	return nil
}

// RevokeRight removes a manager's visibility grant.
func (s *GroupService) RevokeRight(ctx context.Context, scope models.RequestScope, groupID int64, userID string) error {
	if !scope.Manager.IsDirector() {
		return appErrors.ErrForbidden
	}
	if err := s.repo.RevokeRight(ctx, scope.Org.ID, groupID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke right")
	}
	s.invalidate(ctx, scope.Org.ID)
	return nil
}

// ListRights returns the visibility grants configured for a group.
func (s *GroupService) ListRights(ctx context.Context, scope models.RequestScope, groupID int64) ([]models.Right, error) {
	if !scope.Manager.IsDirector() {
		return nil, appErrors.ErrForbidden
	}
	rights, err := s.repo.ListRights(ctx, scope.Org.ID, groupID)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}
	return rights, nil
}

func (s *GroupService) invalidate(ctx context.Context, orgID int64) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("biz:visible_groups:%d:*", orgID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("failed to invalidate visibility cache", zap.Error(err))
	}
}
