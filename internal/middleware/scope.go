package middleware

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/response"
)

// ContextScopeKey is the gin context key storing the resolved RequestScope.
const ContextScopeKey = "requestScope"

type scopeContractReader interface {
	FindByID(ctx context.Context, id int64) (*models.Contract, error)
}

type scopeOrgReader interface {
	FindByID(ctx context.Context, id int64) (*models.Organization, error)
}

type scopeManagerReader interface {
	FindManager(ctx context.Context, orgID int64, userID string) (*models.Manager, error)
}

type scopeVisibilityResolver interface {
	ResolveVisibility(ctx context.Context, orgID int64, manager models.Manager) ([]int64, bool, error)
}

// ScopeResolver builds the per-request contract scope from the URL and
// the caller's claims.
type ScopeResolver struct {
	contracts  scopeContractReader
	orgs       scopeOrgReader
	managers   scopeManagerReader
	visibility scopeVisibilityResolver
}

// NewScopeResolver wires the scope middleware dependencies.
func NewScopeResolver(
	contracts scopeContractReader,
	orgs scopeOrgReader,
	managers scopeManagerReader,
	visibility scopeVisibilityResolver,
) *ScopeResolver {
	return &ScopeResolver{contracts: contracts, orgs: orgs, managers: managers, visibility: visibility}
}

// OrgScope resolves a RequestScope from the caller's claims alone, for
// org-level routes that carry no contract in the URL. The scope's
// Contract stays zero; task submission keys off the org code instead.
func (r *ScopeResolver) OrgScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		org, err := r.orgs.FindByID(ctx, claims.OrgID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "organization not found"))
			} else {
				response.Error(c, appErrors.ErrRetryLater)
			}
			c.Abort()
			return
		}

		manager, err := r.managers.FindManager(ctx, org.ID, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no manager assignment for this organization"))
			} else {
				response.Error(c, appErrors.ErrRetryLater)
			}
			c.Abort()
			return
		}

		visible, groupsExist, err := r.visibility.ResolveVisibility(ctx, org.ID, *manager)
		if err != nil {
			response.Error(c, appErrors.ErrRetryLater)
			c.Abort()
			return
		}

		c.Set(ContextScopeKey, models.RequestScope{
			Org:             *org,
			Manager:         *manager,
			VisibleGroupIDs: visible,
			GroupsExist:     groupsExist,
		})
		c.Next()
	}
}

// ContractScope resolves the :contract route param into a RequestScope.
// It rejects callers without a manager assignment in the contract's
// organization and contracts outside their active window.
func (r *ScopeResolver) ContractScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		contractID, err := strconv.ParseInt(c.Param("contract"), 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid contract id"))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		contract, err := r.contracts.FindByID(ctx, contractID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "contract not found"))
			} else {
				response.Error(c, appErrors.ErrRetryLater)
			}
			c.Abort()
			return
		}

		now := time.Now()
		if !contract.Enabled || now.Before(contract.StartDate) || now.After(contract.EndDate.AddDate(0, 0, 1)) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "contract is not active"))
			c.Abort()
			return
		}

		org, err := r.orgs.FindByID(ctx, contract.ContractorOrgID)
		if err != nil {
			response.Error(c, appErrors.ErrRetryLater)
			c.Abort()
			return
		}

		manager, err := r.managers.FindManager(ctx, org.ID, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no manager assignment for this organization"))
			} else {
				response.Error(c, appErrors.ErrRetryLater)
			}
			c.Abort()
			return
		}

		visible, groupsExist, err := r.visibility.ResolveVisibility(ctx, org.ID, *manager)
		if err != nil {
			response.Error(c, appErrors.ErrRetryLater)
			c.Abort()
			return
		}

		c.Set(ContextScopeKey, models.RequestScope{
			Org:             *org,
			Contract:        *contract,
			Manager:         *manager,
			VisibleGroupIDs: visible,
			GroupsExist:     groupsExist,
		})
		c.Next()
	}
}
