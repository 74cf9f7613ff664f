package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"brokergate/internal/domain"
	"brokergate/internal/platform"
	"brokergate/internal/registry"
	"brokergate/internal/store/accounts"
)

// Router mounts the platform, provider and linked-account routes.
type Router struct {
	registry *registry.Registry
	accounts *accounts.Store
}

// NewRouter builds the API router. The account store may be nil when
// persistence is disabled.
func NewRouter(reg *registry.Registry, store *accounts.Store) *Router {
	return &Router{registry: reg, accounts: store}
}

// Register mounts every route under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/platforms", r.handleListPlatforms)
	group.GET("/platforms/health", r.handlePlatformHealth)
	group.POST("/platforms/:platform/connect", r.handleConnect)
	group.POST("/platforms/:platform/disconnect", r.handleDisconnect)
	group.POST("/platforms/:platform/test", r.handleTestConnection)
	group.GET("/platforms/:platform/accounts", r.handleAccounts)
	group.GET("/platforms/:platform/accounts/:id", r.handleAccountInfo)
	group.GET("/platforms/:platform/accounts/:id/positions", r.handlePositions)
	group.GET("/platforms/:platform/accounts/:id/trades", r.handleTradeHistory)

	group.GET("/providers", r.handleListProviders)
	group.GET("/providers/:name", r.handleProviderInfo)
	group.GET("/providers/:name/symbols", r.handleProviderSymbols)
	group.GET("/providers/:name/test", r.handleProviderTest)
	group.GET("/providers/:name/bars", r.handleProviderBars)

	if r.accounts != nil {
		group.GET("/accounts", r.handleListLinked)
		group.POST("/accounts", r.handleLinkAccount)
		group.DELETE("/accounts/:id", r.handleUnlinkAccount)
	}
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// respondError maps the error taxonomy onto the boundary contract:
// 400 for caller mistakes, 401 for auth/ordering, 500 for everything
// upstream. The message is always safe to show a user.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, platform.ErrValidation):
		respondMessage(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, platform.ErrAuth), errors.Is(err, platform.ErrNotAuthenticated):
		respondMessage(c, http.StatusUnauthorized, err.Error())
	default:
		respondMessage(c, http.StatusInternalServerError, err.Error())
	}
}

// respondResult translates a ConnectionResult: expected failures carry
// their classification in Err.
func respondResult(c *gin.Context, result domain.ConnectionResult) {
	if result.Success {
		respondOK(c, result)
		return
	}
	if result.Err != nil {
		respondError(c, result.Err)
		return
	}
	respondMessage(c, http.StatusInternalServerError, result.Message)
}
