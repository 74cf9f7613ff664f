package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"brokergate/internal/domain"
	"brokergate/internal/platform"
)

const defaultHistoryWindow = 30 * 24 * time.Hour

func (r *Router) handleListPlatforms(c *gin.Context) {
	respondOK(c, r.registry.ListAvailable())
}

func (r *Router) handlePlatformHealth(c *gin.Context) {
	respondOK(c, r.registry.HealthSnapshot(c.Request.Context()))
}

// platformEnv parses the :platform path param plus the environment
// from query or body field.
func (r *Router) platformEnv(c *gin.Context, envValue string) (domain.Platform, domain.Environment, bool) {
	p, err := domain.ParsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, platform.Validationf("%v", err))
		return "", "", false
	}
	if envValue == "" {
		envValue = c.Query("environment")
	}
	env, err := domain.ParseEnvironment(envValue)
	if err != nil {
		respondError(c, platform.Validationf("%v", err))
		return "", "", false
	}
	return p, env, true
}

type connectRequest struct {
	Environment string             `json:"environment"`
	Credentials domain.Credentials `json:"credentials"`
}

func (r *Router) handleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, platform.Validationf("invalid request body: %v", err))
		return
	}
	p, env, ok := r.platformEnv(c, req.Environment)
	if !ok {
		return
	}
	adapter, err := r.registry.Resolve(c.Request.Context(), p, env)
	if err != nil {
		respondError(c, err)
		return
	}
	respondResult(c, adapter.Connect(c.Request.Context(), req.Credentials))
}

type disconnectRequest struct {
	Environment string `json:"environment"`
	AccountID   string `json:"accountId"`
}

func (r *Router) handleDisconnect(c *gin.Context) {
	var req disconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, platform.Validationf("invalid request body: %v", err))
		return
	}
	p, env, ok := r.platformEnv(c, req.Environment)
	if !ok {
		return
	}
	if err := r.registry.Disconnect(c.Request.Context(), p, env, req.AccountID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"disconnected": true})
}

func (r *Router) handleTestConnection(c *gin.Context) {
	var req connectRequest
	// Body is optional: testing an already-resolved session needs no
	// credentials.
	_ = c.ShouldBindJSON(&req)
	p, env, ok := r.platformEnv(c, req.Environment)
	if !ok {
		return
	}
	result, err := r.registry.TestConnection(c.Request.Context(), p, env)
	if err != nil {
		respondError(c, err)
		return
	}
	respondResult(c, result)
}

func (r *Router) handleAccounts(c *gin.Context) {
	p, env, ok := r.platformEnv(c, "")
	if !ok {
		return
	}
	adapter, err := r.registry.Resolve(c.Request.Context(), p, env)
	if err != nil {
		respondError(c, err)
		return
	}
	list, err := adapter.Accounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

func (r *Router) handleAccountInfo(c *gin.Context) {
	p, env, ok := r.platformEnv(c, "")
	if !ok {
		return
	}
	adapter, err := r.registry.Resolve(c.Request.Context(), p, env)
	if err != nil {
		respondError(c, err)
		return
	}
	account, err := adapter.AccountInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, account)
}

func (r *Router) handlePositions(c *gin.Context) {
	p, env, ok := r.platformEnv(c, "")
	if !ok {
		return
	}
	adapter, err := r.registry.Resolve(c.Request.Context(), p, env)
	if err != nil {
		respondError(c, err)
		return
	}
	positions, err := adapter.OpenPositions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, positions)
}

func (r *Router) handleTradeHistory(c *gin.Context) {
	p, env, ok := r.platformEnv(c, "")
	if !ok {
		return
	}
	from, to, err := parseTimeRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	adapter, err := r.registry.Resolve(c.Request.Context(), p, env)
	if err != nil {
		respondError(c, err)
		return
	}
	trades, err := adapter.TradeHistory(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	respondOK(c, trades)
}

// parseTimeRange reads RFC3339 bounds; to defaults to now and from to
// one window back. The range is inclusive on both ends.
func parseTimeRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	if toRaw != "" {
		parsed, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, platform.Validationf("invalid to timestamp %q", toRaw)
		}
		to = parsed.UTC()
	}
	from := to.Add(-defaultHistoryWindow)
	if fromRaw != "" {
		parsed, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, platform.Validationf("invalid from timestamp %q", fromRaw)
		}
		from = parsed.UTC()
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, platform.Validationf("time range is inverted: from %s is after to %s", from, to)
	}
	return from, to, nil
}
