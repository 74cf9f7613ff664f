package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"brokergate/internal/domain"
	"brokergate/internal/platform"
	"brokergate/internal/store/accounts"
)

func (r *Router) handleListLinked(c *gin.Context) {
	list, err := r.accounts.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []accounts.LinkedAccount{}
	}
	respondOK(c, list)
}

type linkAccountRequest struct {
	AccountID   string `json:"accountId"`
	Platform    string `json:"platform"`
	Environment string `json:"environment"`
	Name        string `json:"name"`
	Server      string `json:"server"`
	Currency    string `json:"currency"`
}

func (r *Router) handleLinkAccount(c *gin.Context) {
	var req linkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, platform.Validationf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.AccountID) == "" {
		respondError(c, platform.Validationf("accountId is required"))
		return
	}
	p, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		respondError(c, platform.Validationf("%v", err))
		return
	}
	env, err := domain.ParseEnvironment(req.Environment)
	if err != nil {
		respondError(c, platform.Validationf("%v", err))
		return
	}
	now := time.Now().UTC()
	acc := accounts.LinkedAccount{
		AccountID:   req.AccountID,
		Platform:    string(p),
		Environment: string(env),
		Name:        req.Name,
		Server:      req.Server,
		Currency:    req.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.accounts.Upsert(c.Request.Context(), acc); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, acc)
}

func (r *Router) handleUnlinkAccount(c *gin.Context) {
	if err := r.accounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}
