package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"

	"brokergate/internal/domain"
	"brokergate/internal/platform"
)

func (r *Router) handleListProviders(c *gin.Context) {
	respondOK(c, r.registry.ListProviders())
}

func (r *Router) handleProviderInfo(c *gin.Context) {
	info, err := r.registry.ProviderInfo(providerName(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, info)
}

func (r *Router) handleProviderSymbols(c *gin.Context) {
	symbols, err := r.registry.Symbols(c.Request.Context(), providerName(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	respondOK(c, symbols)
}

func (r *Router) handleProviderTest(c *gin.Context) {
	result, err := r.registry.TestProvider(c.Request.Context(), providerName(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondResult(c, result)
}

func (r *Router) handleProviderBars(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		respondError(c, platform.Validationf("symbol query parameter is required"))
		return
	}
	tf, err := domain.ParseTimeframe(c.DefaultQuery("timeframe", string(domain.TimeframeH1)))
	if err != nil {
		respondError(c, platform.Validationf("%v", err))
		return
	}
	from, to, err := parseTimeRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	bars, err := r.registry.Bars(c.Request.Context(), providerName(c), symbol, tf, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	if bars == nil {
		bars = []domain.Bar{}
	}
	respondOK(c, bars)
}

func providerName(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("name")))
}
