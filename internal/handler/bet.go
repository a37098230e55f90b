package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"betledger/internal/auth"
	"betledger/internal/models"
	"betledger/internal/service"
)

type BetHandler struct {
	Betting *service.BettingService
	Stats   *service.StatsService
}

func (h *BetHandler) Register(r *gin.Engine, authMW gin.HandlerFunc) {
	g := r.Group("/api/bets", authMW)
	g.POST("", h.place)
	g.GET("", h.list)
	g.GET("/stats", h.stats)
	g.GET("/advanced-stats", h.advancedStats)
	g.GET("/dashboard-stats", h.dashboardStats)
	g.GET("/heatmap", h.heatmap)
	g.PATCH("/:id/settle", h.settle)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
}

type legDTO struct {
	Stake          *decimal.Decimal `json:"stake"`
	Odds           decimal.Decimal  `json:"odds"`
	OddsType       string           `json:"oddsType"`
	Sport          string           `json:"sport"`
	EventName      string           `json:"eventName"`
	EventDate      *time.Time       `json:"eventDate"`
	MarketType     string           `json:"marketType"`
	Selection      string           `json:"selection"`
	Line           string           `json:"line"`
	Bookmaker      string           `json:"bookmaker"`
	ExternalBetID  string           `json:"externalBetId"`
	ExternalSource string           `json:"externalSource"`
	Notes          string           `json:"notes"`
}

func (d legDTO) toLeg() service.LegRequest {
	return service.LegRequest{
		Stake:          d.Stake,
		Odds:           d.Odds,
		OddsType:       d.OddsType,
		Sport:          d.Sport,
		EventName:      d.EventName,
		EventDate:      d.EventDate,
		MarketType:     d.MarketType,
		Selection:      d.Selection,
		Line:           d.Line,
		Bookmaker:      d.Bookmaker,
		ExternalBetID:  d.ExternalBetID,
		ExternalSource: d.ExternalSource,
		Notes:          d.Notes,
	}
}

func (h *BetHandler) place(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	var body []legDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	legs := make([]service.LegRequest, 0, len(body))
	for _, d := range body {
		legs = append(legs, d.toLeg())
	}
	bets, err := h.Betting.PlaceBets(c.Request.Context(), legs, username)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, bets, nil)
}

func (h *BetHandler) list(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	bets, err := h.Betting.GetUserBets(c.Request.Context(), username)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, bets, map[string]any{"count": len(bets)})
}

func (h *BetHandler) stats(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	stats, err := h.Stats.Basic(c.Request.Context(), username)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, stats, nil)
}

func (h *BetHandler) advancedStats(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	stats, err := h.Stats.Advanced(c.Request.Context(), username)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, stats, nil)
}

func (h *BetHandler) dashboardStats(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	stats, err := h.Stats.Dashboard(c.Request.Context(), username)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, stats, nil)
}

func (h *BetHandler) heatmap(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	heatmap, err := h.Stats.Heatmap(c.Request.Context(), username)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, heatmap, nil)
}

type settleRequest struct {
	Status models.BetStatus `json:"status" binding:"required"`
}

func (h *BetHandler) settle(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	betID, ok := betIDParam(c)
	if !ok {
		return
	}
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	bet, err := h.Betting.SettleBet(c.Request.Context(), betID, req.Status, username)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, bet, nil)
}

type updateBetDTO struct {
	Sport      string           `json:"sport"`
	EventName  string           `json:"eventName"`
	EventDate  *time.Time       `json:"eventDate"`
	MarketType string           `json:"marketType"`
	Selection  string           `json:"selection"`
	Odds       decimal.Decimal  `json:"odds"`
	Bookmaker  string           `json:"bookmaker"`
	Stake      *decimal.Decimal `json:"stake"`
	Notes      string           `json:"notes"`
}

func (h *BetHandler) update(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	betID, ok := betIDParam(c)
	if !ok {
		return
	}
	var body updateBetDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	bet, err := h.Betting.UpdateBet(c.Request.Context(), betID, service.UpdateBetRequest{
		Sport:      body.Sport,
		EventName:  body.EventName,
		EventDate:  body.EventDate,
		MarketType: body.MarketType,
		Selection:  body.Selection,
		Odds:       body.Odds,
		Bookmaker:  body.Bookmaker,
		Stake:      body.Stake,
		Notes:      body.Notes,
	}, username)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, bet, nil)
}

func (h *BetHandler) remove(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	betID, ok := betIDParam(c)
	if !ok {
		return
	}
	if err := h.Betting.DeleteBet(c.Request.Context(), betID, username); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"deleted": betID}, nil)
}

func currentUsername(c *gin.Context) (string, bool) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated", nil)
		return "", false
	}
	return claims.Username, true
}

func betIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid bet id", nil)
		return 0, false
	}
	return id, true
}
