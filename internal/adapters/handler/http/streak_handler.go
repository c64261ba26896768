package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-streak/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
	"github.com/comitanigiacomo/kanso-streak/internal/core/services"
)

type StreakHandler struct {
	service *services.StreakService
}

func NewStreakHandler(service *services.StreakService) *StreakHandler {
	return &StreakHandler{service: service}
}

type streakUserResponse struct {
	Username        string     `json:"username"`
	JoinedAt        time.Time  `json:"joined_at"`
	Streak          int        `json:"streak"`
	LastLogin       *time.Time `json:"last_login"`
	StreakClaimedOn *time.Time `json:"streak_claimed_on"`
}

type claimResponse struct {
	Outcome domain.Outcome `json:"outcome"`
	Message string         `json:"message"`
	streakUserResponse
}

type statusResponse struct {
	User        streakUserResponse `json:"user"`
	NextOutcome domain.Outcome     `json:"next_outcome"`
	Claimable   bool               `json:"claimable"`
	AtRisk      bool               `json:"at_risk"`
	EvaluatedAt time.Time          `json:"evaluated_at"`
}

type leaderboardResponse struct {
	Entries []domain.LeaderboardEntry `json:"entries"`
}

func toStreakUser(u *domain.User) streakUserResponse {
	return streakUserResponse{
		Username:        u.Username,
		JoinedAt:        u.JoinedAt,
		Streak:          u.Streak,
		LastLogin:       u.LastLogin,
		StreakClaimedOn: u.StreakClaimedOn,
	}
}

// Claim godoc
// @Summary      Claim today's streak
// @Description  Evaluates the caller's streak and claims it if not yet claimed today.
// @Tags         streak
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  claimResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /streak/claim [post]
func (h *StreakHandler) Claim(c *gin.Context) {
	username, ok := middleware.GetUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	res, err := h.service.Claim(c.Request.Context(), username)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, claimResponse{
		Outcome:            res.Outcome,
		Message:            res.Outcome.Message(),
		streakUserResponse: toStreakUser(res.User),
	})
}

// Status godoc
// @Summary      Preview the caller's streak
// @Tags         streak
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  statusResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /streak [get]
func (h *StreakHandler) Status(c *gin.Context) {
	username, ok := middleware.GetUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	st, err := h.service.Status(c.Request.Context(), username)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, statusResponse{
		User:        toStreakUser(st.User),
		NextOutcome: st.NextOutcome,
		Claimable:   st.Claimable,
		AtRisk:      st.AtRisk,
		EvaluatedAt: st.EvaluatedAt,
	})
}

// Leaderboard godoc
// @Summary      Top streaks
// @Tags         streak
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Number of entries (1-100)"
// @Success      200    {object}  leaderboardResponse
// @Failure      400    {object}  errorResponse
// @Router       /leaderboard [get]
func (h *StreakHandler) Leaderboard(c *gin.Context) {
	limit := services.DefaultLeaderboardSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := h.service.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	c.JSON(http.StatusOK, leaderboardResponse{Entries: entries})
}

func (h *StreakHandler) RegisterRoutes(router *gin.RouterGroup) {
	streak := router.Group("/streak")
	{
		streak.POST("/claim", h.Claim)
		streak.GET("", h.Status)
	}
	router.GET("/leaderboard", h.Leaderboard)
}
