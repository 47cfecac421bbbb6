package achievement

import (
	"net/http"
	"time"

	"communityhub-engine/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *gin.Engine) {
	v1 := r.Group("/v1")
	v1.POST("/achievements/:id/rewards", h.issueReward)
	v1.POST("/rewards/:id/claim", h.claimReward)
	v1.GET("/users/:id/rewards", h.listUserRewards)
}

type rewardResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	AchievementID string     `json:"achievement_id"`
	EventLogID    string     `json:"event_log_id,omitempty"`
	WalletID      string     `json:"wallet_id,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toRewardResponse(r *AchievementReward) rewardResponse {
	resp := rewardResponse{
		ID:            r.ID.String(),
		UserID:        r.UserID.String(),
		AchievementID: r.AchievementID.String(),
		ClaimedAt:     r.ClaimedAt,
		CreatedAt:     r.CreatedAt,
	}
	if r.EventLogID != nil {
		resp.EventLogID = r.EventLogID.String()
	}
	if r.WalletID != nil {
		resp.WalletID = r.WalletID.String()
	}
	return resp
}

type issueRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	WalletID string `json:"wallet_id"`
}

func (h *Handler) issueReward(c *gin.Context) {
	achievementID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid achievement id"))
		return
	}

	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.ValidationFailed(err.Error()))
		return
	}

	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		c.Error(errutil.BadRequest("invalid user_id"))
		return
	}

	var walletID *snowflake.ID
	if req.WalletID != "" {
		id, err := snowflake.ParseString(req.WalletID)
		if err != nil {
			c.Error(errutil.BadRequest("invalid wallet_id"))
			return
		}
		walletID = &id
	}

	reward, err := h.svc.IssueByID(c.Request.Context(), userID, achievementID, walletID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, toRewardResponse(reward))
}

type claimRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	WalletID string `json:"wallet_id" binding:"required"`
}

func (h *Handler) claimReward(c *gin.Context) {
	rewardID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid reward id"))
		return
	}

	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.ValidationFailed(err.Error()))
		return
	}

	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		c.Error(errutil.BadRequest("invalid user_id"))
		return
	}
	walletID, err := snowflake.ParseString(req.WalletID)
	if err != nil {
		c.Error(errutil.BadRequest("invalid wallet_id"))
		return
	}

	reward, err := h.svc.Claim(c.Request.Context(), ClaimParams{
		UserID:   userID,
		RewardID: rewardID,
		WalletID: walletID,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toRewardResponse(reward))
}

func (h *Handler) listUserRewards(c *gin.Context) {
	userID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid user id"))
		return
	}

	rewards, err := h.svc.ListUserRewards(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]rewardResponse, 0, len(rewards))
	for i := range rewards {
		out = append(out, toRewardResponse(&rewards[i]))
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}
