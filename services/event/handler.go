package event

import (
	"encoding/json"
	"net/http"

	"communityhub-engine/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *gin.Engine) {
	v1 := r.Group("/v1")
	v1.POST("/events", h.createEvent)
	v1.POST("/event-logs", h.logEvent)
}

type createEventRequest struct {
	Tag         string `json:"tag" binding:"required"`
	CommunityID string `json:"community_id" binding:"required"`
	CreatedByID string `json:"created_by_id"`
}

type eventResponse struct {
	ID          string `json:"id"`
	Tag         string `json:"tag"`
	CommunityID string `json:"community_id"`
}

func (h *Handler) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.ValidationFailed(err.Error()))
		return
	}

	communityID, err := snowflake.ParseString(req.CommunityID)
	if err != nil {
		c.Error(errutil.BadRequest("invalid community_id"))
		return
	}
	createdByID, _ := snowflake.ParseString(req.CreatedByID)

	evt, err := h.svc.CreateEvent(c.Request.Context(), CreateEventParams{
		Tag:         req.Tag,
		CommunityID: communityID,
		CreatedByID: createdByID,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, eventResponse{
		ID:          evt.ID.String(),
		Tag:         evt.Tag,
		CommunityID: evt.CommunityID.String(),
	})
}

type logEventRequest struct {
	EventID  string         `json:"event_id" binding:"required"`
	UserID   string         `json:"user_id" binding:"required"`
	Value    float64        `json:"value"`
	Metadata map[string]any `json:"metadata"`
}

type eventLogResponse struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

func (h *Handler) logEvent(c *gin.Context) {
	var req logEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.ValidationFailed(err.Error()))
		return
	}

	eventID, err := snowflake.ParseString(req.EventID)
	if err != nil {
		c.Error(errutil.BadRequest("invalid event_id"))
		return
	}
	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		c.Error(errutil.BadRequest("invalid user_id"))
		return
	}

	var metadata datatypes.JSON
	if req.Metadata != nil {
		b, _ := json.Marshal(req.Metadata)
		metadata = datatypes.JSON(b)
	}

	log, err := h.svc.LogEvent(c.Request.Context(), LogEventParams{
		EventID:  eventID,
		UserID:   userID,
		Value:    req.Value,
		Metadata: metadata,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, eventLogResponse{
		ID:      log.ID.String(),
		EventID: log.EventID.String(),
		UserID:  log.UserID.String(),
	})
}
