package wallet

import (
	"net/http"

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
	v1.GET("/wallets/:id", h.getWallet)
	v1.GET("/wallets/:id/transactions", h.listTransactions)
	v1.POST("/wallets/:id/credits", h.grantCredits)
}

type walletResponse struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	CommunityID string `json:"community_id,omitempty"`
	Token       string `json:"token"`
	Balance     int64  `json:"balance"`
}

func toWalletResponse(w *Wallet) walletResponse {
	resp := walletResponse{
		ID:      w.ID.String(),
		OwnerID: w.OwnerID.String(),
		Token:   w.Token,
		Balance: w.Balance,
	}
	if w.CommunityID != nil {
		resp.CommunityID = w.CommunityID.String()
	}
	return resp
}

func (h *Handler) getWallet(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid wallet id"))
		return
	}

	w, err := h.svc.GetWallet(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toWalletResponse(w))
}

type transactionResponse struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	ReceiverID  string `json:"receiver_id"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) listTransactions(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid wallet id"))
		return
	}

	txns, err := h.svc.ListTransactions(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionResponse{
			ID:          t.ID.String(),
			Code:        t.Code,
			ReceiverID:  t.ReceiverID.String(),
			Amount:      t.Amount,
			Type:        string(t.Type),
			Subtype:     string(t.Subtype),
			Description: t.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}

type grantRequest struct {
	CommunityID string `json:"community_id" binding:"required"`
	SenderID    string `json:"sender_id"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description"`
}

func (h *Handler) grantCredits(c *gin.Context) {
	walletID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid wallet id"))
		return
	}

	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.ValidationFailed(err.Error()))
		return
	}

	communityID, err := snowflake.ParseString(req.CommunityID)
	if err != nil {
		c.Error(errutil.BadRequest("invalid community_id"))
		return
	}

	var senderID *snowflake.ID
	if req.SenderID != "" {
		id, err := snowflake.ParseString(req.SenderID)
		if err != nil {
			c.Error(errutil.BadRequest("invalid sender_id"))
			return
		}
		senderID = &id
	}

	txn, err := h.svc.GrantCommunityPoints(c.Request.Context(), GrantParams{
		WalletID:    walletID,
		CommunityID: communityID,
		SenderID:    senderID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, transactionResponse{
		ID:          txn.ID.String(),
		Code:        txn.Code,
		ReceiverID:  txn.ReceiverID.String(),
		Amount:      txn.Amount,
		Type:        string(txn.Type),
		Subtype:     string(txn.Subtype),
		Description: txn.Description,
	})
}
