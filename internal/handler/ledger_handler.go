package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/pkg/response"
)

type ledgerSettingsService interface {
	Snapshot() models.LedgerSettings
	SetAuthorityContract(ctx context.Context, address models.Principal) error
	SetPlatformFee(ctx context.Context, amount int64) error
}

// SetAuthorityRequest names the write-once authority address.
type SetAuthorityRequest struct {
	Address models.Principal `json:"address"`
}

// AmountRequest carries a single integer setting.
type AmountRequest struct {
	Amount *int64 `json:"amount"`
}

// LedgerHandler exposes ledger governance endpoints.
type LedgerHandler struct {
	settings ledgerSettingsService
}

// NewLedgerHandler constructs LedgerHandler.
func NewLedgerHandler(settings ledgerSettingsService) *LedgerHandler {
	return &LedgerHandler{settings: settings}
}

// Settings godoc
// @Summary Current ledger settings
// @Tags Ledger
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ledger/settings [get]
func (h *LedgerHandler) Settings(c *gin.Context) {
	response.OK(c, h.settings.Snapshot())
}

// SetAuthority godoc
// @Summary Set the authority contract address once
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body SetAuthorityRequest true "Authority address"
// @Success 200 {object} response.Envelope
// @Router /ledger/authority [post]
func (h *LedgerHandler) SetAuthority(c *gin.Context) {
	if _, err := callerFromContext(c); err != nil {
		response.Error(c, err)
		return
	}
	var req SetAuthorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	if err := h.settings.SetAuthorityContract(c.Request.Context(), req.Address); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.settings.Snapshot())
}

// SetPlatformFee godoc
// @Summary Change the platform fee charged on enrollment
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body AmountRequest true "Fee amount"
// @Success 200 {object} response.Envelope
// @Router /ledger/platform-fee [put]
func (h *LedgerHandler) SetPlatformFee(c *gin.Context) {
	if _, err := callerFromContext(c); err != nil {
		response.Error(c, err)
		return
	}
	amount, err := bindAmount(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.settings.SetPlatformFee(c.Request.Context(), amount); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.settings.Snapshot())
}

func bindAmount(c *gin.Context) (int64, error) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return 0, invalidPayload(err)
	}
	if req.Amount == nil {
		return 0, invalidPayload(errAmountRequired)
	}
	return *req.Amount, nil
}
