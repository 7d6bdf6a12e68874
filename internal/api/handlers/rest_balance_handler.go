package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RenukaPawar658/marketplace/internal/ledger"
	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/utils"
)

// RestBalanceHandler exposes read-only value ledger balances.
type RestBalanceHandler struct {
	values        ledger.ValueLedger
	tokenDecimals int32
}

func NewRestBalanceHandler(values ledger.ValueLedger, tokenDecimals int32) *RestBalanceHandler {
	return &RestBalanceHandler{values: values, tokenDecimals: tokenDecimals}
}

// GetBalance handles GET /v1/balance/:identity
func (h *RestBalanceHandler) GetBalance(c *gin.Context) {
	identity := models.NewAddress(c.Param("identity"))
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identity is required"})
		return
	}

	balance, err := h.values.BalanceOf(c.Request.Context(), identity)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity":        identity.String(),
		"balance":         balance.String(),
		"balance_display": utils.FormatTokenAmount(balance, h.tokenDecimals),
	})
}
