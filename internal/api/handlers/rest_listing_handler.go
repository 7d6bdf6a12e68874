package handlers

import (
	"errors"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RenukaPawar658/marketplace/internal/api/middleware"
	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/services"
	"github.com/RenukaPawar658/marketplace/internal/utils"
)

// ListingView is the wire representation of a listing.
type ListingView struct {
	ID            uint64    `json:"id"`
	AssetContract string    `json:"asset_contract"`
	AssetID       string    `json:"asset_id"`
	Seller        string    `json:"seller"`
	Price         string    `json:"price"`         // smallest units
	PriceDisplay  string    `json:"price_display"` // scaled by token decimals
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func newListingView(l *models.Listing, decimals int32) ListingView {
	price := "0"
	if l.Price != nil {
		price = l.Price.String()
	}
	return ListingView{
		ID:            l.ID,
		AssetContract: l.AssetContract.String(),
		AssetID:       l.AssetID,
		Seller:        l.Seller.String(),
		Price:         price,
		PriceDisplay:  utils.FormatTokenAmount(l.Price, decimals),
		Status:        string(l.Status),
		CreatedAt:     l.CreatedAt,
	}
}

// CreateListingRequest is the body of POST /v1/listing.
// Exactly one of Price (decimal token amount) and PriceRaw (smallest units) is expected.
type CreateListingRequest struct {
	AssetContract string `json:"asset_contract" binding:"required"`
	AssetID       string `json:"asset_id" binding:"required"`
	Price         string `json:"price"`
	PriceRaw      string `json:"price_raw"`
}

func (r CreateListingRequest) parsePrice(decimals int32) (*big.Int, error) {
	switch {
	case r.Price != "" && r.PriceRaw != "":
		return nil, errors.New("only one of price and price_raw may be set")
	case r.PriceRaw != "":
		return utils.ParseRawAmount(strings.TrimSpace(r.PriceRaw))
	case r.Price != "":
		return utils.ParseTokenAmount(strings.TrimSpace(r.Price), decimals)
	default:
		return nil, errors.New("price is required")
	}
}

// registryErrorStatus maps registry rejections onto HTTP statuses.
func registryErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrDuplicateListing):
		return http.StatusConflict, services.ErrDuplicateListing.Error()
	case errors.Is(err, services.ErrInvalidPrice):
		return http.StatusBadRequest, services.ErrInvalidPrice.Error()
	case errors.Is(err, services.ErrNotOwner):
		return http.StatusForbidden, services.ErrNotOwner.Error()
	case errors.Is(err, services.ErrNotApproved):
		return http.StatusForbidden, services.ErrNotApproved.Error()
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, services.ErrNotFound.Error()
	case errors.Is(err, services.ErrNotSeller):
		return http.StatusForbidden, services.ErrNotSeller.Error()
	default:
		return http.StatusInternalServerError, ""
	}
}

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	registry      services.IListingRegistry
	tokenDecimals int32
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(registry services.IListingRegistry, tokenDecimals int32) *RestListingHandler {
	return &RestListingHandler{
		registry:      registry,
		tokenDecimals: tokenDecimals,
	}
}

// GetListingByID handles GET /v1/listing/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	listing, err := h.registry.GetListing(c.Request.Context(), listingID)
	if err != nil {
		h.respondError(c, err, "Failed to retrieve listing")
		return
	}

	c.JSON(http.StatusOK, newListingView(listing, h.tokenDecimals))
}

// CreateListing handles POST /v1/listing for the authenticated seller.
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	caller, ok := middleware.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: asset_contract and asset_id are required"})
		return
	}
	price, err := req.parsePrice(h.tokenDecimals)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	listingID, err := h.registry.ListItem(ctx, caller, models.NewAddress(req.AssetContract), strings.TrimSpace(req.AssetID), price)
	if err != nil {
		log.Printf("Error creating listing for %s by %s: %v", req.AssetID, caller, err)
		h.respondError(c, err, "Failed to create listing")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"listing_id": listingID})
}

// DeleteListing handles DELETE /v1/listing/:id?asset_id=...
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	caller, ok := middleware.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	listingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}
	assetID := strings.TrimSpace(c.Query("asset_id"))
	if assetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_id query parameter is required"})
		return
	}

	if err := h.registry.UnlistItem(c.Request.Context(), assetID, listingID, caller); err != nil {
		log.Printf("Error removing listing %d for %s: %v", listingID, caller, err)
		h.respondError(c, err, "Failed to remove listing")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *RestListingHandler) respondError(c *gin.Context, err error, fallback string) {
	status, msg := registryErrorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = fallback
	}
	c.JSON(status, gin.H{"error": msg})
}
