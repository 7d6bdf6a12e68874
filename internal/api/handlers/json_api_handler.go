package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RenukaPawar658/marketplace/internal/auth"
	"github.com/RenukaPawar658/marketplace/internal/config"
	"github.com/RenukaPawar658/marketplace/internal/ledger"
	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/services"
	"github.com/RenukaPawar658/marketplace/internal/utils"
)

// Context key type for the caller identity
type authContextKey string

const callerKey authContextKey = "caller"

func getCallerFromContext(ctx context.Context) (models.Address, bool) {
	val, ok := ctx.Value(callerKey).(models.Address)
	return val, ok && val != ""
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    int         `json:"code,omitempty"` // HTTP-equivalent status of a failure
}

type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// ApiError is a failure reported inside a JSON API response.
type ApiError struct {
	Message string
	Code    int
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message, Code: http.StatusBadRequest}
}

func newRegistryApiError(err error, fallback string) *ApiError {
	status, msg := registryErrorStatus(err)
	if status == http.StatusInternalServerError {
		msg = fallback
	}
	return &ApiError{Message: msg, Code: status}
}

// JsonApiHandler serves the method-dispatch API on POST /v1/api.
type JsonApiHandler struct {
	cfg      *config.Config
	registry services.IListingRegistry
	values   ledger.ValueLedger
	methods  map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
func NewJsonApiHandler(cfg *config.Config, registry services.IListingRegistry, values ledger.ValueLedger) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:      cfg,
		registry: registry,
		values:   values,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":       h.ping,
		"getListing": h.getListing,
		"getBalance": h.getBalance,
		"listItem":   h.listItem,
		"unlistItem": h.unlistItem,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, NewApiError("Failed to read request body"))
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, NewApiError("Invalid JSON request format"))
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, &ApiError{Message: fmt.Sprintf("Unknown method: %s", req.Method), Code: http.StatusNotFound})
		return
	}

	if authErr := h.checkAuthForMethod(c, req.Method); authErr != nil {
		h.sendErrorResponse(c, authErr)
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr)
		return
	}

	h.sendSuccessResponse(c, result)
}

// checkAuthForMethod validates the bearer token of methods that act on behalf
// of a caller and stores the caller identity in c.Request.Context().
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	if !h.methodRequiresAuth(method) {
		return nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return &ApiError{Message: "Authorization header required", Code: http.StatusUnauthorized}
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return &ApiError{Message: "Authorization header format must be Bearer {token}", Code: http.StatusUnauthorized}
	}
	claims, err := auth.ValidateJWT(parts[1], h.cfg.JwtSecret)
	if err != nil {
		log.Printf("DEBUG: Token validation failed for method %s: %v", method, err)
		return &ApiError{Message: fmt.Sprintf("Invalid or expired token: %v", err), Code: http.StatusUnauthorized}
	}

	ctx := context.WithValue(c.Request.Context(), callerKey, models.NewAddress(claims.Identity))
	c.Request = c.Request.WithContext(ctx)
	return nil
}

func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	case "listItem", "unlistItem":
		return true
	default:
		return false
	}
}

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: data})
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, apiErr *ApiError) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: false, Error: apiErr.Message, Code: apiErr.Code})
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

// getListing expects [listing_id].
func (h *JsonApiHandler) getListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var listingID uint64
	if apiErr := parseRequiredSingleArgFromArray(args, &listingID); apiErr != nil {
		return nil, apiErr
	}
	listing, err := h.registry.GetListing(c.Request.Context(), listingID)
	if err != nil {
		return nil, newRegistryApiError(err, "Failed to retrieve listing")
	}
	return newListingView(listing, h.cfg.TokenDecimals), nil
}

// getBalance expects [identity].
func (h *JsonApiHandler) getBalance(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var identity string
	if apiErr := parseRequiredSingleArgFromArray(args, &identity); apiErr != nil {
		return nil, apiErr
	}
	owner := models.NewAddress(identity)
	if owner == "" {
		return nil, NewApiError("Identity is required")
	}
	balance, err := h.values.BalanceOf(c.Request.Context(), owner)
	if err != nil {
		log.Printf("Error reading balance of %s: %v", owner, err)
		return nil, &ApiError{Message: "Failed to retrieve balance", Code: http.StatusInternalServerError}
	}
	return gin.H{
		"identity":        owner.String(),
		"balance":         balance.String(),
		"balance_display": utils.FormatTokenAmount(balance, h.cfg.TokenDecimals),
	}, nil
}

// listItem expects [{asset_contract, asset_id, price | price_raw}].
func (h *JsonApiHandler) listItem(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	caller, ok := getCallerFromContext(c.Request.Context())
	if !ok {
		return nil, &ApiError{Message: "Authentication required", Code: http.StatusUnauthorized}
	}

	var req CreateListingRequest
	if apiErr := parseRequiredSingleArgFromArray(args, &req); apiErr != nil {
		return nil, apiErr
	}
	if strings.TrimSpace(req.AssetContract) == "" || strings.TrimSpace(req.AssetID) == "" {
		return nil, NewApiError("asset_contract and asset_id are required")
	}
	price, err := req.parsePrice(h.cfg.TokenDecimals)
	if err != nil {
		return nil, NewApiError(err.Error())
	}

	listingID, err := h.registry.ListItem(c.Request.Context(), caller, models.NewAddress(req.AssetContract), strings.TrimSpace(req.AssetID), price)
	if err != nil {
		log.Printf("Error creating listing for %s by %s: %v", req.AssetID, caller, err)
		return nil, newRegistryApiError(err, "Failed to create listing")
	}
	return gin.H{"listing_id": listingID}, nil
}

// UnlistItemArgs defines the arguments for the unlistItem method.
type UnlistItemArgs struct {
	ListingID uint64 `json:"listing_id"`
	AssetID   string `json:"asset_id"`
}

// unlistItem expects [{listing_id, asset_id}].
func (h *JsonApiHandler) unlistItem(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	caller, ok := getCallerFromContext(c.Request.Context())
	if !ok {
		return nil, &ApiError{Message: "Authentication required", Code: http.StatusUnauthorized}
	}

	var req UnlistItemArgs
	if apiErr := parseRequiredSingleArgFromArray(args, &req); apiErr != nil {
		return nil, apiErr
	}
	assetID := strings.TrimSpace(req.AssetID)
	if req.ListingID == 0 || assetID == "" {
		return nil, NewApiError("listing_id and asset_id are required")
	}

	if err := h.registry.UnlistItem(c.Request.Context(), assetID, req.ListingID, caller); err != nil {
		log.Printf("Error removing listing %d for %s: %v", req.ListingID, caller, err)
		return nil, newRegistryApiError(err, "Failed to remove listing")
	}
	return nil, nil
}

// parseRequiredSingleArgFromArray decodes the first element of a JSON array payload.
func parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}

	var argArray []json.RawMessage
	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}
	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}

	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}
