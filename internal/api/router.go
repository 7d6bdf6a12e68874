package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RenukaPawar658/marketplace/internal/api/handlers"
	"github.com/RenukaPawar658/marketplace/internal/api/middleware"
	"github.com/RenukaPawar658/marketplace/internal/auth"
	"github.com/RenukaPawar658/marketplace/internal/config"
	"github.com/RenukaPawar658/marketplace/internal/ledger"
	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/services"
	"github.com/RenukaPawar658/marketplace/internal/utils"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, registry services.IListingRegistry, values ledger.ValueLedger, rateLimiter *middleware.RateLimiterMiddleware) *gin.Engine {
	r := gin.Default()

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	if rateLimiter != nil {
		r.Use(rateLimiter.Limit())
	}

	jsonApiHandler := handlers.NewJsonApiHandler(cfg, registry, values)
	restListingHandler := handlers.NewRestListingHandler(registry, cfg.TokenDecimals)
	restBalanceHandler := handlers.NewRestBalanceHandler(values, cfg.TokenDecimals)

	v1 := r.Group("/v1")
	{
		v1.POST("/api", jsonApiHandler.HandleRequest)
		v1.GET("/listing/:id", restListingHandler.GetListingByID)
		v1.GET("/balance/:identity", restBalanceHandler.GetBalance)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/listing", restListingHandler.CreateListing)
			authRequired.DELETE("/listing/:id", restListingHandler.DeleteListing)
		}
	}

	return r
}

// Sandbox holds the in-process ledgers the service API seeds. Both are nil when
// the registry runs against external ledgers.
type Sandbox struct {
	Assets *ledger.MemoryAssetLedger
	Values *ledger.MemoryValueLedger
}

// SetupServiceRouter configures and returns the service Gin engine.
func SetupServiceRouter(cfg *config.Config, sandbox Sandbox, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}

		case "mintAsset":
			args, ok := stringArgs(c, req.Arguments, 3, "[contract, assetID, owner]")
			if !ok || !requireSandbox(c, sandbox.Assets != nil) {
				return
			}
			if err := sandbox.Assets.Mint(models.NewAddress(args[0]), strings.TrimSpace(args[1]), models.NewAddress(args[2])); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true})

		case "approveAsset":
			args, ok := stringArgs(c, req.Arguments, 4, "[contract, assetID, owner, operator]")
			if !ok || !requireSandbox(c, sandbox.Assets != nil) {
				return
			}
			if err := sandbox.Assets.Approve(models.NewAddress(args[0]), strings.TrimSpace(args[1]), models.NewAddress(args[2]), models.NewAddress(args[3])); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true})

		case "approveAll":
			args, ok := stringArgs(c, req.Arguments, 3, "[contract, owner, operator]")
			if !ok || !requireSandbox(c, sandbox.Assets != nil) {
				return
			}
			sandbox.Assets.SetApprovalForAll(models.NewAddress(args[0]), models.NewAddress(args[1]), models.NewAddress(args[2]), true)
			c.JSON(http.StatusOK, gin.H{"success": true})

		case "creditBalance":
			args, ok := stringArgs(c, req.Arguments, 2, "[identity, amount]")
			if !ok || !requireSandbox(c, sandbox.Values != nil) {
				return
			}
			amount, err := utils.ParseTokenAmount(args[1], cfg.TokenDecimals)
			if err == nil {
				err = sandbox.Values.Credit(models.NewAddress(args[0]), amount)
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true})

		case "issueToken":
			args, ok := stringArgs(c, req.Arguments, 1, "[identity]")
			if !ok {
				return
			}
			identity := models.NewAddress(args[0])
			if identity == "" {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Identity is required"})
				return
			}
			token, err := auth.GenerateJWT(identity, cfg.JwtSecret, cfg.JwtTTL)
			if err != nil {
				log.Printf("Service API: failed to issue token for %s: %v", identity, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to issue token"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": token})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

func stringArgs(c *gin.Context, raw json.RawMessage, n int, shape string) ([]string, bool) {
	var args []string
	if err := json.Unmarshal(raw, &args); err != nil || len(args) != n {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array " + shape})
		return nil, false
	}
	return args, true
}

func requireSandbox(c *gin.Context, available bool) bool {
	if !available {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "In-memory ledgers are not enabled"})
	}
	return available
}
