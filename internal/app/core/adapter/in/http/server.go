package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/THEAllStarsolver/ReWear/internal/app/core/domain"
	"github.com/THEAllStarsolver/ReWear/internal/app/core/usecase"
	"github.com/THEAllStarsolver/ReWear/pkg/auth"
	"github.com/THEAllStarsolver/ReWear/pkg/pubsub"
)

const identityKey = "identity"

// Server 是 HTTP API adapter (Driving Adapter)
type Server struct {
	core     *usecase.CoreUseCase
	verifier *auth.Verifier
	hub      *pubsub.Hub
}

func NewServer(core *usecase.CoreUseCase, verifier *auth.Verifier, hub *pubsub.Hub) *Server {
	return &Server{
		core:     core,
		verifier: verifier,
		hub:      hub,
	}
}

// RegisterRoutes 註冊所有路由
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/listings", s.listListings)
	api.GET("/listings/:id", s.getListing)
	api.GET("/subscribe", s.subscribe)

	authed := api.Group("", s.requireAuth)
	authed.POST("/listings", s.createListing)
	authed.POST("/listings/:id/swap-request", s.requestSwap)
	authed.POST("/listings/:id/swap/:action", s.resolveSwap)
	authed.POST("/listings/:id/redeem", s.redeem)
	authed.GET("/me/balance", s.getBalance)

	admin := authed.Group("", s.requireAdmin)
	admin.POST("/listings/:id/moderate", s.moderate)
	admin.POST("/accounts/:user_id/credit", s.credit)
}

// requireAuth 驗證 Bearer token，把身分放進 context
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	identity, err := s.verifier.Verify(tokenStr)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set(identityKey, identity)
	c.Next()
}

// requireAdmin 管理操作需要 token 裡的 admin role claim
func (s *Server) requireAdmin(c *gin.Context) {
	if currentIdentity(c).Role != auth.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	c.Next()
}

func currentIdentity(c *gin.Context) *auth.Identity {
	v, _ := c.Get(identityKey)
	identity, _ := v.(*auth.Identity)
	return identity
}

// writeError 把帳本錯誤映射成 HTTP 狀態碼
// 業務錯誤一律回給呼叫端，不在這裡吞掉或記 log
func writeError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrSwapNotFound),
		errors.Is(err, domain.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientPoints):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrSwapAlreadyPending),
		errors.Is(err, domain.ErrListingNotRedeemable),
		errors.Is(err, domain.ErrConflictRetry):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrOwnerSwapOwnListing),
		errors.Is(err, domain.ErrOwnerRedeemOwnListing),
		errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrPointsMustBePositive):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
