package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/THEAllStarsolver/ReWear/internal/app/core/domain"
	"github.com/THEAllStarsolver/ReWear/internal/app/core/usecase"
)

type createListingReq struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Size        string `json:"size"`
	ImageURL    string `json:"image_url"`
	// 0 表示僅供交換
	PointsValue int64 `json:"points_value" binding:"gte=0"`
}

func (s *Server) createListing(c *gin.Context) {
	var req createListingReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing := domain.NewListing(currentIdentity(c).UserID, req.PointsValue)
	listing.Title = req.Title
	listing.Description = req.Description
	listing.Category = req.Category
	listing.Size = req.Size
	listing.ImageURL = req.ImageURL

	if err := s.core.CreateListing(c.Request.Context(), listing); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func (s *Server) listListings(c *gin.Context) {
	filter := usecase.ListingFilter{
		Status:  domain.ListingStatus(c.Query("status")),
		OwnerID: c.Query("owner_id"),
	}
	listings, err := s.core.ListListings(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// listingID 解析路徑上的刊登 ID，失敗時已回應 400
func listingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) getListing(c *gin.Context) {
	id, ok := listingID(c)
	if !ok {
		return
	}
	listing, err := s.core.GetListing(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"listing": listing}
	// 附上未解決的交換請求，前端才知道要不要顯示「待處理」
	if swap, err := s.core.ActiveSwap(c.Request.Context(), id); err == nil {
		resp["active_swap"] = swap
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) requestSwap(c *gin.Context) {
	id, ok := listingID(c)
	if !ok {
		return
	}
	swap, err := s.core.RequestSwap(c.Request.Context(), id, currentIdentity(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"swap_request": swap})
}

func (s *Server) resolveSwap(c *gin.Context) {
	id, ok := listingID(c)
	if !ok {
		return
	}
	action := domain.SwapAction(c.Param("action"))
	switch action {
	case domain.SwapActionAccept, domain.SwapActionDecline,
		domain.SwapActionFinalize, domain.SwapActionCancel:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid swap action"})
		return
	}

	if err := s.core.ResolveSwap(c.Request.Context(), id, action, currentIdentity(c).UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) redeem(c *gin.Context) {
	id, ok := listingID(c)
	if !ok {
		return
	}
	if err := s.core.Redeem(c.Request.Context(), id, currentIdentity(c).UserID); err != nil {
		writeError(c, err)
		return
	}

	// 兌換已提交，回讀失敗不能把成功回報成錯誤
	resp := gin.H{"ok": true}
	if listing, err := s.core.GetListing(c.Request.Context(), id); err == nil {
		resp["listing"] = listing
	}
	c.JSON(http.StatusOK, resp)
}

type moderateReq struct {
	Action string `json:"action" binding:"required"`
}

func (s *Server) moderate(c *gin.Context) {
	id, ok := listingID(c)
	if !ok {
		return
	}
	var req moderateReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	action := domain.ModerateAction(req.Action)
	if action != domain.ModerateActionApprove && action != domain.ModerateActionReject {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid moderate action"})
		return
	}

	if err := s.core.Moderate(c.Request.Context(), id, action); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) getBalance(c *gin.Context) {
	userID := currentIdentity(c).UserID
	balance, err := s.core.GetBalance(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance})
}

type creditReq struct {
	Points int64 `json:"points" binding:"required,gt=0"`
}

func (s *Server) credit(c *gin.Context) {
	var req creditReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := c.Param("user_id")
	if err := s.core.Credit(c.Request.Context(), userID, req.Points); err != nil {
		writeError(c, err)
		return
	}

	balance, err := s.core.GetBalance(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance})
}
