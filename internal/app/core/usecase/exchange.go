package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/THEAllStarsolver/ReWear/internal/app/core/domain"
)

// ListingFilter 瀏覽刊登的查詢條件，零值代表不過濾
type ListingFilter struct {
	Status  domain.ListingStatus
	OwnerID string
}

// Exchange 是交換帳本的介面
// 跨實體的變更 (兌換扣點 + 狀態轉移) 必須在單一原子單位內完成，
// 失敗時不能留下部分套用的狀態
type Exchange interface {
	// CreateListing 建立刊登 (status=available)
	CreateListing(ctx context.Context, listing *domain.Listing) error
	// GetListing 讀取單筆刊登
	GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	// ListListings 依條件列出刊登
	ListListings(ctx context.Context, filter ListingFilter) ([]*domain.Listing, error)
	// ActiveSwap 取得刊登目前未解決 (open/accepted) 的交換請求
	ActiveSwap(ctx context.Context, listingID uuid.UUID) (*domain.SwapRequest, error)
	// RequestSwap 發起交換請求，刊登維持 available 直到擁有者處理
	RequestSwap(ctx context.Context, listingID uuid.UUID, requesterID string) (*domain.SwapRequest, error)
	// ResolveSwap 處理交換請求 (accept/decline/finalize/cancel)
	ResolveSwap(ctx context.Context, listingID uuid.UUID, action domain.SwapAction, actorID string) error
	// Redeem 點數兌換：扣點與狀態轉移為單一原子單位
	Redeem(ctx context.Context, listingID uuid.UUID, redeemerID string) error
	// Moderate 審核動作 (approve/reject)
	Moderate(ctx context.Context, listingID uuid.UUID, action domain.ModerateAction) error
	// GetBalance 取得點數餘額，未知使用者視為 0
	GetBalance(ctx context.Context, userID string) (int64, error)
	// Credit 管理性發點
	Credit(ctx context.Context, userID string, points int64) error
}
