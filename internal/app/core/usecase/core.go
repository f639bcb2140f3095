package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/THEAllStarsolver/ReWear/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層
type CoreUseCase struct {
	exchange Exchange
}

func NewCoreUseCase(exchange Exchange) *CoreUseCase {
	return &CoreUseCase{
		exchange: exchange,
	}
}

// CreateListing 建立刊登
func (c *CoreUseCase) CreateListing(ctx context.Context, listing *domain.Listing) error {
	return c.exchange.CreateListing(ctx, listing)
}

// GetListing 讀取單筆刊登
func (c *CoreUseCase) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return c.exchange.GetListing(ctx, id)
}

// ListListings 依條件列出刊登
func (c *CoreUseCase) ListListings(ctx context.Context, filter ListingFilter) ([]*domain.Listing, error) {
	return c.exchange.ListListings(ctx, filter)
}

// ActiveSwap 取得刊登目前未解決的交換請求
func (c *CoreUseCase) ActiveSwap(ctx context.Context, listingID uuid.UUID) (*domain.SwapRequest, error) {
	return c.exchange.ActiveSwap(ctx, listingID)
}

// RequestSwap 發起交換請求
func (c *CoreUseCase) RequestSwap(ctx context.Context, listingID uuid.UUID, requesterID string) (*domain.SwapRequest, error) {
	return c.exchange.RequestSwap(ctx, listingID, requesterID)
}

// ResolveSwap 處理交換請求
func (c *CoreUseCase) ResolveSwap(ctx context.Context, listingID uuid.UUID, action domain.SwapAction, actorID string) error {
	return c.exchange.ResolveSwap(ctx, listingID, action, actorID)
}

// Redeem 點數兌換
func (c *CoreUseCase) Redeem(ctx context.Context, listingID uuid.UUID, redeemerID string) error {
	return c.exchange.Redeem(ctx, listingID, redeemerID)
}

// Moderate 審核刊登
func (c *CoreUseCase) Moderate(ctx context.Context, listingID uuid.UUID, action domain.ModerateAction) error {
	return c.exchange.Moderate(ctx, listingID, action)
}

// GetBalance 取得點數餘額
func (c *CoreUseCase) GetBalance(ctx context.Context, userID string) (int64, error) {
	return c.exchange.GetBalance(ctx, userID)
}

// Credit 管理性發點
func (c *CoreUseCase) Credit(ctx context.Context, userID string, points int64) error {
	return c.exchange.Credit(ctx, userID, points)
}
