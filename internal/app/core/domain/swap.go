package domain

import "github.com/google/uuid"

// SwapStatus 交換請求狀態
type SwapStatus string

const (
	SwapStatusOpen      SwapStatus = "open"
	SwapStatusAccepted  SwapStatus = "accepted"
	SwapStatusCompleted SwapStatus = "completed"
	SwapStatusDeclined  SwapStatus = "declined"
	SwapStatusCancelled SwapStatus = "cancelled"
)

// SwapRequest 交換請求
// 不變量: 同一刊登任何時刻最多只有一筆 open 的請求
type SwapRequest struct {
	ID          uuid.UUID  `json:"id"`
	ListingID   uuid.UUID  `json:"listing_id"`
	RequesterID string     `json:"requester_id"`
	Status      SwapStatus `json:"status"`
	CreatedAt   int64      `json:"created_at"`
	ResolvedAt  int64      `json:"resolved_at"`
}

// NewSwapRequest 建立一筆 open 的交換請求
func NewSwapRequest(listingID uuid.UUID, requesterID string) *SwapRequest {
	return &SwapRequest{
		ID:          uuid.New(),
		ListingID:   listingID,
		RequesterID: requesterID,
		Status:      SwapStatusOpen,
	}
}

// Open 請求是否仍待處理
func (s *SwapRequest) Open() bool {
	return s.Status == SwapStatusOpen
}

// Resolved 請求是否已達終態 (completed/declined/cancelled)
// 已解決的請求不再算是刊登的 active 請求
func (s *SwapRequest) Resolved() bool {
	switch s.Status {
	case SwapStatusCompleted, SwapStatusDeclined, SwapStatusCancelled:
		return true
	}
	return false
}
