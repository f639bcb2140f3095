package domain

import "github.com/google/uuid"

// ListingStatus 刊登狀態
// 使用 string 方便 JSON 文件儲存與 API 傳輸
type ListingStatus string

const (
	// 可瀏覽、可交換、可兌換
	ListingStatusAvailable ListingStatus = "available"
	// 擁有者已接受交換請求，等待完成
	ListingStatusPendingSwap ListingStatus = "pending_swap"
	// 交換完成 (終態)
	ListingStatusSwapped ListingStatus = "swapped"
	// 點數兌換完成 (終態)
	ListingStatusRedeemed ListingStatus = "redeemed"
	// 審核下架，可再次核准上架
	ListingStatusRejected ListingStatus = "rejected"
)

// legalTransitions 狀態機的合法邊
// 只有 Exchange Ledger 可以驅動轉移，外部不得直接改 Status
var legalTransitions = map[ListingStatus][]ListingStatus{
	ListingStatusAvailable:   {ListingStatusPendingSwap, ListingStatusRedeemed, ListingStatusRejected},
	ListingStatusPendingSwap: {ListingStatusSwapped, ListingStatusAvailable},
	ListingStatusRejected:    {ListingStatusAvailable},
	// swapped / redeemed 是終態，沒有出邊
}

// Listing 一筆衣物刊登
type Listing struct {
	// ID: 刊登唯一識別碼，建立時分配，不可變
	ID uuid.UUID `json:"id"`
	// OwnerID: 建立者的使用者 ID，不可變
	OwnerID string `json:"owner_id"`
	// 展示欄位，Ledger 不解讀內容
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Size        string `json:"size"`
	ImageURL    string `json:"image_url"`
	// Status: 生命週期狀態，只能透過 Ledger 操作轉移
	Status ListingStatus `json:"status"`
	// PointsValue: 兌換所需點數；0 表示僅供交換 (swap-only)
	PointsValue int64 `json:"points_value"`
	// Version: 樂觀鎖版本號，每次成功寫入 +1
	Version   uint64 `json:"version"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// NewListing 建立一筆新刊登，初始狀態為 available
func NewListing(ownerID string, pointsValue int64) *Listing {
	return &Listing{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Status:      ListingStatusAvailable,
		PointsValue: pointsValue,
		Version:     1,
	}
}

// CanTransition 檢查 from -> to 是否為狀態機的合法邊
func CanTransition(from, to ListingStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition 執行狀態轉移，非法邊回傳 ErrInvalidTransition 且狀態不變
func (l *Listing) Transition(to ListingStatus) error {
	if !CanTransition(l.Status, to) {
		return ErrInvalidTransition
	}
	l.Status = to
	return nil
}

// IsTerminal 是否已進入終態 (swapped / redeemed)
func (l *Listing) IsTerminal() bool {
	return l.Status == ListingStatusSwapped || l.Status == ListingStatusRedeemed
}

// Redeemable 是否可被兌換：狀態 available 且設有正的點數價值
func (l *Listing) Redeemable() bool {
	return l.Status == ListingStatusAvailable && l.PointsValue > 0
}
