package domain

// PointsAccount 使用者點數帳戶，一人一戶
type PointsAccount struct {
	// UserID: 使用者 ID，不可變
	UserID string `json:"user_id"`
	// Balance: 點數餘額，任何時刻都不得為負
	Balance int64 `json:"balance"`
	// Version: 樂觀鎖版本號
	Version uint64 `json:"version"`
}

// NewPointsAccount 建立新帳戶，初始餘額為 0 (首次被引用時建立)
func NewPointsAccount(userID string) *PointsAccount {
	return &PointsAccount{
		UserID: userID,
	}
}

// Credit 入點，僅供管理性發點使用
func (a *PointsAccount) Credit(points int64) error {
	if points <= 0 {
		return ErrPointsMustBePositive
	}

	a.Balance = a.Balance + points
	return nil
}

// Debit 扣點，餘額不足回傳 ErrInsufficientPoints 且餘額不變
// 只能在兌換操作內被呼叫，不可單獨對外暴露
func (a *PointsAccount) Debit(points int64) error {
	if points <= 0 {
		return ErrPointsMustBePositive
	}

	if a.Balance < points {
		return ErrInsufficientPoints
	}

	a.Balance = a.Balance - points
	return nil
}
