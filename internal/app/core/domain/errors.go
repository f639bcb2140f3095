package domain

import "errors"

var (
	// ErrPointsMustBePositive 點數必須為正數
	ErrPointsMustBePositive = errors.New("points must be positive")

	// ErrInsufficientPoints 點數餘額不足
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrAccountNotFound 找不到點數帳戶
	ErrAccountNotFound = errors.New("points account not found")

	// ErrListingNotFound 找不到刊登
	ErrListingNotFound = errors.New("listing not found")

	// ErrListingNotRedeemable 刊登不可兌換 (沒有點數價值或狀態不是 available)
	ErrListingNotRedeemable = errors.New("listing not redeemable")

	// ErrInvalidTransition 非法的狀態轉移
	ErrInvalidTransition = errors.New("invalid listing status transition")

	// ErrSwapNotFound 找不到交換請求
	ErrSwapNotFound = errors.New("swap request not found")

	// ErrSwapAlreadyPending 已有未處理的交換請求
	ErrSwapAlreadyPending = errors.New("swap request already pending")

	// ErrOwnerSwapOwnListing 不能對自己的刊登發起交換
	ErrOwnerSwapOwnListing = errors.New("owner cannot swap own listing")

	// ErrOwnerRedeemOwnListing 不能兌換自己的刊登
	ErrOwnerRedeemOwnListing = errors.New("owner cannot redeem own listing")

	// ErrUnauthorized 操作者不是該操作允許的角色
	ErrUnauthorized = errors.New("actor not permitted")

	// ErrConflictRetry 並發寫入輸掉競爭，呼叫端可重讀後重試
	ErrConflictRetry = errors.New("concurrent write conflict, retry")

	// ErrUnavailable 後端儲存逾時或不可用 (可恢復)
	ErrUnavailable = errors.New("backing store unavailable")

	// ErrJournalWriteFailed 寫入操作日誌失敗
	ErrJournalWriteFailed = errors.New("journal write failed")
)
