package domain

// SwapAction 交換請求的處理動作
type SwapAction string

const (
	// 擁有者接受請求，刊登進入 pending_swap
	SwapActionAccept SwapAction = "accept"
	// 擁有者拒絕請求，刊登維持 available
	SwapActionDecline SwapAction = "decline"
	// 交換完成，刊登進入 swapped (終態)
	SwapActionFinalize SwapAction = "finalize"
	// 任一方退出，刊登退回 available
	SwapActionCancel SwapAction = "cancel"
)

// ModerateAction 審核動作
type ModerateAction string

const (
	ModerateActionApprove ModerateAction = "approve"
	ModerateActionReject  ModerateAction = "reject"
)

// CheckRequestSwap 檢查發起交換請求的前置條件
// open 為該刊登目前未解決的請求，沒有則傳 nil
func CheckRequestSwap(l *Listing, requesterID string, open *SwapRequest) error {
	if l == nil {
		return ErrListingNotFound
	}
	if l.OwnerID == requesterID {
		return ErrOwnerSwapOwnListing
	}
	if l.Status != ListingStatusAvailable {
		return ErrInvalidTransition
	}
	if open != nil {
		return ErrSwapAlreadyPending
	}
	return nil
}

// CheckRedeem 檢查兌換的前置條件 (餘額檢查在 Debit 裡做)
func CheckRedeem(l *Listing, redeemerID string) error {
	if l == nil {
		return ErrListingNotFound
	}
	if !l.Redeemable() {
		return ErrListingNotRedeemable
	}
	if l.OwnerID == redeemerID {
		return ErrOwnerRedeemOwnListing
	}
	return nil
}

// ApplySwapAction 套用交換處理動作，就地更新 listing 與 req
// 所有檢查先於任何變更，失敗時兩個實體都不會被改動
func ApplySwapAction(l *Listing, req *SwapRequest, action SwapAction, actorID string) error {
	if l == nil {
		return ErrListingNotFound
	}

	switch action {
	case SwapActionAccept:
		if req == nil || !req.Open() {
			return ErrSwapNotFound
		}
		if actorID != l.OwnerID {
			return ErrUnauthorized
		}
		if err := l.Transition(ListingStatusPendingSwap); err != nil {
			return err
		}
		req.Status = SwapStatusAccepted

	case SwapActionDecline:
		if req == nil || !req.Open() {
			return ErrSwapNotFound
		}
		if actorID != l.OwnerID {
			return ErrUnauthorized
		}
		req.Status = SwapStatusDeclined

	case SwapActionFinalize:
		if req == nil || req.Status != SwapStatusAccepted {
			return ErrSwapNotFound
		}
		if actorID != l.OwnerID {
			return ErrUnauthorized
		}
		if err := l.Transition(ListingStatusSwapped); err != nil {
			return err
		}
		// 交換完成，請求跟著刊登一起進終態
		req.Status = SwapStatusCompleted

	case SwapActionCancel:
		if req == nil || (req.Status != SwapStatusOpen && req.Status != SwapStatusAccepted) {
			return ErrSwapNotFound
		}
		if actorID != l.OwnerID && actorID != req.RequesterID {
			return ErrUnauthorized
		}
		// 已接受的請求取消時，刊登從 pending_swap 退回 available
		if req.Status == SwapStatusAccepted {
			if err := l.Transition(ListingStatusAvailable); err != nil {
				return err
			}
		}
		req.Status = SwapStatusCancelled

	default:
		return ErrInvalidTransition
	}
	return nil
}

// ModerationTarget 依審核動作決定目標狀態，合法性交給 Transition 把關
// approve: 任何非終態且非 available 的狀態 -> available
// reject:  available -> rejected
func ModerationTarget(action ModerateAction) (ListingStatus, error) {
	switch action {
	case ModerateActionApprove:
		return ListingStatusAvailable, nil
	case ModerateActionReject:
		return ListingStatusRejected, nil
	default:
		return "", ErrInvalidTransition
	}
}
