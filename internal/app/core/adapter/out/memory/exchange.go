package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/THEAllStarsolver/ReWear/internal/app/core/domain"
	"github.com/THEAllStarsolver/ReWear/internal/app/core/usecase"
	"github.com/THEAllStarsolver/ReWear/pkg/journal"
	"github.com/THEAllStarsolver/ReWear/pkg/pubsub"
)

// record 一筆已提交操作的日誌記錄 (redo log)
// 記的是套用後的實體快照，Replay 時直接覆蓋，不重跑業務邏輯
type record struct {
	Seq     uint64                `json:"seq"`
	Op      string                `json:"op"`
	At      int64                 `json:"at"`
	Listing *domain.Listing       `json:"listing,omitempty"`
	Account *domain.PointsAccount `json:"account,omitempty"`
	Swap    *domain.SwapRequest   `json:"swap,omitempty"`
}

// MutexExchange 是使用 Mutex 實現的交換帳本 (Level 1)
//
// 結構:
//
//	listings: 刊登資料 Map
//	accounts: 點數帳戶 Map (userID -> account)
//	swaps: 每筆刊登的交換請求歷史
//	journal: 操作日誌，nil 表示不落地 (測試用)
//	hub: 變更事件發布，nil 表示不發布
type MutexExchange struct {
	mu       sync.RWMutex
	listings map[uuid.UUID]*domain.Listing
	accounts map[string]*domain.PointsAccount
	swaps    map[uuid.UUID][]*domain.SwapRequest
	seq      uint64
	journal  *journal.Journal
	hub      *pubsub.Hub
}

// NewMutexExchange 建立 MutexExchange，並從日誌恢復狀態
func NewMutexExchange(j *journal.Journal, hub *pubsub.Hub) (*MutexExchange, error) {
	m := &MutexExchange{
		listings: make(map[uuid.UUID]*domain.Listing),
		accounts: make(map[string]*domain.PointsAccount),
		swaps:    make(map[uuid.UUID][]*domain.SwapRequest),
		journal:  j,
		hub:      hub,
	}
	if err := m.recover(); err != nil {
		return nil, err
	}
	return m, nil
}

// recover 重放日誌重建記憶體狀態
// 只在 NewMutexExchange 呼叫，單執行緒，無需鎖
func (m *MutexExchange) recover() error {
	if m.journal == nil {
		return nil
	}
	return m.journal.Replay(func(raw []byte) error {
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		m.applyRecord(&rec)
		if rec.Seq > m.seq {
			m.seq = rec.Seq
		}
		return nil
	})
}

// applyRecord 套用一筆日誌記錄的快照
func (m *MutexExchange) applyRecord(rec *record) {
	if rec.Listing != nil {
		l := *rec.Listing
		m.listings[l.ID] = &l
	}
	if rec.Account != nil {
		a := *rec.Account
		m.accounts[a.UserID] = &a
	}
	if rec.Swap != nil {
		s := *rec.Swap
		m.putSwap(&s)
	}
}

// putSwap 以 ID 取代既有請求，沒有則追加
func (m *MutexExchange) putSwap(s *domain.SwapRequest) {
	reqs := m.swaps[s.ListingID]
	for i, existing := range reqs {
		if existing.ID == s.ID {
			reqs[i] = s
			return
		}
	}
	m.swaps[s.ListingID] = append(reqs, s)
}

// commit 寫日誌後套用快照並發布事件
// 日誌寫入失敗時不套用任何變更
func (m *MutexExchange) commit(op string, rec *record) error {
	m.seq++
	rec.Seq = m.seq
	rec.Op = op
	rec.At = time.Now().UnixMilli()

	if m.journal != nil {
		if err := m.journal.Append(rec); err != nil {
			m.seq--
			return domain.ErrJournalWriteFailed
		}
	}
	m.applyRecord(rec)

	if m.hub != nil {
		if rec.Listing != nil {
			m.hub.Publish(pubsub.Event{Kind: pubsub.KindListing, ID: rec.Listing.ID.String(), Status: string(rec.Listing.Status)})
		}
		if rec.Account != nil {
			m.hub.Publish(pubsub.Event{Kind: pubsub.KindAccount, ID: rec.Account.UserID})
		}
		if rec.Swap != nil {
			m.hub.Publish(pubsub.Event{Kind: pubsub.KindSwap, ID: rec.Swap.ID.String(), Status: string(rec.Swap.Status)})
		}
	}
	return nil
}

// CreateListing 建立刊登
func (m *MutexExchange) CreateListing(ctx context.Context, listing *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UnixMilli()
	l := *listing
	l.Status = domain.ListingStatusAvailable
	l.Version = 1
	l.CreatedAt = now
	l.UpdatedAt = now

	if err := m.commit("create_listing", &record{Listing: &l}); err != nil {
		return err
	}
	*listing = l
	return nil
}

// GetListing 讀取單筆刊登 (回傳 copy，避免外部直接改狀態)
func (m *MutexExchange) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

// ListListings 依條件列出刊登，新的在前
func (m *MutexExchange) ListListings(ctx context.Context, filter usecase.ListingFilter) ([]*domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Listing, 0)
	for _, l := range m.listings {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.OwnerID != "" && l.OwnerID != filter.OwnerID {
			continue
		}
		cp := *l
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})
	return result, nil
}

// activeSwapLocked 找出刊登目前未解決的請求，呼叫端必須持有鎖
func (m *MutexExchange) activeSwapLocked(listingID uuid.UUID) *domain.SwapRequest {
	for _, req := range m.swaps[listingID] {
		if req.Status == domain.SwapStatusOpen || req.Status == domain.SwapStatusAccepted {
			return req
		}
	}
	return nil
}

// ActiveSwap 取得刊登目前未解決的交換請求
func (m *MutexExchange) ActiveSwap(ctx context.Context, listingID uuid.UUID) (*domain.SwapRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req := m.activeSwapLocked(listingID)
	if req == nil {
		return nil, domain.ErrSwapNotFound
	}
	cp := *req
	return &cp, nil
}

// RequestSwap 發起交換請求
func (m *MutexExchange) RequestSwap(ctx context.Context, listingID uuid.UUID, requesterID string) (*domain.SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.listings[listingID]
	open := m.activeSwapLocked(listingID)
	if err := domain.CheckRequestSwap(l, requesterID, open); err != nil {
		return nil, err
	}

	req := domain.NewSwapRequest(listingID, requesterID)
	req.CreatedAt = time.Now().UnixMilli()
	if err := m.commit("request_swap", &record{Swap: req}); err != nil {
		return nil, err
	}
	cp := *req
	return &cp, nil
}

// ResolveSwap 處理交換請求 (accept/decline/finalize/cancel)
func (m *MutexExchange) ResolveSwap(ctx context.Context, listingID uuid.UUID, action domain.SwapAction, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.listings[listingID]
	if l == nil {
		return domain.ErrListingNotFound
	}
	req := m.activeSwapLocked(listingID)

	// 在 copy 上套用，全部成功才提交
	lc := *l
	var rc *domain.SwapRequest
	if req != nil {
		cp := *req
		rc = &cp
	}
	if err := domain.ApplySwapAction(&lc, rc, action, actorID); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	rec := &record{Swap: rc}
	if rc.Resolved() {
		rc.ResolvedAt = now
	}
	if lc.Status != l.Status {
		lc.Version++
		lc.UpdatedAt = now
		rec.Listing = &lc
	}
	return m.commit("resolve_swap", rec)
}

// Redeem 點數兌換：扣點與狀態轉移為單一原子單位
// 任一步驟不能完成時，兩個實體都不會有可觀察的變更
func (m *MutexExchange) Redeem(ctx context.Context, listingID uuid.UUID, redeemerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.listings[listingID]
	if err := domain.CheckRedeem(l, redeemerID); err != nil {
		return err
	}

	// 帳戶首次被引用時建立 (餘額 0)
	acct := m.accounts[redeemerID]
	if acct == nil {
		acct = domain.NewPointsAccount(redeemerID)
	}

	lc := *l
	ac := *acct
	if err := ac.Debit(l.PointsValue); err != nil {
		return err
	}
	if err := lc.Transition(domain.ListingStatusRedeemed); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	lc.Version++
	lc.UpdatedAt = now
	ac.Version++
	return m.commit("redeem", &record{Listing: &lc, Account: &ac})
}

// Moderate 審核動作 (approve/reject)
func (m *MutexExchange) Moderate(ctx context.Context, listingID uuid.UUID, action domain.ModerateAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.listings[listingID]
	if l == nil {
		return domain.ErrListingNotFound
	}
	target, err := domain.ModerationTarget(action)
	if err != nil {
		return err
	}

	lc := *l
	if err := lc.Transition(target); err != nil {
		return err
	}
	lc.Version++
	lc.UpdatedAt = time.Now().UnixMilli()
	return m.commit("moderate", &record{Listing: &lc})
}

// GetBalance 取得點數餘額，未知使用者視為 0
func (m *MutexExchange) GetBalance(ctx context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.accounts[userID]
	if !ok {
		return 0, nil
	}
	return acct.Balance, nil
}

// Credit 管理性發點
func (m *MutexExchange) Credit(ctx context.Context, userID string, points int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.accounts[userID]
	if acct == nil {
		acct = domain.NewPointsAccount(userID)
	}
	ac := *acct
	if err := ac.Credit(points); err != nil {
		return err
	}
	ac.Version++
	return m.commit("credit", &record{Account: &ac})
}

var _ usecase.Exchange = (*MutexExchange)(nil)
