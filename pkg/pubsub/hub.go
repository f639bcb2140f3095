package pubsub

import "sync"

// 事件的實體種類
const (
	KindListing = "listing"
	KindAccount = "account"
	KindSwap    = "swap"
)

// Event 一筆已提交變更的通知
type Event struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Subscription 訂閱句柄
// 訂閱是一種明確的資源取得，消費者在每一條離開路徑上都必須呼叫 Release
type Subscription struct {
	hub     *Hub
	ch      chan Event
	filter  func(Event) bool
	release sync.Once
}

// C 事件接收 channel，Release 之後會被關閉
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Release 釋放訂閱，可重複呼叫 (冪等)
func (s *Subscription) Release() {
	s.release.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Hub 變更事件的發布中心
// Ledger adapter 在每次成功提交後發布事件，供即時訂閱層轉發
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe 建立訂閱，filter 為 nil 表示接收全部事件
func (h *Hub) Subscribe(filter func(Event) bool) *Subscription {
	sub := &Subscription{
		hub:    h,
		ch:     make(chan Event, 16), // Buffer 16
		filter: filter,
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish 發布事件，不阻塞
// 訂閱者消化不及時事件會被丟棄，消費端以重新查詢補齊
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.filter != nil && !sub.filter(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Count 目前的訂閱數
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
