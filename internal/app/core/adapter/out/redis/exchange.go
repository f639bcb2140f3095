package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/THEAllStarsolver/ReWear/internal/app/core/domain"
	"github.com/THEAllStarsolver/ReWear/internal/app/core/usecase"
	"github.com/THEAllStarsolver/ReWear/pkg/pubsub"
)

// Redis key 佈局
//
//	rewear:listing:{id}        刊登 JSON 文件
//	rewear:listings            刊登 ID 集合 (瀏覽索引)
//	rewear:account:{userID}    點數帳戶 JSON 文件
//	rewear:swap:{listingID}    目前未解決的交換請求 JSON 文件
//	rewear:swaphist:{id}       已解決的請求 (保留供查詢)
const (
	keyListingPrefix  = "rewear:listing:"
	keyListingIndex   = "rewear:listings"
	keyAccountPrefix  = "rewear:account:"
	keySwapPrefix     = "rewear:swap:"
	keySwapHistPrefix = "rewear:swaphist:"
)

// RedisExchange 是以 Redis 實現的交換帳本 (Level 2)
// 用 WATCH + MULTI/EXEC 做樂觀並發控制：讀取後到提交前被別人改過，
// EXEC 會失敗，轉成 ErrConflictRetry 讓呼叫端重讀重試
type RedisExchange struct {
	rdb *goredis.Client
	hub *pubsub.Hub
}

func NewRedisExchange(rdb *goredis.Client, hub *pubsub.Hub) *RedisExchange {
	return &RedisExchange{
		rdb: rdb,
		hub: hub,
	}
}

// translate 把 Redis 層錯誤換成帳本錯誤
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.TxFailedErr):
		return domain.ErrConflictRetry
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.ErrUnavailable
	default:
		return err
	}
}

func listingKey(id uuid.UUID) string  { return keyListingPrefix + id.String() }
func accountKey(userID string) string { return keyAccountPrefix + userID }
func swapKey(id uuid.UUID) string     { return keySwapPrefix + id.String() }

// getJSON 讀出並解碼一個 JSON 文件，不存在時回傳 (false, nil)
func getJSON(ctx context.Context, c goredis.Cmdable, key string, v any) (bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func setJSON(ctx context.Context, pipe goredis.Pipeliner, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	pipe.Set(ctx, key, raw, 0)
	return nil
}

func (r *RedisExchange) publishListing(l *domain.Listing) {
	if r.hub != nil {
		r.hub.Publish(pubsub.Event{Kind: pubsub.KindListing, ID: l.ID.String(), Status: string(l.Status)})
	}
}

func (r *RedisExchange) publishSwap(req *domain.SwapRequest) {
	if r.hub != nil {
		r.hub.Publish(pubsub.Event{Kind: pubsub.KindSwap, ID: req.ID.String(), Status: string(req.Status)})
	}
}

func (r *RedisExchange) publishAccount(userID string) {
	if r.hub != nil {
		r.hub.Publish(pubsub.Event{Kind: pubsub.KindAccount, ID: userID})
	}
}

// CreateListing 建立刊登
func (r *RedisExchange) CreateListing(ctx context.Context, listing *domain.Listing) error {
	now := time.Now().UnixMilli()
	listing.Status = domain.ListingStatusAvailable
	listing.Version = 1
	listing.CreatedAt = now
	listing.UpdatedAt = now

	// ID 是剛產生的 UUID，不會有人競爭這個 key，不需要 WATCH
	_, err := r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if err := setJSON(ctx, pipe, listingKey(listing.ID), listing); err != nil {
			return err
		}
		pipe.SAdd(ctx, keyListingIndex, listing.ID.String())
		return nil
	})
	if err != nil {
		return translate(err)
	}
	r.publishListing(listing)
	return nil
}

// GetListing 讀取單筆刊登
func (r *RedisExchange) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	found, err := getJSON(ctx, r.rdb, listingKey(id), &l)
	if err != nil {
		return nil, translate(err)
	}
	if !found {
		return nil, domain.ErrListingNotFound
	}
	return &l, nil
}

// ListListings 依條件列出刊登，新的在前
// 瀏覽是準即時讀取，容忍與提交之間的短暫不一致
func (r *RedisExchange) ListListings(ctx context.Context, filter usecase.ListingFilter) ([]*domain.Listing, error) {
	ids, err := r.rdb.SMembers(ctx, keyListingIndex).Result()
	if err != nil {
		return nil, translate(err)
	}
	result := make([]*domain.Listing, 0, len(ids))
	for _, id := range ids {
		var l domain.Listing
		found, err := getJSON(ctx, r.rdb, keyListingPrefix+id, &l)
		if err != nil {
			return nil, translate(err)
		}
		if !found {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.OwnerID != "" && l.OwnerID != filter.OwnerID {
			continue
		}
		cp := l
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})
	return result, nil
}

// ActiveSwap 取得刊登目前未解決的交換請求
func (r *RedisExchange) ActiveSwap(ctx context.Context, listingID uuid.UUID) (*domain.SwapRequest, error) {
	var req domain.SwapRequest
	found, err := getJSON(ctx, r.rdb, swapKey(listingID), &req)
	if err != nil {
		return nil, translate(err)
	}
	if !found {
		return nil, domain.ErrSwapNotFound
	}
	return &req, nil
}

// RequestSwap 發起交換請求
func (r *RedisExchange) RequestSwap(ctx context.Context, listingID uuid.UUID, requesterID string) (*domain.SwapRequest, error) {
	var created *domain.SwapRequest
	err := r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		var l domain.Listing
		found, err := getJSON(ctx, tx, listingKey(listingID), &l)
		if err != nil {
			return err
		}
		var listing *domain.Listing
		if found {
			listing = &l
		}

		var open *domain.SwapRequest
		var active domain.SwapRequest
		if found, err := getJSON(ctx, tx, swapKey(listingID), &active); err != nil {
			return err
		} else if found {
			open = &active
		}

		if err := domain.CheckRequestSwap(listing, requesterID, open); err != nil {
			return err
		}

		req := domain.NewSwapRequest(listingID, requesterID)
		req.CreatedAt = time.Now().UnixMilli()
		created = req
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			return setJSON(ctx, pipe, swapKey(listingID), req)
		})
		return err
	}, listingKey(listingID), swapKey(listingID))
	if err != nil {
		return nil, translate(err)
	}
	r.publishSwap(created)
	return created, nil
}

// ResolveSwap 處理交換請求 (accept/decline/finalize/cancel)
func (r *RedisExchange) ResolveSwap(ctx context.Context, listingID uuid.UUID, action domain.SwapAction, actorID string) error {
	var savedListing *domain.Listing
	var savedSwap *domain.SwapRequest
	err := r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		var l domain.Listing
		found, err := getJSON(ctx, tx, listingKey(listingID), &l)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrListingNotFound
		}

		var req *domain.SwapRequest
		var active domain.SwapRequest
		if found, err := getJSON(ctx, tx, swapKey(listingID), &active); err != nil {
			return err
		} else if found {
			req = &active
		}

		before := l.Status
		if err := domain.ApplySwapAction(&l, req, action, actorID); err != nil {
			return err
		}

		now := time.Now().UnixMilli()
		if req.Resolved() {
			req.ResolvedAt = now
		}
		if l.Status != before {
			l.Version++
			l.UpdatedAt = now
			savedListing = &l
		}
		savedSwap = req

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			// 已解決的請求移到歷史 key，active key 騰出來給下一筆
			if req.Resolved() {
				pipe.Del(ctx, swapKey(listingID))
				if err := setJSON(ctx, pipe, keySwapHistPrefix+req.ID.String(), req); err != nil {
					return err
				}
			} else {
				if err := setJSON(ctx, pipe, swapKey(listingID), req); err != nil {
					return err
				}
			}
			if savedListing != nil {
				return setJSON(ctx, pipe, listingKey(listingID), savedListing)
			}
			return nil
		})
		return err
	}, listingKey(listingID), swapKey(listingID))
	if err != nil {
		return translate(err)
	}
	r.publishSwap(savedSwap)
	if savedListing != nil {
		r.publishListing(savedListing)
	}
	return nil
}

// Redeem 點數兌換
// 扣點與狀態轉移放在同一個 MULTI/EXEC，全有或全無
func (r *RedisExchange) Redeem(ctx context.Context, listingID uuid.UUID, redeemerID string) error {
	var savedListing *domain.Listing
	err := r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		var l domain.Listing
		found, err := getJSON(ctx, tx, listingKey(listingID), &l)
		if err != nil {
			return err
		}
		var listing *domain.Listing
		if found {
			listing = &l
		}
		if err := domain.CheckRedeem(listing, redeemerID); err != nil {
			return err
		}

		acct := domain.NewPointsAccount(redeemerID)
		if _, err := getJSON(ctx, tx, accountKey(redeemerID), acct); err != nil {
			return err
		}
		if err := acct.Debit(l.PointsValue); err != nil {
			return err
		}
		if err := l.Transition(domain.ListingStatusRedeemed); err != nil {
			return err
		}

		now := time.Now().UnixMilli()
		l.Version++
		l.UpdatedAt = now
		acct.Version++
		savedListing = &l

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if err := setJSON(ctx, pipe, listingKey(listingID), &l); err != nil {
				return err
			}
			return setJSON(ctx, pipe, accountKey(redeemerID), acct)
		})
		return err
	}, listingKey(listingID), accountKey(redeemerID))
	if err != nil {
		return translate(err)
	}
	r.publishListing(savedListing)
	r.publishAccount(redeemerID)
	return nil
}

// Moderate 審核動作 (approve/reject)
func (r *RedisExchange) Moderate(ctx context.Context, listingID uuid.UUID, action domain.ModerateAction) error {
	target, err := domain.ModerationTarget(action)
	if err != nil {
		return err
	}

	var savedListing *domain.Listing
	err = r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		var l domain.Listing
		found, err := getJSON(ctx, tx, listingKey(listingID), &l)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrListingNotFound
		}
		if err := l.Transition(target); err != nil {
			return err
		}
		l.Version++
		l.UpdatedAt = time.Now().UnixMilli()
		savedListing = &l

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			return setJSON(ctx, pipe, listingKey(listingID), &l)
		})
		return err
	}, listingKey(listingID))
	if err != nil {
		return translate(err)
	}
	r.publishListing(savedListing)
	return nil
}

// GetBalance 取得點數餘額，未知使用者視為 0
func (r *RedisExchange) GetBalance(ctx context.Context, userID string) (int64, error) {
	var acct domain.PointsAccount
	found, err := getJSON(ctx, r.rdb, accountKey(userID), &acct)
	if err != nil {
		return 0, translate(err)
	}
	if !found {
		return 0, nil
	}
	return acct.Balance, nil
}

// Credit 管理性發點
func (r *RedisExchange) Credit(ctx context.Context, userID string, points int64) error {
	err := r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		acct := domain.NewPointsAccount(userID)
		if _, err := getJSON(ctx, tx, accountKey(userID), acct); err != nil {
			return err
		}
		if err := acct.Credit(points); err != nil {
			return err
		}
		acct.Version++
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			return setJSON(ctx, pipe, accountKey(userID), acct)
		})
		return err
	}, accountKey(userID))
	if err != nil {
		return translate(err)
	}
	r.publishAccount(userID)
	return nil
}

var _ usecase.Exchange = (*RedisExchange)(nil)
