package mysql

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/THEAllStarsolver/ReWear/internal/app/core/domain"
	"github.com/THEAllStarsolver/ReWear/internal/app/core/usecase"
)

type testClient struct {
	db *gorm.DB
}

func (c *testClient) DB() *gorm.DB { return c.db }

// newExchange 用 in-memory SQLite 跑同一套帳本邏輯
// 每個測試自己一個資料庫，避免互相干擾
func newExchange(t *testing.T) *SQLExchange {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := NewSQLExchange(&testClient{db: db}, nil)
	require.NoError(t, s.Migrate())
	return s
}

func createListing(t *testing.T, s *SQLExchange, ownerID string, pointsValue int64) *domain.Listing {
	t.Helper()
	l := domain.NewListing(ownerID, pointsValue)
	l.Title = "denim jacket"
	require.NoError(t, s.CreateListing(context.Background(), l))
	return l
}

func TestCreateAndGetListing(t *testing.T) {
	ctx := context.Background()
	s := newExchange(t)
	l := createListing(t, s, "u1", 100)

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, l.ID, got.ID)
	require.Equal(t, "u1", got.OwnerID)
	require.Equal(t, domain.ListingStatusAvailable, got.Status)
	require.Equal(t, int64(100), got.PointsValue)
	require.Equal(t, uint64(1), got.Version)
}

func TestRedeemAtomicity(t *testing.T) {
	ctx := context.Background()
	s := newExchange(t)
	l := createListing(t, s, "u1", 100)
	require.NoError(t, s.Credit(ctx, "u2", 50))

	// 餘額不足：交易回滾，兩個實體都不變
	require.ErrorIs(t, s.Redeem(ctx, l.ID, "u2"), domain.ErrInsufficientPoints)
	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatusAvailable, got.Status)
	balance, err := s.GetBalance(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)

	// 補足點數後成功：恰好扣一次
	require.NoError(t, s.Credit(ctx, "u2", 100))
	require.NoError(t, s.Redeem(ctx, l.ID, "u2"))
	got, err = s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatusRedeemed, got.Status)
	require.Equal(t, uint64(2), got.Version)
	balance, err = s.GetBalance(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)

	// 重複兌換被狀態檢查擋下，不重複扣點
	require.ErrorIs(t, s.Redeem(ctx, l.ID, "u2"), domain.ErrListingNotRedeemable)
	balance, err = s.GetBalance(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)
}

func TestRedeemPreconditions(t *testing.T) {
	ctx := context.Background()
	s := newExchange(t)

	l := createListing(t, s, "u1", 100)
	require.NoError(t, s.Credit(ctx, "u1", 500))
	require.ErrorIs(t, s.Redeem(ctx, l.ID, "u1"), domain.ErrOwnerRedeemOwnListing)

	swapOnly := createListing(t, s, "u1", 0)
	require.ErrorIs(t, s.Redeem(ctx, swapOnly.ID, "u2"), domain.ErrListingNotRedeemable)
}

func TestSwapFlow(t *testing.T) {
	ctx := context.Background()
	s := newExchange(t)
	l := createListing(t, s, "u1", 0)

	req, err := s.RequestSwap(ctx, l.ID, "u2")
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusOpen, req.Status)

	_, err = s.RequestSwap(ctx, l.ID, "u3")
	require.ErrorIs(t, err, domain.ErrSwapAlreadyPending)

	active, err := s.ActiveSwap(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, req.ID, active.ID)

	// 非擁有者不能接受
	require.ErrorIs(t, s.ResolveSwap(ctx, l.ID, domain.SwapActionAccept, "u2"), domain.ErrUnauthorized)

	require.NoError(t, s.ResolveSwap(ctx, l.ID, domain.SwapActionAccept, "u1"))
	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatusPendingSwap, got.Status)

	require.NoError(t, s.ResolveSwap(ctx, l.ID, domain.SwapActionFinalize, "u1"))
	got, err = s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatusSwapped, got.Status)

	// 解決後沒有 active 請求了
	_, err = s.ActiveSwap(ctx, l.ID)
	require.ErrorIs(t, err, domain.ErrSwapNotFound)
}

func TestModerate(t *testing.T) {
	ctx := context.Background()
	s := newExchange(t)
	l := createListing(t, s, "u1", 100)

	require.NoError(t, s.Moderate(ctx, l.ID, domain.ModerateActionReject))
	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatusRejected, got.Status)

	// rejected 狀態下不可兌換
	require.NoError(t, s.Credit(ctx, "u2", 500))
	require.ErrorIs(t, s.Redeem(ctx, l.ID, "u2"), domain.ErrListingNotRedeemable)

	require.NoError(t, s.Moderate(ctx, l.ID, domain.ModerateActionApprove))
	got, err = s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatusAvailable, got.Status)
}

func TestListListingsFilter(t *testing.T) {
	ctx := context.Background()
	s := newExchange(t)
	l1 := createListing(t, s, "u1", 100)
	createListing(t, s, "u2", 0)
	require.NoError(t, s.Moderate(ctx, l1.ID, domain.ModerateActionReject))

	all, err := s.ListListings(ctx, usecase.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	available, err := s.ListListings(ctx, usecase.ListingFilter{Status: domain.ListingStatusAvailable})
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, "u2", available[0].OwnerID)
}

func TestGetBalanceUnknownUser(t *testing.T) {
	s := newExchange(t)
	balance, err := s.GetBalance(context.Background(), "nobody")
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
}

func TestCreditValidation(t *testing.T) {
	ctx := context.Background()
	s := newExchange(t)
	require.ErrorIs(t, s.Credit(ctx, "u1", 0), domain.ErrPointsMustBePositive)
	require.ErrorIs(t, s.Credit(ctx, "u1", -10), domain.ErrPointsMustBePositive)
	balance, err := s.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
}
