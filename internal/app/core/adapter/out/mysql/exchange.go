package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/THEAllStarsolver/ReWear/internal/app/core/domain"
	"github.com/THEAllStarsolver/ReWear/internal/app/core/usecase"
	"github.com/THEAllStarsolver/ReWear/pkg/pubsub"
)

// sqlListing 對應資料庫的 listings 表
type sqlListing struct {
	ID          string `gorm:"primaryKey;type:char(36)"`
	OwnerID     string `gorm:"index"`
	Title       string
	Description string
	Category    string
	Size        string
	ImageURL    string
	Status      string `gorm:"index"`
	PointsValue int64
	Version     uint64
	CreatedAt   int64
	UpdatedAt   int64
}

func (*sqlListing) TableName() string {
	return "listings"
}

// sqlAccount 對應資料庫的 points_accounts 表
type sqlAccount struct {
	UserID    string `gorm:"primaryKey;type:varchar(64)"`
	Balance   int64
	Version   uint64
	UpdatedAt int64
}

func (*sqlAccount) TableName() string {
	return "points_accounts"
}

// sqlSwap 對應資料庫的 swap_requests 表
type sqlSwap struct {
	ID          string `gorm:"primaryKey;type:char(36)"`
	ListingID   string `gorm:"index"`
	RequesterID string `gorm:"index"`
	Status      string `gorm:"index"`
	CreatedAt   int64
	ResolvedAt  int64
}

func (*sqlSwap) TableName() string {
	return "swap_requests"
}

// DB 是這個 adapter 需要的最小 GORM 介面 (MySQL 或測試用 SQLite 都可)
type DB interface {
	DB() *gorm.DB
}

// SQLExchange 是以關聯式資料庫實現的交換帳本 (Level 0)
// 每個寫入操作包在單一交易內，以 SELECT ... FOR UPDATE 對
// 涉及的刊登列 (兌換時連同帳戶列) 上悲觀鎖，達成逐刊登序列化
type SQLExchange struct {
	client DB
	hub    *pubsub.Hub
}

func NewSQLExchange(client DB, hub *pubsub.Hub) *SQLExchange {
	return &SQLExchange{
		client: client,
		hub:    hub,
	}
}

// Migrate 建立資料表
func (s *SQLExchange) Migrate() error {
	return s.client.DB().AutoMigrate(&sqlListing{}, &sqlAccount{}, &sqlSwap{})
}

// translate 把儲存層錯誤換成帳本錯誤
// context 逾時/取消視為後端不可用 (可恢復)，domain 錯誤原樣通過
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.ErrUnavailable
	default:
		return err
	}
}

func toDomainListing(row *sqlListing) (*domain.Listing, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Listing{
		ID:          id,
		OwnerID:     row.OwnerID,
		Title:       row.Title,
		Description: row.Description,
		Category:    row.Category,
		Size:        row.Size,
		ImageURL:    row.ImageURL,
		Status:      domain.ListingStatus(row.Status),
		PointsValue: row.PointsValue,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func fromDomainListing(l *domain.Listing) *sqlListing {
	return &sqlListing{
		ID:          l.ID.String(),
		OwnerID:     l.OwnerID,
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		Size:        l.Size,
		ImageURL:    l.ImageURL,
		Status:      string(l.Status),
		PointsValue: l.PointsValue,
		Version:     l.Version,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toDomainSwap(row *sqlSwap) (*domain.SwapRequest, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}
	listingID, err := uuid.Parse(row.ListingID)
	if err != nil {
		return nil, err
	}
	return &domain.SwapRequest{
		ID:          id,
		ListingID:   listingID,
		RequesterID: row.RequesterID,
		Status:      domain.SwapStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		ResolvedAt:  row.ResolvedAt,
	}, nil
}

func fromDomainSwap(req *domain.SwapRequest) *sqlSwap {
	return &sqlSwap{
		ID:          req.ID.String(),
		ListingID:   req.ListingID.String(),
		RequesterID: req.RequesterID,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
		ResolvedAt:  req.ResolvedAt,
	}
}

// pessimistic 加上 FOR UPDATE
// SQLite (測試用) 不支援，但單一寫入者本來就序列化，直接略過
func pessimistic(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockListing 以 FOR UPDATE 取出刊登列，呼叫端必須在交易內
func lockListing(tx *gorm.DB, listingID uuid.UUID) (*sqlListing, error) {
	var row sqlListing
	err := pessimistic(tx).
		Where("id = ?", listingID.String()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// lockActiveSwap 以 FOR UPDATE 取出未解決的請求，沒有則回傳 nil
func lockActiveSwap(tx *gorm.DB, listingID uuid.UUID) (*sqlSwap, error) {
	var row sqlSwap
	err := pessimistic(tx).
		Where("listing_id = ? AND status IN ?", listingID.String(),
			[]string{string(domain.SwapStatusOpen), string(domain.SwapStatusAccepted)}).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// lockOrCreateAccount 以 FOR UPDATE 取出帳戶列，首次被引用時建立 (餘額 0)
func lockOrCreateAccount(tx *gorm.DB, userID string) (*sqlAccount, error) {
	var row sqlAccount
	err := pessimistic(tx).
		Where("user_id = ?", userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = sqlAccount{UserID: userID}
		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *SQLExchange) publishListing(l *sqlListing) {
	if s.hub != nil {
		s.hub.Publish(pubsub.Event{Kind: pubsub.KindListing, ID: l.ID, Status: l.Status})
	}
}

func (s *SQLExchange) publishSwap(req *sqlSwap) {
	if s.hub != nil {
		s.hub.Publish(pubsub.Event{Kind: pubsub.KindSwap, ID: req.ID, Status: req.Status})
	}
}

func (s *SQLExchange) publishAccount(userID string) {
	if s.hub != nil {
		s.hub.Publish(pubsub.Event{Kind: pubsub.KindAccount, ID: userID})
	}
}

// CreateListing 建立刊登
func (s *SQLExchange) CreateListing(ctx context.Context, listing *domain.Listing) error {
	now := time.Now().UnixMilli()
	listing.Status = domain.ListingStatusAvailable
	listing.Version = 1
	listing.CreatedAt = now
	listing.UpdatedAt = now

	row := fromDomainListing(listing)
	if err := s.client.DB().WithContext(ctx).Create(row).Error; err != nil {
		return translate(err)
	}
	s.publishListing(row)
	return nil
}

// GetListing 讀取單筆刊登
func (s *SQLExchange) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var row sqlListing
	err := s.client.DB().WithContext(ctx).Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return toDomainListing(&row)
}

// ListListings 依條件列出刊登，新的在前
func (s *SQLExchange) ListListings(ctx context.Context, filter usecase.ListingFilter) ([]*domain.Listing, error) {
	q := s.client.DB().WithContext(ctx).Model(&sqlListing{}).Order("created_at DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.OwnerID != "" {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}

	var rows []sqlListing
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	result := make([]*domain.Listing, 0, len(rows))
	for i := range rows {
		l, err := toDomainListing(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}

// ActiveSwap 取得刊登目前未解決的交換請求
func (s *SQLExchange) ActiveSwap(ctx context.Context, listingID uuid.UUID) (*domain.SwapRequest, error) {
	var row sqlSwap
	err := s.client.DB().WithContext(ctx).
		Where("listing_id = ? AND status IN ?", listingID.String(),
			[]string{string(domain.SwapStatusOpen), string(domain.SwapStatusAccepted)}).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSwapNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return toDomainSwap(&row)
}

// RequestSwap 發起交換請求
// 交易內鎖住刊登列，確保「最多一筆 open 請求」在並發下仍成立
func (s *SQLExchange) RequestSwap(ctx context.Context, listingID uuid.UUID, requesterID string) (*domain.SwapRequest, error) {
	var created *sqlSwap
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockListing(tx, listingID)
		if err != nil {
			return err
		}
		l, err := toDomainListing(row)
		if err != nil {
			return err
		}
		activeRow, err := lockActiveSwap(tx, listingID)
		if err != nil {
			return err
		}
		var active *domain.SwapRequest
		if activeRow != nil {
			if active, err = toDomainSwap(activeRow); err != nil {
				return err
			}
		}
		if err := domain.CheckRequestSwap(l, requesterID, active); err != nil {
			return err
		}

		req := domain.NewSwapRequest(listingID, requesterID)
		req.CreatedAt = time.Now().UnixMilli()
		created = fromDomainSwap(req)
		return tx.Create(created).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	s.publishSwap(created)
	return toDomainSwap(created)
}

// ResolveSwap 處理交換請求 (accept/decline/finalize/cancel)
func (s *SQLExchange) ResolveSwap(ctx context.Context, listingID uuid.UUID, action domain.SwapAction, actorID string) error {
	var savedListing *sqlListing
	var savedSwap *sqlSwap
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockListing(tx, listingID)
		if err != nil {
			return err
		}
		l, err := toDomainListing(row)
		if err != nil {
			return err
		}
		activeRow, err := lockActiveSwap(tx, listingID)
		if err != nil {
			return err
		}
		var req *domain.SwapRequest
		if activeRow != nil {
			if req, err = toDomainSwap(activeRow); err != nil {
				return err
			}
		}

		before := l.Status
		if err := domain.ApplySwapAction(l, req, action, actorID); err != nil {
			return err
		}

		now := time.Now().UnixMilli()
		if req.Resolved() {
			req.ResolvedAt = now
		}
		savedSwap = fromDomainSwap(req)
		if err := tx.Save(savedSwap).Error; err != nil {
			return err
		}
		if l.Status != before {
			l.Version++
			l.UpdatedAt = now
			savedListing = fromDomainListing(l)
			if err := tx.Save(savedListing).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}
	s.publishSwap(savedSwap)
	if savedListing != nil {
		s.publishListing(savedListing)
	}
	return nil
}

// Redeem 點數兌換
// 扣點與狀態轉移在同一個資料庫交易內，任一步失敗整筆回滾
func (s *SQLExchange) Redeem(ctx context.Context, listingID uuid.UUID, redeemerID string) error {
	var savedListing *sqlListing
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockListing(tx, listingID)
		if err != nil {
			return err
		}
		l, err := toDomainListing(row)
		if err != nil {
			return err
		}
		if err := domain.CheckRedeem(l, redeemerID); err != nil {
			return err
		}

		acctRow, err := lockOrCreateAccount(tx, redeemerID)
		if err != nil {
			return err
		}
		acct := &domain.PointsAccount{
			UserID:  acctRow.UserID,
			Balance: acctRow.Balance,
			Version: acctRow.Version,
		}
		if err := acct.Debit(l.PointsValue); err != nil {
			return err
		}
		if err := l.Transition(domain.ListingStatusRedeemed); err != nil {
			return err
		}

		now := time.Now().UnixMilli()
		acctRow.Balance = acct.Balance
		acctRow.Version++
		acctRow.UpdatedAt = now
		if err := tx.Save(acctRow).Error; err != nil {
			return err
		}
		l.Version++
		l.UpdatedAt = now
		savedListing = fromDomainListing(l)
		return tx.Save(savedListing).Error
	})
	if err != nil {
		return translate(err)
	}
	s.publishListing(savedListing)
	s.publishAccount(redeemerID)
	return nil
}

// Moderate 審核動作 (approve/reject)
func (s *SQLExchange) Moderate(ctx context.Context, listingID uuid.UUID, action domain.ModerateAction) error {
	target, err := domain.ModerationTarget(action)
	if err != nil {
		return err
	}

	var savedListing *sqlListing
	err = s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockListing(tx, listingID)
		if err != nil {
			return err
		}
		l, err := toDomainListing(row)
		if err != nil {
			return err
		}
		if err := l.Transition(target); err != nil {
			return err
		}
		l.Version++
		l.UpdatedAt = time.Now().UnixMilli()
		savedListing = fromDomainListing(l)
		return tx.Save(savedListing).Error
	})
	if err != nil {
		return translate(err)
	}
	s.publishListing(savedListing)
	return nil
}

// GetBalance 取得點數餘額，未知使用者視為 0
func (s *SQLExchange) GetBalance(ctx context.Context, userID string) (int64, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, translate(err)
	}
	return row.Balance, nil
}

// Credit 管理性發點
func (s *SQLExchange) Credit(ctx context.Context, userID string, points int64) error {
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acctRow, err := lockOrCreateAccount(tx, userID)
		if err != nil {
			return err
		}
		acct := &domain.PointsAccount{
			UserID:  acctRow.UserID,
			Balance: acctRow.Balance,
		}
		if err := acct.Credit(points); err != nil {
			return err
		}
		acctRow.Balance = acct.Balance
		acctRow.Version++
		acctRow.UpdatedAt = time.Now().UnixMilli()
		return tx.Save(acctRow).Error
	})
	if err != nil {
		return translate(err)
	}
	s.publishAccount(userID)
	return nil
}

var _ usecase.Exchange = (*SQLExchange)(nil)
