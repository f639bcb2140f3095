package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	memory_adapter "github.com/THEAllStarsolver/ReWear/internal/app/core/adapter/out/memory"
	"github.com/THEAllStarsolver/ReWear/internal/app/core/domain"
	"github.com/THEAllStarsolver/ReWear/internal/app/core/usecase"
	"github.com/THEAllStarsolver/ReWear/pkg/auth"
	"github.com/THEAllStarsolver/ReWear/pkg/pubsub"
)

const testSecret = "test-secret"

type testEnv struct {
	router   *gin.Engine
	verifier *auth.Verifier
	hub      *pubsub.Hub
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := pubsub.NewHub()
	exchange, err := memory_adapter.NewMutexExchange(nil, hub)
	require.NoError(t, err)
	verifier := auth.NewVerifier(testSecret)
	server := NewServer(usecase.NewCoreUseCase(exchange), verifier, hub)

	router := gin.New()
	server.RegisterRoutes(router)
	return &testEnv{router: router, verifier: verifier, hub: hub}
}

func (e *testEnv) token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	token, err := e.verifier.Issue(userID, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		raw, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createListing(t *testing.T, token string, pointsValue int64) domain.Listing {
	t.Helper()
	w := e.do("POST", "/api/listings", token, map[string]any{
		"title":        "vintage tee",
		"category":     "tops",
		"size":         "M",
		"points_value": pointsValue,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var l domain.Listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l))
	return l
}

func TestAuthRequired(t *testing.T) {
	e := setup(t)

	w := e.do("POST", "/api/listings", "", map[string]any{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do("POST", "/api/listings", "not-a-jwt", map[string]any{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndBrowseListings(t *testing.T) {
	e := setup(t)
	owner := e.token(t, "u1", auth.RoleUser)
	l := e.createListing(t, owner, 100)
	require.Equal(t, "u1", l.OwnerID)
	require.Equal(t, domain.ListingStatusAvailable, l.Status)

	// 瀏覽不需要登入
	w := e.do("GET", "/api/listings?status=available", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Listings []domain.Listing `json:"listings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Listings, 1)

	w = e.do("GET", "/api/listings/"+l.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do("GET", "/api/listings/not-a-uuid", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateListingValidation(t *testing.T) {
	e := setup(t)
	token := e.token(t, "u1", auth.RoleUser)

	w := e.do("POST", "/api/listings", token, map[string]any{"points_value": 10})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do("POST", "/api/listings", token, map[string]any{"title": "x", "points_value": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwapRequestFlow(t *testing.T) {
	e := setup(t)
	owner := e.token(t, "u1", auth.RoleUser)
	requester := e.token(t, "u2", auth.RoleUser)
	other := e.token(t, "u3", auth.RoleUser)
	l := e.createListing(t, owner, 0)
	path := "/api/listings/" + l.ID.String()

	// 擁有者不能對自己的刊登發請求
	w := e.do("POST", path+"/swap-request", owner, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = e.do("POST", path+"/swap-request", requester, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// 第二筆請求被擋
	w = e.do("POST", path+"/swap-request", other, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// 非擁有者不能接受
	w = e.do("POST", path+"/swap/accept", requester, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = e.do("POST", path+"/swap/accept", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do("POST", path+"/swap/finalize", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 無效動作
	w = e.do("POST", path+"/swap/destroy", owner, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedeemFlow(t *testing.T) {
	e := setup(t)
	owner := e.token(t, "u1", auth.RoleUser)
	redeemer := e.token(t, "u2", auth.RoleUser)
	admin := e.token(t, "admin-1", auth.RoleAdmin)
	l := e.createListing(t, owner, 100)
	path := "/api/listings/" + l.ID.String()

	// 沒點數：Payment Required
	w := e.do("POST", path+"/redeem", redeemer, nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	// 管理者發點
	w = e.do("POST", "/api/accounts/u2/credit", admin, map[string]any{"points": 150})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do("POST", path+"/redeem", redeemer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Listing domain.Listing `json:"listing"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, domain.ListingStatusRedeemed, resp.Listing.Status)

	// 重複兌換
	w = e.do("POST", path+"/redeem", redeemer, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// 餘額恰好扣了一次
	w = e.do("GET", "/api/me/balance", redeemer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balResp struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balResp))
	require.Equal(t, int64(50), balResp.Balance)
}

func TestModerationRequiresAdminRole(t *testing.T) {
	e := setup(t)
	owner := e.token(t, "u1", auth.RoleUser)
	l := e.createListing(t, owner, 0)
	path := "/api/listings/" + l.ID.String() + "/moderate"

	// 一般使用者不行，就算 user id 長得像 admin 也不行
	fakeAdmin := e.token(t, "admin-wannabe", auth.RoleUser)
	w := e.do("POST", path, fakeAdmin, map[string]any{"action": "reject"})
	require.Equal(t, http.StatusForbidden, w.Code)

	admin := e.token(t, "mod-1", auth.RoleAdmin)
	w = e.do("POST", path, admin, map[string]any{"action": "reject"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do("POST", path, admin, map[string]any{"action": "reject"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = e.do("POST", path, admin, map[string]any{"action": "nuke"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreditRequiresAdminRole(t *testing.T) {
	e := setup(t)
	user := e.token(t, "u1", auth.RoleUser)
	w := e.do("POST", "/api/accounts/u2/credit", user, map[string]any{"points": 10})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetListingNotFound(t *testing.T) {
	e := setup(t)
	w := e.do("GET", "/api/listings/00000000-0000-0000-0000-000000000001", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

// readDegradedExchange 兌換提交之後讀取一律失敗，模擬提交與回讀之間的後端故障
type readDegradedExchange struct {
	usecase.Exchange
	degraded bool
}

func (f *readDegradedExchange) Redeem(ctx context.Context, listingID uuid.UUID, redeemerID string) error {
	if err := f.Exchange.Redeem(ctx, listingID, redeemerID); err != nil {
		return err
	}
	f.degraded = true
	return nil
}

func (f *readDegradedExchange) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	if f.degraded {
		return nil, domain.ErrUnavailable
	}
	return f.Exchange.GetListing(ctx, id)
}

func TestRedeemSuccessSurvivesReadBackFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := pubsub.NewHub()
	mem, err := memory_adapter.NewMutexExchange(nil, hub)
	require.NoError(t, err)
	verifier := auth.NewVerifier(testSecret)
	server := NewServer(usecase.NewCoreUseCase(&readDegradedExchange{Exchange: mem}), verifier, hub)
	router := gin.New()
	server.RegisterRoutes(router)
	e := &testEnv{router: router, verifier: verifier, hub: hub}

	owner := e.token(t, "u1", auth.RoleUser)
	redeemer := e.token(t, "u2", auth.RoleUser)
	admin := e.token(t, "admin-1", auth.RoleAdmin)
	l := e.createListing(t, owner, 100)
	w := e.do("POST", "/api/accounts/u2/credit", admin, map[string]any{"points": 100})
	require.Equal(t, http.StatusOK, w.Code)

	// 兌換已提交，回讀失敗：仍回 200，只是省略 listing
	w = e.do("POST", "/api/listings/"+l.ID.String()+"/redeem", redeemer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotContains(t, resp, "listing")

	// 帳本確實扣了款
	w = e.do("GET", "/api/me/balance", redeemer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balResp struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balResp))
	require.Equal(t, int64(0), balResp.Balance)
}
