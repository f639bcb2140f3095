package auth

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Role 使用者角色，來自身分提供者簽發的 token claim
// 不做字串猜測 (例如 user id 含 "admin" 就當管理員)，角色必須由 claim 驗證
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Identity 驗證後的呼叫者身分
type Identity struct {
	UserID string
	Role   Role
}

// Verifier 驗證 bearer token 並解出身分
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify 驗證簽章與有效期，回傳身分
// 只接受 HS256，避免 alg 混淆攻擊
func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	token, err := gojwt.Parse(tokenStr, func(token *gojwt.Token) (any, error) {
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(gojwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	identity := &Identity{Role: RoleUser}
	if userID, ok := claims["user_id"].(string); ok && userID != "" {
		identity.UserID = userID
	} else {
		return nil, ErrInvalidToken
	}
	if role, ok := claims["role"].(string); ok && Role(role) == RoleAdmin {
		identity.Role = RoleAdmin
	}
	return identity, nil
}

// Issue 簽發一個 token (測試與內部工具用；正式簽發在身分提供者那邊)
func (v *Verifier) Issue(userID string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	})
	return token.SignedString(v.secret)
}
