package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smilecare/gateway/internal/domain/valueobject"
)

var (
	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("jwt secret is not configured")
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims JWT 载荷
//
// sub 为数字用户ID; role 为 admin、dentist 或其他 (视为无角色);
// dentist_id 只对牙医有意义。
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role,omitempty"`
	DentistID int64  `json:"dentist_id,omitempty"`
	Name      string `json:"name,omitempty"`
}

// TokenService verifies and issues HS256 bearer tokens.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService 创建令牌服务
func NewTokenService(secret, issuer string) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &TokenService{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses a bearer token into a Caller.
func (s *TokenService) Verify(tokenStr string) (valueobject.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return valueobject.Guest(), fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return valueobject.Guest(), ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return valueobject.Guest(), fmt.Errorf("%w: subject must be a positive user id", ErrInvalidToken)
	}

	return valueobject.NewCaller(userID, valueobject.ParseRole(claims.Role), claims.DentistID, claims.Name), nil
}

// Issue signs a token for caller, valid for ttl. Used by the CLI for local testing.
func (s *TokenService) Issue(caller valueobject.Caller, ttl time.Duration) (string, error) {
	if caller.IsGuest() {
		return "", errors.New("cannot issue a token for a guest")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(caller.UserID(), 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:      string(caller.Role()),
		DentistID: caller.DentistID(),
		Name:      caller.Name(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
