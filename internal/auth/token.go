package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opsdeck/console/model"
)

// Claims is the signed session token payload. The embedded user and company
// statuses are a snapshot taken at issuance time, used for display only:
// authorization decisions always re-fetch live state from the store.
type Claims struct {
	Email         string `json:"email"`
	Role          string `json:"role"`
	Status        string `json:"status"`
	CompanyID     uint   `json:"companyId"`
	CompanyStatus string `json:"companyStatus"`
	SessionID     string `json:"sid"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() uint {
	id, _ := strconv.ParseUint(c.Subject, 10, 64)
	return uint(id)
}

type TokenIssuer struct {
	secret []byte
}

func (t *TokenIssuer) Issue(user *model.User, company *model.Company, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email:         user.Email,
		Role:          user.Role,
		Status:        user.Status,
		CompanyID:     company.ID,
		CompanyStatus: company.Status,
		SessionID:     sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (t *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret}
}
