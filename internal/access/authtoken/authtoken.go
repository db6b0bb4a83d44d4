// Package authtoken issues the short-lived access token handed out when a
// login flow reaches AUTHENTICATED, and parses it on later requests.
package authtoken

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mohamed2108268/Smart-Access/internal/access/types"
)

var ErrTokenInvalid = errors.New("invalid access token")

const defaultTTL = time.Hour

// Claims is the JWT body.  Subject holds the account id.
type Claims struct {
	jwt.RegisteredClaims
	TenantID int64  `json:"tid"`
	Username string `json:"usr"`
	IsAdmin  bool   `json:"adm,omitempty"`
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("authtoken: secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source.  Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs an HS256 token for p and returns it with its expiry.
func (i *Issuer) Issue(p types.Principal) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.AccountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		TenantID: p.TenantID,
		Username: p.Username,
		IsAdmin:  p.IsAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, exp, nil
}

// Parse validates signature and expiry and returns the principal.
func (i *Issuer) Parse(token string) (types.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return types.Principal{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return types.Principal{}, ErrTokenInvalid
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return types.Principal{}, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}

	return types.Principal{
		AccountID: id,
		TenantID:  claims.TenantID,
		Username:  claims.Username,
		IsAdmin:   claims.IsAdmin,
	}, nil
}
