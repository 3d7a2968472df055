package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies the HS256 bearer tokens handed out by the
// development server.
type Issuer struct {
	secret  []byte
	issuer  string
	expiry  time.Duration
	nowTime func() time.Time
}

type IssuerOption func(*Issuer)

// WithNowTime sets the clock used for iat/exp and for verification.
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

func NewIssuer(secret, issuer string, expiry time.Duration, options ...IssuerOption) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("[NewIssuer] secret is required")
	}
	if expiry <= 0 {
		return nil, errors.New("[NewIssuer] expiry must be positive")
	}
	i := &Issuer{
		secret:  []byte(secret),
		issuer:  issuer,
		expiry:  expiry,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i, nil
}

// Issue creates a signed token for the account.
func (i *Issuer) Issue(userID int64, email string) (string, Claims, error) {
	now := i.nowTime()
	claims := jwtlib.MapClaims{
		"iss":   i.issuer,
		"sub":   strconv.FormatInt(userID, 10),
		"email": email,
		"iat":   float64(now.Unix()),
		"exp":   float64(now.Add(i.expiry).Unix()),
		"jti":   uuid.New().String(),
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claimsFromMap(claims), nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func (i *Issuer) Verify(rawToken string) (Claims, error) {
	parsed, err := jwtlib.Parse(rawToken, func(*jwtlib.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(i.nowTime),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	return claimsFromMap(mapClaims), nil
}
