package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	PurposeAccess       = "access"
	PurposeVerification = "verify_email"
)

var ErrInvalidToken = errors.New("invalid token")

// CustomerClaims are carried by the access token issued from the init exchange
type CustomerClaims struct {
	WidgetID   string `json:"widgetId"`
	CustomerID string `json:"customerId"`
	Purpose    string `json:"purpose"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates customer tokens with an HS256 secret
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueAccessToken creates the jwt returned by the init exchange.
func (ti *TokenIssuer) IssueAccessToken(widgetID, customerID string) (string, error) {
	return ti.sign(CustomerClaims{
		WidgetID:   widgetID,
		CustomerID: customerID,
		Purpose:    PurposeAccess,
	}, ti.ttl)
}

// IssueVerificationToken creates a short-lived token embedded in the verification email link.
func (ti *TokenIssuer) IssueVerificationToken(widgetID, customerID, email string) (string, error) {
	return ti.sign(CustomerClaims{
		WidgetID:   widgetID,
		CustomerID: customerID,
		Purpose:    PurposeVerification,
		Email:      email,
	}, 24*time.Hour)
}

func (ti *TokenIssuer) sign(claims CustomerClaims, ttl time.Duration) (string, error) {
	now := ti.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.CustomerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        GenerateULID(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and checks its signature, expiry and purpose.
func (ti *TokenIssuer) Validate(tokenString, purpose string) (*CustomerClaims, error) {
	claims := &CustomerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
