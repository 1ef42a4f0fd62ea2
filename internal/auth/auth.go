package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/iurnickita/storecredit/internal/auth/config"
)

type Auth interface {
	IssueToken(seller int64) (string, error)
	ParseToken(tokenString string) (int64, error)
	Middleware(h http.Handler) http.Handler
}

const (
	cookieSellerToken = "storecreditSellerToken"
	defaultTTL        = 24 * time.Hour
)

var (
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
)

type sellerKey struct{}

type auth struct {
	secret []byte
	ttl    time.Duration
}

func NewAuth(cfg config.Config) (Auth, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth secret is empty")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &auth{secret: []byte(cfg.Secret), ttl: ttl}, nil
}

// IssueToken signs a token whose subject is the seller id.
func (a *auth) IssueToken(seller int64) (string, error) {
	if seller <= 0 {
		return "", fmt.Errorf("%w: seller id must be positive", ErrInvalidToken)
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(seller, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *auth) ParseToken(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	seller, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || seller <= 0 {
		return 0, ErrInvalidToken
	}
	return seller, nil
}

func (a *auth) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// получение id продавца
		seller, err := a.getSeller(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintf(w, "{\"error\":%q}\n", err.Error())
			return
		}

		// передаём управление хендлеру
		h.ServeHTTP(w, r.WithContext(WithSeller(r.Context(), seller)))
	})
}

func (a *auth) getSeller(r *http.Request) (int64, error) {
	// заголовок Authorization, иначе куки
	if header := r.Header.Get("Authorization"); header != "" {
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return 0, ErrInvalidToken
		}
		return a.ParseToken(strings.TrimSpace(tokenString))
	}
	tokenCookie, err := r.Cookie(cookieSellerToken)
	if err != nil {
		return 0, ErrNoToken
	}
	return a.ParseToken(tokenCookie.Value)
}

func WithSeller(ctx context.Context, seller int64) context.Context {
	return context.WithValue(ctx, sellerKey{}, seller)
}

// SellerFromContext returns the seller authenticated by Middleware.
func SellerFromContext(ctx context.Context) (int64, bool) {
	seller, ok := ctx.Value(sellerKey{}).(int64)
	return seller, ok
}
