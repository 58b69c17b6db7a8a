package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"pegvault/crypto"
	"pegvault/observability/logging"
)

// AuthConfig configures bearer JWT verification.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	ClockSkew  time.Duration
}

// Authenticator verifies HMAC-signed bearer tokens. The token subject is the base58
// authority that signs submitted batches.
type Authenticator struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
	logger    *slog.Logger
}

// Principal describes an authenticated batch signer.
type Principal struct {
	Subject   string
	Authority crypto.Address
}

type principalContextKey struct{}

// PrincipalFromContext extracts the authenticated principal from the request context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// NewAuthenticator constructs an authenticator from configuration.
func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) (*Authenticator, error) {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return nil, fmt.Errorf("hmac secret must be configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	return &Authenticator{
		secret:    []byte(secret),
		issuer:    strings.TrimSpace(cfg.Issuer),
		clockSkew: skew,
		logger:    logger,
	}, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			writeJSONError(w, http.StatusInternalServerError, "internal", "authentication unavailable")
			return
		}
		token := parseBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
			return
		}
		principal, err := a.verify(token)
		if err != nil {
			a.logger.Warn("token rejected",
				"path", r.URL.Path,
				"error", err,
				logging.MaskField("authorization", r.Header.Get("Authorization")))
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) verify(raw string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.clockSkew),
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	authority, err := crypto.ParseAddress(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}
	return &Principal{Subject: claims.Subject, Authority: authority}, nil
}

func parseBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
