package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Authenticator resolves a bearer token to a user id
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Config holds JWT settings
type Config struct {
	Secret string
	Issuer string
}

// JWTAuthenticator validates HS256 access tokens carrying a user_id claim
type JWTAuthenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTAuthenticator creates a new JWTAuthenticator
func NewJWTAuthenticator(cfg Config) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Authenticate returns the user id of a valid token. An empty token yields
// domain.ErrUnauthenticated; anything unverifiable yields domain.ErrBadToken.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, tokenString string) (string, error) {
	_, span := telemetry.StartSpan(ctx, "auth.jwt.authenticate")
	defer span.End()

	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		span.SetStatus(codes.Error, "missing token")
		return "", domain.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrBadToken
		}
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		if err != nil {
			span.RecordError(err)
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			span.SetStatus(codes.Error, "token expired")
		} else {
			span.SetStatus(codes.Error, "invalid token")
		}
		return "", domain.ErrBadToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		span.SetStatus(codes.Error, "invalid claims")
		return "", domain.ErrBadToken
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		// fall back to the standard subject claim
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		span.SetStatus(codes.Error, "missing user_id")
		return "", domain.ErrBadToken
	}

	span.SetAttributes(attribute.String("user_id", userID))
	span.SetStatus(codes.Ok, "")
	return userID, nil
}

// IssueToken signs an access token for userID in the format Authenticate accepts
func (a *JWTAuthenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub":     userID,
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	if a.issuer != "" {
		claims["iss"] = a.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

var _ Authenticator = (*JWTAuthenticator)(nil)
