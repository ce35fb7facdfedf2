package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"achievehub/internal/contextutils"
	"achievehub/internal/response"
	"achievehub/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RoleService marks tokens held by collaborator subsystems (quiz, game,
// forum, dashboard) rather than learners.
const RoleService = "service"

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	Leeway    time.Duration
}

// Claims are the token claims issued by the platform's auth service.
// Subject carries the numeric user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthContext is what a verified token says about the caller
type AuthContext struct {
	UserID    int64
	Role      string
	ExpiresAt time.Time
}

// IsService reports whether the caller is a collaborator subsystem
func (a *AuthContext) IsService() bool {
	return a.Role == RoleService
}

var (
	errNoToken        = errors.New("no bearer token")
	errAuthDisabled   = errors.New("token verification is not configured")
	errInvalidSubject = errors.New("token subject is not a user id")
)

// AuthMiddleware verifies HS256 bearer tokens
type AuthMiddleware struct {
	config *AuthConfig
	parser *jwt.Parser
	logger *zap.Logger
}

// NewAuthMiddleware creates the token verifier. With an empty secret every
// authenticated route answers 401.
func NewAuthMiddleware(config *AuthConfig, logger *zap.Logger) *AuthMiddleware {
	if config == nil {
		config = &AuthConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(config.JWTIssuer))
	}

	if config.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty; authenticated routes will reject every request")
	}

	return &AuthMiddleware{
		config: config,
		parser: jwt.NewParser(opts...),
		logger: logger,
	}
}

// Authenticate requires a valid token and puts the caller on the context
func (am *AuthMiddleware) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, err := am.authenticate(r)
			if err != nil {
				GetRequestLogger(r.Context()).Info("Authentication failed", zap.Error(err))
				response.QuickError(w, r, services.NewUnauthorizedError("A valid bearer token is required"))
				return
			}

			ctx := contextutils.WithUserID(r.Context(), authCtx.UserID)
			ctx = contextutils.WithRole(ctx, authCtx.Role)
			ctx = contextutils.WithLogger(ctx, GetRequestLogger(ctx).With(
				zap.Int64("caller_id", authCtx.UserID),
				zap.String("caller_role", authCtx.Role),
			))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireService admits only collaborator subsystems. Must run after Authenticate.
func (am *AuthMiddleware) RequireService() func(http.Handler) http.Handler {
	return am.require(func(r *http.Request) bool {
		return contextutils.GetRole(r.Context()) == RoleService
	}, "This endpoint is reserved for platform services")
}

// RequireUser admits only learner tokens. Must run after Authenticate.
func (am *AuthMiddleware) RequireUser() func(http.Handler) http.Handler {
	return am.require(func(r *http.Request) bool {
		ctx := r.Context()
		return contextutils.GetRole(ctx) != RoleService && contextutils.GetUserID(ctx) > 0
	}, "This endpoint requires a learner token")
}

func (am *AuthMiddleware) require(allowed func(*http.Request) bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(r) {
				response.QuickError(w, r, services.NewForbiddenError(message))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (am *AuthMiddleware) authenticate(r *http.Request) (*AuthContext, error) {
	if am.config.JWTSecret == "" {
		return nil, errAuthDisabled
	}

	tokenString, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = am.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(am.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID < 0 {
		return nil, errInvalidSubject
	}

	authCtx := &AuthContext{UserID: userID, Role: claims.Role}
	if claims.ExpiresAt != nil {
		authCtx.ExpiresAt = claims.ExpiresAt.Time
	}
	return authCtx, nil
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on a websocket handshake, so upgrades may pass the token as ?access_token=.
func bearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errors.New("invalid authorization header format")
		}
		return strings.TrimSpace(token), nil
	}

	if websocket.IsWebSocketUpgrade(r) {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
	}
	return "", errNoToken
}

// IssueToken signs a token for userID with the given role. Used by tests
// and local tooling; production tokens come from the auth service.
func IssueToken(secret string, userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
