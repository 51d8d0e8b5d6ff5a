package auth

import (
	"context"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	XUserNameHeader = "X-User-Name"
	XUserRoleHeader = "X-User-Role"

	RoleAdmin   = "admin"
	RoleStudent = "student"

	defaultTokenTTL = 24 * time.Hour
)

// JWTKey signs and verifies session tokens. HS256, shared secret from env.
var JWTKey = []byte(jwtKeyFromEnv())

func jwtKeyFromEnv() string {
	if key := os.Getenv("JWT_KEY"); key != "" {
		return key
	}
	return "library-service-dev-key"
}

type Claims struct {
	Profile struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"profile"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewToken issues a signed HS256 token carrying the member's profile.
func NewToken(username, role, email string) (string, time.Time, error) {
	expiresAt := time.Now().Add(defaultTokenTTL)
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	claims.Profile.Username = username
	claims.Profile.Role = role

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(JWTKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken verifies the signature and expiry and returns the claims.
func ParseToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return JWTKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	return claims, nil
}

type ctxKey int

const authCtxKey ctxKey = iota + 1

type AuthInfo struct {
	Username string
	Role     string
}

func SetAuthContext(ctx context.Context, username, role string) context.Context {
	return context.WithValue(ctx, authCtxKey, AuthInfo{Username: username, Role: role})
}

func FromContext(ctx context.Context) (AuthInfo, error) {
	info, ok := ctx.Value(authCtxKey).(AuthInfo)
	if !ok {
		return AuthInfo{}, errors.New("no auth info in context")
	}
	return info, nil
}

// HashPassword wraps bcrypt with the default cost. The stored credential
// is opaque to the rest of the system.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
