package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"shrike/internal/support"
)

const tokenLifetime = 24 * time.Hour

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

func jwtSecret() []byte {
	return []byte(support.GetEnv("JWT_SECRET", "shrike-dev-secret"))
}

// Login verifies the admin password against the bcrypt hash from the
// environment and returns a signed bearer token.
func Login(password string) (string, error) {
	hash := support.GetEnv("ADMIN_PASSWORD_HASH", "")
	if hash == "" {
		return "", errors.New("auth: ADMIN_PASSWORD_HASH is not configured")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return GenerateJWT("admin")
}

func GenerateJWT(role string) (string, error) {
	claims := jwt.MapClaims{
		"role": role,
		"exp":  time.Now().Add(tokenLifetime).Unix(),
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

func ValidateJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
