package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mhartmann/staffing-recommender-go/pkg/database"
)

var jwtSecret = []byte(os.Getenv("JWT_SECRET"))

const (
	bcryptCost = 14
	tokenTTL   = 24 * time.Hour
)

// Claims is the admin token payload
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

// CheckPasswordHash reports whether password matches the stored bcrypt hash
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CreateToken issues an admin JWT valid for tokenTTL
func CreateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// VerifyToken parses and validates an admin JWT
func VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// EnsureAdminExists bootstraps a master user from environment variables when
// the table is empty
func EnsureAdminExists(db *gorm.DB) error {
	var count int64
	db.Model(&database.MasterUser{}).Count(&count)
	if count > 0 {
		return nil
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := db.Create(&database.MasterUser{Username: username, PasswordHash: hash}).Error; err != nil {
		return err
	}
	log.Info().Str("username", username).Msg("default admin user created")
	return nil
}

// GenerateHMACKey creates a "<userID>.<signature>" API key signed with the
// master secret, so keys can be issued offline and verified statelessly
func GenerateHMACKey(userID string) string {
	return userID + "." + sign(userID)
}

// VerifyHMACKey validates an HMAC-signed API key and returns its user id
func VerifyHMACKey(key string) (string, error) {
	userID, signature, ok := strings.Cut(key, ".")
	if !ok {
		return "", errors.New("invalid key format")
	}
	// constant-time comparison
	if !hmac.Equal([]byte(signature), []byte(sign(userID))) {
		return "", errors.New("invalid signature")
	}
	return userID, nil
}

func sign(userID string) string {
	h := hmac.New(sha256.New, []byte(os.Getenv("API_MASTER_SECRET")))
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}
