package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/campustrade/backend/internal/models"
)

// AuthService handles registration and login. Redis, when present, caches
// the active session token per account so deletions can invalidate it.
type AuthService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{db: db, redis: redisClient}
}

// Register creates a member account with zero balance.
func (s *AuthService) Register(username, password, contact string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return Errf(KindInvalidArgument, "username and password must not be blank")
	}

	hashed, err := HashPassword(password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", username, err)
		return Internal(err)
	}

	_, err = s.db.Exec(
		`INSERT INTO users (username, password, role, contact, balance) VALUES ($1, $2, 'member', $3, 0)`,
		username, hashed, contact,
	)
	if err != nil {
		if isUniqueViolation(err) {
			log.Printf("[AUTH] Registration rejected, username taken: %s", username)
			return Errf(KindConflict, "username already exists")
		}
		log.Printf("[AUTH] Registration failed for %s: %v", username, err)
		return Internal(err)
	}

	log.Printf("[AUTH] User registered: %s", username)
	return nil
}

// Login verifies credentials and returns the account plus a session token.
// The stored hash never leaves this method.
func (s *AuthService) Login(username, password string) (*models.User, string, error) {
	var (
		user      models.User
		hashed    string
		contact   sql.NullString
		balance   int64
		createdAt time.Time
	)
	err := s.db.QueryRow(
		`SELECT user_id, username, role, contact, balance, password, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&user.UserID, &user.Username, &user.Role, &contact, &balance, &hashed, &createdAt)
	if err == sql.ErrNoRows {
		log.Printf("[AUTH] Login failed, unknown user: %s", username)
		return nil, "", Errf(KindUnauthorized, "invalid username or password")
	}
	if err != nil {
		return nil, "", Internal(err)
	}

	if !VerifyPassword(password, hashed) {
		log.Printf("[AUTH] Login failed, bad password for %s", username)
		return nil, "", Errf(KindUnauthorized, "invalid username or password")
	}

	user.Contact = contact.String
	user.Balance = models.Amount(balance)
	user.CreatedAt = createdAt.Format(models.TimeLayout)

	token, err := generateJWT(user.UserID)
	if err != nil {
		log.Printf("[AUTH] Token generation failed for user %d: %v", user.UserID, err)
		return nil, "", Internal(err)
	}

	if s.redis != nil {
		expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
		key := fmt.Sprintf("session:%d", user.UserID)
		if err := s.redis.Set(context.Background(), key, token, expiry).Err(); err != nil {
			log.Printf("[AUTH] Failed to cache session for user %d: %v", user.UserID, err)
		}
	}

	log.Printf("[AUTH] Login successful for user %d (%s)", user.UserID, user.Username)
	return &user, token, nil
}

func generateJWT(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

// HashPassword derives an argon2id hash, returned as salt$hash in base64.
func HashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword re-derives the hash with the stored salt and compares.
func VerifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computed)
}
