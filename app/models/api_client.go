package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// APIClient is an operator-side API credential. Only a SHA-256 hash of the
// key is stored; the plaintext is shown once at creation time.
type APIClient struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"type:varchar(100);not null" json:"name" validate:"required,min=2,max=100"`
	KeyHash    string     `gorm:"type:char(64);not null;uniqueIndex" json:"-"`
	IsActive   bool       `gorm:"default:true;index" json:"is_active"`
	LastUsedAt *time.Time `gorm:"type:timestamp;default:null" json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HashAPIKey returns the hex SHA-256 of a plaintext API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey creates a new random plaintext API key.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
