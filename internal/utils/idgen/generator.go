package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSecureID returns prefix_<length random lowercase alphanumerics>.
func GenerateSecureID(prefix string, length int) (string, error) {
	max := big.NewInt(int64(len(charset)))
	encoded := make([]byte, length)
	for i := range encoded {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		encoded[i] = charset[n.Int64()]
	}
	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

// SessionID returns a new opaque session identifier.
func SessionID() (string, error) {
	return GenerateSecureID("vsess", 24)
}

// FrameID returns "<UTC date>/<uuid>", the time partitioned key under which a
// decoded frame is persisted.
func FrameID(now time.Time) string {
	return now.UTC().Format("2006-01-02") + "/" + uuid.NewString()
}
