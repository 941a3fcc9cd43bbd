package registry

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// StreamKeyPrefix marks broadcaster credentials so they are recognisable in
// encoder configuration screens.
const StreamKeyPrefix = "live_"

const streamKeyBytes = 24

// GenerateStreamKey returns "live_" followed by 24 random bytes, base64url
// encoded without padding.
func GenerateStreamKey() (string, error) {
	buf := make([]byte, streamKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate stream key: %w", err)
	}
	return StreamKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

func randomSuffix() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate slug suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
