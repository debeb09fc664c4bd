package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const OneTimeTokenTTL = 20 * time.Minute

// OneTimeToken is a verification or reset token. Only Hash and Expiry are
// persisted; Plaintext goes out in the email link.
type OneTimeToken struct {
	Plaintext string
	Hash      string
	Expiry    time.Time
}

func IssueOneTimeToken(now time.Time) OneTimeToken {
	plain := randomHex(20)
	return OneTimeToken{
		Plaintext: plain,
		Hash:      HashToken(plain),
		Expiry:    now.Add(OneTimeTokenTTL),
	}
}

// HashToken returns the hex SHA-256 digest stored for a one-time token.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("auth: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
