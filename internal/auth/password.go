package auth

import "golang.org/x/crypto/bcrypt"

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// maxPasswordBytes is the most bcrypt reads; longer passwords are cut to it.
const maxPasswordBytes = 72

// Hasher turns plaintext passwords into bcrypt secrets and checks them.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost.
// Out-of-range costs fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash produces a salted bcrypt secret for plaintext.
// Only the first 72 bytes of plaintext are significant.
func (h *Hasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(truncate(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches secret. Malformed secrets never match.
func (h *Hasher) Verify(plaintext, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(secret), truncate(plaintext)) == nil
}

func truncate(plaintext string) []byte {
	b := []byte(plaintext)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
