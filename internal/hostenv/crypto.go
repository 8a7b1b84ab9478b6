package hostenv

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// maxRandomBytes is the per-call quota of getRandomValues.
const maxRandomBytes = 65536

// Crypto fills guest buffers from a secure random source.
type Crypto struct {
	source io.Reader
}

// NewCrypto creates a Crypto over crypto/rand.
func NewCrypto() *Crypto {
	return &Crypto{source: rand.Reader}
}

// GetRandomValues fills buf. Requests above 65536 bytes fail with QuotaExceededError.
func (c *Crypto) GetRandomValues(buf []byte) error {
	if len(buf) > maxRandomBytes {
		return &protocol.ErrorValue{
			Name:    "QuotaExceededError",
			Message: fmt.Sprintf("the requested length %d exceeds %d bytes", len(buf), maxRandomBytes),
		}
	}
	return c.fill(buf)
}

// RandomFillSync fills buf without a quota.
func (c *Crypto) RandomFillSync(buf []byte) error {
	return c.fill(buf)
}

func (c *Crypto) fill(buf []byte) error {
	if _, err := io.ReadFull(c.source, buf); err != nil {
		return fmt.Errorf("failed to read random bytes: %w", err)
	}
	return nil
}
