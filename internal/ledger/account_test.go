package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_ResaleValueOf(t *testing.T) {
	cfg := Config{UnitAmount: 500, ResaleRatePerShare: 480}

	t.Run("whole shares", func(t *testing.T) {
		assert.Equal(t, int64(1440), cfg.ResaleValueOf(1500))
		assert.Equal(t, int64(480), cfg.ResaleValueOf(500))
		assert.Equal(t, int64(0), cfg.ResaleValueOf(0))
	})

	t.Run("tracks balance after mutation", func(t *testing.T) {
		balance := int64(1500)
		balance += 500
		assert.Equal(t, int64(1920), cfg.ResaleValueOf(balance))
	})
}

func TestConfig_ValidAmount(t *testing.T) {
	cfg := Config{UnitAmount: 500, ResaleRatePerShare: 480}

	assert.True(t, cfg.ValidAmount(500))
	assert.True(t, cfg.ValidAmount(10000))
	assert.False(t, cfg.ValidAmount(0))
	assert.False(t, cfg.ValidAmount(-500))
	assert.False(t, cfg.ValidAmount(750))
	assert.False(t, cfg.ValidAmount(499))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("9998887770")
	b := Fingerprint("9998887770")
	c := Fingerprint("9998887771")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex-encoded sha256
	assert.NotContains(t, a, "9998887770")
}
