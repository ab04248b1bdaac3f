package notifications

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClip(t *testing.T) {
	assert.Equal(t, "corto", clip("corto", 10))

	clipped := clip(strings.Repeat("x", 2000), captionLimit)
	assert.LessOrEqual(t, utf8.RuneCountInString(clipped), captionLimit)
	assert.True(t, strings.HasSuffix(clipped, "..."))
}

func TestClip_CountsRunesNotBytes(t *testing.T) {
	// 600 fire emoji: 600 characters, 2400 bytes. Telegram counts characters,
	// and a byte-based cut would split a rune and get the payload rejected.
	fire := strings.Repeat("🔥", 600)

	assert.Equal(t, fire, clip(fire, captionLimit), "600 characters fit the 1024 caption limit")

	clipped := clip(fire, 100)
	assert.True(t, utf8.ValidString(clipped))
	assert.Equal(t, 99, utf8.RuneCountInString(clipped))
	assert.True(t, strings.HasSuffix(clipped, "..."))
}

func TestSendError_Transient(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"network failure", 0, true},
		{"flood limit", 429, true},
		{"server error", 502, true},
		{"blocked bot", 403, false},
		{"bad request", 400, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &SendError{ChatID: "111", StatusCode: tt.status, Err: errors.New("x")}
			assert.Equal(t, tt.transient, err.Transient())
		})
	}
}
