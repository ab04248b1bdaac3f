package helpers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTimeAgoES(t *testing.T) {
	tests := []struct {
		hours    float64
		expected string
	}{
		{0.01, "1 minuto"},
		{0.05, "3 minutos"},
		{0.5, "30 minutos"},
		{0.98, "59 minutos"},
		{1.0, "1 hora"},
		{1.4, "1 hora"},
		{1.5, "2 horas"},
		{3.0, "3 horas"},
		{26.7, "27 horas"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, TimeAgoES(tt.hours), "hours=%.2f", tt.hours)
	}
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "TV 55&lt;4K&gt;", EscapeHTML("TV 55<4K>"))
	assert.Equal(t, "sin cambios", EscapeHTML("sin cambios"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hola", Truncate("hola", 10))
	assert.Equal(t, "hola mu...", Truncate("hola mundo!", 10))
	assert.Len(t, Truncate("hola mundo!", 10), 10)
}

func TestTruncate_CountsRunesNotBytes(t *testing.T) {
	// 300 characters but 1200 bytes; a byte-based cut would split a rune
	fire := strings.Repeat("🔥", 300)
	out := Truncate(fire, 400)
	assert.Equal(t, fire, out, "300 characters fit a 400-character limit")

	out = Truncate(fire, 100)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 100, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "..."))

	// Accented Spanish copy survives a cut at any position
	out = Truncate("promoción relámpago", 12)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "promoción...", out)
}
