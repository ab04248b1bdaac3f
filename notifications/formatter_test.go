package notifications

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseView() DealView {
	return DealView{
		Title:               "Nintendo Switch OLED",
		Merchant:            "Amazon",
		ImageURL:            "https://img.example.mx/switch.jpg",
		URL:                 "https://example.mx/ofertas/switch-oled",
		Price:               "$5,999",
		Description:         "Consola híbrida con pantalla OLED de 7 pulgadas.",
		Temperature:         152,
		HoursSincePublished: 0.5,
		Rating:              3,
	}
}

func TestBuildDealMessage(t *testing.T) {
	msg := BuildDealMessage(baseView())

	assert.Contains(t, msg.Text, "<b>Nintendo Switch OLED</b>")
	assert.Contains(t, msg.Text, "Calificación:</b> 152° 🔥🔥🔥")
	assert.Contains(t, msg.Text, "<b>Publicado hace:</b> 30 minutos")
	assert.Contains(t, msg.Text, "<b>Comercio:</b> Amazon")
	assert.Contains(t, msg.Text, "<b>Precio:</b> $5,999")
	assert.Contains(t, msg.Text, "pantalla OLED")

	assert.Equal(t, "https://img.example.mx/switch.jpg", msg.ImageURL)
	assert.Equal(t, "https://example.mx/ofertas/switch-oled", msg.DealURL)
}

func TestBuildDealMessage_EscapesHTML(t *testing.T) {
	view := baseView()
	view.Title = "Pantalla 55\" <4K>"
	view.Description = "HDMI <2.1> incluido"

	msg := BuildDealMessage(view)
	assert.Contains(t, msg.Text, "&lt;4K&gt;")
	assert.Contains(t, msg.Text, "HDMI &lt;2.1&gt;")
	assert.NotContains(t, msg.Text, "<4K>")
}

func TestBuildDealMessage_OptionalFields(t *testing.T) {
	view := baseView()
	view.Price = ""
	view.Discount = "-40%"
	view.Coupon = "HOTSALE25"

	msg := BuildDealMessage(view)
	assert.NotContains(t, msg.Text, "Precio:")
	assert.Contains(t, msg.Text, "<b>Descuento:</b> -40%")
	assert.Contains(t, msg.Text, "<b>Cupón:</b> <code>HOTSALE25</code>")
}

func TestBuildDealMessage_Fallbacks(t *testing.T) {
	view := baseView()
	view.Merchant = ""
	view.PostedOrUpdated = "Actualizado"

	msg := BuildDealMessage(view)
	assert.Contains(t, msg.Text, "<b>Comercio:</b> N/D")
	assert.Contains(t, msg.Text, "<b>Actualizado hace:</b>")
}

func TestBuildDealMessage_TruncatesDescription(t *testing.T) {
	view := baseView()
	view.Description = strings.Repeat("muy larga ", 100)

	msg := BuildDealMessage(view)
	assert.Contains(t, msg.Text, "...")
	// The description block alone stays within the caption-friendly limit
	idx := strings.Index(msg.Text, "Descripción:")
	assert.LessOrEqual(t, len(msg.Text[idx:]), descriptionLimit+len("Descripción:</b>\n")+10)
}

func TestBuildDealMessage_RejectsNonHTTPImage(t *testing.T) {
	view := baseView()
	view.ImageURL = "data:image/png;base64,AAAA"

	msg := BuildDealMessage(view)
	assert.Empty(t, msg.ImageURL, "only http(s) images go to sendPhoto")
}

func TestBuildDealMessage_ZeroRatingHasNoFire(t *testing.T) {
	view := baseView()
	view.Rating = 0

	msg := BuildDealMessage(view)
	assert.NotContains(t, msg.Text, "🔥")
}
