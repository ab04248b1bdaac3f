package notifications

import (
	"fmt"
	"strings"

	"promodeals-radar/helpers"
)

// Message is a rendered notification ready for transport. When ImageURL is
// set the transport sends a photo with the text as caption, otherwise a
// plain HTML message.
type Message struct {
	Text     string
	ImageURL string
	DealURL  string
}

// DealView is the slice of a scored deal the formatter needs. No business
// logic happens here; the decision gate already decided to notify.
type DealView struct {
	Title               string
	Merchant            string
	ImageURL            string
	URL                 string
	Price               string
	Discount            string
	Coupon              string
	Description         string
	PostedOrUpdated     string // "Publicado" or "Actualizado"
	Temperature         float64
	HoursSincePublished float64
	Rating              int
}

const descriptionLimit = 400

// BuildDealMessage renders a gated deal into the Telegram notification body
func BuildDealMessage(d DealView) Message {
	emoji := strings.Repeat("🔥", d.Rating)
	timeAgo := helpers.TimeAgoES(d.HoursSincePublished)

	postedLabel := d.PostedOrUpdated
	if postedLabel == "" {
		postedLabel = "Publicado"
	}

	merchant := d.Merchant
	if merchant == "" {
		merchant = "N/D"
	}

	var optLines []string
	if d.Price != "" && d.Price != "N/D" {
		optLines = append(optLines, fmt.Sprintf("<b>Precio:</b> %s", helpers.EscapeHTML(d.Price)))
	}
	if d.Discount != "" {
		optLines = append(optLines, fmt.Sprintf("<b>Descuento:</b> %s", helpers.EscapeHTML(d.Discount)))
	}
	if d.Coupon != "" {
		optLines = append(optLines, fmt.Sprintf("<b>Cupón:</b> <code>%s</code>", helpers.EscapeHTML(d.Coupon)))
	}
	optBlock := ""
	if len(optLines) > 0 {
		optBlock = "\n" + strings.Join(optLines, "\n")
	}

	text := fmt.Sprintf(`<b>%s</b>

<b>Calificación:</b> %.0f° %s
<b>%s hace:</b> %s
<b>Comercio:</b> %s
%s

<b>Descripción:</b>
%s`,
		helpers.EscapeHTML(d.Title),
		d.Temperature,
		emoji,
		helpers.EscapeHTML(postedLabel),
		timeAgo,
		helpers.EscapeHTML(merchant),
		optBlock,
		helpers.Truncate(helpers.EscapeHTML(d.Description), descriptionLimit),
	)

	imageURL := ""
	if strings.HasPrefix(d.ImageURL, "http://") || strings.HasPrefix(d.ImageURL, "https://") {
		imageURL = d.ImageURL
	}

	return Message{
		Text:     strings.TrimSpace(text),
		ImageURL: imageURL,
		DealURL:  d.URL,
	}
}
