// Package handoff builds the WhatsApp link the user follows after submitting
// a document, and a QR code of it for desktop browsers.
package handoff

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/evidenceledger/docgen/internal/taxid"
	"github.com/skip2/go-qrcode"
)

// Link is a hand-off target.
type Link struct {
	URL    string `json:"url"`
	QRCode string `json:"qrcode"`
}

// Message is the text sent with the document.
func Message(documentKind, title, pdfURL string) string {
	var b strings.Builder
	b.WriteString("Olá! Segue ")
	if documentKind == "recurso" {
		b.WriteString("o recurso")
	} else {
		b.WriteString("a procuração")
	}
	if title != "" {
		b.WriteString(" de " + title)
	}
	b.WriteString(" para conferência: " + pdfURL)
	return b.String()
}

// New returns the wa.me link for phone with text, and its QR code as a data URL.
// An empty phone lets the user pick the recipient.
func New(phone, text string) (Link, error) {
	u := "https://wa.me/" + taxid.Digits(phone) + "?" + url.Values{"text": {text}}.Encode()

	png, err := qrcode.Encode(u, qrcode.Medium, 256)
	if err != nil {
		return Link{}, errl.Errorf("cannot generate QR code: %w", err)
	}
	return Link{
		URL:    u,
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}
