package handoff

import (
	"net/url"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	text := Message("procuracao", "JOAO SILVA", "https://docs.example.com/files/1_p.pdf")
	l, err := New("+55 (48) 99999-0000", text)
	if err != nil {
		t.Fatal(err)
	}

	u, err := url.Parse(l.URL)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "wa.me" || u.Path != "/5548999990000" {
		t.Errorf("url = %s", l.URL)
	}
	if got := u.Query().Get("text"); got != text {
		t.Errorf("text = %q", got)
	}
	if !strings.HasPrefix(l.QRCode, "data:image/png;base64,") {
		t.Errorf("qrcode = %.40s", l.QRCode)
	}
}

func TestMessage(t *testing.T) {
	if m := Message("recurso", "", "u"); m != "Olá! Segue o recurso para conferência: u" {
		t.Errorf("message = %q", m)
	}
}
