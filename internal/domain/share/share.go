// Package share builds the WhatsApp share messages offered under results.
package share

import (
	"strings"

	"github.com/okian/meradin/internal/domain/reading"
	"github.com/okian/meradin/internal/domain/stars"
)

const whatsAppBase = "https://wa.me/?text="

// Builder formats messages that point readers back at Host.
type Builder struct {
	Host string
}

// New returns a Builder for host, e.g. "meradinkaisajayega.online".
func New(host string) Builder {
	return Builder{Host: host}
}

// TodayMessage formats a daily reading. The text starts with two newlines.
func (b Builder) TodayMessage(r reading.Today) string {
	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(r.Name + " — " + r.MoonSign + "\n")
	sb.WriteString("Alignment: " + stars.Glyphs(r.AlignmentScore) + " " + stars.FormatScore(r.AlignmentScore) + "/10\n\n")
	sb.WriteString(strings.Join(r.ContextLines, "\n\n"))
	sb.WriteString("\n\nCheck yours at " + b.Host)
	return sb.String()
}

// CompatibilityMessage formats a compatibility reading for the two names.
func (b Builder) CompatibilityMessage(nameA, nameB string, r reading.Compatibility) string {
	return strings.Join([]string{
		"💫 Compatibility Reading",
		nameA + " & " + nameB,
		"❤️ Score: " + stars.FormatScore(r.Score) + " / 100",
		strings.Join(r.SummaryLines, "\n\n"),
		"✨ Check yours at " + b.Host + "/compatibility",
	}, "\n\n")
}

// WhatsAppURL returns the wa.me link that pre-fills message.
func WhatsAppURL(message string) string {
	return whatsAppBase + EncodeURIComponent(message)
}

// EncodeURIComponent percent-encodes every byte of s except the unreserved
// marks A–Z a–z 0–9 - _ . ! ~ * ' ( ).
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}
	return sb.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
