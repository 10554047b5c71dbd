package format

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const (
	mdV2Specials     = "_*[]()~`>#+-=|{}.!\\"
	mdV2CodeSpecials = "`\\"
)

var mdV1Re = regexp.MustCompile("([_*`\\[])")

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
// For V2, entityType "code" or "pre" escapes only backticks and backslashes.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		specials := mdV2Specials
		if entityType == "code" || entityType == "pre" {
			specials = mdV2CodeSpecials
		}
		var b strings.Builder
		b.Grow(len(text))
		for _, r := range text {
			if strings.ContainsRune(specials, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// MustEscapeV2 escapes plain text for a MarkdownV2 message body.
func MustEscapeV2(text string) string {
	out, _ := EscapeMarkdown(text, MarkdownV2, "")
	return out
}
