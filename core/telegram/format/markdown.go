package format

import (
	"fmt"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram's legacy Markdown.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram's MarkdownV2.
	MarkdownV2 = 2
)

var (
	mdV1 = strings.NewReplacer(`\`, `\\`, "_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)
	mdV2 = newV2Replacer("_*[]()~`>#+-=|{}.!\\")
)

func newV2Replacer(specials string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(specials))
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes text so that it renders literally under the given
// Telegram Markdown version.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1.Replace(text), nil
	case MarkdownV2:
		return mdV2.Replace(text), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}
