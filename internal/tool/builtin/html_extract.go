package builtin

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// extractReadableText walks an HTML token stream and pulls out the page
// title plus its visible body text, skipping script/style/nav/footer/form
// noise. Used by WebFetchTool to turn a text/html response into something
// an agent can actually read instead of raw markup.
func extractReadableText(r io.Reader) (title, text string, err error) {
	tokenizer := html.NewTokenizer(r)

	var sb strings.Builder
	var inTitle, inSkip bool
	skipDepth := 0

	skipTags := map[string]bool{
		"script": true, "style": true, "noscript": true,
		"nav": true, "footer": true, "form": true,
		"aside": true, "iframe": true, "svg": true,
	}

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			result := collapseBlankLines(strings.TrimSpace(sb.String()))
			if tokenizer.Err() == io.EOF {
				return title, result, nil
			}
			return title, result, tokenizer.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			tagName := string(tn)

			if tt == html.SelfClosingTagToken {
				continue
			}
			if tagName == "title" {
				inTitle = true
			}
			if skipTags[tagName] {
				inSkip = true
				skipDepth++
			}
			if !inSkip && isBlockElement(tagName) && sb.Len() > 0 {
				if s := sb.String(); s[len(s)-1] != '\n' {
					sb.WriteString("\n")
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tagName := string(tn)
			if tagName == "title" {
				inTitle = false
			}
			if skipTags[tagName] && skipDepth > 0 {
				skipDepth--
				if skipDepth == 0 {
					inSkip = false
				}
			}

		case html.TextToken:
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if inTitle && title == "" {
				title = text
				continue
			}
			if !inSkip {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
	}
}

// collapseBlankLines reduces consecutive blank lines down to at most one.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var result []string
	blankCount := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			if blankCount <= 1 {
				result = append(result, line)
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

// isBlockElement reports whether tag is an HTML block-level element that
// should force a line break between it and adjacent text.
func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "tr", "br", "hr", "blockquote", "pre",
		"article", "section", "main",
		"table", "thead", "tbody", "tfoot":
		return true
	}
	return false
}
