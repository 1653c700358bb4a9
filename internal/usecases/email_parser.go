package usecases

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// ParsedEmail holds the structured fields extracted from a raw email.
type ParsedEmail struct {
	Name    string
	Phone   string
	Email   string
	Content string
}

var (
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?\d{1,4}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}`),
		regexp.MustCompile(`0\d{3}[-.\s]?\d{3}[-.\s]?\d{2}[-.\s]?\d{2}`),
		regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]?\d{4}`),
	}
	emailAddressRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	namePatterns   = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(?:Name|İsim|Ad|Ad Soyad|Full Name)\s*:\s*([A-ZÇĞİÖŞÜ][a-zçğıöşü]+(?:\s+[A-ZÇĞİÖŞÜ][a-zçğıöşü]+)+)`),
		regexp.MustCompile(`(?im)^(?:Dear|Sayın|Merhaba|Hello|Hi)\s+([A-ZÇĞİÖŞÜ][a-zçğıöşü]+(?:\s+[A-ZÇĞİÖŞÜ][a-zçğıöşü]+)+)`),
		regexp.MustCompile(`([A-ZÇĞİÖŞÜ][a-zçğıöşü]+\s+[A-ZÇĞİÖŞÜ][a-zçğıöşü]+)`),
	}
	phoneStripRe = regexp.MustCompile(`[-.\s()]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	signatureRe  = regexp.MustCompile(`(?i)(best regards|sincerely|saygılarımla|--\s*$).*$`)
)

// nameFalsePositives are capitalized phrases the loose two-word pattern
// tends to match in sign-offs.
var nameFalsePositives = map[string]struct{}{
	"thank you":    {},
	"best regards": {},
	"sincerely":    {},
	"saygılarımla": {},
}

// ParseEmail extracts contact details and cleaned content from an email
// body. HTML bodies are flattened to text first; the subject participates
// in contact extraction but not in the content.
func ParseEmail(body, subject string) ParsedEmail {
	text := extractText(body)
	full := subject + "\n" + text
	return ParsedEmail{
		Name:    extractName(full),
		Phone:   extractPhone(full),
		Email:   extractEmailAddress(full),
		Content: cleanContent(text),
	}
}

// extractText flattens HTML to plain text, skipping script and style
// subtrees. Content that does not parse as HTML passes through unchanged.
func extractText(content string) string {
	if !strings.Contains(content, "<") {
		return content
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}

func extractName(text string) string {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if _, bad := nameFalsePositives[strings.ToLower(name)]; !bad {
			return name
		}
	}
	return ""
}

func extractPhone(text string) string {
	for _, re := range phonePatterns {
		if m := re.FindString(text); m != "" {
			return phoneStripRe.ReplaceAllString(strings.TrimSpace(m), "")
		}
	}
	return ""
}

// extractEmailAddress prefers the first address that is not a no-reply
// sender, falling back to the first match.
func extractEmailAddress(text string) string {
	matches := emailAddressRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	for _, addr := range matches {
		lower := strings.ToLower(addr)
		if !strings.Contains(lower, "noreply") && !strings.Contains(lower, "no-reply") {
			return lower
		}
	}
	return strings.ToLower(matches[0])
}

func cleanContent(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = signatureRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
