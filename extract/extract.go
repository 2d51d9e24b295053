// Package extract renders a message body tree as plain text.
package extract

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/emersion/go-message/charset"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/charmap"

	"github.com/dhcgn/application-tracker/model"
)

const replacementChar = "\uFFFD"

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// Text returns the first plain-text rendering found in the body tree.
//
// A part's own payload is tried first, text/plain as is and text/html
// detagged. Otherwise its children are searched depth-first in their given
// order and the first one yielding text wins. The second return value is
// false when no part yields text, in which case callers fall back to the
// server summary. Undecodable bytes become U+FFFD; Text never fails.
func Text(p *model.Part) (string, bool) {
	if p == nil {
		return "", false
	}

	if text, ok := leafText(p); ok {
		return text, true
	}

	for _, child := range p.Parts {
		if text, ok := Text(child); ok {
			return text, true
		}
	}
	return "", false
}

func leafText(p *model.Part) (string, bool) {
	if p.Data == "" {
		return "", false
	}

	var text string
	switch mediaType(p.MimeType) {
	case "text/plain":
		text = decodeText(p)
	case "text/html":
		text = HTMLToText(decodeText(p))
	default:
		return "", false
	}

	if !hasContent(text) {
		return "", false
	}
	return text, true
}

// hasContent reports whether text holds anything besides whitespace and
// replacement characters.
func hasContent(text string) bool {
	for _, r := range text {
		if r != utf8.RuneError && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// HTMLToText strips markup and joins the remaining text runs with newlines,
// so block-level elements end up on separate lines.
func HTMLToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.CommentNode:
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Noscript:
				return
			}
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(lines, "\n")
}

func decodeText(p *model.Part) string {
	raw := DecodeBase64URL(p.Data)

	if cs := partCharset(p); cs != "" && !isUTF8(cs) {
		if r, err := charset.Reader(cs, bytes.NewReader(raw)); err == nil {
			if converted, err := io.ReadAll(r); err == nil {
				raw = converted
			}
		}
	}

	return strings.ToValidUTF8(string(raw), replacementChar)
}

// DecodeBase64URL decodes URL-safe base64 with or without padding. Standard
// alphabet characters are accepted too. On corrupt input the decoded prefix
// is kept and a replacement character appended.
func DecodeBase64URL(data string) []byte {
	data = strings.TrimSpace(data)
	data = strings.NewReplacer("+", "-", "/", "_", "\r", "", "\n", "").Replace(data)
	data = strings.TrimRight(data, "=")

	buf := make([]byte, base64.RawURLEncoding.DecodedLen(len(data)))
	n, err := base64.RawURLEncoding.Decode(buf, []byte(data))
	if err != nil {
		return append(buf[:n], replacementChar...)
	}
	return buf[:n]
}

// EncodeBase64URL is the inverse of DecodeBase64URL, used by sources that
// build body trees from already decoded content.
func EncodeBase64URL(data []byte) string {
	return base64.URLEncoding.EncodeToString(data)
}

func partCharset(p *model.Part) string {
	for _, h := range p.Headers {
		if !strings.EqualFold(h.Name, "Content-Type") {
			continue
		}
		_, params, err := mime.ParseMediaType(h.Value)
		if err != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(params["charset"]))
	}
	return ""
}

func isUTF8(cs string) bool {
	return cs == "utf-8" || cs == "utf8" || cs == "us-ascii"
}

func mediaType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
