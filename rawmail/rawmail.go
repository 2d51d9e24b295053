// Package rawmail converts RFC 822 messages into the body tree used by the
// normalizer, so IMAP and mbox sources look like the Gmail API to the core.
package rawmail

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"

	"github.com/dhcgn/application-tracker/extract"
	"github.com/dhcgn/application-tracker/model"
)

const (
	maxDepth     = 32
	snippetRunes = 200
)

var ErrTooDeep = errors.New("mime structure nested too deeply")

// Address headers stay undecoded; decoding RFC 2047 words there can break
// the address syntax. The sender parser decodes display names itself.
var addressHeaders = map[string]bool{
	"from":     true,
	"sender":   true,
	"reply-to": true,
	"to":       true,
	"cc":       true,
	"bcc":      true,
}

// Parse reads one raw message. Text parts are stored with their transfer
// encoding removed and, where the charset is known, converted to UTF-8.
// Non-text leaves keep their headers but no payload.
func Parse(raw []byte) (*model.Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if entity == nil || (err != nil && !tolerable(err)) {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	payload, err := readPart(entity, err == nil, 0)
	if err != nil {
		return nil, err
	}

	id := messageID(&entity.Header, raw)
	msg := &model.Message{
		ID:       id,
		ThreadID: threadID(&entity.Header, id),
		Headers:  readHeaders(&entity.Header),
		Payload:  payload,
	}
	if text, ok := extract.Text(payload); ok {
		msg.Snippet = Snippet(text)
	}
	return msg, nil
}

func readPart(e *message.Entity, converted bool, depth int) (*model.Part, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}

	mediaType, params, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType, params = "text/plain", nil
	}
	part := &model.Part{MimeType: mediaType, Headers: readHeaders(&e.Header)}

	if mr := e.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if child == nil || (err != nil && !tolerable(err)) {
				return nil, fmt.Errorf("read %s part: %w", mediaType, err)
			}
			sub, err := readPart(child, err == nil, depth+1)
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, sub)
		}
		return part, nil
	}

	if !strings.HasPrefix(mediaType, "text/") {
		return part, nil
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", mediaType, err)
	}
	if converted && params["charset"] != "" {
		params["charset"] = "utf-8"
		setHeader(part.Headers, "Content-Type", mime.FormatMediaType(mediaType, params))
	}
	part.Data = extract.EncodeBase64URL(body)
	return part, nil
}

func readHeaders(h *message.Header) []model.Header {
	var headers []model.Header
	fields := h.Fields()
	for fields.Next() {
		value := fields.Value()
		if !addressHeaders[strings.ToLower(fields.Key())] {
			if text, err := fields.Text(); err == nil {
				value = text
			}
		}
		headers = append(headers, model.Header{Name: fields.Key(), Value: value})
	}
	return headers
}

func setHeader(headers []model.Header, name, value string) {
	for i := range headers {
		if strings.EqualFold(headers[i].Name, name) {
			headers[i].Value = value
			return
		}
	}
}

// messageID prefers the Message-Id header and falls back to a content hash,
// so the same message always maps to the same id.
func messageID(h *message.Header, raw []byte) string {
	if id := trimMessageID(h.Get("Message-Id")); id != "" {
		return id
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// threadID is the root of the References chain, else the parent, else the
// message itself.
func threadID(h *message.Header, id string) string {
	if refs := strings.Fields(h.Get("References")); len(refs) > 0 {
		if root := trimMessageID(refs[0]); root != "" {
			return root
		}
	}
	if parent := trimMessageID(h.Get("In-Reply-To")); parent != "" {
		return parent
	}
	return id
}

func trimMessageID(s string) string {
	return strings.Trim(strings.TrimSpace(s), "<>")
}

// Snippet collapses whitespace and keeps the first 200 characters, similar
// to the summaries the Gmail API returns.
func Snippet(text string) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) > snippetRunes {
		runes = runes[:snippetRunes]
	}
	return string(runes)
}

func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}
