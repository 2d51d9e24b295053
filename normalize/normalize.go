// Package normalize turns a raw source message into a persisted record.
package normalize

import (
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/dhcgn/application-tracker/classify"
	"github.com/dhcgn/application-tracker/extract"
	"github.com/dhcgn/application-tracker/guess"
	"github.com/dhcgn/application-tracker/model"
)

// DateLayout matches ISO 8601 with a numeric offset, e.g. 2024-05-01T09:30:00+02:00.
const DateLayout = "2006-01-02T15:04:05-07:00"

// MaxPreviewRunes caps the preview column.
const MaxPreviewRunes = 1000

var (
	ErrNilMessage = errors.New("message is nil")
	ErrMissingID  = errors.New("message id is empty")
)

type Options struct {
	// Location is the zone dates are rendered in. Defaults to time.Local.
	Location *time.Location
	// Logger receives the matched classification pattern at debug level.
	Logger *slog.Logger
}

type Normalizer struct {
	loc    *time.Location
	logger *slog.Logger
}

func New(opts Options) *Normalizer {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{loc: loc, logger: logger}
}

// Record builds the record for msg. Field guesses that come up empty are
// not errors; only a message that cannot be identified is rejected.
func (n *Normalizer) Record(msg *model.Message) (model.Record, error) {
	if msg == nil {
		return model.Record{}, ErrNilMessage
	}
	if strings.TrimSpace(msg.ID) == "" {
		return model.Record{}, ErrMissingID
	}

	subject, _ := HeaderValue(msg.Headers, "Subject")
	if subject == "" {
		subject = msg.Snippet
	}
	from, _ := HeaderValue(msg.Headers, "From")

	body, ok := extract.Text(msg.Payload)
	if !ok {
		body = msg.Snippet
	}

	senderName, senderEmail := guess.Sender(from)
	status, pattern := classify.Match(subject + "\n" + body)
	n.logger.Debug("message classified", "messageID", msg.ID, "status", status, "pattern", pattern)

	return model.Record{
		MessageID:     msg.ID,
		ThreadID:      msg.ThreadID,
		Date:          n.date(msg.Headers),
		SenderName:    senderName,
		SenderEmail:   senderEmail,
		Subject:       subject,
		CompanyGuess:  guess.Company(from),
		JobTitleGuess: guess.Title(subject),
		Status:        status,
		Preview:       Preview(body),
	}, nil
}

func (n *Normalizer) date(headers []model.Header) string {
	raw, ok := HeaderValue(headers, "Date")
	if !ok {
		return ""
	}
	t, err := mail.ParseDate(raw)
	if err != nil {
		// Dates without a zone are read as UTC.
		t, err = mail.ParseDate(strings.TrimSpace(raw) + " -0000")
		if err != nil {
			return raw
		}
	}
	return t.In(n.loc).Format(DateLayout)
}

// HeaderValue returns the first header named name, compared
// case-insensitively.
func HeaderValue(headers []model.Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Preview flattens line breaks and caps body text for the preview column.
func Preview(body string) string {
	runes := []rune(body)
	if len(runes) > MaxPreviewRunes {
		runes = runes[:MaxPreviewRunes]
	}
	flat := strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(string(runes))
	return strings.TrimSpace(flat)
}
