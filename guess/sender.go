// Package guess derives best-effort company and job title values from
// message headers. Every function returns an empty string rather than an
// error when nothing useful can be derived.
package guess

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"
)

var genericSubdomain = regexp.MustCompile(`^(mail|no-reply|noreply|jobs|careers)\.`)

// Sender splits a From header value into display name and address.
// RFC 2047 encoded names are decoded. Malformed values that still look like
// `Name <addr>` or a bare address are accepted; anything else yields two
// empty strings.
func Sender(from string) (name, address string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Name, addr.Address
	}

	return lenientSender(from)
}

func lenientSender(from string) (string, string) {
	if open := strings.LastIndex(from, "<"); open >= 0 {
		if end := strings.LastIndex(from, ">"); end > open {
			name := strings.Trim(strings.TrimSpace(from[:open]), `"'`)
			return strings.TrimSpace(name), strings.TrimSpace(from[open+1 : end])
		}
	}
	if strings.Contains(from, "@") && !strings.ContainsAny(from, " \t") {
		return "", from
	}
	return "", ""
}

// Company guesses the employer from a From header. A non-empty display name
// wins as is, since recruiting systems usually put the company or ATS name
// there. Otherwise the first label of the sender domain is used after
// dropping one generic prefix such as "mail." or "careers.".
func Company(from string) string {
	name, address := Sender(from)
	if name = strings.TrimSpace(name); name != "" {
		return name
	}

	at := strings.LastIndex(address, "@")
	if at < 0 {
		return ""
	}

	domain := strings.ToLower(strings.TrimSpace(address[at+1:]))
	domain = genericSubdomain.ReplaceAllString(domain, "")
	label, _, _ := strings.Cut(domain, ".")
	return capitalize(label)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
