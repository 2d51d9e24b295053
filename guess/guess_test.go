package guess

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSender(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		wantName  string
		wantEmail string
	}{
		{name: "quoted name", from: `"Acme Recruiting" <jobs@acme.com>`, wantName: "Acme Recruiting", wantEmail: "jobs@acme.com"},
		{name: "address only", from: "<jobs@mail.greenhouse.io>", wantEmail: "jobs@mail.greenhouse.io"},
		{name: "bare address", from: "no-reply@lever.co", wantEmail: "no-reply@lever.co"},
		{name: "encoded name", from: "=?UTF-8?Q?Soci=C3=A9t=C3=A9?= <hr@societe.fr>", wantName: "Société", wantEmail: "hr@societe.fr"},
		{name: "malformed but bracketed", from: `Acme, Talent Team <talent@acme.io>`, wantName: "Acme, Talent Team", wantEmail: "talent@acme.io"},
		{name: "empty", from: ""},
		{name: "garbage", from: "just some words"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, email := Sender(tt.from)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantEmail, email)
		})
	}
}

func TestCompany(t *testing.T) {
	tests := []struct {
		name string
		from string
		want string
	}{
		{name: "display name wins", from: `"Acme Recruiting" <jobs@acme.com>`, want: "Acme Recruiting"},
		{name: "generic subdomain stripped", from: "<jobs@mail.greenhouse.io>", want: "Greenhouse"},
		{name: "careers prefix", from: "<hr@careers.initech.com>", want: "Initech"},
		{name: "case-insensitive prefix", from: "<x@NoReply.Globex.COM>", want: "Globex"},
		{name: "only one prefix dropped", from: "<x@jobs.mail.hooli.com>", want: "Mail"},
		{name: "plain domain", from: "talent@workday.com", want: "Workday"},
		{name: "whitespace name ignored", from: `" " <a@umbrella.org>`, want: "Umbrella"},
		{name: "nothing", from: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Company(tt.from))
		})
	}
}

func TestTitle(t *testing.T) {
	long := strings.Repeat("x", 150)

	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{name: "your application colon", subject: "Your application: Senior Backend Engineer", want: "Senior Backend Engineer"},
		{name: "application for", subject: "Thanks! Application for Data Analyst - Remote", want: "Data Analyst - Remote"},
		{name: "applied to trims separators", subject: "You applied to - Platform Engineer :", want: "Platform Engineer"},
		{name: "position label", subject: "Position: Staff SRE", want: "Staff SRE"},
		{name: "role dash", subject: "New role- Product Designer", want: "Product Designer"},
		{name: "fallback short", subject: "Quick update", want: "Quick update"},
		{name: "fallback trimmed", subject: "  Quick update  ", want: "Quick update"},
		{name: "fallback long", subject: long, want: long[:120]},
		{name: "empty", subject: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.subject))
		})
	}
}

func TestTitle_LongSubjectIsRuneSafe(t *testing.T) {
	got := Title(strings.Repeat("é", 130))

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 120, utf8.RuneCountInString(got))
}
