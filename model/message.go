package model

// Header is a single header name/value pair as delivered by the mail source.
type Header struct {
	Name  string
	Value string
}

// Part is one node of a message body tree. A part carrying Data is a leaf;
// a part with Parts is a container (multipart/alternative, multipart/mixed, ...).
type Part struct {
	MimeType string
	Headers  []Header
	// Data holds the payload encoded as URL-safe base64, padded or not.
	Data  string
	Parts []*Part
}

// IsContainer reports whether the part holds child parts.
func (p *Part) IsContainer() bool {
	return p != nil && len(p.Parts) > 0
}

// Message is a raw message as returned by a mail source, before normalization.
type Message struct {
	ID       string
	ThreadID string
	Headers  []Header
	Payload  *Part
	// Snippet is the short server-provided summary used when no body text
	// can be extracted.
	Snippet string
}
