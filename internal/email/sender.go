// Package email delivers transactional mail. A single Sender is built at
// startup and handed to whatever needs it; there is no package-level client.
package email

import "context"

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures a Sender. An empty Host selects LogSender.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}
