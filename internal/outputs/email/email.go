// Package email delivers ad notifications by mail.
package email

import "context"

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
	// Inline images referenced from Body as cid:<Name>.
	Images []Image
}

type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

type Sender interface {
	Send(ctx context.Context, message Message) error
}
