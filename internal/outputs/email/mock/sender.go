package mock

import (
	"context"
	"errors"

	"github.com/bakkerme/adhunter/internal/outputs/email"
)

// ErrImagesRejected is returned when RejectImages is set and a message
// carries inline images.
var ErrImagesRejected = errors.New("inline images rejected")

// Sender records successful sends. Err fails every send; RejectImages fails
// only messages with inline images.
type Sender struct {
	Messages     []email.Message
	Attempts     int
	Err          error
	RejectImages bool
}

func (s *Sender) Send(ctx context.Context, message email.Message) error {
	_ = ctx
	s.Attempts++
	if s.Err != nil {
		return s.Err
	}
	if s.RejectImages && len(message.Images) > 0 {
		return ErrImagesRejected
	}
	s.Messages = append(s.Messages, message)
	return nil
}
