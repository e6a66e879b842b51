package mock

import (
	"context"
	"strings"
)

type Delivery struct {
	Message  string
	PhotoURL string
}

// Notifier records deliveries. Fail makes every delivery fail; FailFor fails
// deliveries whose message contains one of the given substrings.
type Notifier struct {
	Deliveries []Delivery
	Attempts   int
	Fail       bool
	FailFor    []string
}

func (n *Notifier) Deliver(ctx context.Context, message, photoURL string) bool {
	_ = ctx
	n.Attempts++
	if n.Fail {
		return false
	}
	for _, s := range n.FailFor {
		if s != "" && strings.Contains(message, s) {
			return false
		}
	}
	n.Deliveries = append(n.Deliveries, Delivery{Message: message, PhotoURL: photoURL})
	return true
}
