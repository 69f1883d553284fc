package pushsvc

import (
	"context"
	"log"
	"sync"

	"github.com/skillbarter/backend/core/notification"
)

var (
	SentPushes = make([]notification.PushMessage, 0)
	mu         sync.Mutex
)

// InvalidTokens are rejected by the console sender with notification.ErrInvalidPushToken.
var InvalidTokens = map[string]bool{}

// ClearSentPushes empties SentPushes.
func ClearSentPushes() {
	mu.Lock()
	SentPushes = nil
	mu.Unlock()
}

type consoleSender struct {
	disableOutput bool
}

var _ notification.PushSender = (*consoleSender)(nil)

// NewConsoleSender records the pushes and prints them to stdout.
func NewConsoleSender(disableOutput bool) notification.PushSender {
	return &consoleSender{disableOutput: disableOutput}
}

func (s *consoleSender) Send(_ context.Context, msg notification.PushMessage) error {
	mu.Lock()
	defer mu.Unlock()
	if InvalidTokens[msg.Token] {
		return notification.ErrInvalidPushToken
	}
	SentPushes = append(SentPushes, msg)
	if !s.disableOutput {
		log.Printf("push to %s: %s - %s %v", msg.Token, msg.Title, msg.Body, msg.Data)
	}
	return nil
}
