package mail

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Console writes messages to the log instead of delivering them. Sent
// messages are kept so tests can read codes back.
type Console struct {
	log        logrus.FieldLogger
	subjPrefix string

	mu   sync.Mutex
	sent []Message
}

var _ Mailer = (*Console)(nil)

// NewConsole builds a logging mailer.
func NewConsole(log logrus.FieldLogger, appName string) *Console {
	return &Console{log: log, subjPrefix: "[" + appName + "] "}
}

func (c *Console) Send(_ context.Context, msg Message) error {
	c.log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": c.subjPrefix + msg.Subject,
	}).Info(msg.Text)

	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

// Sent returns a copy of every message sent so far.
func (c *Console) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// Last returns the most recent message addressed to to.
func (c *Console) Last(to string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].To == to {
			return c.sent[i], true
		}
	}
	return Message{}, false
}
