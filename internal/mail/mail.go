package mail

import (
	"context"
	"fmt"
)

// Message is a single outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers account emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationMessage carries the 6-digit email verification code.
func VerificationMessage(to, name, code string) Message {
	return Message{
		To:      to,
		ToName:  name,
		Subject: "Verify your email",
		Text: fmt.Sprintf("Hello %s,\r\n\r\nYour verification code is %s. It expires in 24 hours.\r\n", name, code),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>Your verification code is <strong>%s</strong>. It expires in 24 hours.</p>", name, code),
	}
}

// PasswordResetMessage carries the password reset token.
func PasswordResetMessage(to, name, token string) Message {
	return Message{
		To:      to,
		ToName:  name,
		Subject: "Reset your password",
		Text: fmt.Sprintf("Hello %s,\r\n\r\nUse this token to reset your password: %s\r\nIt expires in 1 hour. Ignore this email if you did not ask for a reset.\r\n", name, token),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>Use this token to reset your password: <code>%s</code></p><p>It expires in 1 hour.</p>", name, token),
	}
}
