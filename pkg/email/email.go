// Package email sends the admin notifications of the support chat.
//
// Services depend on the ChatNotifier interface; the Resend implementation
// is wired in main when RESEND_API_KEY is set.
package email

import (
	"context"
	"fmt"
	"html"

	"github.com/resend/resend-go/v3"
)

// ChatNotifier tells the shop admins about chat activity.
type ChatNotifier interface {
	// NotifyNewChat announces a thread opened by userEmail with its first
	// message.
	NotifyNewChat(ctx context.Context, threadID, userEmail, firstMessage string) error
}

type resendSender struct {
	client    *resend.Client
	fromEmail string
	toEmail   string
}

// NewResendSender builds a ChatNotifier backed by the Resend API. fromEmail
// must belong to a domain verified in Resend; toEmail is the admin inbox.
func NewResendSender(apiKey, fromEmail, toEmail string) ChatNotifier {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		toEmail:   toEmail,
	}
}

func (s *resendSender) NotifyNewChat(ctx context.Context, threadID, userEmail, firstMessage string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Runeshop <%s>", s.fromEmail),
		To:      []string{s.toEmail},
		Subject: fmt.Sprintf("New support chat from %s", userEmail),
		Html:    renderNewChat(threadID, userEmail, firstMessage),
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send new chat email: %w", err)
	}
	return nil
}

// renderNewChat builds the notification body. User text is escaped.
func renderNewChat(threadID, userEmail, firstMessage string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:24px;background-color:#1b1325;font-family:Georgia,serif;color:#e9dcc9;">
  <h2 style="margin:0 0 16px 0;">A traveller needs help</h2>
  <p style="margin:0 0 8px 0;"><strong>From:</strong> %s</p>
  <p style="margin:0 0 8px 0;"><strong>Thread:</strong> %s</p>
  <blockquote style="margin:16px 0;padding:12px 16px;border-left:3px solid #c9a227;background-color:#2a1f38;">%s</blockquote>
  <p style="margin:0;color:#9a8fa8;font-size:13px;">Reply from the admin chat page.</p>
</body>
</html>`, html.EscapeString(userEmail), html.EscapeString(threadID), html.EscapeString(firstMessage))
}
