package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/ronnjoshua/real-estate/internal/config"
	"github.com/ronnjoshua/real-estate/internal/models"
)

// BuildInvitationMessage composes the subject and the full raw message for an
// invitation email, including headers.
func BuildInvitationMessage(cfg *config.Config, invitation *models.Invitation) (subject string, rawMessage []byte) {
	subject = fmt.Sprintf("You're invited to %s", cfg.AppName)
	link := fmt.Sprintf("%s/accept-invitation/%s", strings.TrimRight(cfg.FrontendBaseURL, "/"), invitation.Token)

	var body strings.Builder
	fmt.Fprintf(&body, "Hello,\r\n\r\n")
	fmt.Fprintf(&body, "You have been invited to join %s as %s.\r\n\r\n", cfg.AppName, invitation.Role)
	fmt.Fprintf(&body, "Follow this link to set up your account:\r\n%s\r\n\r\n", link)
	if invitation.ExpiresAt != nil {
		fmt.Fprintf(&body, "This invitation expires on %s.\r\n\r\n", invitation.ExpiresAt.UTC().Format(time.RFC1123))
	}
	fmt.Fprintf(&body, "If you were not expecting this invitation you can ignore this email.\r\n")

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", cfg.SmtpFromAddress)
	fmt.Fprintf(&msg, "To: %s\r\n", invitation.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=\"utf-8\"\r\n")
	fmt.Fprintf(&msg, "\r\n")
	msg.WriteString(body.String())

	return subject, []byte(msg.String())
}
