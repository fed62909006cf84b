package mail

import (
	"fmt"
	"net/url"
)

// NewInvitationMessage builds the email sent when a company admin invites a
// user to join their company.
func NewInvitationMessage(baseURL string, siteName string, email string, companyName string, token string) *Message {
	acceptURL, _ := url.JoinPath(baseURL, "invitations", "accept")
	link := fmt.Sprintf("%s?token=%s", acceptURL, url.QueryEscape(token))
	body := fmt.Sprintf(
		"You have been invited to join %s on %s.\n\n"+
			"Follow the link below to set your password and activate your account:\n\n%s\n\n"+
			"If you did not expect this invitation you can ignore this email.",
		companyName, siteName, link,
	)
	return &Message{
		To:      []string{email},
		Subject: fmt.Sprintf("You've been invited to %s", companyName),
		Body:    body,
	}
}
