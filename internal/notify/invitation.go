package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hugh/poolparty/internal/validation"
)

// Invitation is everything needed to tell someone how to set their password.
type Invitation struct {
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// InvitationDeliverer hands an invitation to whatever sends it. The result
// reports the outcome; callers never fail because of it.
type InvitationDeliverer interface {
	Deliver(ctx context.Context, inv Invitation) Result
}

// Invitations renders invitation emails and sends them through a Notifier.
type Invitations struct {
	notifier *Notifier
	siteURL  string
}

func NewInvitations(notifier *Notifier, siteURL string) *Invitations {
	return &Invitations{
		notifier: notifier,
		siteURL:  strings.TrimRight(siteURL, "/"),
	}
}

// Link is the page where the invited person sets a password.
func (i *Invitations) Link(token string) string {
	return i.siteURL + "/auth/invite/" + token
}

func (i *Invitations) Message(inv Invitation) Message {
	link := i.Link(inv.Token)
	greeting := "Hi"
	if inv.Name != "" {
		greeting = "Hi " + inv.Name
	}
	expires := inv.Expires.UTC().Format("2 Jan 2006 15:04 UTC")

	text := fmt.Sprintf("%s,\n\nYou have been invited to join Friday Pool Party (קהילת הקרח).\n"+
		"Set your password to activate your account:\n%s\n\nThis link expires on %s.\n",
		greeting, link, expires)

	html := fmt.Sprintf(`<p>%s,</p>
<p>You have been invited to join <strong>Friday Pool Party</strong> (קהילת הקרח).</p>
<p><a href="%s">Set your password</a> to activate your account.</p>
<p>This link expires on %s.</p>`,
		validation.EscapeHTML(greeting), validation.EscapeHTML(link), expires)

	return Message{
		Subject: "You're invited to Friday Pool Party",
		Text:    text,
		HTML:    html,
		Link:    link,
	}
}

func (i *Invitations) Deliver(ctx context.Context, inv Invitation) Result {
	target := Target{Channel: ChannelEmail, Address: inv.Email, Name: inv.Name}
	return i.notifier.Notify(ctx, []Target{target}, i.Message(inv))[0]
}

var _ InvitationDeliverer = (*Invitations)(nil)
