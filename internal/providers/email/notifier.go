package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	invitationdomain "github.com/huddlehq/huddle/internal/invitation/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var inviteTemplate = template.Must(template.ParseFS(templateFS, "templates/invite_member.html"))

// Notifier renders and sends invitation mail through a Provider.
type Notifier struct {
	provider Provider
}

func NewNotifier(provider Provider) invitationdomain.Notifier {
	return &Notifier{provider: provider}
}

type inviteData struct {
	TeamName    string
	InviterName string
	AcceptLink  string
}

func (n *Notifier) SendInvite(ctx context.Context, email, link, teamName, inviterName string) error {
	var body bytes.Buffer
	err := inviteTemplate.Execute(&body, inviteData{
		TeamName:    teamName,
		InviterName: inviterName,
		AcceptLink:  link,
	})
	if err != nil {
		return fmt.Errorf("render invite template: %w", err)
	}

	subject := fmt.Sprintf("You're invited to join %s", teamName)
	return n.provider.Send(ctx, []string{email}, subject, body.String())
}
