package email

import (
	"fmt"
	"strings"
)

// DomainStatusMessage builds the notice sent to a workspace owner after a
// verification attempt changed the status of one of their domains.
func DomainStatusMessage(to, workspace, domain, status, reason string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "The custom domain %s on workspace %s is now %s.\n", domain, workspace, status)
	if reason != "" {
		fmt.Fprintf(&b, "\nDetails: %s\n", reason)
	}
	if status != "VERIFIED" {
		b.WriteString("\nCheck the DNS records shown in your workspace settings and refresh once they have propagated.\n")
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("[%s] %s is %s", workspace, domain, strings.ToLower(status)),
		Body:    b.String(),
	}
}
