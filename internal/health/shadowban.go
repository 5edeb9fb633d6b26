package health

import (
	"context"
	"fmt"

	"cultivator/internal/redditclient"
)

// Verdict is the tri-state result of a shadow-ban check.
type Verdict string

const (
	Yes     Verdict = "true"
	No      Verdict = "false"
	Unknown Verdict = "unknown"
)

// Status is the outcome of Check.
type Status struct {
	ShadowBanned Verdict
	Detail       string
}

// Proceed is true only when the identity is known to be visible. Unknown fails closed.
func (s Status) Proceed() bool { return s.ShadowBanned == No }

// Prober is the slice of the platform client Check needs.
type Prober interface {
	ProbePublicProfile(ctx context.Context, name string) (redditclient.Probe, error)
}

// Check compares the authenticated identity against its public profile. The caller
// has already confirmed identity is logged in; a public not-found therefore means
// the account is hidden from everyone else.
func Check(ctx context.Context, p Prober, identity string) Status {
	if identity == "" {
		return Status{ShadowBanned: Unknown, Detail: "no logged-in identity to check"}
	}
	probe, err := p.ProbePublicProfile(ctx, identity)
	if err != nil {
		return Status{ShadowBanned: Unknown, Detail: fmt.Sprintf("public profile probe failed: %v", err)}
	}
	if probe.NotFound {
		return Status{ShadowBanned: Yes, Detail: fmt.Sprintf("u/%s is not visible to logged-out visitors (status %d)", identity, probe.Status)}
	}
	if probe.Name == "" {
		return Status{ShadowBanned: Unknown, Detail: fmt.Sprintf("public profile for u/%s returned no name (status %d)", identity, probe.Status)}
	}
	return Status{ShadowBanned: No, Detail: fmt.Sprintf("u/%s is visible to the public", identity)}
}
