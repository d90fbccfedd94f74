package orchestrator

import (
	"strings"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

// ProcessedSet reports whether a domain was already handled in the run.
type ProcessedSet interface {
	IsProcessed(domain string) bool
}

// DeriveJobs builds the follow-up jobs for a greedy outcome: one per distinct
// address domain that is neither the parent's domain nor already processed.
// Children inherit engine, limit and modifier and are never greedy.
func DeriveJobs(parent harvest.Outcome, processed ProcessedSet) []harvest.Job {
	parentDomain := harvest.NormalizeDomain(parent.Domain)
	seen := make(map[string]struct{})
	var children []harvest.Job
	for _, email := range parent.Results.Emails {
		_, found, ok := strings.Cut(email, "@")
		if !ok {
			continue
		}
		domain := harvest.NormalizeDomain(found)
		if domain == "" || domain == parentDomain || strings.Contains(domain, "@") {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		if processed != nil && processed.IsProcessed(domain) {
			continue
		}
		child := harvest.Job{
			Engine:   parent.Engine,
			Domain:   domain,
			Modifier: parent.Modifier,
			Limit:    parent.Limit,
			Greedy:   false,
		}
		if child.Validate() != nil {
			continue
		}
		children = append(children, child)
	}
	return children
}
