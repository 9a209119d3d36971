// Package domain holds the lead pipeline status set and its transition rules.
// The automation engine delegates change_status validity checks here.
package domain

const (
	StatusNew         = "new"
	StatusContacted   = "contacted"
	StatusQualified   = "qualified"
	StatusProposal    = "proposal"
	StatusNegotiating = "negotiating"
	StatusWon         = "won"
	StatusLost        = "lost"
)

var knownStatuses = map[string]struct{}{
	StatusNew:         {},
	StatusContacted:   {},
	StatusQualified:   {},
	StatusProposal:    {},
	StatusNegotiating: {},
	StatusWon:         {},
	StatusLost:        {},
}

// allowedTransitions maps a status to the statuses a lead may move to.
// won is terminal; lost can be reopened.
var allowedTransitions = map[string][]string{
	StatusNew:         {StatusContacted, StatusQualified, StatusLost},
	StatusContacted:   {StatusQualified, StatusProposal, StatusLost},
	StatusQualified:   {StatusProposal, StatusNegotiating, StatusLost},
	StatusProposal:    {StatusNegotiating, StatusWon, StatusLost},
	StatusNegotiating: {StatusWon, StatusLost},
	StatusWon:         {},
	StatusLost:        {StatusNew},
}

// IsKnownStatus reports whether status is part of the pipeline.
func IsKnownStatus(status string) bool {
	_, ok := knownStatuses[status]
	return ok
}

// CanTransition reports whether a lead may move from one status to another.
// A no-op transition (same status) is never legal; callers treat it as
// already satisfied.
func CanTransition(from, to string) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
