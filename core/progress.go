package core

// Progress is the consistent progress snapshot for a simulation. It is read
// atomically from per-simulation counters rather than recomputed by scanning
// conversations, so pollers never observe a torn view of turn counts.
type Progress struct {
	Status               Status  `json:"status"`
	TotalTurns           int     `json:"total_turns"`
	CompletedTurns       int     `json:"completed_turns"`
	ActiveConversations  int     `json:"active_conversations"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// Display band boundaries for derived completion percentages. The persona
// generation phase reports a fixed low value and interviewing maps into
// [pctReady, pctRunningCap], so UI pollers can tell the phases apart.
const (
	pctGenerating = 5.0
	pctReady      = 10.0
	pctRunningCap = 95.0
)

// CompletionPercent derives the display percentage for a status and turn
// count. It is monotonically non-decreasing over the life of a run: statuses
// advance forward and completed turns only grow.
func CompletionPercent(status Status, completedTurns, totalTurns int) float64 {
	switch status {
	case StatusPending:
		return 0
	case StatusGeneratingPersonas:
		return pctGenerating
	case StatusReady:
		return pctReady
	case StatusCompleted:
		return 100
	}
	// running, stopped and error report the interviewing band frozen at the
	// last completed turn count.
	if totalTurns <= 0 {
		return pctReady
	}
	frac := float64(completedTurns) / float64(totalTurns)
	if frac > 1 {
		frac = 1
	}
	return pctReady + frac*(pctRunningCap-pctReady)
}
