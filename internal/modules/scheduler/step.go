// README: Stage pointer and step results handed between the facade and its callers.
package scheduler

import "brigade/internal/types"

// ProposalStep points at the current stage of one proposal occurrence.
// MenuID is nil for standalone proposals.
type ProposalStep struct {
	ProposalID types.ID  `json:"proposal_id"`
	MenuID     *types.ID `json:"menu_id,omitempty"`
	Stage      string    `json:"stage"`
	StageIndex int       `json:"stage_index"`
}

type StepResult struct {
	ProposalDone bool `json:"proposal_done"`
	OrderDone    bool `json:"order_done"`
}
