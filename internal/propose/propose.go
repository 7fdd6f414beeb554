// Package propose defines the rule-proposal collaborator the assembler
// falls back to when no registered rule matches a block.
package propose

import (
	"context"
	"errors"

	"github.com/dgallion1/planmirror/internal/align"
	"github.com/dgallion1/planmirror/internal/pmtree"
	"github.com/dgallion1/planmirror/internal/rules"
)

// ErrProposalRejected is returned when a proposal is aborted, e.g. a
// human reviewer declines it. The assembler treats it as fatal for the
// document run.
var ErrProposalRejected = errors.New("rule proposal rejected")

// Proposal is the outcome of a successful proposal: a rule id, the node
// constructed for the triggering block, and optionally the rule itself
// for registration and reuse on later blocks.
type Proposal struct {
	RuleID string
	Node   *pmtree.Node
	Rule   *rules.Rule
}

// Proposer obtains a conversion for a block no registered rule matches.
// Calls are synchronous and blocking; retry and timeout policy belongs to
// the caller.
type Proposer interface {
	ProposeRule(ctx context.Context, block *align.UnifiedBlock) (*Proposal, error)
}

// ApproveFunc reviews a proposal before it is accepted. Returning false
// rejects it.
type ApproveFunc func(p *Proposal) bool
