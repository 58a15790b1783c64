// Package governance implements synergy-weighted proposal voting. A
// participant's vote counts with the weight of its current synergy; slashed
// participants cannot vote.
package governance

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/synergia/posyg-node/core"
)

var (
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrProposalFinalized = errors.New("proposal already finalized")
	ErrVoterSlashed      = errors.New("slashed participants cannot vote")
)

// Proposal is one governance item and its running tallies.
type Proposal struct {
	ID           int     `json:"id"`
	Description  string  `json:"description"`
	VotesFor     float64 `json:"votesFor"`
	VotesAgainst float64 `json:"votesAgainst"`
	Active       bool    `json:"active"`
}

// Governance tracks proposals over a participant registry.
type Governance struct {
	mu        sync.Mutex
	proposals []Proposal
	nextID    int
	registry  *core.Registry
}

func New(registry *core.Registry) *Governance {
	return &Governance{nextID: 1, registry: registry}
}

// CreateProposal opens a new proposal and returns its id.
func (g *Governance) CreateProposal(description string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := Proposal{ID: g.nextID, Description: description, Active: true}
	g.nextID++
	g.proposals = append(g.proposals, p)
	slog.Info("proposal created", "id", p.ID, "description", description)
	return p.ID
}

// Vote records a vote weighted by the participant's current synergy. The
// voter snapshot is read under the governance lock, so the slash check and
// the tallied weight reflect the registry state at tally time.
func (g *Governance) Vote(proposalID int, voteFor bool, participantID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.proposalByID(proposalID)
	if p == nil {
		return fmt.Errorf("proposal %d: %w", proposalID, ErrProposalNotFound)
	}
	if !p.Active {
		return fmt.Errorf("proposal %d: %w", proposalID, ErrProposalFinalized)
	}

	participant, err := g.registry.Snapshot(participantID)
	if err != nil {
		return fmt.Errorf("failed to look up voter: %w", err)
	}
	if participant.Slashed {
		return fmt.Errorf("participant %d: %w", participantID, ErrVoterSlashed)
	}

	weight := participant.Synergy
	if voteFor {
		p.VotesFor += weight
	} else {
		p.VotesAgainst += weight
	}
	slog.Info("vote recorded", "proposal", proposalID, "for", voteFor, "weight", weight)
	if err := g.registry.RecordGovernanceVote(participantID); err != nil {
		return fmt.Errorf("failed to record governance activity: %w", err)
	}
	return nil
}

// FinalizeProposal closes voting on a proposal.
func (g *Governance) FinalizeProposal(proposalID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.proposalByID(proposalID)
	if p == nil {
		return fmt.Errorf("proposal %d: %w", proposalID, ErrProposalNotFound)
	}
	if !p.Active {
		return fmt.Errorf("proposal %d: %w", proposalID, ErrProposalFinalized)
	}
	p.Active = false
	slog.Info("proposal finalized", "id", proposalID, "approved", p.VotesFor > p.VotesAgainst)
	return nil
}

// ActiveProposals returns a snapshot of every open proposal.
func (g *Governance) ActiveProposals() []Proposal {
	g.mu.Lock()
	defer g.mu.Unlock()
	var active []Proposal
	for _, p := range g.proposals {
		if p.Active {
			active = append(active, p)
		}
	}
	return active
}

// IsApproved reports whether a finalized proposal passed. Open or unknown
// proposals are not approved.
func (g *Governance) IsApproved(proposalID int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.proposalByID(proposalID)
	return p != nil && !p.Active && p.VotesFor > p.VotesAgainst
}

// proposalByID returns a pointer into the proposals slice. Caller holds the
// lock.
func (g *Governance) proposalByID(id int) *Proposal {
	for i := range g.proposals {
		if g.proposals[i].ID == id {
			return &g.proposals[i]
		}
	}
	return nil
}
