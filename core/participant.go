package core

// Behavior classifies how a participant acted during the current cycle.
type Behavior int

const (
	BehaviorHonest Behavior = iota
	BehaviorDishonest
)

func (b Behavior) String() string {
	if b == BehaviorHonest {
		return "honest"
	}
	return "dishonest"
}

// Economic constants of the PoSyg incentive model.
const (
	InitialSynergy        = 100.0
	PenaltyIncrement      = 5.0
	RewardIncrement       = 5.0
	SlashPenalty          = 100.0
	InitialRestoreSynergy = 50.0
	MaxEconomicActivity   = 10
)

// Participant holds the economic and behavioral state of a single validator.
// The collection of participants is owned exclusively by the Registry; all
// mutation goes through Registry methods.
type Participant struct {
	ID                   int      `json:"id"`
	Synergy              float64  `json:"synergy"`
	Reward               float64  `json:"reward"`
	Penalty              float64  `json:"penalty"`
	ViolationsCount      int      `json:"violationsCount"`
	Behavior             Behavior `json:"behavior"`
	EconomicActivity     int      `json:"economicActivity"`
	GovernanceActivity   int      `json:"governanceActivity"`
	Slashed              bool     `json:"slashed"`
	EconomicContribution float64  `json:"economicContribution"`
}

func newParticipant(id int) Participant {
	return Participant{
		ID:                 id,
		Synergy:            InitialSynergy,
		Behavior:           BehaviorHonest,
		EconomicActivity:   1,
		GovernanceActivity: 1,
	}
}

// updateSynergy applies one cycle of the incentive model to the participant.
// Honest unslashed participants gain synergy and reward; dishonest ones lose
// synergy, accrue penalty, and are slashed on the spot when suspicious.
// Synergy never goes below zero.
func (p *Participant) updateSynergy() {
	if p.Behavior == BehaviorHonest && !p.Slashed {
		p.Synergy += 10.0 * float64(p.EconomicActivity)
		p.Reward += RewardIncrement * float64(p.EconomicActivity)
	} else if !p.Slashed {
		p.Synergy -= 10.0 * float64(p.EconomicActivity)
		p.Penalty += PenaltyIncrement * float64(p.EconomicActivity)
		if p.SuspiciousBehavior() {
			p.Penalty += 10.0
			p.applySlash()
		}
	}
	if p.Synergy < 0 {
		p.Synergy = 0
	}
}

// SuspiciousBehavior reports whether the participant's activity pattern
// crosses the suspicion thresholds.
func (p *Participant) SuspiciousBehavior() bool {
	return p.EconomicActivity > 4 && p.GovernanceActivity > 2
}

// applySlash zeroes synergy and charges the slash penalty. Slashing an
// already-slashed participant is a no-op, so the penalty is never charged
// twice.
func (p *Participant) applySlash() {
	if p.Slashed {
		return
	}
	p.Slashed = true
	p.Penalty += SlashPenalty
	p.Synergy = 0
}

// restoreAfterSlash lifts the slash and resets synergy to the restore value.
// Only valid while slashed.
func (p *Participant) restoreAfterSlash() {
	if !p.Slashed {
		return
	}
	p.Slashed = false
	p.Synergy = InitialRestoreSynergy
}

// updateEconomicActivity accumulates an economic contribution and rescales
// the bounded activity level from it.
func (p *Participant) updateEconomicActivity(contribution float64) {
	p.EconomicContribution += contribution
	activity := int(contribution / 10.0)
	if activity > MaxEconomicActivity {
		activity = MaxEconomicActivity
	}
	p.EconomicActivity = activity
}
