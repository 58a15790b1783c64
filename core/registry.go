package core

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NetworkStats is a read-only projection over the participant set.
type NetworkStats struct {
	HonestCount    int     `json:"honestCount"`
	DishonestCount int     `json:"dishonestCount"`
	TotalRewards   float64 `json:"totalRewards"`
	TotalPenalties float64 `json:"totalPenalties"`
	SlashedCount   int     `json:"slashedCount"`
	MeanSynergy    float64 `json:"meanSynergy"`
}

// BehaviorPolicy assigns each participant's behavior for a cycle. Injecting a
// deterministic policy makes cycles reproducible in tests.
type BehaviorPolicy interface {
	Assign(cycle uint64, participantID int) Behavior
}

// RandomBehaviorPolicy draws dishonest behavior with a fixed probability of
// 30%, matching the reference simulation.
type RandomBehaviorPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomBehaviorPolicy seeds the draw. The same seed reproduces the same
// behavior schedule.
func NewRandomBehaviorPolicy(seed int64) *RandomBehaviorPolicy {
	return &RandomBehaviorPolicy{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomBehaviorPolicy) Assign(cycle uint64, participantID int) Behavior {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rng.Intn(10) < 3 {
		return BehaviorDishonest
	}
	return BehaviorHonest
}

// Registry owns the participant set and runs the PoSyg scoring cycles.
// External mutating calls are serialized through a single writer lock;
// read-only queries may run concurrently with each other.
type Registry struct {
	mu           sync.RWMutex
	participants []Participant
	policy       BehaviorPolicy
	workers      int
	cycle        uint64

	synergyGain           float64
	penaltyIncrement      float64
	conversionRate        float64
	slashPenalty          float64
	totalEconomicActivity float64
}

// NewRegistry creates a registry of n participants with ids 0..n-1, all
// honest and unslashed.
func NewRegistry(n int) *Registry {
	r := &Registry{
		participants:     make([]Participant, n),
		policy:           NewRandomBehaviorPolicy(time.Now().UnixNano()),
		workers:          runtime.NumCPU(),
		synergyGain:      10.0,
		penaltyIncrement: PenaltyIncrement,
		conversionRate:   0.1,
		slashPenalty:     SlashPenalty,
	}
	for i := range r.participants {
		r.participants[i] = newParticipant(i)
	}
	return r
}

// SetBehaviorPolicy replaces the behavior source for subsequent cycles.
func (r *Registry) SetBehaviorPolicy(policy BehaviorPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = policy
}

// SetTotalEconomicActivity sets the reward pool distributed each cycle.
func (r *Registry) SetTotalEconomicActivity(total float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalEconomicActivity = total
}

// Size returns the number of participants.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// ConversionRate returns the current synergy-to-token conversion rate.
func (r *Registry) ConversionRate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conversionRate
}

// forEachPartition fans the index range [0, n) out over a bounded worker
// pool. Each worker touches only its own slice of participant slots.
func (r *Registry) forEachPartition(n int, fn func(start, end int)) {
	workers := r.workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}

// RunCycle executes one full scoring cycle: parameter adaptation, behavior
// assignment, per-participant synergy updates, slashing, and proportional
// reward distribution. Returns 0 on success.
func (r *Registry) RunCycle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adjustNetworkParameters()
	r.cycle++

	// Behaviors are drawn serially so an injected policy sees a stable
	// visiting order, then the updates fan out.
	for i := range r.participants {
		r.participants[i].Behavior = r.policy.Assign(r.cycle, i)
	}
	r.forEachPartition(len(r.participants), func(start, end int) {
		for i := start; i < end; i++ {
			r.participants[i].updateSynergy()
		}
	})

	r.processSlashing()
	r.distributeRewards()
	return 0
}

// adjustNetworkParameters recomputes the dishonest ratio and adapts the
// dynamic tunables. Caller holds the write lock.
func (r *Registry) adjustNetworkParameters() {
	n := len(r.participants)
	if n == 0 {
		return
	}

	var mu sync.Mutex
	dishonest := 0
	r.forEachPartition(n, func(start, end int) {
		local := 0
		for i := start; i < end; i++ {
			if r.participants[i].Behavior == BehaviorDishonest {
				local++
			}
		}
		mu.Lock()
		dishonest += local
		mu.Unlock()
	})

	ratio := float64(dishonest) / float64(n)
	if ratio > 0.5 {
		r.penaltyIncrement *= 1.1
		r.synergyGain *= 0.9
	} else {
		r.penaltyIncrement *= 0.95
		r.synergyGain *= 1.05
	}
	r.conversionRate = 0.1 + ratio*0.05
}

// processSlashing slashes every participant with more than three violations.
// Caller holds the write lock.
func (r *Registry) processSlashing() {
	r.forEachPartition(len(r.participants), func(start, end int) {
		for i := start; i < end; i++ {
			if r.participants[i].ViolationsCount > 3 && !r.participants[i].Slashed {
				r.participants[i].applySlash()
			}
		}
	})
}

// distributeRewards splits the cycle's economic activity across unslashed
// participants in proportion to synergy. Caller holds the write lock.
func (r *Registry) distributeRewards() {
	synergies := make([]float64, 0, len(r.participants))
	for i := range r.participants {
		if !r.participants[i].Slashed {
			synergies = append(synergies, r.participants[i].Synergy)
		}
	}
	totalSynergy := floats.Sum(synergies)
	if totalSynergy <= 0 {
		return
	}
	r.forEachPartition(len(r.participants), func(start, end int) {
		for i := start; i < end; i++ {
			if !r.participants[i].Slashed {
				share := r.participants[i].Synergy / totalSynergy
				r.participants[i].Reward += share * r.totalEconomicActivity
			}
		}
	})
}

// Statistics computes a NetworkStats projection without mutating any state.
func (r *Registry) Statistics() NetworkStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.participants)
	stats := NetworkStats{}
	if n == 0 {
		return stats
	}

	var mu sync.Mutex
	synergies := make([]float64, n)
	r.forEachPartition(n, func(start, end int) {
		local := NetworkStats{}
		for i := start; i < end; i++ {
			p := &r.participants[i]
			if p.Behavior == BehaviorHonest {
				local.HonestCount++
			} else {
				local.DishonestCount++
			}
			local.TotalRewards += p.Reward
			local.TotalPenalties += p.Penalty
			if p.Slashed {
				local.SlashedCount++
			}
			synergies[i] = p.Synergy
		}
		mu.Lock()
		stats.HonestCount += local.HonestCount
		stats.DishonestCount += local.DishonestCount
		stats.TotalRewards += local.TotalRewards
		stats.TotalPenalties += local.TotalPenalties
		stats.SlashedCount += local.SlashedCount
		mu.Unlock()
	})
	stats.MeanSynergy = stat.Mean(synergies, nil)
	return stats
}

// DrainSynergyToTokens converts every unslashed participant's synergy into
// tokens at the given rate and returns the total. This is a consuming
// operation: synergy is destroyed, not copied.
func (r *Registry) DrainSynergyToTokens(rate float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var mu sync.Mutex
	total := 0.0
	r.forEachPartition(len(r.participants), func(start, end int) {
		local := 0.0
		for i := start; i < end; i++ {
			if !r.participants[i].Slashed {
				local += ConvertToTokens(r.participants[i].Synergy, rate)
				r.participants[i].Synergy = 0
			}
		}
		mu.Lock()
		total += local
		mu.Unlock()
	})
	return total
}

// Snapshot returns a copy of the participant's current state.
func (r *Registry) Snapshot(id int) (Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.participants) {
		return Participant{}, fmt.Errorf("participant %d: %w", id, ErrOutOfRange)
	}
	return r.participants[id], nil
}

// Suspicious reports whether a participant currently matches the suspicious
// behavior pattern.
func (r *Registry) Suspicious(id int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.participants) {
		return false, fmt.Errorf("participant %d: %w", id, ErrOutOfRange)
	}
	return r.participants[id].SuspiciousBehavior(), nil
}

// ApplySlash slashes a participant. Idempotent: a second slash changes
// nothing and the slash penalty is charged once.
func (r *Registry) ApplySlash(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.participants) {
		return fmt.Errorf("participant %d: %w", id, ErrOutOfRange)
	}
	r.participants[id].applySlash()
	return nil
}

// RestoreAfterSlash clears a participant's slash and resets synergy to the
// restore value. No-op if the participant is not slashed.
func (r *Registry) RestoreAfterSlash(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.participants) {
		return fmt.Errorf("participant %d: %w", id, ErrOutOfRange)
	}
	r.participants[id].restoreAfterSlash()
	return nil
}

// AddReward credits a flat reward to a participant.
func (r *Registry) AddReward(id int, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.participants) {
		return fmt.Errorf("participant %d: %w", id, ErrOutOfRange)
	}
	r.participants[id].Reward += amount
	return nil
}

// RecordGovernanceVote increments a participant's governance activity.
func (r *Registry) RecordGovernanceVote(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.participants) {
		return fmt.Errorf("participant %d: %w", id, ErrOutOfRange)
	}
	r.participants[id].GovernanceActivity++
	return nil
}

// RecordContribution accumulates an economic contribution for a participant
// and rescales its bounded activity level.
func (r *Registry) RecordContribution(id int, contribution float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.participants) {
		return fmt.Errorf("participant %d: %w", id, ErrOutOfRange)
	}
	r.participants[id].updateEconomicActivity(contribution)
	r.totalEconomicActivity += contribution
	return nil
}
