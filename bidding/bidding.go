// Package bidding implements the resource-slot auction: agents competing for
// limited execution airtime place bids computed from their configured
// strategy, and settlement picks the top scorers and debits their budgets.
// Rounds are one-shot; a settled round is archived and a fresh round must be
// started for further allocation.
package bidding

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentmatrix/core"
	"github.com/hupe1980/agentmatrix/logging"
)

// Registry is the slice of the matrix the allocator needs: the enabled
// agents with bidding switched on.
type Registry interface {
	Bidders() []*core.AgentInstance
}

// Bid is one agent's offer in a round.
type Bid struct {
	AgentID  string  `json:"agent_id"`
	Amount   float64 `json:"amount"`
	Priority int     `json:"priority"`
}

// Score is the settlement ordering key.
func (b Bid) Score() float64 { return b.Amount * float64(b.Priority) }

// Round is one allocation cycle. Exists only until settlement, then is
// archived to history.
type Round struct {
	ID        string    `json:"id"`
	Resource  string    `json:"resource"`
	Bids      []Bid     `json:"bids"`
	Winners   []string  `json:"winners,omitempty"`
	Settled   bool      `json:"settled"`
	StartedAt time.Time `json:"started_at"`
	SettledAt time.Time `json:"settled_at,omitempty"`
}

// Options configures an Allocator.
type Options struct {
	Logger logging.Logger
	Clock  core.Clock
	// HistoryLimit caps the archived rounds; oldest are dropped first.
	HistoryLimit int
}

// Allocator runs bidding rounds over the registry.
type Allocator struct {
	mu           sync.Mutex
	registry     Registry
	current      *Round
	history      []Round
	historyLimit int
	logger       logging.Logger
	clock        core.Clock
}

// NewAllocator creates an allocator over the given registry.
func NewAllocator(registry Registry, optFns ...func(o *Options)) *Allocator {
	opts := Options{
		Logger:       logging.NoOpLogger{},
		Clock:        core.SystemClock(),
		HistoryLimit: 100,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Allocator{
		registry:     registry,
		historyLimit: opts.HistoryLimit,
		logger:       opts.Logger,
		clock:        opts.Clock,
	}
}

// StartRound opens a round for the named resource. Every eligible agent
// (bidding enabled, budget covering minBid) computes a bid via its strategy.
// An unsettled round must be settled before a new one can start.
func (a *Allocator) StartRound(resource string) (Round, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		return Round{}, fmt.Errorf("round %s for resource %s is still open", a.current.ID, a.current.Resource)
	}

	round := &Round{
		ID:        core.NewID(),
		Resource:  resource,
		StartedAt: a.clock.Now(),
	}
	for _, inst := range a.registry.Bidders() {
		params := inst.Config().Bidding
		budget := inst.Budget()
		if budget < params.MinBid {
			continue
		}
		amount := computeBid(params, budget)
		if amount <= 0 {
			continue
		}
		round.Bids = append(round.Bids, Bid{
			AgentID:  inst.Config().ID,
			Amount:   amount,
			Priority: params.Priority,
		})
	}

	a.current = round
	a.logger.Info("bidding round started", "round_id", round.ID, "resource", resource, "bids", len(round.Bids))
	return *round, nil
}

// SettleRound closes the current round: bids sort by amount*priority
// descending with raw amount breaking ties, the top maxWinners win, and each
// winner's budget is debited by its bid amount. The settled round is
// archived and returned.
func (a *Allocator) SettleRound(maxWinners int) (Round, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return Round{}, fmt.Errorf("no open round to settle")
	}
	round := a.current
	a.current = nil

	ranked := make([]Bid, len(round.Bids))
	copy(ranked, round.Bids)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].Score(), ranked[j].Score()
		if si != sj {
			return si > sj
		}
		return ranked[i].Amount > ranked[j].Amount
	})

	if maxWinners > len(ranked) {
		maxWinners = len(ranked)
	}
	for _, bid := range ranked[:maxWinners] {
		inst, ok := a.lookup(bid.AgentID)
		if !ok || !inst.Debit(bid.Amount) {
			// Budget drained since the bid was placed; the slot is
			// forfeited rather than reassigned.
			a.logger.Warn("winner could not cover its bid", "round_id", round.ID, "agent_id", bid.AgentID, "amount", bid.Amount)
			continue
		}
		round.Winners = append(round.Winners, bid.AgentID)
	}

	round.Settled = true
	round.SettledAt = a.clock.Now()

	a.history = append(a.history, *round)
	if len(a.history) > a.historyLimit {
		a.history = a.history[len(a.history)-a.historyLimit:]
	}

	a.logger.Info("bidding round settled", "round_id", round.ID, "winners", len(round.Winners))
	return *round, nil
}

// CurrentRound returns the open round, if any.
func (a *Allocator) CurrentRound() (Round, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Round{}, false
	}
	return *a.current, true
}

// History returns a copy of the archived rounds, oldest first.
func (a *Allocator) History() []Round {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Round, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Allocator) lookup(agentID string) (*core.AgentInstance, bool) {
	for _, inst := range a.registry.Bidders() {
		if inst.Config().ID == agentID {
			return inst, true
		}
	}
	return nil, false
}

// computeBid applies the agent's strategy. Bids are clamped to the remaining
// budget so a win can always be debited.
func computeBid(params core.BiddingParams, budget float64) float64 {
	var amount float64
	switch params.Strategy {
	case core.StrategyAggressive:
		amount = budget * 0.3
		if amount > params.MaxBid {
			amount = params.MaxBid
		}
	case core.StrategyAdaptive:
		p := float64(params.Priority)
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		amount = params.MinBid + (params.MaxBid-params.MinBid)*p/100
	default: // conservative
		amount = params.MinBid
	}
	if amount > budget {
		amount = budget
	}
	return amount
}
