package bidding

import (
	"testing"

	"github.com/hupe1980/agentmatrix/core"
	"github.com/hupe1980/agentmatrix/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticRegistry is a Registry over a fixed agent list.
type staticRegistry struct {
	agents []*core.AgentInstance
}

func (r *staticRegistry) Bidders() []*core.AgentInstance { return r.agents }

func bidder(id string, budget, minBid, maxBid float64, strategy core.BiddingStrategy, priority int) *core.AgentInstance {
	cfg := testutil.NewAgentConfigBuilder(id).Bidding(budget, minBid, maxBid, strategy, priority).Build()
	return core.NewAgentInstance(cfg)
}

func TestAllocator_StartRound_ComputesStrategyBids(t *testing.T) {
	reg := &staticRegistry{agents: []*core.AgentInstance{
		bidder("aggressive", 100, 5, 25, core.StrategyAggressive, 50),
		bidder("conservative", 100, 10, 40, core.StrategyConservative, 50),
		bidder("adaptive", 100, 10, 20, core.StrategyAdaptive, 50),
	}}
	a := NewAllocator(reg)

	round, err := a.StartRound("execution-slot")
	require.NoError(t, err)
	require.Len(t, round.Bids, 3)

	byAgent := map[string]Bid{}
	for _, b := range round.Bids {
		byAgent[b.AgentID] = b
	}
	// aggressive: min(maxBid, budget*0.3) = min(25, 30) = 25
	assert.InDelta(t, 25, byAgent["aggressive"].Amount, 0.001)
	// conservative: always minBid
	assert.InDelta(t, 10, byAgent["conservative"].Amount, 0.001)
	// adaptive: minBid + (maxBid-minBid) * priority/100 = 10 + 10*0.5 = 15
	assert.InDelta(t, 15, byAgent["adaptive"].Amount, 0.001)
}

func TestAllocator_StartRound_ExcludesUnderfundedAgents(t *testing.T) {
	broke := bidder("broke", 100, 10, 20, core.StrategyConservative, 50)
	require.True(t, broke.Debit(95)) // 5 left, below minBid

	reg := &staticRegistry{agents: []*core.AgentInstance{
		broke,
		bidder("funded", 100, 10, 20, core.StrategyConservative, 50),
	}}
	a := NewAllocator(reg)

	round, err := a.StartRound("execution-slot")
	require.NoError(t, err)
	require.Len(t, round.Bids, 1)
	assert.Equal(t, "funded", round.Bids[0].AgentID)
}

func TestAllocator_StartRound_RejectsOpenRound(t *testing.T) {
	a := NewAllocator(&staticRegistry{})

	_, err := a.StartRound("slot")
	require.NoError(t, err)
	_, err = a.StartRound("slot")
	assert.Error(t, err)

	_, open := a.CurrentRound()
	assert.True(t, open)
}

func TestAllocator_SettleRound_ScoreOrderingAndDebit(t *testing.T) {
	// Scores: a = 10*50 = 500, b = 20*80 = 1600, c = 5*90 = 450.
	agents := []*core.AgentInstance{
		bidder("a", 100, 10, 10, core.StrategyConservative, 50),
		bidder("b", 100, 20, 20, core.StrategyConservative, 80),
		bidder("c", 100, 5, 5, core.StrategyConservative, 90),
	}
	a := NewAllocator(&staticRegistry{agents: agents})

	_, err := a.StartRound("execution-slot")
	require.NoError(t, err)

	round, err := a.SettleRound(2)
	require.NoError(t, err)
	assert.True(t, round.Settled)
	assert.Equal(t, []string{"b", "a"}, round.Winners)

	// Winners pay their bid; the loser keeps its budget.
	assert.InDelta(t, 80, agents[1].Budget(), 0.001)
	assert.InDelta(t, 90, agents[0].Budget(), 0.001)
	assert.InDelta(t, 100, agents[2].Budget(), 0.001)

	// The round is archived; no open round remains.
	_, open := a.CurrentRound()
	assert.False(t, open)
	require.Len(t, a.History(), 1)
	assert.Equal(t, round.ID, a.History()[0].ID)
}

func TestAllocator_SettleRound_AmountBreaksTies(t *testing.T) {
	// Equal scores: x = 20*50 = 1000, y = 10*100 = 1000; larger raw
	// amount wins the earlier slot.
	a := NewAllocator(&staticRegistry{agents: []*core.AgentInstance{
		bidder("y", 100, 10, 10, core.StrategyConservative, 100),
		bidder("x", 100, 20, 20, core.StrategyConservative, 50),
	}})

	_, err := a.StartRound("slot")
	require.NoError(t, err)
	round, err := a.SettleRound(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, round.Winners)
}

func TestAllocator_SettleRound_NoOpenRound(t *testing.T) {
	a := NewAllocator(&staticRegistry{})
	_, err := a.SettleRound(1)
	assert.Error(t, err)
}

func TestAllocator_SettleRound_ForfeitsUncoverableBid(t *testing.T) {
	drained := bidder("drained", 100, 10, 10, core.StrategyConservative, 90)
	a := NewAllocator(&staticRegistry{agents: []*core.AgentInstance{
		drained,
		bidder("steady", 100, 10, 10, core.StrategyConservative, 50),
	}})

	_, err := a.StartRound("slot")
	require.NoError(t, err)

	// Budget drains between bid and settlement; the slot is forfeited,
	// not reassigned.
	require.True(t, drained.Debit(95))

	round, err := a.SettleRound(1)
	require.NoError(t, err)
	assert.Empty(t, round.Winners)
}

func TestAllocator_History_Bounded(t *testing.T) {
	a := NewAllocator(&staticRegistry{}, func(o *Options) {
		o.HistoryLimit = 3
	})

	for i := 0; i < 5; i++ {
		_, err := a.StartRound("slot")
		require.NoError(t, err)
		_, err = a.SettleRound(1)
		require.NoError(t, err)
	}
	assert.Len(t, a.History(), 3)
}
