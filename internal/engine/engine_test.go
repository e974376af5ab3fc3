package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/honeypot/internal/domain"
	"github.com/ashureev/honeypot/internal/memory"
	"github.com/ashureev/honeypot/internal/session"
)

var testTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine   *Engine
	sessions *session.MemoryStore
	memory   *memory.Index
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions := session.NewMemoryStore()
	idx := memory.NewIndex()
	eng := New(sessions, idx, WithClock(func() time.Time { return testTime }))
	return &fixture{engine: eng, sessions: sessions, memory: idx}
}

func (f *fixture) start(t *testing.T, text string) (string, Result) {
	t.Helper()
	id, res, err := f.engine.Create(text, nil)
	require.NoError(t, err)
	return id, res
}

func (f *fixture) submit(t *testing.T, id, text string) Result {
	t.Helper()
	res, err := f.engine.Submit(id, text)
	require.NoError(t, err)
	return res
}

func (f *fixture) read(t *testing.T, id string) *domain.Session {
	t.Helper()
	s, err := f.sessions.Get(id)
	require.NoError(t, err)
	return s
}

// alternating returns a message that adds a fresh UPI handle and alternates
// between PAYMENT and COLLECT intent, so only the turn limit can fire.
func alternating(i int) string {
	if i%2 == 0 {
		return fmt.Sprintf("pay to u%d@bank", i)
	}
	return fmt.Sprintf("collect from u%d@bank", i)
}

func TestScenarioFirstMessageCollectsUPI(t *testing.T) {
	f := newFixture(t)
	id, res := f.start(t, "Pay to upi merchant@bank now")

	assert.Equal(t, domain.StatusRunning, res.Status)
	assert.Equal(t, AskLink, res.Ask)
	assert.Equal(t, f.engine.Rules().Reply(AskLink), res.Reply)

	s := f.read(t, id)
	assert.Equal(t, []string{"merchant@bank"}, s.Intel.UPIIDs.Sorted())
	assert.Equal(t, 1, s.Turns)
	assert.Equal(t, domain.IntentPayment, s.LastIntent)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, domain.RoleScammer, s.Messages[0].Role)
	assert.Equal(t, domain.RoleHoneypot, s.Messages[1].Role)
}

func TestScenarioAllIntelCollected(t *testing.T) {
	f := newFixture(t)
	id, _ := f.start(t, "Pay to upi merchant@bank now")

	res := f.submit(t, id, "Call 9876543210 or open https://fake-bank.com/pay")
	assert.Equal(t, domain.StatusEnded, res.Status)
	assert.Equal(t, domain.StopAllIntelCollected, res.StopReason)
	assert.Equal(t, f.engine.Rules().Closing(domain.StopAllIntelCollected), res.Reply)

	s := f.read(t, id)
	assert.Equal(t, domain.StatusEnded, s.Status)
	assert.Equal(t, 1, s.Turns, "terminating turn does not count")
	assert.Equal(t, []string{"fake-bank.com"}, s.Intel.Domains.Sorted())
	assert.Equal(t, res.Reply, s.Messages[len(s.Messages)-1].Text)
}

func TestScenarioNoIntelProgress(t *testing.T) {
	f := newFixture(t)
	id, res := f.start(t, "hello")
	assert.Equal(t, domain.StatusRunning, res.Status)

	res = f.submit(t, id, "are you there")
	assert.Equal(t, domain.StatusRunning, res.Status)
	assert.Equal(t, 2, f.read(t, id).NoProgressCount)

	res = f.submit(t, id, "reply fast")
	assert.Equal(t, domain.StatusEnded, res.Status)
	assert.Equal(t, domain.StopNoIntelProgress, res.StopReason)
}

func TestEmptyMessageCountsAsNoProgress(t *testing.T) {
	f := newFixture(t)
	id, _ := f.start(t, "")
	s := f.read(t, id)
	assert.Equal(t, 1, s.NoProgressCount)
	assert.Equal(t, domain.IntentOther, s.LastIntent)
}

func TestScenarioMaxTurns(t *testing.T) {
	f := newFixture(t)
	id, res := f.start(t, alternating(0))
	require.Equal(t, domain.StatusRunning, res.Status)

	for i := 1; i < 8; i++ {
		res = f.submit(t, id, alternating(i))
		require.Equal(t, domain.StatusRunning, res.Status, "message %d", i)
	}
	assert.Equal(t, 8, f.read(t, id).Turns)

	res = f.submit(t, id, alternating(8))
	assert.Equal(t, domain.StatusEnded, res.Status)
	assert.Equal(t, domain.StopMaxTurns, res.StopReason)
	assert.Equal(t, 8, f.read(t, id).Turns)
}

func TestAllIntelOutranksMaxTurns(t *testing.T) {
	f := newFixture(t)
	id, _ := f.start(t, alternating(0))
	for i := 1; i < 8; i++ {
		f.submit(t, id, alternating(i))
	}
	require.Equal(t, 8, f.read(t, id).Turns)

	res := f.submit(t, id, "call 9876543210, site https://fake-bank.com/pay")
	assert.Equal(t, domain.StopAllIntelCollected, res.StopReason)
}

func TestScenarioRepeatedIntent(t *testing.T) {
	f := newFixture(t)
	id, _ := f.start(t, "pay to u1@bank")
	f.submit(t, id, "pay to u2@bank")
	res := f.submit(t, id, "pay to u3@bank")
	require.Equal(t, domain.StatusRunning, res.Status)
	assert.Equal(t, 2, f.read(t, id).RepeatCount)

	res = f.submit(t, id, "pay to u4@bank")
	assert.Equal(t, domain.StatusEnded, res.Status)
	assert.Equal(t, domain.StopRepeatedIntent, res.StopReason)
}

func TestIntentChangeResetsRepeat(t *testing.T) {
	f := newFixture(t)
	id, _ := f.start(t, "pay to u1@bank")
	f.submit(t, id, "pay to u2@bank")
	f.submit(t, id, "share otp")

	s := f.read(t, id)
	assert.Equal(t, domain.IntentOTP, s.LastIntent)
	assert.Zero(t, s.RepeatCount)
}

type countingMemory struct {
	mu    sync.Mutex
	calls int
}

func (c *countingMemory) Update(string, *domain.Analysis, *domain.Intel) domain.MemoryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return domain.MemoryRecord{}
}

func TestEndedSessionIsReadOnly(t *testing.T) {
	sessions := session.NewMemoryStore()
	mem := &countingMemory{}
	eng := New(sessions, mem)

	id, _, err := eng.Create("hello", nil)
	require.NoError(t, err)
	eng.Submit(id, "hello")
	res, err := eng.Submit(id, "hello")
	require.NoError(t, err)
	require.Equal(t, domain.StopNoIntelProgress, res.StopReason)

	before, _ := sessions.Get(id)
	callsBefore := mem.calls

	res, err = eng.Submit(id, "pay to x1@bank, call 9876543210")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, res.Status)
	assert.Empty(t, res.Reply)
	assert.Equal(t, domain.StopNone, res.StopReason)

	after, _ := sessions.Get(id)
	assert.Equal(t, before, after)
	assert.Equal(t, domain.StopNoIntelProgress, after.StopReason)
	assert.Equal(t, callsBefore, mem.calls)
}

func TestSubmitUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Submit("nope", "hi")
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, session.IsNotFound(err))
}

func TestReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	id, _ := f.start(t, "pay merchant@bank")
	assert.Equal(t, f.read(t, id), f.read(t, id))
}

func TestMonotonicWhileRunning(t *testing.T) {
	f := newFixture(t)
	msgs := []string{
		"hello", "pay to a1@bank", "no website, just pay", "www link?",
		"collect a2@bank", "ok", "otp please", "pay a3@bank",
	}
	id, _ := f.start(t, msgs[0])
	prev := f.read(t, id)
	for _, m := range msgs[1:] {
		res := f.submit(t, id, m)
		cur := f.read(t, id)
		assert.GreaterOrEqual(t, cur.Turns, prev.Turns)
		for i, n := range cur.Intel.Sizes() {
			assert.GreaterOrEqual(t, n, prev.Intel.Sizes()[i])
		}
		assert.GreaterOrEqual(t, len(cur.Messages), len(prev.Messages))
		if prev.RefusedSite {
			assert.True(t, cur.RefusedSite)
		}
		if res.Status == domain.StatusEnded {
			break
		}
		prev = cur
	}
}

func TestSubmitFeedsGlobalMemory(t *testing.T) {
	f := newFixture(t)
	id, _ := f.start(t, "Pay to upi merchant@bank now")
	other, _ := f.start(t, "  pay to UPI merchant@bank   NOW")

	rec, ok := f.memory.Lookup("pay to upi merchant@bank now")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Count)
	assert.Equal(t, []string{"merchant@bank"}, rec.Intel.UPIIDs.Sorted())

	top := f.memory.Top(1)
	require.Len(t, top, 1)
	assert.Equal(t, 2, top[0].Count)
	assert.NotEqual(t, id, other)
}

func TestConcurrentSubmitsSameSession(t *testing.T) {
	sessions := session.NewMemoryStore()
	eng := New(sessions, memory.NewIndex(), WithRules(func() *Rules {
		r := DefaultRules()
		r.Limits = Limits{MaxTurns: 1000, RepeatLimit: 1000, NoProgressLimit: 1000}
		return r
	}()))
	id, _, err := eng.Create("hello", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = eng.Submit(id, "hello again")
		}()
	}
	wg.Wait()

	s, err := sessions.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 51, s.Turns)
	assert.Len(t, s.Messages, 102)
	assert.Equal(t, 51, s.NoProgressCount)
}
