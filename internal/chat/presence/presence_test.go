package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/chat"
)

const viewer = int64(1)

func typing(userID int64, name string, on bool) chat.TypingChanged {
	return chat.TypingChanged{ConversationID: 1, UserID: userID, UserName: name, IsTyping: on}
}

func TestSelfEventsAreIgnored(t *testing.T) {
	tr := New(viewer)
	now := time.Now()

	tr.Apply(typing(viewer, "me", true), now)
	require.Empty(t, tr.Active(now))
}

func TestTypingExpiresAfterWindow(t *testing.T) {
	tr := New(viewer)
	now := time.Now()

	tr.Apply(typing(2, "ana", true), now)
	require.Equal(t, []int64{2}, tr.Active(now.Add(2999*time.Millisecond)))
	require.Empty(t, tr.Active(now.Add(3 * time.Second)))
}

func TestRefreshExtendsDeadline(t *testing.T) {
	tr := New(viewer)
	now := time.Now()

	tr.Apply(typing(2, "ana", true), now)
	tr.Apply(typing(2, "ana", true), now.Add(2*time.Second))
	require.Equal(t, []int64{2}, tr.Active(now.Add(4*time.Second)))
	require.Empty(t, tr.Active(now.Add(6 * time.Second)))
}

func TestFalseRemovesImmediately(t *testing.T) {
	tr := New(viewer)
	now := time.Now()

	tr.Apply(typing(2, "ana", true), now)
	tr.Apply(typing(2, "ana", false), now.Add(time.Second))
	require.Empty(t, tr.Active(now.Add(time.Second)))
}

func TestLabelFormats(t *testing.T) {
	tr := New(viewer)
	now := time.Now()

	require.Empty(t, tr.Label(now))

	tr.Apply(typing(2, "Ana", true), now)
	require.Equal(t, "Ana is typing…", tr.Label(now))

	tr.Apply(typing(3, "Badrul", true), now)
	require.Equal(t, "Ana and Badrul are typing…", tr.Label(now))

	tr.Apply(typing(4, "Chen", true), now)
	require.Equal(t, "Ana and 2 others are typing…", tr.Label(now))
}

func TestLabelFallsBackWhenNameUnknown(t *testing.T) {
	tr := New(viewer)
	now := time.Now()

	tr.Apply(typing(2, "", true), now)
	require.Equal(t, "Someone is typing…", tr.Label(now))
}

func TestNextExpiryReturnsEarliestDeadline(t *testing.T) {
	tr := New(viewer)
	now := time.Now()

	_, ok := tr.NextExpiry(now)
	require.False(t, ok)

	tr.Apply(typing(2, "ana", true), now)
	tr.Apply(typing(3, "chen", true), now.Add(time.Second))

	next, ok := tr.NextExpiry(now)
	require.True(t, ok)
	require.Equal(t, now.Add(TypingExpiry), next)
}

type sendRecorder struct {
	mu    sync.Mutex
	sends []bool
}

func (r *sendRecorder) record(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, on)
}

func (r *sendRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.sends...)
}

func TestDebouncerSendsOnceThenWithdrawsAfterQuiet(t *testing.T) {
	rec := &sendRecorder{}
	d := NewDebouncer(20*time.Millisecond, rec.record)

	d.Keystroke()
	d.Keystroke()
	d.Keystroke()
	require.Equal(t, []bool{true}, rec.snapshot())

	require.Eventually(t, func() bool {
		got := rec.snapshot()
		return len(got) == 2 && got[1] == false
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncerStopWithdrawsImmediately(t *testing.T) {
	rec := &sendRecorder{}
	d := NewDebouncer(time.Minute, rec.record)

	d.Keystroke()
	d.Stop()
	require.Equal(t, []bool{true, false}, rec.snapshot())

	// Stop without prior keystroke sends nothing.
	d.Stop()
	require.Equal(t, []bool{true, false}, rec.snapshot())
}
