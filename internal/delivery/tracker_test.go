package delivery

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-live/internal/protocol"
)

const (
	alice protocol.ConnID = "c-alice"
	bob   protocol.ConnID = "c-bob"
	carol protocol.ConnID = "c-carol"
)

func statuses(ems []Emission) []Status {
	out := make([]Status, 0, len(ems))
	for _, em := range ems {
		out = append(out, em.Status)
	}
	return out
}

func TestTracker_BroadcastMode_FullLifecycle(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeBroadcast)

	sent, err := tracker.Sent(alice, "m1")
	req.NoError(err)
	req.Equal(Emission{Sender: alice, ID: "m1", Status: StatusSent}, sent)

	req.Equal([]Status{StatusDelivered}, statuses(tracker.Broadcasted(alice, "m1", []protocol.ConnID{bob})))

	seen := tracker.Seen(alice, "m1", bob)
	req.Equal([]Emission{{Sender: alice, ID: "m1", Status: StatusSeen}}, seen)
	req.False(tracker.Tracks(alice, "m1"))
	req.Zero(tracker.Pending())
}

func TestTracker_BroadcastMode_DeliveredWithoutReceivers(t *testing.T) {
	tracker := NewTracker(ModeBroadcast)
	_, err := tracker.Sent(alice, "m1")
	require.NoError(t, err)
	require.Equal(t, []Status{StatusDelivered}, statuses(tracker.Broadcasted(alice, "m1", nil)))
}

func TestTracker_DuplicateSeenIsIdempotent(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeBroadcast)

	_, err := tracker.Sent(alice, "m1")
	req.NoError(err)
	tracker.Broadcasted(alice, "m1", []protocol.ConnID{bob, carol})

	req.Len(tracker.Seen(alice, "m1", bob), 1)
	req.Empty(tracker.Seen(alice, "m1", bob))
	req.Empty(tracker.Seen(alice, "m1", carol))
}

func TestTracker_DuplicateSendRejected(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeBroadcast)

	_, err := tracker.Sent(alice, "m1")
	req.NoError(err)
	_, err = tracker.Sent(alice, "m1")
	req.ErrorIs(err, protocol.ErrDuplicateMessage)

	// Ids are scoped per sender
	_, err = tracker.Sent(bob, "m1")
	req.NoError(err)
}

func TestTracker_AckMode_WaitsForEveryReceiver(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeAck)

	_, err := tracker.Sent(alice, "m1")
	req.NoError(err)
	req.Empty(tracker.Broadcasted(alice, "m1", []protocol.ConnID{bob, carol}))

	req.Empty(tracker.Received(alice, "m1", bob))
	// A repeated ack from the same receiver changes nothing
	req.Empty(tracker.Received(alice, "m1", bob))
	// Acks from connections that were never sent the message are ignored
	req.Empty(tracker.Received(alice, "m1", "c-stranger"))

	req.Equal([]Status{StatusDelivered}, statuses(tracker.Received(alice, "m1", carol)))
	status, ok := tracker.Status(alice, "m1")
	req.True(ok)
	req.Equal(StatusDelivered, status)
}

func TestTracker_AckMode_NoReceiversIsDelivered(t *testing.T) {
	tracker := NewTracker(ModeAck)
	_, err := tracker.Sent(alice, "m1")
	require.NoError(t, err)
	// The sender itself is never an expected receiver
	require.Equal(t, []Status{StatusDelivered}, statuses(tracker.Broadcasted(alice, "m1", []protocol.ConnID{alice})))
}

func TestTracker_AckMode_SeenFromLastReceiverEmitsDeliveredFirst(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeAck)

	_, err := tracker.Sent(alice, "m1")
	req.NoError(err)
	tracker.Broadcasted(alice, "m1", []protocol.ConnID{bob})

	req.Equal([]Status{StatusDelivered, StatusSeen}, statuses(tracker.Seen(alice, "m1", bob)))
}

func TestTracker_AckMode_SeenSupersedesOutstandingAcks(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeAck)

	_, err := tracker.Sent(alice, "m1")
	req.NoError(err)
	tracker.Broadcasted(alice, "m1", []protocol.ConnID{bob, carol})

	req.Equal([]Status{StatusSeen}, statuses(tracker.Seen(alice, "m1", bob)))
	// Carol's late ack cannot move the message backwards
	req.Empty(tracker.Received(alice, "m1", carol))
}

func TestTracker_AckMode_ReceiverDisconnectSettles(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeAck)

	_, err := tracker.Sent(alice, "m1")
	req.NoError(err)
	tracker.Broadcasted(alice, "m1", []protocol.ConnID{bob, carol})
	tracker.Received(alice, "m1", bob)

	ems := tracker.Forget(carol)
	req.Equal([]Emission{{Sender: alice, ID: "m1", Status: StatusDelivered}}, ems)
}

func TestTracker_SenderDisconnectDropsItsMessages(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeBroadcast)

	_, err := tracker.Sent(alice, "m1")
	req.NoError(err)
	tracker.Broadcasted(alice, "m1", []protocol.ConnID{bob})

	req.Empty(tracker.Forget(alice))
	req.False(tracker.Tracks(alice, "m1"))

	// The seen-ack that was in flight is now a silent no-op
	req.Empty(tracker.Seen(alice, "m1", bob))
}

func TestTracker_UnknownMessageIsNoop(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeAck)

	req.Empty(tracker.Broadcasted(alice, "nope", []protocol.ConnID{bob}))
	req.Empty(tracker.Received(alice, "nope", bob))
	req.Empty(tracker.Seen(alice, "nope", bob))
	_, ok := tracker.Status(alice, "nope")
	req.False(ok)
}

func TestTracker_EmissionsAreMonotonic(t *testing.T) {
	for _, mode := range []Mode{ModeBroadcast, ModeAck} {
		t.Run(string(mode), func(t *testing.T) {
			tracker := NewTracker(mode)
			var got []Emission

			sent, err := tracker.Sent(alice, "m1")
			require.NoError(t, err)
			got = append(got, sent)
			got = append(got, tracker.Broadcasted(alice, "m1", []protocol.ConnID{bob, carol})...)
			got = append(got, tracker.Seen(alice, "m1", carol)...)
			got = append(got, tracker.Received(alice, "m1", bob)...)
			got = append(got, tracker.Seen(alice, "m1", bob)...)
			got = append(got, tracker.Forget(bob)...)

			ledger := NewLedger()
			for _, em := range got {
				require.True(t, ledger.Apply(em.ID, em.Status), "emission %v did not advance", em)
			}
			require.Equal(t, StatusSeen, ledger.Status("m1"))
		})
	}
}

func TestTracker_UnacknowledgedMessagesAreBounded(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeBroadcast, WithWindow(8))

	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("m%d", i)
		_, err := tracker.Sent(alice, id)
		req.NoError(err)
		tracker.Broadcasted(alice, id, []protocol.ConnID{bob})
	}
	req.Equal(8, tracker.Pending())

	req.False(tracker.Tracks(alice, "m0"))
	req.Empty(tracker.Seen(alice, "m0", bob))

	req.True(tracker.Tracks(alice, "m999"))
	req.Equal([]Emission{{Sender: alice, ID: "m999", Status: StatusSeen}}, tracker.Seen(alice, "m999", bob))
}

func TestTracker_WindowIsPerSender(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeBroadcast, WithWindow(2))

	_, err := tracker.Sent(bob, "b1")
	req.NoError(err)
	for _, id := range []string{"a1", "a2", "a3"} {
		_, err := tracker.Sent(alice, id)
		req.NoError(err)
	}

	req.True(tracker.Tracks(bob, "b1"))
	req.False(tracker.Tracks(alice, "a1"))
	req.Equal(3, tracker.Pending())
}

func TestTracker_ReusedIDSurvivesEvictionOfItsPredecessor(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker(ModeBroadcast, WithWindow(2))

	_, err := tracker.Sent(alice, "m1")
	req.NoError(err)
	tracker.Broadcasted(alice, "m1", []protocol.ConnID{bob})
	req.Len(tracker.Seen(alice, "m1", bob), 1)

	// m1 is reused after it was settled; the stale slot must not release it.
	_, err = tracker.Sent(alice, "m1")
	req.NoError(err)
	_, err = tracker.Sent(alice, "m2")
	req.NoError(err)

	req.True(tracker.Tracks(alice, "m1"))
	req.True(tracker.Tracks(alice, "m2"))
}

func TestTracker_DefaultWindow(t *testing.T) {
	tracker := NewTracker(ModeAck, WithWindow(0))
	for i := 0; i < DefaultWindow+10; i++ {
		_, err := tracker.Sent(alice, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, DefaultWindow, tracker.Pending())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("ack")
	require.NoError(t, err)
	require.Equal(t, ModeAck, mode)

	_, err = ParseMode("eventually")
	require.Error(t, err)
}
