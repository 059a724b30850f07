package p2p

import (
	"testing"

	"github.com/auric-network/auric/lib"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesEveryoneButSender(t *testing.T) {
	sb := NewSwitchboard(lib.NewNullLogger())
	inboxA := sb.Register("aa")
	inboxB := sb.Register("bb")
	inboxC := sb.Register("cc")
	sb.Broadcast("aa", lib.ChannelPrevote, []byte("payload"))
	for _, inbox := range []<-chan *Message{inboxB, inboxC} {
		select {
		case msg := <-inbox:
			require.Equal(t, lib.ChannelPrevote, msg.Channel)
			require.Equal(t, []byte("payload"), msg.Payload)
			require.Equal(t, "aa", msg.Sender)
		default:
			t.Fatal("peer did not receive the broadcast")
		}
	}
	select {
	case <-inboxA:
		t.Fatal("the sender must not hear its own broadcast")
	default:
	}
}

func TestUnregisterClosesInbox(t *testing.T) {
	sb := NewSwitchboard(lib.NewNullLogger())
	inbox := sb.Register("aa")
	sb.Register("bb")
	sb.Unregister("aa")
	_, open := <-inbox
	require.False(t, open)
	// broadcasting after removal only reaches the remaining peers
	sb.Broadcast("bb", lib.ChannelCommit, []byte("x"))
}

func TestSaturatedPeerDropsMessages(t *testing.T) {
	sb := NewSwitchboard(lib.NewNullLogger())
	sb.Register("slow")
	// fill well past the inbox capacity; the switchboard must never block
	for i := 0; i < 2000; i++ {
		sb.Broadcast("other", lib.ChannelTx, []byte("spam"))
	}
}
