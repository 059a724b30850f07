package p2p

import (
	"sync"

	"github.com/auric-network/auric/lib"
)

/*
	This file implements the in-process broadcast network used by tests and the
	localnet demo. Delivery is best effort and unordered, the same contract a
	real gossip transport provides: a peer whose inbox is full simply misses
	the message, which the protocol tolerates by design of its retry rounds
*/

// Message is a broadcast payload tagged with its channel and sender
type Message struct {
	Channel string // one of the bit-stable channel identifiers
	Payload []byte // the wire encoding of the payload
	Sender  string // the originating peer id
}

// NetworkI is the broadcast surface the node consumes
type NetworkI interface {
	Broadcast(sender, channel string, payload []byte)
}

// Switchboard fans broadcast messages out to every registered peer inbox
type Switchboard struct {
	mu      sync.RWMutex
	inboxes map[string]chan *Message
	log     lib.LoggerI
}

var _ NetworkI = &Switchboard{}

// NewSwitchboard() creates an empty in-process network
func NewSwitchboard(log lib.LoggerI) *Switchboard {
	return &Switchboard{
		inboxes: make(map[string]chan *Message),
		log:     log,
	}
}

// Register() joins a peer to the network and returns its inbox
func (s *Switchboard) Register(peerId string) <-chan *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	inbox := make(chan *Message, 1000)
	s.inboxes[peerId] = inbox
	return inbox
}

// Unregister() removes a peer from the network
func (s *Switchboard) Unregister(peerId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inbox, ok := s.inboxes[peerId]; ok {
		close(inbox)
		delete(s.inboxes, peerId)
	}
}

// Broadcast() best-effort delivers a payload to every peer except the sender;
// the sender files its own messages directly
func (s *Switchboard) Broadcast(sender, channel string, payload []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for peerId, inbox := range s.inboxes {
		if peerId == sender {
			continue
		}
		select {
		case inbox <- &Message{Channel: channel, Payload: payload, Sender: sender}:
		default:
			s.log.Warnf("dropping %s message to saturated peer %s", channel, peerId)
		}
	}
}
