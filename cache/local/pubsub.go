package local

import (
	"context"
	"sync"
)

// LocalMessage is an in-process pub/sub message.
type LocalMessage struct {
	Channel string
	Payload string
}

type subscription struct {
	ch       chan *LocalMessage
	channels []string
}

// LocalPubSub fans presence events out to in-process subscribers. A slow
// subscriber never blocks a publisher; its messages are dropped once its
// buffer fills.
type LocalPubSub struct {
	mu      sync.RWMutex
	byChan  map[string]map[*subscription]struct{}
	bufSize int
}

// NewPubSub creates a LocalPubSub with the given per-subscriber buffer size.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		byChan:  make(map[string]map[*subscription]struct{}),
		bufSize: bufSize,
	}
}

// Publish delivers message to every current subscriber of channel.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}

	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for sub := range ps.byChan[channel] {
		select {
		case sub.ch <- msg:
		default:
			// subscriber buffer full, drop
		}
	}
	return nil
}

// Subscribe returns a message stream for the given channels and a cancel
// function. Cancel detaches the subscriber and closes the stream; it is
// safe to call once from any goroutine.
func (ps *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	sub := &subscription{
		ch:       make(chan *LocalMessage, ps.bufSize),
		channels: channels,
	}

	ps.mu.Lock()
	for _, c := range channels {
		set, ok := ps.byChan[c]
		if !ok {
			set = make(map[*subscription]struct{})
			ps.byChan[c] = set
		}
		set[sub] = struct{}{}
	}
	ps.mu.Unlock()

	cancel := func() {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		for _, c := range sub.channels {
			if set, ok := ps.byChan[c]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(ps.byChan, c)
				}
			}
		}
		close(sub.ch)
	}

	return sub.ch, cancel, nil
}
