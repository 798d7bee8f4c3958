package view

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fanpulse/pulse/internal/model"
	"github.com/fanpulse/pulse/internal/query"
)

// Chat is the view at "/messages". Messages for the selected peer are kept
// approximately fresh by a fixed-period poller; there is no push channel.
// The view owns the poller handle and stops it on peer clear and on
// teardown.
type Chat struct {
	deps   Deps
	poller *query.Poller

	mu   sync.Mutex
	peer string
}

func NewChat(deps Deps) *Chat {
	return &Chat{
		deps:   deps,
		poller: query.NewPoller(deps.pollInterval(), deps.Clock),
	}
}

// Users lists everyone available to chat with.
func (v *Chat) Users(ctx context.Context) ([]model.User, error) {
	data, err := v.deps.Cache.Fetch(ctx, KeyUsers(), func(ctx context.Context) (interface{}, error) {
		return v.deps.API.Users(ctx)
	})
	if err != nil {
		return nil, err
	}

	return usersOf(data), nil
}

// SelectPeer switches the active conversation. Switching from one peer to
// another invalidates the previous peer's result, so stale messages are
// never shown while the new conversation loads. Selecting the empty peer
// clears the conversation and stops the poller.
func (v *Chat) SelectPeer(ctx context.Context, peerID string) {
	v.mu.Lock()
	prev := v.peer
	v.peer = peerID
	v.mu.Unlock()

	v.poller.Stop()
	if prev != "" && prev != peerID {
		v.deps.Cache.Invalidate(KeyMessages(prev))
	}
	if peerID == "" {
		return
	}

	v.poller.Start(func() {
		v.Refetch(context.Background())
	})
	_, _ = v.Messages(ctx)
}

// Peer returns the selected peer id, empty when none.
func (v *Chat) Peer() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.peer
}

// Messages returns the active conversation. Without a selected peer the
// query never fires and resolves empty.
func (v *Chat) Messages(ctx context.Context) ([]model.Message, error) {
	peer := v.Peer()
	data, err := v.deps.Cache.FetchGated(ctx, KeyMessages(peer), peer, v.fetchMessages(peer))
	if err != nil {
		return nil, err
	}

	return messagesOf(data), nil
}

func (v *Chat) fetchMessages(peer string) query.Fetcher {
	return func(ctx context.Context) (interface{}, error) {
		return v.deps.API.Messages(ctx, peer, v.deps.Session.UserID())
	}
}

// Refetch forces a fresh read of the active conversation, invalidating the
// cached copy first. The poller calls this every period; Send calls it once
// out-of-band so the sender sees their own message immediately.
func (v *Chat) Refetch(ctx context.Context) {
	peer := v.Peer()
	if peer == "" {
		return
	}

	key := KeyMessages(peer)
	v.deps.Cache.Invalidate(key)
	_, _ = v.deps.Cache.Fetch(ctx, key, v.fetchMessages(peer))
}

// Send delivers text to the selected peer. On success an immediate refetch
// is issued, bypassing the poll timer; this hides latency but makes no
// ordering promise against other senders' concurrent sends.
func (v *Chat) Send(ctx context.Context, text string) error {
	peer := v.Peer()
	if peer == "" || strings.TrimSpace(text) == "" {
		return ErrValidation
	}
	uid := v.deps.Session.UserID()

	_, err := v.deps.Cache.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return v.deps.API.SendMessage(ctx, uid, peer, text)
	})
	if err != nil {
		return err
	}

	v.Refetch(ctx)

	return nil
}

func (v *Chat) Render() string {
	peer := v.Peer()
	if peer == "" {
		return "Select a user to start chatting"
	}

	res := v.deps.Cache.Peek(KeyMessages(peer))
	switch res.Status {
	case query.StatusPending, query.StatusIdle:
		return "Loading messages..."
	case query.StatusError:
		return "Failed to load messages."
	}

	msgs := messagesOf(res.Data)
	if len(msgs) == 0 {
		return "No messages yet. Say hi!"
	}

	uid := v.deps.Session.UserID()
	var b strings.Builder
	for _, m := range msgs {
		who := peer
		if m.SenderID == uid {
			who = "you"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, m.Text)
	}

	return strings.TrimRight(b.String(), "\n")
}

// Teardown stops the poller and clears the selection; a discarded chat view
// must never leave a recurring refetch behind.
func (v *Chat) Teardown() {
	v.poller.Stop()

	v.mu.Lock()
	v.peer = ""
	v.mu.Unlock()
}
