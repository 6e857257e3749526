package channel

import (
	"context"
	"strings"

	"github.com/mfelder/turnstile/internal/agent"
	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/logging"
	"github.com/mfelder/turnstile/internal/runtime"
)

// Scope controls how inbound messages map to session keys.
type Scope string

const (
	// ScopePerSender gives every sender (or group chat) its own session.
	ScopePerSender Scope = "per-sender"
	// ScopeGlobal funnels a channel's traffic into one shared session.
	ScopeGlobal Scope = "global"
)

// ResolveSessionKey maps an inbound message to its session key. Group chats
// key on the chat, direct messages on the sender; global scope collapses the
// whole channel into one peer.
func ResolveSessionKey(agentID string, scope Scope, msg domain.InboundMessage) domain.SessionKey {
	key := domain.SessionKey{
		AgentID:  agentID,
		Channel:  msg.ChannelID,
		ThreadID: msg.ThreadID,
	}

	if scope == ScopeGlobal {
		key.PeerType = domain.PeerChannel
		key.PeerID = "global"
		return key
	}

	if msg.IsGroup {
		key.PeerType = domain.PeerGroup
		key.PeerID = msg.ChatID
	} else {
		key.PeerType = domain.PeerDM
		key.PeerID = msg.UserID
	}
	return key
}

// Dispatcher connects channel adapters to the run scheduler: every inbound
// message becomes a run, and the run's assistant text is sent back to the
// originating chat when the run finishes.
type Dispatcher struct {
	agentID   string
	scope     Scope
	scheduler *runtime.Scheduler
	log       *logging.Logger
}

// NewDispatcher creates a dispatcher for the given agent and session scope.
func NewDispatcher(agentID string, scope Scope, scheduler *runtime.Scheduler, log *logging.Logger) *Dispatcher {
	if scope == "" {
		scope = ScopePerSender
	}
	return &Dispatcher{
		agentID:   agentID,
		scope:     scope,
		scheduler: scheduler,
		log:       log.Sub("dispatch"),
	}
}

// Attach wires the dispatcher as the channel's message handler.
func (d *Dispatcher) Attach(ch domain.Channel) {
	ch.OnMessage(func(msg domain.InboundMessage) {
		d.handle(ch, msg)
	})
}

func (d *Dispatcher) handle(ch domain.Channel, msg domain.InboundMessage) {
	// Group chats only get a response when the agent is addressed.
	if msg.IsGroup && !msg.IsMentioned {
		return
	}

	key := ResolveSessionKey(d.agentID, d.scope, msg)
	handle := d.scheduler.Start(agent.Request{Key: key, Text: msg.Text})

	d.log.Debug().
		Str("runId", handle.RunID).
		Str("key", key.String()).
		Str("channel", msg.ChannelID).
		Msg("inbound message scheduled")

	go d.relay(ch, msg, handle)
}

// relay drains the run's event stream and delivers the assistant's text back
// to the chat. Tool events are not surfaced to the channel.
func (d *Dispatcher) relay(ch domain.Channel, msg domain.InboundMessage, handle runtime.Handle) {
	var reply strings.Builder
	var failure string

	for ev := range handle.Events {
		switch e := ev.(type) {
		case agent.Delta:
			reply.WriteString(e.Text)
		case agent.Lifecycle:
			if e.Phase == agent.PhaseError {
				failure = e.Message
			}
		}
	}

	text := strings.TrimSpace(reply.String())
	if failure != "" {
		d.log.Warn().Str("runId", handle.RunID).Str("error", failure).Msg("run failed; notifying chat")
		text = "Something went wrong handling that message."
	}
	if text == "" {
		return
	}

	out := domain.OutboundMessage{
		ChannelID: msg.ChannelID,
		To:        msg.ChatID,
		ThreadID:  msg.ThreadID,
		Text:      text,
		ReplyToID: msg.ID,
	}
	if err := ch.Send(context.Background(), out); err != nil {
		d.log.Error().Err(err).Str("runId", handle.RunID).Msg("failed to send reply")
	}
}
