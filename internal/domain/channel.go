package domain

import (
	"context"
	"time"
)

// InboundMessage is a message received from a channel adapter.
type InboundMessage struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channelId"`
	ChatID      string    `json:"chatId"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName,omitempty"`
	ThreadID    string    `json:"threadId,omitempty"`
	Text        string    `json:"text"`
	IsGroup     bool      `json:"isGroup"`
	IsMentioned bool      `json:"isMentioned"`
	Timestamp   time.Time `json:"timestamp"`
}

// OutboundMessage is a message to deliver through a channel adapter.
type OutboundMessage struct {
	ChannelID string `json:"channelId"`
	To        string `json:"to"`
	ThreadID  string `json:"threadId,omitempty"`
	Text      string `json:"text"`
	ReplyToID string `json:"replyToId,omitempty"`
}

// MessageHandler receives inbound messages from a channel.
type MessageHandler func(msg InboundMessage)

// Channel is the boundary port a chat integration implements.
type Channel interface {
	// ID returns the channel identifier (e.g. "irc").
	ID() string

	// Start connects the channel and begins delivering inbound messages.
	// It may block until the connection ends.
	Start(ctx context.Context) error

	// Send delivers an outbound message.
	Send(ctx context.Context, msg OutboundMessage) error

	// Stop disconnects the channel.
	Stop(ctx context.Context) error

	// OnMessage registers the handler for inbound messages.
	OnMessage(handler MessageHandler)
}

// ChannelStatus reports a channel's runtime state.
type ChannelStatus struct {
	ChannelID string `json:"channelId"`
	Running   bool   `json:"running"`
	Detail    string `json:"detail,omitempty"`
}
