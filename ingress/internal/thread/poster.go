// Package thread publishes chat-thread messages to the WebSocket clients of a channel.
package thread

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Aaryan126/Research-Agent/ingress/internal/protocol"
)

// ErrNoSubscribers is returned when nobody is listening on the channel anymore.
var ErrNoSubscribers = errors.New("channel has no subscribers")

// Publisher fans a message out to the connections of a channel.
type Publisher interface {
	PublishJSON(channel string, v interface{}) error
	HasSubscribers(channel string) bool
}

// Poster implements stream.Poster on top of a hub channel. Message ids are
// assigned here; clients apply thread_update by id.
type Poster struct {
	hub       Publisher
	channel   string
	requestID string
}

// NewPoster returns a poster for the requests of one channel.
func NewPoster(hub Publisher, channel, requestID string) *Poster {
	return &Poster{hub: hub, channel: channel, requestID: requestID}
}

// Post publishes a thread_post and returns the new message id.
func (p *Poster) Post(_ context.Context, threadID, text string) (string, error) {
	if !p.hub.HasSubscribers(p.channel) {
		return "", ErrNoSubscribers
	}
	msg := protocol.ThreadPostMessage{
		BaseMessage: p.base(protocol.TypeThreadPost),
		MessageID:   "msg_" + uuid.New().String(),
		ThreadID:    threadID,
		Text:        text,
	}
	if err := p.hub.PublishJSON(p.channel, msg); err != nil {
		return "", err
	}
	return msg.MessageID, nil
}

// Update publishes a thread_update replacing the text of messageID.
func (p *Poster) Update(_ context.Context, messageID, text string) error {
	if !p.hub.HasSubscribers(p.channel) {
		return ErrNoSubscribers
	}
	return p.hub.PublishJSON(p.channel, protocol.ThreadUpdateMessage{
		BaseMessage: p.base(protocol.TypeThreadUpdate),
		MessageID:   messageID,
		Text:        text,
	})
}

func (p *Poster) base(msgType string) protocol.BaseMessage {
	return protocol.BaseMessage{
		Type:      msgType,
		Ts:        time.Now().UnixMilli(),
		RequestID: p.requestID,
		Channel:   p.channel,
	}
}
