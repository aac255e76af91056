package messaging

import (
	"context"
	"log/slog"
)

// Processor handles one conversational turn and always returns an outbound
// utterance. It is implemented by the bot orchestrator.
type Processor interface {
	Process(ctx context.Context, userID, inbound string) string
}

// Responder drains a messaging service's inbound responses, runs each turn
// through the processor, and sends the reply back on the same channel. The
// orchestrator serialises turns per user, so responses are handled
// concurrently without reordering any single conversation.
type Responder struct {
	service   Service
	processor Processor
}

// NewResponder creates a responder bridging a messaging service and a processor.
func NewResponder(service Service, processor Processor) *Responder {
	return &Responder{service: service, processor: processor}
}

// Run processes inbound messages until the context is cancelled or the
// service's response channel is closed.
func (r *Responder) Run(ctx context.Context) {
	slog.Info("Responder loop started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Responder loop stopped", "reason", ctx.Err())
			return
		case resp, ok := <-r.service.Responses():
			if !ok {
				slog.Info("Responder loop stopped, response channel closed")
				return
			}
			go r.handle(ctx, resp.From, resp.Body)
		}
	}
}

func (r *Responder) handle(ctx context.Context, from, body string) {
	userID, err := r.service.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("Responder dropping message with invalid sender", "error", err)
		return
	}

	reply := r.processor.Process(ctx, userID, body)
	if err := r.service.SendMessage(ctx, userID, reply); err != nil {
		slog.Error("Responder failed to send reply", "error", err, "to", userID)
	}
}
