// Package bot implements Barbara's turn orchestrator.
//
// The orchestrator is the single entry point for a conversational turn. It
// owns input hygiene, per-user serialisation, opportunistic name capture,
// history recording, quote archiving and the panic barrier. Process never
// fails: every unexpected condition degrades to the fixed fallback reply.
package bot

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/autofondo/barbara/internal/extract"
	"github.com/autofondo/barbara/internal/flow"
	"github.com/autofondo/barbara/internal/memory"
	"github.com/autofondo/barbara/internal/models"
	"github.com/autofondo/barbara/internal/store"
)

// Enhancer optionally rewrites a scripted reply. Implementations must treat
// the memory as read-only and fall back to the scripted text on failure.
type Enhancer interface {
	EnhanceReply(ctx context.Context, mem *models.ConversationMemory, inbound, scripted string) string
}

// Opts holds configuration options for the orchestrator.
type Opts struct {
	MaxInboundLength int
	Enhancer         Enhancer
	Archive          store.Store
}

// Option defines a configuration option for the orchestrator.
type Option func(*Opts)

// WithMaxInboundLength overrides the inbound truncation limit.
func WithMaxInboundLength(n int) Option {
	return func(o *Opts) { o.MaxInboundLength = n }
}

// WithEnhancer plugs in an optional GenAI reply enhancer.
func WithEnhancer(e Enhancer) Option {
	return func(o *Opts) { o.Enhancer = e }
}

// WithArchive plugs in an optional quotation archive.
func WithArchive(s store.Store) Option {
	return func(o *Opts) { o.Archive = s }
}

// Orchestrator routes one inbound message through memory, the state machine,
// the optional enhancer and the optional archive.
type Orchestrator struct {
	memory     *memory.Store
	machine    *flow.Machine
	enhancer   Enhancer
	archive    store.Store
	maxInbound int
}

// New creates an orchestrator bound to a memory store and a state machine.
func New(mem *memory.Store, machine *flow.Machine, opts ...Option) *Orchestrator {
	cfg := Opts{MaxInboundLength: models.MaxInboundLength}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxInboundLength <= 0 {
		cfg.MaxInboundLength = models.MaxInboundLength
	}
	slog.Debug("Bot orchestrator created",
		"max_inbound_length", cfg.MaxInboundLength,
		"enhancer_set", cfg.Enhancer != nil,
		"archive_set", cfg.Archive != nil)
	return &Orchestrator{
		memory:     mem,
		machine:    machine,
		enhancer:   cfg.Enhancer,
		archive:    cfg.Archive,
		maxInbound: cfg.MaxInboundLength,
	}
}

// Process handles one conversational turn and always returns an outbound
// utterance. Turns for the same user are serialised; the user id is logged
// only as a hash.
func (o *Orchestrator) Process(ctx context.Context, userID, inbound string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Bot turn panicked, returning fallback",
				"panic", fmt.Sprint(r), "user_hash", hashUserID(userID))
			reply = flow.FallbackReply
		}
	}()

	if strings.TrimSpace(userID) == "" {
		slog.Error("Bot turn rejected", "error", models.ErrEmptyUserID)
		return flow.FallbackReply
	}

	inbound = strings.TrimSpace(inbound)
	if inbound == "" {
		slog.Debug("Bot turn with empty inbound", "user_hash", hashUserID(userID))
		return flow.FallbackReply
	}
	if runes := []rune(inbound); len(runes) > o.maxInbound {
		slog.Debug("Bot inbound truncated",
			"user_hash", hashUserID(userID), "length", len(runes), "limit", o.maxInbound)
		inbound = string(runes[:o.maxInbound])
	}

	unlock := o.memory.LockUser(userID)
	defer unlock()

	mem := o.memory.GetOrCreate(userID)

	// Opportunistic name capture: only while the conversation is still asking
	// for the name, so city or vehicle answers never masquerade as one.
	if mem.UserName == "" &&
		(mem.State == models.StateInitial || mem.State == models.StateWaitingName) {
		if name, ok := extract.Name(inbound); ok {
			o.memory.SetName(mem, name)
		}
	}

	hadQuote := mem.Quote != nil
	wasConfirmed := mem.State == models.StateEmailConfirmed

	reply = o.machine.Step(ctx, mem, inbound)
	if reply == "" {
		reply = flow.FallbackReply
	}

	o.archiveProgress(mem, hadQuote, wasConfirmed)

	if o.enhancer != nil {
		reply = o.enhancer.EnhanceReply(ctx, mem, inbound, reply)
		if reply == "" {
			reply = flow.FallbackReply
		}
	}

	o.memory.AppendTurn(mem, inbound, reply)
	return reply
}

// archiveProgress mirrors quote lifecycle events into the archive. Archive
// errors are logged and dropped: the conversation never depends on storage.
func (o *Orchestrator) archiveProgress(mem *models.ConversationMemory, hadQuote, wasConfirmed bool) {
	if o.archive == nil || mem.Quote == nil {
		return
	}

	if !hadQuote {
		rec := models.QuoteRecord{
			QuoteID:      mem.Quote.QuoteID,
			UserID:       mem.UserID,
			ClientName:   mem.UserName,
			VehicleType:  string(mem.Quote.VehicleType),
			VehicleYear:  mem.Quote.VehicleYear,
			VehicleUsage: string(mem.Quote.VehicleUsage),
			City:         mem.Quote.City,
			PriceSoles:   mem.Quote.PriceSoles,
			GeneratedAt:  mem.Quote.GeneratedAt,
		}
		if err := o.archive.AddQuote(rec); err != nil {
			slog.Warn("Bot quote archive failed", "error", err, "quote_id", rec.QuoteID)
		}
	}

	if !wasConfirmed && mem.State == models.StateEmailConfirmed && mem.Email != "" {
		if err := o.archive.MarkEmailed(mem.Quote.QuoteID, mem.Email); err != nil {
			slog.Warn("Bot quote e-mail stamp failed", "error", err, "quote_id", mem.Quote.QuoteID)
		}
	}
}

// hashUserID hashes a user id for log lines so raw contact identifiers never
// reach the logs.
func hashUserID(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return fmt.Sprintf("%08x", h.Sum32())
}
