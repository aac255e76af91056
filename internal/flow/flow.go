// Package flow implements the scripted SOAT quotation conversation.
//
// The state machine advances one ConversationState per inbound message,
// consulting only the extractor relevant to the current state. A loop guard
// counts consecutive misses per state and forces progression with documented
// defaults once the threshold is reached, so no finite interaction can stall.
package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/autofondo/barbara/internal/extract"
	"github.com/autofondo/barbara/internal/memory"
	"github.com/autofondo/barbara/internal/models"
	"github.com/autofondo/barbara/internal/quote"
)

// Dispatcher delivers a quotation e-mail. The flow only learns whether the
// message went out and whether the sandbox rewrote the recipient.
type Dispatcher interface {
	SendQuotation(ctx context.Context, email, clientName string, q *models.QuoteData) (sent bool, redirected bool)
}

// Forced-progression defaults applied by the loop guard.
const (
	DefaultVehicleType  = models.VehicleAuto
	DefaultVehicleYear  = 2020
	DefaultVehicleUsage = models.UsageParticular
	DefaultCity         = "Lima"
)

// Opts holds configuration options for the state machine.
type Opts struct {
	MaxRetries        int
	SupportPhone      string
	QuoteValidityDays int
}

// Option defines a configuration option for the state machine.
type Option func(*Opts)

// WithMaxRetries sets the loop-guard threshold.
func WithMaxRetries(n int) Option {
	return func(o *Opts) { o.MaxRetries = n }
}

// WithSupportPhone sets the phone number quoted back to users.
func WithSupportPhone(phone string) Option {
	return func(o *Opts) { o.SupportPhone = phone }
}

// WithQuoteValidityDays sets how long the quoted price is honoured.
func WithQuoteValidityDays(days int) Option {
	return func(o *Opts) { o.QuoteValidityDays = days }
}

// Machine advances per-user conversation state and emits the next utterance.
type Machine struct {
	store        *memory.Store
	dispatcher   Dispatcher
	maxRetries   int
	supportPhone string
	validityDays int
	now          func() time.Time
}

// New creates a state machine bound to a memory store and a dispatcher.
func New(store *memory.Store, dispatcher Dispatcher, opts ...Option) *Machine {
	cfg := Opts{
		MaxRetries:        models.MaxRetriesPerState,
		QuoteValidityDays: models.DefaultQuoteValidityDays,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = models.MaxRetriesPerState
	}
	if cfg.QuoteValidityDays <= 0 {
		cfg.QuoteValidityDays = models.DefaultQuoteValidityDays
	}
	slog.Debug("Flow machine created", "max_retries", cfg.MaxRetries, "validity_days", cfg.QuoteValidityDays)
	return &Machine{
		store:        store,
		dispatcher:   dispatcher,
		maxRetries:   cfg.MaxRetries,
		supportPhone: cfg.SupportPhone,
		validityDays: cfg.QuoteValidityDays,
		now:          time.Now,
	}
}

// Step processes one inbound message against the user's memory and returns the
// outbound utterance. Memory fields, state, and retry counters are updated in
// place; the caller holds the user's lock.
func (m *Machine) Step(ctx context.Context, mem *models.ConversationMemory, inbound string) string {
	if mem == nil || strings.TrimSpace(inbound) == "" {
		return FallbackReply
	}

	if err := m.checkInvariants(mem); err != nil {
		slog.Error("Flow invariant violated, resetting conversation",
			"error", err, "user_id", mem.UserID, "state", mem.State)
		mem.State = models.StateInitial
		return FallbackReply
	}

	prev := mem.State
	outbound := m.step(ctx, mem, inbound)
	if mem.State != prev {
		m.store.ResetRetries(mem, prev)
		slog.Info("Flow state transition", "user_id", mem.UserID, "from", prev, "to", mem.State)
	}
	return outbound
}

// checkInvariants rejects states whose preconditions no longer hold.
func (m *Machine) checkInvariants(mem *models.ConversationMemory) error {
	if !models.IsValidConversationState(mem.State) {
		return models.ErrInvariantViolated
	}
	switch mem.State {
	case models.StateQuoteGenerated, models.StateAskingEmail, models.StateWaitingEmail, models.StateEmailConfirmed:
		if mem.Quote == nil {
			return models.ErrInvariantViolated
		}
	}
	if mem.State == models.StateEmailConfirmed && mem.Email == "" {
		return models.ErrInvariantViolated
	}
	return nil
}

func (m *Machine) step(ctx context.Context, mem *models.ConversationMemory, inbound string) string {
	switch mem.State {
	case models.StateInitial:
		mem.State = models.StateWaitingName
		return replyGreeting

	case models.StateWaitingName:
		return m.stepWaitingName(mem, inbound)

	case models.StateNameReceived:
		return m.stepNameReceived(mem, inbound)

	case models.StateCollectingVehicleType:
		return m.stepVehicleType(mem, inbound)

	case models.StateCollectingVehicleYear:
		return m.stepVehicleYear(mem, inbound)

	case models.StateCollectingVehicleUsage:
		return m.stepVehicleUsage(mem, inbound)

	case models.StateCollectingCity:
		return m.stepCity(mem, inbound)

	case models.StateQuoteGenerated, models.StateAskingEmail:
		return m.stepAskingEmail(mem, inbound)

	case models.StateWaitingEmail:
		return m.stepWaitingEmail(ctx, mem, inbound)

	case models.StateEmailConfirmed:
		return replyAnythingElse(displayName(mem.UserName))

	case models.StateComplete:
		return replyFarewell(displayName(mem.UserName), m.supportPhone)

	default:
		// Unreachable: checkInvariants rejects unknown states.
		mem.State = models.StateInitial
		return FallbackReply
	}
}

func (m *Machine) stepWaitingName(mem *models.ConversationMemory, inbound string) string {
	// The orchestrator may have captured the name opportunistically already.
	if mem.UserName != "" {
		mem.State = models.StateNameReceived
		return replyAcknowledgeName(mem.UserName)
	}
	if name, ok := extract.Name(inbound); ok {
		m.store.SetName(mem, name)
		mem.State = models.StateNameReceived
		return replyAcknowledgeName(name)
	}

	if m.guardTripped(mem) {
		if name, ok := extract.NameFlexible(inbound); ok {
			slog.Debug("Flow loop guard salvaged a name", "user_id", mem.UserID)
			m.store.SetName(mem, name)
			mem.State = models.StateNameReceived
			return replyAcknowledgeName(name)
		}
		return replyNameLastChance
	}
	return replyAskNameAgain
}

func (m *Machine) stepNameReceived(mem *models.ConversationMemory, inbound string) string {
	if extract.IsAffirmative(inbound) || extract.WantsQuote(inbound) || m.guardTripped(mem) {
		mem.State = models.StateCollectingVehicleType
		return replyAskVehicleType
	}
	return replyOfferQuote(displayName(mem.UserName))
}

func (m *Machine) stepVehicleType(mem *models.ConversationMemory, inbound string) string {
	vt, ok := extract.VehicleType(inbound)
	if !ok {
		if !m.guardTripped(mem) {
			return replyAskVehicleType
		}
		vt = DefaultVehicleType
		slog.Debug("Flow loop guard defaulted vehicle type", "user_id", mem.UserID, "default", vt)
	}
	mem.VehicleType = vt
	mem.State = models.StateCollectingVehicleYear
	return replyAskYear(string(vt))
}

func (m *Machine) stepVehicleYear(mem *models.ConversationMemory, inbound string) string {
	year, ok := extract.Year(inbound)
	if !ok {
		if !m.guardTripped(mem) {
			return replyAskYear(string(mem.VehicleType))
		}
		year = DefaultVehicleYear
		slog.Debug("Flow loop guard defaulted vehicle year", "user_id", mem.UserID, "default", year)
	}
	mem.VehicleYear = year
	mem.State = models.StateCollectingVehicleUsage
	return replyAskUsage
}

func (m *Machine) stepVehicleUsage(mem *models.ConversationMemory, inbound string) string {
	usage, ok := extract.Usage(inbound)
	if !ok {
		if !m.guardTripped(mem) {
			return replyAskUsage
		}
		usage = DefaultVehicleUsage
		slog.Debug("Flow loop guard defaulted vehicle usage", "user_id", mem.UserID, "default", usage)
	}
	mem.VehicleUsage = usage
	mem.State = models.StateCollectingCity
	return replyAskCity
}

func (m *Machine) stepCity(mem *models.ConversationMemory, inbound string) string {
	city, ok := extract.City(inbound)
	if !ok {
		if !m.guardTripped(mem) {
			return replyAskCity
		}
		city = DefaultCity
		slog.Debug("Flow loop guard defaulted city", "user_id", mem.UserID, "default", city)
	}
	mem.City = city
	mem.Quote = quote.Generate(m.now(), mem.VehicleType, mem.VehicleYear, mem.VehicleUsage, mem.City)
	mem.State = models.StateAskingEmail
	slog.Info("Flow quote generated",
		"user_id", mem.UserID, "quote_id", mem.Quote.QuoteID, "price_soles", mem.Quote.PriceSoles)

	rendered := quote.Format(mem.Quote, mem.UserName, m.supportPhone, m.validityDays)
	return replyAskEmail(rendered)
}

func (m *Machine) stepAskingEmail(mem *models.ConversationMemory, inbound string) string {
	switch {
	case extract.IsNegative(inbound):
		mem.State = models.StateComplete
		return replyFarewell(displayName(mem.UserName), m.supportPhone)
	case extract.IsAffirmative(inbound):
		mem.State = models.StateWaitingEmail
		return replyAskAddress
	case m.guardTripped(mem):
		mem.State = models.StateWaitingEmail
		return replyAskAddress
	default:
		return replyAskEmailYesNo
	}
}

func (m *Machine) stepWaitingEmail(ctx context.Context, mem *models.ConversationMemory, inbound string) string {
	email, ok := extract.Email(inbound)
	if !ok {
		if m.guardTripped(mem) {
			return replyStrictAddress
		}
		return replyBadAddress
	}

	sent, redirected := m.dispatcher.SendQuotation(ctx, email, mem.UserName, mem.Quote)
	if !sent {
		slog.Warn("Flow e-mail dispatch failed, inviting retry", "user_id", mem.UserID, "quote_id", mem.Quote.QuoteID)
		return replyEmailFailed(m.supportPhone)
	}

	mem.Email = email
	mem.State = models.StateEmailConfirmed
	if redirected {
		return replyEmailRedirected(displayName(mem.UserName), mem.Quote.QuoteID)
	}
	return replyEmailConfirmed(displayName(mem.UserName), mem.Quote.QuoteID, email)
}

// guardTripped increments the retry counter for the current state and reports
// whether the loop-guard threshold was reached.
func (m *Machine) guardTripped(mem *models.ConversationMemory) bool {
	n := m.store.IncrRetries(mem, mem.State)
	if n >= m.maxRetries {
		slog.Info("Flow loop guard forcing progression", "user_id", mem.UserID, "state", mem.State, "attempts", n)
		return true
	}
	return false
}
