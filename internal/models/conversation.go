// Package models defines the core data structures for Barbara.
//
// It includes the conversation state machine vocabulary, the per-user
// conversation memory record, and the quotation snapshot shared across modules.
package models

import (
	"fmt"
	"time"
)

// ConversationState represents a user's position in the scripted quotation flow.
type ConversationState string

const (
	StateInitial                ConversationState = "INITIAL"
	StateWaitingName            ConversationState = "WAITING_NAME"
	StateNameReceived           ConversationState = "NAME_RECEIVED"
	StateCollectingVehicleType  ConversationState = "COLLECTING_VEHICLE_TYPE"
	StateCollectingVehicleYear  ConversationState = "COLLECTING_VEHICLE_YEAR"
	StateCollectingVehicleUsage ConversationState = "COLLECTING_VEHICLE_USAGE"
	StateCollectingCity         ConversationState = "COLLECTING_CITY"
	StateQuoteGenerated         ConversationState = "QUOTE_GENERATED"
	StateAskingEmail            ConversationState = "ASKING_EMAIL"
	StateWaitingEmail           ConversationState = "WAITING_EMAIL"
	StateEmailConfirmed         ConversationState = "EMAIL_CONFIRMED"
	StateComplete               ConversationState = "COMPLETE"
)

// IsValidConversationState checks if the given state is part of the flow vocabulary.
func IsValidConversationState(s ConversationState) bool {
	switch s {
	case StateInitial, StateWaitingName, StateNameReceived,
		StateCollectingVehicleType, StateCollectingVehicleYear,
		StateCollectingVehicleUsage, StateCollectingCity,
		StateQuoteGenerated, StateAskingEmail, StateWaitingEmail,
		StateEmailConfirmed, StateComplete:
		return true
	default:
		return false
	}
}

// VehicleType is one of the vehicle categories the pricing table recognises.
type VehicleType string

const (
	VehicleAuto      VehicleType = "auto"
	VehicleMoto      VehicleType = "moto"
	VehicleTaxi      VehicleType = "taxi"
	VehicleCamioneta VehicleType = "camioneta"
	VehicleComercial VehicleType = "comercial"
)

// VehicleUsage is the declared use of the vehicle.
type VehicleUsage string

const (
	UsageParticular VehicleUsage = "particular"
	UsageTrabajo    VehicleUsage = "trabajo"
	UsageComercial  VehicleUsage = "comercial"
	UsageTaxi       VehicleUsage = "taxi"
)

// Vehicle year bounds accepted by the extractor and the quote snapshot.
const (
	MinVehicleYear = 1990
	MaxVehicleYear = 2029
)

// Turn is one inbound/outbound exchange kept in the conversation history.
type Turn struct {
	Inbound   string    `json:"inbound"`
	Outbound  string    `json:"outbound"`
	Timestamp time.Time `json:"timestamp"`
}

// QuoteData is the deterministic bundle produced once per completed collection cycle.
type QuoteData struct {
	QuoteID      string       `json:"quote_id"` // AF<YYYYMMDD><8-hex-upper>
	PriceSoles   int          `json:"price_soles"`
	VehicleType  VehicleType  `json:"vehicle_type"`
	VehicleYear  int          `json:"vehicle_year"`
	VehicleUsage VehicleUsage `json:"vehicle_usage"`
	City         string       `json:"city"`
	GeneratedAt  time.Time    `json:"generated_at"`
}

// VehicleLabel renders the vehicle snapshot for user-facing copy, e.g. "Auto 2024".
func (q *QuoteData) VehicleLabel() string {
	if q == nil {
		return ""
	}
	vt := string(q.VehicleType)
	if vt == "" {
		return ""
	}
	return fmt.Sprintf("%s%s %d", string(vt[0]-'a'+'A'), vt[1:], q.VehicleYear)
}

// PriceLabel renders the price in soles, e.g. "S/ 160".
func (q *QuoteData) PriceLabel() string {
	if q == nil {
		return ""
	}
	return fmt.Sprintf("S/ %d", q.PriceSoles)
}

// ConversationMemory is the per-user record tracked by the memory store.
// It is mutated exclusively by the orchestrator under the state machine's rules
// while the user's lock is held.
type ConversationMemory struct {
	UserID          string                    `json:"user_id"`
	UserName        string                    `json:"user_name,omitempty"` // empty until captured; never overwritten once set
	State           ConversationState         `json:"state"`
	VehicleType     VehicleType               `json:"vehicle_type,omitempty"`
	VehicleYear     int                       `json:"vehicle_year,omitempty"`
	VehicleUsage    VehicleUsage              `json:"vehicle_usage,omitempty"`
	City            string                    `json:"city,omitempty"`
	Email           string                    `json:"email,omitempty"`
	Quote           *QuoteData                `json:"quote,omitempty"`
	History         []Turn                    `json:"history,omitempty"`
	RetriesPerState map[ConversationState]int `json:"retries_per_state,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}
