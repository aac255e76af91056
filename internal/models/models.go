// Package models defines the core data structures for Barbara.
//
// This file holds the shared validation constants, sentinel errors, the e-mail
// payload handed to transports, and the messaging/API envelope types.
package models

import (
	"errors"
	"time"
)

// Validation constants for input handling.
const (
	// MaxInboundLength defines the default maximum accepted inbound message length.
	MaxInboundLength = 500
	// MaxHistoryTurns defines the default cap on stored conversation turns per user.
	MaxHistoryTurns = 10
	// MaxRetriesPerState defines the default loop-guard threshold before forced progression.
	MaxRetriesPerState = 3
	// MaxTurnTextLength defines the truncation length applied to stored turn text.
	MaxTurnTextLength = 200
	// DefaultQuoteValidityDays defines how long a quoted price is honoured.
	DefaultQuoteValidityDays = 15
)

// Error variables for better error handling and testability.
var (
	ErrEmptyUserID       = errors.New("user id cannot be empty")
	ErrEmptyInbound      = errors.New("inbound message cannot be empty")
	ErrEmptyRecipient    = errors.New("recipient cannot be empty")
	ErrMissingQuote      = errors.New("quotation data is required before dispatch")
	ErrIncompleteQuote   = errors.New("quotation is missing required fields")
	ErrInvalidEmail      = errors.New("e-mail address is not valid")
	ErrInvariantViolated = errors.New("conversation state invariant violated")
)

// EmailMessage is the transport-agnostic payload built by the dispatcher.
type EmailMessage struct {
	From        string       `json:"from"`
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is an optional file carried alongside an e-mail body.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// QuoteRecord is the archive row persisted for every generated quotation.
type QuoteRecord struct {
	QuoteID      string    `json:"quote_id"`
	UserID       string    `json:"user_id"`
	ClientName   string    `json:"client_name,omitempty"`
	VehicleType  string    `json:"vehicle_type"`
	VehicleYear  int       `json:"vehicle_year"`
	VehicleUsage string    `json:"vehicle_usage"`
	City         string    `json:"city"`
	PriceSoles   int       `json:"price_soles"`
	EmailedTo    string    `json:"emailed_to,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// MessageStatus represents the delivery status of a chat message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt represents a delivery/read receipt for an outbound chat message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming chat message from a user.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// ChatRequest is the HTTP API payload for one conversational turn.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ChatResponse is the HTTP API reply for one conversational turn.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response envelope.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Error builds an error response envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Success builds a success response envelope carrying a result.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage builds a success response envelope with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}
