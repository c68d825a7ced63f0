// Package models defines the core data structures for Arcobot.
//
// It includes divisions, inbound message events, users, stored messages,
// and lead analysis results, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Division identifies one of the ARCOSUM business lines a conversation
// can be routed to.
type Division string

const (
	// DivisionUnassigned marks a user that has not chosen a division yet.
	DivisionUnassigned Division = ""
	// DivisionTechos handles arcotecho roofing projects.
	DivisionTechos Division = "techos"
	// DivisionRolados handles sheet-metal rolling services.
	DivisionRolados Division = "rolados"
	// DivisionSuministros handles material supply orders.
	DivisionSuministros Division = "suministros"
	// DivisionOtros handles general inquiries.
	DivisionOtros Division = "otros"
	// DivisionCierre ends the conversation.
	DivisionCierre Division = "cierre"
)

// IsValidDivision checks whether the given division is a routable business line.
func IsValidDivision(d Division) bool {
	switch d {
	case DivisionTechos, DivisionRolados, DivisionSuministros, DivisionOtros:
		return true
	default:
		return false
	}
}

// DisplayName returns the customer-facing Spanish name of a division.
func (d Division) DisplayName() string {
	switch d {
	case DivisionTechos:
		return "Techos"
	case DivisionRolados:
		return "Rolados"
	case DivisionSuministros:
		return "Suministros"
	case DivisionOtros:
		return "Otros"
	default:
		return string(d)
	}
}

// EventType tags the kind of inbound WhatsApp event.
type EventType string

const (
	// EventTypeText is a plain text message.
	EventTypeText EventType = "text"
	// EventTypeButtonReply is a tap on an interactive reply button.
	EventTypeButtonReply EventType = "button_reply"
	// EventTypeListReply is a selection from an interactive list.
	EventTypeListReply EventType = "list_reply"
	// EventTypeMedia is an image or document, possibly with a caption.
	EventTypeMedia EventType = "media"
)

// UserState tracks whether a user has interacted recently.
type UserState string

const (
	// UserStateActive means the user interacted within the inactivity window.
	UserStateActive UserState = "active"
	// UserStateInactive means the user has been idle past the cutoff.
	UserStateInactive UserState = "inactive"
)

// Validation constants for input validation
const (
	// MaxMessageBodyLength defines the maximum allowed length for an outbound message body
	MaxMessageBodyLength = 4096
	// MaxButtonsPerMessage is the WhatsApp Cloud API limit on reply buttons
	MaxButtonsPerMessage = 3
	// MinLeadScore and MaxLeadScore bound the qualification score range
	MinLeadScore = 1
	MaxLeadScore = 10
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient   = errors.New("recipient cannot be empty")
	ErrEmptyBody        = errors.New("message body cannot be empty")
	ErrBodyTooLong      = errors.New("message body exceeds maximum length")
	ErrTooManyButtons   = errors.New("too many buttons for a single message")
	ErrInvalidDivision  = errors.New("invalid division")
	ErrInvalidLeadScore = errors.New("lead score out of range")
	ErrUserNotFound     = errors.New("user not found")
)

// InboundEvent represents a decoded incoming WhatsApp event.
//
// Exactly one interpretation applies depending on Type: text and media
// events carry Body (caption for media), button and list replies carry
// the selected title in Body and the option id in ReplyID.
type InboundEvent struct {
	Type      EventType `json:"type"`
	From      string    `json:"from"` // sender phone in E.164 digits, no plus
	Body      string    `json:"body,omitempty"`
	ReplyID   string    `json:"reply_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	MediaID   string    `json:"media_id,omitempty"`
	MediaType string    `json:"media_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks that an inbound event is well-formed enough to dispatch.
func (e *InboundEvent) Validate() error {
	if e.From == "" {
		return ErrEmptyRecipient
	}
	switch e.Type {
	case EventTypeText, EventTypeButtonReply, EventTypeListReply, EventTypeMedia:
		return nil
	default:
		return errors.New("unknown event type")
	}
}

// MessageDirection marks whether a stored message was sent or received.
type MessageDirection string

const (
	// DirectionInbound is a message received from the customer.
	DirectionInbound MessageDirection = "inbound"
	// DirectionOutbound is a message sent by the bot.
	DirectionOutbound MessageDirection = "outbound"
)

// User represents a WhatsApp contact known to the bot.
type User struct {
	ID              int64     `json:"id"`
	PhoneNumber     string    `json:"phone_number"`
	Name            string    `json:"name,omitempty"`
	Email           string    `json:"email,omitempty"`
	Company         string    `json:"company,omitempty"`
	State           UserState `json:"state"`
	Division        Division  `json:"division,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	LastInteraction time.Time `json:"last_interaction"`
}

// Message is a single stored conversation message.
type Message struct {
	ID          int64            `json:"id"`
	PhoneNumber string           `json:"phone_number"`
	Body        string           `json:"body"`
	Type        EventType        `json:"type"`
	Direction   MessageDirection `json:"direction"`
	CreatedAt   time.Time        `json:"created_at"`
}

// LeadType classifies the commercial intent of a conversation.
type LeadType string

const (
	// LeadTypeCotizacionSeria is a serious quotation request.
	LeadTypeCotizacionSeria LeadType = "cotizacion_seria"
	// LeadTypeConsultaGeneral is a general question without purchase intent yet.
	LeadTypeConsultaGeneral LeadType = "consulta_general"
	// LeadTypeSpam is noise or irrelevant contact.
	LeadTypeSpam LeadType = "spam"
	// LeadTypeSeguimiento is a follow-up on an earlier conversation.
	LeadTypeSeguimiento LeadType = "seguimiento"

	// LeadTypeTechosForm through LeadTypeOtrosForm mark leads captured
	// through the division forms rather than the assistant.
	LeadTypeTechosForm      LeadType = "techos_form"
	LeadTypeRoladosForm     LeadType = "rolados_form"
	LeadTypeSuministrosForm LeadType = "suministros_form"
	LeadTypeOtrosForm       LeadType = "otros_form"
)

// LeadAnalysis is the result of evaluating a conversation for sales potential.
type LeadAnalysis struct {
	ID           int64             `json:"id,omitempty"`
	PhoneNumber  string            `json:"phone_number"`
	IsQualified  bool              `json:"is_qualified"`
	LeadScore    int               `json:"lead_score"`
	LeadType     LeadType          `json:"lead_type"`
	Division     Division          `json:"division,omitempty"`
	Summary      string            `json:"summary"`
	NextAction   string            `json:"next_action,omitempty"`
	ProjectInfo  map[string]string `json:"project_info,omitempty"`
	DataComplete bool              `json:"data_complete"`
	Notified     bool              `json:"notified"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Validate checks a lead analysis before persisting it.
func (l *LeadAnalysis) Validate() error {
	if l.PhoneNumber == "" {
		return ErrEmptyRecipient
	}
	if l.LeadScore < MinLeadScore || l.LeadScore > MaxLeadScore {
		return ErrInvalidLeadScore
	}
	return nil
}

// Statistics summarizes bot activity for the stats endpoint.
type Statistics struct {
	TotalUsers    int64 `json:"total_users"`
	ActiveToday   int64 `json:"active_today"`
	TotalMessages int64 `json:"total_messages"`
}
