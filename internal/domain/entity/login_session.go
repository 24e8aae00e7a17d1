package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChannelWechatOpen is the provider channel tag for the WeChat Open Platform
// QR login flow. New external providers get their own channel value.
const ChannelWechatOpen = "wechat_open"

// SessionStatus is the lifecycle state of a QR login attempt.
type SessionStatus string

const (
	// SessionPending means the QR code has been issued and no confirmation
	// has arrived yet.
	SessionPending SessionStatus = "PENDING"
	// SessionConfirmed means the mobile-side callback succeeded and a
	// one-time ticket is waiting to be exchanged.
	SessionConfirmed SessionStatus = "CONFIRMED"
	// SessionExpired means the session deadline passed before confirmation.
	SessionExpired SessionStatus = "EXPIRED"
	// SessionFailed means the callback was rejected; error fields carry the reason.
	SessionFailed SessionStatus = "FAILED"
	// SessionConsumed means the ticket was exchanged for a bearer token.
	SessionConsumed SessionStatus = "CONSUMED"
)

// IsTerminal reports whether no further transition out of the status is
// permitted.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionExpired, SessionFailed, SessionConsumed:
		return true
	default:
		return false
	}
}

// LoginSession tracks one QR login attempt from QR issuance to token
// exchange. It is owned and mutated exclusively by the QR login state machine.
type LoginSession struct {
	ID              uuid.UUID     // Session identifier, embedded in the QR payload URL.
	Channel         string        // Provider channel tag, currently always ChannelWechatOpen.
	State           string        // Signed anti-tamper token, unique, echoed back by the provider redirect.
	Status          SessionStatus // Current lifecycle state.
	UserID          *uuid.UUID    // Resolved local account; set only once CONFIRMED.
	Ticket          *string       // One-time exchange credential; set only on CONFIRMED.
	TicketExpiresAt *time.Time    // Deadline of the ticket, much shorter than the session TTL.
	ErrorCode       *string       // Machine-readable failure code; set on FAILED.
	ErrorMessage    *string       // Human-readable failure detail; set on FAILED.
	ExpiresAt       time.Time     // Absolute deadline for the PENDING -> CONFIRMED transition.
	ConsumedAt      *time.Time    // Stamped when the ticket is exchanged.
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TicketUsable reports whether the session holds a ticket that the exchange
// step would still accept at the given instant. GetStatus uses this to avoid
// handing out a ticket that is already dead.
func (s *LoginSession) TicketUsable(now time.Time) bool {
	return s.Status == SessionConfirmed &&
		s.Ticket != nil &&
		s.TicketExpiresAt != nil &&
		s.TicketExpiresAt.After(now)
}

// Expired reports whether the session deadline has passed at the given instant.
func (s *LoginSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
