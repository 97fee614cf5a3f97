package domain

import (
	"strings"
	"time"
	"unicode"
)

// CreditCardType is the card scheme
type CreditCardType string

const (
	CardVisa   CreditCardType = "Visa"
	CardMaster CreditCardType = "Master"
)

// CreditCard is the card on file. Only the last four digits are kept.
type CreditCard struct {
	Type       CreditCardType `json:"type"`
	Holder     string         `json:"holder"`
	Last4      string         `json:"last4"`
	ExpiryDate time.Time      `json:"expiry_date"`
}

// NewCreditCard validates a raw card number and keeps its last four digits
func NewCreditCard(cardType CreditCardType, holder, number string, expiry time.Time) (*CreditCard, error) {
	if cardType != CardVisa && cardType != CardMaster {
		return nil, ErrInvalidCreditCard
	}
	if strings.TrimSpace(holder) == "" || expiry.IsZero() {
		return nil, ErrInvalidCreditCard
	}

	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
	if len(digits) < 12 || len(digits) > 19 {
		return nil, ErrInvalidCreditCard
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return nil, ErrInvalidCreditCard
		}
	}

	return &CreditCard{
		Type:       cardType,
		Holder:     strings.TrimSpace(holder),
		Last4:      digits[len(digits)-4:],
		ExpiryDate: expiry,
	}, nil
}

// Account is the booking-side view of a user
type Account struct {
	UserID     string      `json:"user_id"`
	CreditCard *CreditCard `json:"credit_card,omitempty"`
	BookingIDs []string    `json:"booking_ids"`
}

// HasCreditCard reports whether a card is on file
func (a *Account) HasCreditCard() bool {
	return a != nil && a.CreditCard != nil
}
