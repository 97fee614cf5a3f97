package dto

import (
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/service"
)

// RegisterCreditCardRequest represents a card submitted by the user
type RegisterCreditCardRequest struct {
	Type   string `json:"type" binding:"required,oneof=Visa Master"`
	Holder string `json:"holder" binding:"required"`
	Number string `json:"number" binding:"required"`
	Expiry string `json:"expiry" binding:"required"` // YYYY-MM
}

// ToInput converts the request to the service input
func (r *RegisterCreditCardRequest) ToInput() *service.RegisterCreditCardInput {
	return &service.RegisterCreditCardInput{
		Type:   domain.CreditCardType(r.Type),
		Holder: r.Holder,
		Number: r.Number,
		Expiry: r.Expiry,
	}
}

// CreditCardResponse shows the stored card without its number
type CreditCardResponse struct {
	Type   string `json:"type"`
	Holder string `json:"holder"`
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
}

// CreditCardFromDomain converts a domain card to its response
func CreditCardFromDomain(c *domain.CreditCard) *CreditCardResponse {
	return &CreditCardResponse{
		Type:   string(c.Type),
		Holder: c.Holder,
		Last4:  c.Last4,
		Expiry: c.ExpiryDate.Format("2006-01"),
	}
}
