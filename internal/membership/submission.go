// Package membership holds the inbound purchase submission, the request
// validator and the static plan catalog.
package membership

import (
	"path/filepath"
)

// PaymentGiftCard is the payment method that requires manual verification.
const PaymentGiftCard = "Gift Card"

// Submission is a membership purchase as posted by the caller. It lives for
// the duration of one request and is never stored.
type Submission struct {
	Email         string `json:"email" validate:"required"`
	Plan          string `json:"plan" validate:"required"`
	PaymentMethod string `json:"paymentMethod" validate:"required"`
	TransactionID string `json:"transactionId" validate:"required"`
	GiftCardPIN   string `json:"giftCardPin,omitempty"`

	ProofImage *ProofImage `json:"-"`
}

// IsGiftCard reports whether the payment needs manual gift-card verification.
func (s *Submission) IsGiftCard() bool {
	return s.PaymentMethod == PaymentGiftCard
}

// ProofImage is the optional proof-of-purchase upload.
type ProofImage struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Extension returns the original file extension, or ".jpg" when the
// filename has none.
func (p *ProofImage) Extension() string {
	base := filepath.Base(p.Filename)
	ext := filepath.Ext(base)
	// dotfiles such as ".png" have no extension
	if ext == "" || ext == "." || ext == base {
		return ".jpg"
	}
	return ext
}
