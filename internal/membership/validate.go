package membership

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Reason identifies why a submission was rejected.
type Reason int

const (
	ReasonMissingFields Reason = iota + 1
	ReasonInvalidEmail
	ReasonInvalidGiftCardPIN
	ReasonMissingGiftCardPIN
)

var reasonMessages = map[Reason]string{
	ReasonMissingFields:      "Missing required fields",
	ReasonInvalidEmail:       "Invalid email format",
	ReasonInvalidGiftCardPIN: "Gift card PIN must be 4-8 digits",
	ReasonMissingGiftCardPIN: "Gift card PIN is required",
}

// Message is the short human-readable text returned to the client.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// ValidationError is returned for client-caused submission problems.
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	return e.Reason.Message()
}

var (
	// Syntactic sanity check only: local@domain.tld with no whitespace.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	pinPattern   = regexp.MustCompile(`^[0-9]{4,8}$`)
)

// Validator checks submissions before anything is sent.
type Validator struct {
	fields *validator.Validate

	// RequireGiftCardPIN rejects Gift Card payments that carry no PIN.
	RequireGiftCardPIN bool
}

// NewValidator creates a Validator.
func NewValidator(requireGiftCardPIN bool) *Validator {
	return &Validator{
		fields:             validator.New(),
		RequireGiftCardPIN: requireGiftCardPIN,
	}
}

// Validate applies the rules in order and returns the first failure, or nil.
func (v *Validator) Validate(sub *Submission) error {
	if err := v.fields.Struct(sub); err != nil {
		return &ValidationError{Reason: ReasonMissingFields}
	}

	if !emailPattern.MatchString(sub.Email) {
		return &ValidationError{Reason: ReasonInvalidEmail}
	}

	if sub.IsGiftCard() {
		switch {
		case sub.GiftCardPIN != "" && !pinPattern.MatchString(sub.GiftCardPIN):
			return &ValidationError{Reason: ReasonInvalidGiftCardPIN}
		case sub.GiftCardPIN == "" && v.RequireGiftCardPIN:
			return &ValidationError{Reason: ReasonMissingGiftCardPIN}
		}
	}

	return nil
}
