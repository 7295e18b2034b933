// Package service implements the marketplace workflows: partner onboarding,
// offer moderation and deposit reservations, plus the access layer they
// share.
package service

import "errors"

// Kind classifies a workflow failure.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindStateConflict Kind = "STATE_CONFLICT"
	KindForbidden     Kind = "FORBIDDEN"
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	KindInternal      Kind = "INTERNAL"
)

// Error is a business-rule failure.  Code is what clients see.
type Error struct {
	Kind Kind
	Code string
}

func (e *Error) Error() string { return e.Code }

// Is matches another *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Code == e.Code
}

func newErr(k Kind, code string) *Error { return &Error{Kind: k, Code: code} }

// Validation builds a VALIDATION error with a specific code.
func Validation(code string) *Error { return newErr(KindValidation, code) }

var (
	ErrNotFound  = newErr(KindNotFound, "NOT_FOUND")
	ErrForbidden = newErr(KindForbidden, "FORBIDDEN")

	ErrInvalidInput   = Validation("INVALID_INPUT")
	ErrReasonRequired = Validation("REASON_REQUIRED")

	ErrAlreadyPartner   = newErr(KindAlreadyExists, "ALREADY_PARTNER")
	ErrAlreadyInProcess = newErr(KindAlreadyExists, "ALREADY_IN_PROCESS")
	ErrNotPending       = newErr(KindStateConflict, "NOT_PENDING")
	ErrNotCancellable   = newErr(KindStateConflict, "NOT_CANCELLABLE")
	ErrNotEditable      = newErr(KindStateConflict, "NOT_EDITABLE")

	ErrAlreadyFrozen  = newErr(KindStateConflict, "ALREADY_FROZEN")
	ErrNotFrozen      = newErr(KindStateConflict, "NOT_FROZEN")
	ErrAlreadyDeleted = newErr(KindStateConflict, "ALREADY_DELETED")
	ErrNotDeleted     = newErr(KindStateConflict, "NOT_DELETED")
	ErrOfferDeleted   = newErr(KindStateConflict, "OFFER_DELETED")

	ErrOfferNotFound             = newErr(KindNotFound, "OFFER_NOT_FOUND")
	ErrPaymentMethodNotAvailable = Validation("PAYMENT_METHOD_NOT_AVAILABLE")
	ErrQuantityExceedsStock      = Validation("QUANTITY_EXCEEDS_STOCK")
	ErrPhoneRequired             = Validation("PHONE_REQUIRED")
	ErrInvalidQuantity           = Validation("INVALID_QUANTITY")
	ErrInvalidPaymentMethod      = Validation("INVALID_PAYMENT_METHOD")
	ErrInvalidProofURL           = Validation("INVALID_PROOF_URL")
)

// KindOf returns the kind of err, INTERNAL for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the client-facing code of err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return string(KindInternal)
}
