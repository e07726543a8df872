package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies failures so that both front ends can react the same way.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindValidation
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindStore:
		return "store"
	}
	return "unknown"
}

var (
	ErrNoSession          = errors.New("no active session")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already in use")
	ErrWeakPassword       = errors.New("password should be at least 6 characters")
	ErrMissingIdentity    = errors.New("missing caller identity")
)

// Error carries the failure kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func Auth(op string, err error) error       { return &Error{Kind: KindAuth, Op: op, Err: err} }
func Validation(op string, err error) error { return &Error{Kind: KindValidation, Op: op, Err: err} }

// Store wraps a backing-store failure. A nil err stays nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindStore {
		return err
	}
	return &Error{Kind: KindStore, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

func IsAuth(err error) bool       { return KindOf(err) == KindAuth }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsStore(err error) bool      { return KindOf(err) == KindStore }

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Message is the client-facing text: the cause for caller mistakes,
// a generic line for everything else.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && (ae.Kind == KindValidation || ae.Kind == KindAuth) {
		return ae.Err.Error()
	}
	return "internal error"
}
