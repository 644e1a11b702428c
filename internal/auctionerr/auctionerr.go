// Package auctionerr classifies the error kinds described in spec.md
// §7 so callers can distinguish them with errors.Is instead of string
// matching, while still carrying a human-readable message through
// fmt.Errorf's %w wrapping — the same wrapping idiom the teacher uses
// throughout internal/db, just with a sentinel attached.
package auctionerr

import "errors"

// Kind is one of the error categories from spec.md §7.
type Kind int

const (
	Validation Kind = iota
	NotFound
	InsufficientResource
	Conflict
	StorageIO
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not found"
	case InsufficientResource:
		return "insufficient resource"
	case Conflict:
		return "conflict"
	case StorageIO:
		return "storage I/O"
	default:
		return "unknown"
	}
}

// Sentinel errors for the five kinds, suitable for errors.Is against an
// error built with New.
var (
	ErrValidation           = errors.New("validation")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrConflict             = errors.New("conflict")
	ErrStorageIO            = errors.New("storage I/O")
)

func sentinel(k Kind) error {
	switch k {
	case Validation:
		return ErrValidation
	case NotFound:
		return ErrNotFound
	case InsufficientResource:
		return ErrInsufficientResource
	case Conflict:
		return ErrConflict
	default:
		return ErrStorageIO
	}
}

// kindError pairs a sentinel kind with a specific message, so
// errors.Is(err, ErrInsufficientResource) works while Error() still
// reports the specific message callers need in a reply line.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return sentinel(e.kind) }

// New builds an error of the given kind with msg as its message.
func New(k Kind, msg string) error {
	return &kindError{kind: k, msg: msg}
}

// Is reports whether err was built with kind k.
func Is(err error, k Kind) bool {
	return errors.Is(err, sentinel(k))
}
