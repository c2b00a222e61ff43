package dues

// Error kinds surfaced to callers. Handlers map these onto HTTP statuses.
const (
	KindNotFound     = "NOT_FOUND"
	KindForbidden    = "FORBIDDEN"
	KindConflict     = "CONFLICT"
	KindValidation   = "VALIDATION"
	KindDuesRequired = "DUES_REQUIRED"
)

type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func notFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }
func validation(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }
func duesRequired(msg string) *Error { return &Error{Kind: KindDuesRequired, Message: msg} }
