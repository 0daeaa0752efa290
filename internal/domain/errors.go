package domain

// ErrorKind is the closed set of failure categories the engine can surface.
// Every kind maps to a fixed process exit code so scripting callers can
// branch on outcomes without parsing messages.
type ErrorKind string

const (
	ErrCaptureFailure  ErrorKind = "CAPTURE_FAILURE"   // fallback chain exhausted
	ErrUsage           ErrorKind = "USAGE_ERROR"       // unresolvable platform, malformed input
	ErrNetwork         ErrorKind = "NETWORK_ERROR"     // transient connectivity or timeout
	ErrAuthRequired    ErrorKind = "AUTH_REQUIRED"     // login wall, password gate, restricted share
	ErrNotFound        ErrorKind = "NOT_FOUND"         // expired, deleted, or invalid item
	ErrUnsupportedType ErrorKind = "UNSUPPORTED_TYPE"  // resolved item is not an image
	ErrInternal        ErrorKind = "INTERNAL_ERROR"    // invariant violation, always a bug
	ErrContentTypeHTML ErrorKind = "CONTENT_TYPE_HTML" // server declared text/html instead of an image
	ErrMagicBytesHTML  ErrorKind = "MAGIC_BYTES_HTML"  // payload sniffed as HTML despite declared type
)

// ErrorKinds lists every kind, for callers that need the closed set.
var ErrorKinds = []ErrorKind{
	ErrCaptureFailure,
	ErrUsage,
	ErrNetwork,
	ErrAuthRequired,
	ErrNotFound,
	ErrUnsupportedType,
	ErrInternal,
	ErrContentTypeHTML,
	ErrMagicBytesHTML,
}

// ExitCode returns the fixed process exit code for this kind. The two HTML
// variants share AUTH_REQUIRED's code: an HTML payload where an image was
// expected is, in practice, almost always an auth wall or error page.
func (k ErrorKind) ExitCode() int {
	switch k {
	case ErrCaptureFailure:
		return 1
	case ErrUsage:
		return 2
	case ErrNetwork:
		return 10
	case ErrAuthRequired, ErrContentTypeHTML, ErrMagicBytesHTML:
		return 11
	case ErrNotFound:
		return 12
	case ErrUnsupportedType:
		return 13
	case ErrInternal:
		return 20
	}
	return 20
}

// Specificity ranks how actionable a soft-failure kind is. When a fallback
// chain is exhausted the executor surfaces the highest-ranked reason it saw:
// an auth or not-found signal tells the user what to fix, while a generic
// capture failure does not.
func (k ErrorKind) Specificity() int {
	switch k {
	case ErrAuthRequired, ErrNotFound:
		return 4
	case ErrContentTypeHTML, ErrMagicBytesHTML:
		return 3
	case ErrUnsupportedType:
		return 2
	case ErrNetwork:
		return 1
	}
	return 0
}

// Surface normalizes an internal kind to the kind reported to the caller.
// The HTML variants are diagnostic detail; callers see AUTH_REQUIRED.
func (k ErrorKind) Surface() ErrorKind {
	if k == ErrContentTypeHTML || k == ErrMagicBytesHTML {
		return ErrAuthRequired
	}
	return k
}

// Envelope is the terminal failure value for one item. It is one-to-one
// mappable to an exit code via Code.ExitCode().
type Envelope struct {
	Code        ErrorKind `json:"code"`
	Message     string    `json:"message"`
	Remediation string    `json:"remediation,omitempty"`
}

// NewEnvelope creates an error envelope
func NewEnvelope(code ErrorKind, message, remediation string) *Envelope {
	return &Envelope{Code: code, Message: message, Remediation: remediation}
}

// Error implements the error interface
func (e *Envelope) Error() string {
	return string(e.Code) + ": " + e.Message
}

// MoreSpecificThan reports whether this envelope's reason outranks other's.
// A nil other never outranks.
func (e *Envelope) MoreSpecificThan(other *Envelope) bool {
	if other == nil {
		return true
	}
	return e.Code.Specificity() > other.Code.Specificity()
}

// AsEnvelope extracts an *Envelope from err, wrapping unclassified errors as
// CAPTURE_FAILURE so every method failure carries a kind.
func AsEnvelope(err error) *Envelope {
	if err == nil {
		return nil
	}
	if env, ok := err.(*Envelope); ok {
		return env
	}
	return NewEnvelope(ErrCaptureFailure, err.Error(), "")
}
