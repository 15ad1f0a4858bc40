package errors

// Code classifies an AppError. Values are stable; they appear in HTTP error
// bodies, gRPC ErrorInfo reasons and WebSocket error messages.
type Code int32

const (
	CodeUnspecified Code = iota
	Unknown
	Internal
	InvalidArgument
	NotFound
	Unavailable
	Timeout
	Cancelled

	// Image pipeline
	ImageDecodeFailed
	ImageEmpty
	ImageTooLarge
	ImageEncodeFailed

	// Practice
	LetterInvalid
	SessionNotFound

	// Configuration
	ConfigInvalid
)

var codeNames = map[Code]string{
	CodeUnspecified:   "ERROR_CODE_UNSPECIFIED",
	Unknown:           "UNKNOWN",
	Internal:          "INTERNAL",
	InvalidArgument:   "INVALID_ARGUMENT",
	NotFound:          "NOT_FOUND",
	Unavailable:       "UNAVAILABLE",
	Timeout:           "TIMEOUT",
	Cancelled:         "CANCELLED",
	ImageDecodeFailed: "IMAGE_DECODE_FAILED",
	ImageEmpty:        "IMAGE_EMPTY",
	ImageTooLarge:     "IMAGE_TOO_LARGE",
	ImageEncodeFailed: "IMAGE_ENCODE_FAILED",
	LetterInvalid:     "LETTER_INVALID",
	SessionNotFound:   "SESSION_NOT_FOUND",
	ConfigInvalid:     "CONFIG_INVALID",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseCode is the inverse of String. Unrecognized names map to Unknown.
func ParseCode(s string) Code {
	for c, name := range codeNames {
		if name == s {
			return c
		}
	}
	return Unknown
}
