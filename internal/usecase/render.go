package usecase

const (
	LoadingText        = "Generating..."
	GenericFailureText = "An error occurred while generating the response."
	TimedOutText       = "The request timed out. Please try again."
	CanceledText       = "Request cancelled."
)

// FailureText is the plain-text message shown for err.
func FailureText(err *Error) string {
	if err == nil {
		return GenericFailureText
	}
	switch err.Code {
	case ErrorApplication:
		return "Error: " + err.Message
	case ErrorTimedOut:
		return TimedOutText
	case ErrorCanceled:
		return CanceledText
	default:
		return GenericFailureText
	}
}

// TextRenderer renders plain text, for terminals and tests.
type TextRenderer struct{}

func (TextRenderer) Loading() string { return LoadingText }

func (TextRenderer) Result(text string) string { return text }

func (TextRenderer) Failure(err *Error) string { return FailureText(err) }
