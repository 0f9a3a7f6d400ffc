package pubkit

// Category classifies the outcome of a call.
type Category string

const (
	CategoryAcknowledgment  Category = "PNAcknowledgmentCategory"
	CategoryValidationError Category = "PNValidationErrorCategory"
	CategoryBadRequest      Category = "PNBadRequestCategory"
	CategoryAccessDenied    Category = "PNAccessDeniedCategory"
	CategoryTimeout         Category = "PNTimeoutCategory"
	CategoryCancelled       Category = "PNCancelledCategory"
	CategoryNetworkIssues   Category = "PNNetworkIssuesCategory"
	CategoryUnknown         Category = "PNUnknownCategory"
)

// Status is delivered to every callback. Error is true for validation and
// transport failures alike; Category tells them apart.
type Status struct {
	Error      bool
	Category   Category
	Operation  Operation
	StatusCode int
	Err        *Error
}

// OK returns a success status for op.
func OK(op Operation, statusCode int) Status {
	return Status{
		Category:   CategoryAcknowledgment,
		Operation:  op,
		StatusCode: statusCode,
	}
}

// ValidationFailure returns the status reported when parameters are
// rejected before any request is sent.
func ValidationFailure(op Operation, message string) Status {
	return Status{
		Error:     true,
		Category:  CategoryValidationError,
		Operation: op,
		Err:       NewError(CodeInvalidArgument, message),
	}
}

// Failure returns a status for an error raised by the transport or the
// service. A nil err yields a success status.
func Failure(op Operation, statusCode int, err error) Status {
	if err == nil {
		return OK(op, statusCode)
	}
	e := DefaultErrorTransformer(err)
	return Status{
		Error:      true,
		Category:   e.Code.Category(),
		Operation:  op,
		StatusCode: statusCode,
		Err:        e,
	}
}
