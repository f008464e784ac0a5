package checkout

import "fmt"

// FailureReason classifies why a run ended in the Failed state.
type FailureReason string

const (
	ReasonAuthentication     FailureReason = "AuthenticationError"
	ReasonProductUnavailable FailureReason = "ProductUnavailable"
	ReasonPaymentRejected    FailureReason = "PaymentRejected"
	ReasonSubmissionTimeout  FailureReason = "SubmissionTimeout"
	ReasonSubmissionError    FailureReason = "SubmissionError"
	ReasonAutomation         FailureReason = "AutomationError"
	ReasonCanceled           FailureReason = "Canceled"
)

// RunError is the terminal error of a run. Selection is set when a specific
// product caused the failure.
type RunError struct {
	Reason    FailureReason
	Selection *ProductSelection
	Err       error
}

func (e *RunError) Error() string {
	if e.Selection != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Selection, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

func failed(reason FailureReason, err error) *RunError {
	return &RunError{Reason: reason, Err: err}
}

func failedProduct(sel ProductSelection, err error) *RunError {
	return &RunError{Reason: ReasonProductUnavailable, Selection: &sel, Err: err}
}
