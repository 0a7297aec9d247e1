package jsonrpc

// Outcome is the result of dispatching one request: a value on success or an
// exception on failure.
type Outcome struct {
	Value any
	Err   *Exception

	// fixed is set for envelope validation failures and is emitted as is.
	fixed *Error
}

// Success returns a successful outcome.
func Success(value any) Outcome {
	return Outcome{Value: value}
}

// Failure returns a failed outcome.
func Failure(exc *Exception) Outcome {
	if exc == nil {
		exc = NewException("Internal Server Error")
	}
	return Outcome{Err: exc}
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool {
	return o.Err != nil || o.fixed != nil
}

func invalidOutcome() Outcome {
	return Outcome{fixed: invalidRequest()}
}

// Convert pairs each request of body with the outcome at the same index and
// builds the response document.
//
// Notifications produce nothing. If no envelope survives the result is nil.
// Otherwise a single body yields a *Response and a batch yields a []*Response,
// even when only one envelope survives.
func Convert(body Body, outcomes []Outcome, c *Classifier) any {
	if c == nil {
		c = NewClassifier()
	}
	reqs := body.Requests()
	responses := make([]*Response, 0, len(reqs))
	for i, req := range reqs {
		if !req.HasID() {
			continue
		}
		out := Failure(nil)
		if i < len(outcomes) {
			out = outcomes[i]
		}
		resp := &Response{ID: req.ID}
		switch {
		case out.fixed != nil:
			resp.Error = out.fixed
		case out.Err != nil:
			resp.Error = c.Classify(out.Err)
		default:
			resp.Result = out.Value
		}
		responses = append(responses, resp)
	}

	if len(responses) == 0 {
		return nil
	}
	if !body.IsBatch() {
		return responses[0]
	}
	return responses
}
