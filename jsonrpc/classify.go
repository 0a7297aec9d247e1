package jsonrpc

import "strings"

// Rule rewrites an exception whose message matches Match, compared without
// regard to case.
type Rule struct {
	Match   string
	Code    int
	Message string
}

// DefaultRules map the HTTP-flavoured messages used by method registries onto
// the reserved protocol codes.
var DefaultRules = []Rule{
	{Match: "not found", Code: CodeMethodNotFound, Message: "Method not found"},
	{Match: "bad request", Code: CodeInvalidParams, Message: "Invalid params"},
	{Match: "internal server error", Code: CodeInternalError, Message: "Internal error"},
}

// Classifier turns exceptions into response error objects.
type Classifier struct {
	// Rules are tried in order; the first match wins.
	Rules []Rule
	// DefaultCode is used when the exception has no code and no rule matched.
	DefaultCode int
}

// NewClassifier returns a classifier using DefaultRules and CodeServerError.
func NewClassifier() *Classifier {
	return &Classifier{Rules: DefaultRules, DefaultCode: CodeServerError}
}

// Classify copies every member of exc onto a new error object and then applies
// the first matching rule. Without a match the code, message and data of exc
// are kept as they are.
func (c *Classifier) Classify(exc *Exception) *Error {
	if exc == nil {
		exc = NewException("Internal Server Error")
	}
	e := &Error{
		Message: exc.Message,
		Data:    exc.Data,
		hasData: exc.hasData,
	}
	if len(exc.Extra) > 0 {
		e.Extra = make(map[string]any, len(exc.Extra))
		for k, v := range exc.Extra {
			e.Extra[k] = v
		}
	}

	for _, rule := range c.Rules {
		if strings.EqualFold(exc.Message, rule.Match) {
			e.Code = rule.Code
			e.Message = rule.Message
			return e
		}
	}

	if exc.Code != nil {
		e.Code = *exc.Code
	} else {
		e.Code = c.DefaultCode
	}
	return e
}

// invalidRequest is the fixed error for envelopes that fail validation.
// It never passes through a Classifier.
func invalidRequest() *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Invalid request"}
}
