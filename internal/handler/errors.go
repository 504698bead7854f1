package handler

import "strings"

// errorResponse is the JSON error envelope all endpoints share.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// invalidFilterBody returns the 422 body for a rejected aggregation filter.
// The message is extracted from the wrapped domain.ErrInvalidFilter error.
func invalidFilterBody(err error) errorResponse {
	return errorResponse{Error: errorDetail{Code: "invalid_filter", Message: unwrapMessage(err)}}
}

// internalErrorBody is the generic 500 body. Internals are never leaked;
// the real error goes to the log, not the client.
func internalErrorBody() errorResponse {
	return errorResponse{Error: errorDetail{Code: "internal_error", Message: "internal server error"}}
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error,
// e.g. "service.CapacityService.Query: invalid filter: unknown aggregation
// level \"decade\"" becomes "unknown aggregation level \"decade\"".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, prefix := range []string{
		"service.CapacityService.Query: ",
		"invalid filter: ",
	} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}
