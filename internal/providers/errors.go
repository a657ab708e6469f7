package providers

import (
	"net/http"
	"strings"
)

var statusTokens = []struct {
	token  string
	status int
}{
	{"429", http.StatusTooManyRequests},
	{"500", http.StatusInternalServerError},
	{"502", http.StatusBadGateway},
	{"503", http.StatusServiceUnavailable},
	{"504", http.StatusGatewayTimeout},
	{"401", http.StatusUnauthorized},
	{"403", http.StatusForbidden},
	{"402", http.StatusPaymentRequired},
	{"400", http.StatusBadRequest},
}

// extractErrorMetadata pulls the HTTP status and Retry-After hint out of an
// SDK error. Both SDKs flatten the response into the error string, so this
// is a best-effort scan.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	errStr := err.Error()

	var httpStatus int
	for _, entry := range statusTokens {
		if strings.Contains(errStr, entry.token) {
			httpStatus = entry.status
			break
		}
	}

	var retryAfter string
	lower := strings.ToLower(errStr)
	for _, marker := range []string{"retry-after", "retry after"} {
		idx := strings.Index(lower, marker)
		if idx == -1 {
			continue
		}
		remaining := errStr[idx+len(marker):]
		remaining = strings.TrimLeft(remaining, ": ")
		if fields := strings.Fields(remaining); len(fields) > 0 {
			retryAfter = fields[0]
		}
		break
	}

	return httpStatus, retryAfter
}
