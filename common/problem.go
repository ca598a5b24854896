package common

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/moogar0880/problems"
)

// HTTPError is returned by CheckResponse for any response status the
// caller did not expect. Body carries the server's explanation: the
// detail of an RFC7807 problem document when one was sent, the raw
// response body otherwise.
type HTTPError struct {
	Status int
	Body   string
}

func (o *HTTPError) Error() string {
	if o.Body == "" {
		return fmt.Sprintf("unexpected HTTP response code %d", o.Status)
	}
	return fmt.Sprintf("unexpected HTTP response code %d: %s", o.Status, o.Body)
}

// CheckResponse returns nil if the response status is one of the
// expected ones, and an *HTTPError describing the failure otherwise.
// On failure the response body is consumed.
func CheckResponse(res *http.Response, expected ...int) error {
	for _, exp := range expected {
		if res.StatusCode == exp {
			return nil
		}
	}

	herr := &HTTPError{Status: res.StatusCode}

	if strings.HasPrefix(res.Header.Get("Content-Type"), problems.ProblemMediaType) {
		var prob problems.DefaultProblem

		if err := DecodeJSONBody(res, &prob); err == nil {
			herr.Body = prob.Detail
			return herr
		}

		return herr
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	res.Body.Close()
	if err == nil {
		herr.Body = strings.TrimSpace(string(raw))
	}

	return herr
}
