package session

import (
	"errors"
	"fmt"

	"github.com/iammorganparry/datachat/internal/api"
)

// Operation names used in OpError
const (
	OpUpload = "upload"
	OpQuery  = "query"
)

const (
	uploadFailedPrefix = "Upload failed: "
	queryFailedPrefix  = "Query failed: "
	// transportCause is shown when the service gave no structured detail
	transportCause = "could not reach the analysis service. Check that it is running and try again."
	malformedCause = "the service returned an unreadable response"
)

// serviceCause picks the user-facing cause for a failed service call
func serviceCause(err error) string {
	if errors.Is(err, api.ErrMalformedResponse) {
		return malformedCause
	}
	return api.Cause(err, transportCause)
}

// OpError is an ingestion or query failure caught at the binder/dispatcher
// boundary. It is logged and turned into one error entry, never returned.
type OpError struct {
	Op    string
	Cause string // Human-readable cause shown to the user
	Err   error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Cause, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Cause)
}

func (e *OpError) Unwrap() error { return e.Err }
