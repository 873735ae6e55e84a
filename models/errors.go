package models

import (
	"errors"
	"fmt"

	"github.com/mmdatafocus/sellerdash_backend/utils"
)

// RemoteFetchError is returned when the record store is unreachable or
// answers with a non-success status.
type RemoteFetchError struct {
	Resource   string
	StatusCode int
	Err        error
}

func (e *RemoteFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Resource, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// NotFoundError reports a missing document, e.g. a seller without a profile.
type NotFoundError struct {
	Resource string
	Id       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Id)
}

func (e *NotFoundError) Unwrap() error { return utils.ErrorRecordNotFound }

// AnalysisServiceError carries the dashboard backend's failure detail, shown
// to the seller verbatim.
type AnalysisServiceError struct {
	StatusCode int
	Detail     string
}

func (e *AnalysisServiceError) Error() string {
	return e.Detail
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, utils.ErrorRecordNotFound)
}
