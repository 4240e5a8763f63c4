/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package errors

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	// This is not an exhaustive list, add to it as needed
	retryableReasons = sets.New(
		metav1.StatusReasonServerTimeout,
		metav1.StatusReasonTimeout,
		metav1.StatusReasonTooManyRequests,
		metav1.StatusReasonInternalError,
		metav1.StatusReasonServiceUnavailable,
	)
)

// DataFetchError is returned when a collection could not be read from the cluster.
// It aborts a scan.
type DataFetchError struct {
	Collection string
	Err        error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("listing %s, %s", e.Collection, e.Err)
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}

func NewDataFetchError(collection string, err error) error {
	return &DataFetchError{Collection: collection, Err: err}
}

// IsDataFetch returns true if the err is a DataFetchError, even if it's wrapped
func IsDataFetch(err error) bool {
	if err == nil {
		return false
	}
	var fetchErr *DataFetchError
	return errors.As(err, &fetchErr)
}

// ParseError is returned when a resource amount can't be turned into a quantity
type ParseError struct {
	Amount string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing quantity %q, %s", e.Amount, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParse returns true if the err is a ParseError, even if it's wrapped
func IsParse(err error) bool {
	if err == nil {
		return false
	}
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// IsRetryable returns true if the error came back from the apiserver with a
// status that is known to be transient (as opposed to an auth or a
// validation failure that won't go away on its own)
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if retryableReasons.Has(apierrors.ReasonForError(err)) {
		return true
	}
	var statusErr apierrors.APIStatus
	return !errors.As(err, &statusErr)
}
