// Package backends holds the delivery transports registered with the
// engine. A transport either sends a materialized alert or fails with a
// *DeliveryError, which the dispatch job treats as retryable.
package backends

import "fmt"

// DeliveryError is a retryable per-message failure, e.g. a recipient with no
// usable address. The dispatch job marks the alert failed and retries it on
// a later run; it never aborts the batch.
type DeliveryError struct {
	Backend string
	Reason  string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %s", e.Backend, e.Reason)
}
