// Package httpclient executes outbound fetches for the host bridge.
//
// Requests go through resty on top of a retryablehttp transport. The client
// applies a per-request redirect mode (follow, manual, error), an optional
// rate limit, and an overall timeout. Non-2xx responses are ordinary
// responses unless Config.FailOnStatus is set.
//
// Classify maps any error returned by Do onto the fetch error taxonomy
// shared with the guest (wire.RequestError).
package httpclient
