// Package wire defines the JSON shapes that cross the sandbox boundary.
//
// The same types are compiled into the host and into the wasip1 guest:
// Request is the process input and the fetch bridge request, Response is the
// fetch bridge reply, RequestError is the transport failure taxonomy and
// Result is the envelope the host writes back into guest memory.
package wire
