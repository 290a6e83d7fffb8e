// Package bridge is the host side of the guest's fetch import.
//
// The guest serializes a wire.Request, hands it over through one of the env
// imports, and blocks until the host returns a serialized wire.Result:
//
//	send_request(ptr i32) i32
//	    the request length is popped from the guest's length stack; the
//	    reply length is pushed back and its address returned.
//
//	send_request_packed(ptr i32, len i32) i64
//	    the reply is returned as ptr<<32 | len.
//
// In both conventions the host allocates the reply through the guest's
// allocate export and the guest releases it. Every failure that can be
// described to the guest becomes a RequestError inside the Result; only
// violations of the memory protocol trap the guest.
package bridge
