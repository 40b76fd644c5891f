// Package omp implements the client side of the OpenVAS Management Protocol.
//
// A Client wraps one established connection to a manager. Each method sends a
// single request document and reads exactly one response document; requests
// are never pipelined. Every response root carries a status attribute whose
// first digit decides the outcome:
//
//	2xx              success
//	anything else    *RemoteError with the numeric code preserved
//	missing / empty  ErrProtocolViolation
//
// A manager that is still starting answers 503. UntilReady repeats an
// operation until that stops:
//
//	prefs, err := omp.UntilReady(ctx, c.GetPreferences)
//
// The WaitForTask methods poll get_status at a fixed interval until a task
// reaches a terminal run-state. They never give up on their own; bound them
// with the context.
//
// An exchange that fails after its request went out (a transport error, a
// malformed response, or a context ending mid-read) leaves the stream out of
// step. From then on every method returns ErrConnectionBroken and the
// connection has to be replaced.
package omp
