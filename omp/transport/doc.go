// Package transport carries OMP documents over a byte stream.
//
// The transport layer handles:
//   - The Conn contract the protocol client needs (Send and Receive)
//   - A TLS implementation of Conn for talking to a manager over TCP
//   - The response Reader, which turns received bytes into one entity tree
//     per response without waiting for the connection to close
//
// A Reader owns its staging buffer, so independent connections can be read
// concurrently. A single Reader must not be shared between goroutines.
package transport
