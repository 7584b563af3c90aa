// Package server implements the chat server: a TCP listener that greets each
// connection with the NICK handshake, per-connection sessions, and the router
// that fans every message out to all other participants.
//
// The implementation is organized into specialized files for configuration,
// routing, sessions, the listener, and the auxiliary HTTP handlers to keep the
// codebase maintainable and testable as the project grows.
package server
