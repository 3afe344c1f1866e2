// Package httputil provides shared HTTP response helpers for handlers.
//
// Every handler writes through these helpers so that success and error
// bodies share the same {success, message|error} envelope.
package httputil
