// Package middleware adapts authcore to net/http.
//
// [Guard] reads the Authorization header, calls Engine.Authenticate and stores
// the resulting identity in the request context. [StatusFor] and [WriteError]
// translate engine error kinds into HTTP status codes and generic JSON bodies.
// [ClientAddress] derives the source address recorded in audit events and
// used as the rate-limit key.
//
// The package makes no authentication decisions of its own.
package middleware
