// Package event defines the diagnostic event envelope shared by the
// server-side hub and client-side dispatcher.
//
// Events are immutable once constructed; the hub hands the same instance
// to every connection, so nothing may mutate an Event after Submit.
package event
