// Package ext defines the observer system for uplink. Observers are
// notified of scheduler and key-delivery lifecycle events and can
// react to them for logging, metrics or tracing.
//
// Each lifecycle hook is a separate interface so observers opt in only
// to the events they care about. The registry is the injected
// telemetry seam: components receive one through an option instead of
// reaching for a process-wide singleton.
package ext
