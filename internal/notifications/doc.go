// Package notifications pushes pipeline outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the orchestrator can call it unconditionally. The on_complete and
// on_failure toggles silence individual outcomes without disabling the
// test notification.
package notifications
