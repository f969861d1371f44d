// Package session implements the session and identity controller for a
// tournament-management front end: establishing, tracking, refreshing, and
// tearing down an authenticated session against a black-box identity
// provider, and reconciling the provider's asynchronous events with the
// locally exposed AuthState.
//
// State ownership:
//   - Controller is the single writer of AuthState. Consumers read snapshots
//     via State() and drive transitions through the action API (sign in,
//     sign up, magic link, password setup, sign out, remember-me).
//   - The provider event subscription is the source of truth for session
//     transitions; sign-out and password setup are the only actions that
//     mutate state directly, because their outcomes are not otherwise
//     observable on the event stream.
//
// Expiry watching:
//   - While a session is active a once-per-minute watcher recomputes the
//     remaining session time and triggers a best-effort refresh when less
//     than an hour remains. The watcher starts and stops in lockstep with
//     session presence so timers never leak across sign-in cycles.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing sign-in,
//     sign-up, sign-out, refresh, and password setup events. Sinks run
//     best-effort (errors are logged) so you can forward to a database or
//     queue without blocking authentication.
package session
