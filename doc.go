// Package session implements the client-side session core for the
// Volunteer Bridge platform: bearer-credential storage, an authenticated
// REST client, login/registration/resolution against the backend, a
// process-wide session state machine, and route guarding for protected
// views.
//
// Credential lifecycle:
//   - The backend issues an opaque access token from POST token/. The
//     token is persisted in a single TokenStore slot and attached to
//     every outgoing request; the client never inspects or validates it.
//     Invalidity is discovered only through a failed request.
//
// Session state:
//   - Manager holds exactly one of {Initializing, Anonymous,
//     Authenticated(user)} behind a transition table. Every mutating
//     operation bumps a generation counter so a response from a superseded
//     operation (a resolution finishing after logout, say) is discarded
//     instead of overwriting newer state.
//
// Route guarding:
//   - RouteGuard wraps protected handlers. While the Manager is still
//     resolving a persisted token it renders a pending view rather than
//     redirecting, so a slow startup never flashes the login page at an
//     already-authenticated user. Denied paths are recorded in a
//     short-lived cookie and consumed exactly once by the login flow.
//
// Activity sinks:
//   - ActivitySink receives session lifecycle events (login success and
//     failure, logout, resolution failure, profile refresh). Sinks run
//     best-effort; errors are logged, never surfaced to callers.
package session
