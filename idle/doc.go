// Package idle implements the client-observed idle-timeout monitor: a
// per-role policy table and a state machine that warns before
// terminating an inactive session.
//
// The monitor is server-agnostic. It owns no session; it only fires
// callbacks. The host wires OnTerminate to its sign-out path and passes
// the termination [Reason] through to the next-rendered login screen so
// "signed out due to inactivity" is distinguishable from a manual
// logout.
//
// States: active → warning → terminated. Ambient activity resets the
// idle timer only while active; once the warning is showing, only an
// explicit ConfirmStay extends the session. Hidden/Visible reconcile
// suspended wall-clock time so a backgrounded tab terminates on return
// rather than waiting out a frozen timer.
package idle
