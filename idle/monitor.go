package idle

import (
	"errors"
	"sync"
	"time"
)

// Reason distinguishes how a session ended.
type Reason string

const (
	// ReasonIdle marks termination caused by inactivity.
	ReasonIdle Reason = "idle"
	// ReasonManual marks an explicit user logout.
	ReasonManual Reason = "manual"
)

// Policy is one row of the per-role policy table. A disabled policy
// means the role's only lifetime bound is the absolute session cap.
type Policy struct {
	Disabled      bool
	Timeout       time.Duration
	WarningWindow time.Duration
}

// DefaultTimeout and DefaultWarningWindow are the monitored-role
// defaults.
const (
	DefaultTimeout       = 2 * time.Hour
	DefaultWarningWindow = 5 * time.Minute
)

// PolicyForRole returns the policy table entry for role. Elevated
// operator sessions are idle-monitored; standard (read-mostly viewer)
// sessions are bounded only by the absolute session lifetime.
func PolicyForRole(role string) Policy {
	switch role {
	case "elevated":
		return Policy{Timeout: DefaultTimeout, WarningWindow: DefaultWarningWindow}
	default:
		return Policy{Disabled: true}
	}
}

func (p Policy) validate() error {
	if p.Disabled {
		return nil
	}
	if p.Timeout <= 0 {
		return errors.New("idle: timeout must be > 0")
	}
	if p.WarningWindow <= 0 || p.WarningWindow >= p.Timeout {
		return errors.New("idle: warning window must be > 0 and < timeout")
	}
	return nil
}

type state int

const (
	stateActive state = iota
	stateWarning
	stateTerminated
)

// Callbacks are invoked by the monitor on state transitions. OnWarning
// receives the countdown remaining before termination. Both are called
// without the monitor lock held; they must not call back into the
// monitor synchronously from another goroutine expecting ordering.
type Callbacks struct {
	OnWarning   func(countdown time.Duration)
	OnTerminate func(reason Reason)
}

// Monitor drives the idle state machine for one session. All methods
// are safe for concurrent use; the internal timers are torn down and
// rebuilt atomically on every reset so two competing timeout callbacks
// can never both fire.
type Monitor struct {
	mu sync.Mutex

	policy    Policy
	callbacks Callbacks
	now       func() time.Time

	state        state
	lastActivity time.Time
	hidden       bool

	warnTimer *time.Timer
	termTimer *time.Timer
	// generation invalidates callbacks from timers that were replaced
	// between their scheduling and their firing.
	generation uint64
}

// NewMonitor starts a monitor under the given policy. For a disabled
// policy it returns a monitor that never fires. Stop must be called
// when the session ends by other means.
func NewMonitor(policy Policy, callbacks Callbacks) (*Monitor, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}

	m := &Monitor{
		policy:    policy,
		callbacks: callbacks,
		now:       time.Now,
		state:     stateActive,
	}
	m.lastActivity = m.now()

	if !policy.Disabled {
		m.mu.Lock()
		m.armWarnLocked()
		m.mu.Unlock()
	}
	return m, nil
}

// SetClock overrides the wall-clock source used for hidden-tab
// reconciliation. Test hook; does not affect timer scheduling.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	m.lastActivity = now()
}

// Activity records a monitored user-activity event. It resets the idle
// timer to the full timeout unless the warning is currently showing;
// while the warning is up only ConfirmStay extends the session.
func (m *Monitor) Activity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.policy.Disabled || m.state != stateActive {
		return
	}
	m.lastActivity = m.now()
	if !m.hidden {
		m.armWarnLocked()
	}
}

// ConfirmStay dismisses the warning and resets to the full timeout.
// A no-op unless the warning is showing.
func (m *Monitor) ConfirmStay() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.policy.Disabled || m.state != stateWarning {
		return
	}
	m.state = stateActive
	m.lastActivity = m.now()
	m.armWarnLocked()
}

// ConfirmLogout terminates immediately with [ReasonManual].
func (m *Monitor) ConfirmLogout() {
	m.terminate(ReasonManual)
}

// Hidden suspends timer-driven transitions while the tab is not
// visible. Wall-clock time keeps accruing against lastActivity.
func (m *Monitor) Hidden() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.policy.Disabled || m.state == stateTerminated {
		return
	}
	m.hidden = true
	m.clearTimersLocked()
}

// Visible reconciles elapsed wall-clock time after the tab returns: if
// the full timeout has already passed it terminates immediately instead
// of waiting out a timer that was suspended while hidden.
func (m *Monitor) Visible() {
	m.mu.Lock()

	if m.policy.Disabled || m.state == stateTerminated || !m.hidden {
		m.mu.Unlock()
		return
	}
	m.hidden = false

	elapsed := m.now().Sub(m.lastActivity)
	if elapsed >= m.policy.Timeout {
		m.mu.Unlock()
		m.terminate(ReasonIdle)
		return
	}

	if m.state == stateWarning || elapsed >= m.policy.Timeout-m.policy.WarningWindow {
		m.enterWarningLocked(m.policy.Timeout - elapsed)
		m.mu.Unlock()
		return
	}

	m.armWarnAfterLocked(m.policy.Timeout - m.policy.WarningWindow - elapsed)
	m.mu.Unlock()
}

// Stop tears the monitor down without firing callbacks.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stateTerminated
	m.clearTimersLocked()
}

// armWarnLocked schedules the warning at timeout-warningWindow from now.
func (m *Monitor) armWarnLocked() {
	m.armWarnAfterLocked(m.policy.Timeout - m.policy.WarningWindow)
}

func (m *Monitor) armWarnAfterLocked(d time.Duration) {
	m.clearTimersLocked()
	m.generation++
	gen := m.generation

	m.warnTimer = time.AfterFunc(d, func() {
		m.onWarnTimer(gen)
	})
}

func (m *Monitor) onWarnTimer(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != stateActive || m.hidden {
		m.mu.Unlock()
		return
	}
	m.enterWarningLocked(m.policy.WarningWindow)
	m.mu.Unlock()
}

// enterWarningLocked transitions to the warning state with the given
// countdown and schedules termination. OnWarning fires on its own
// goroutine so a callback that re-enters the monitor cannot deadlock.
func (m *Monitor) enterWarningLocked(countdown time.Duration) {
	if countdown > m.policy.WarningWindow {
		countdown = m.policy.WarningWindow
	}
	m.state = stateWarning
	m.clearTimersLocked()
	m.generation++
	gen := m.generation

	m.termTimer = time.AfterFunc(countdown, func() {
		m.onTermTimer(gen)
	})

	if m.callbacks.OnWarning != nil {
		cb := m.callbacks.OnWarning
		go cb(countdown)
	}
}

func (m *Monitor) onTermTimer(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != stateWarning {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.terminate(ReasonIdle)
}

func (m *Monitor) terminate(reason Reason) {
	m.mu.Lock()
	if m.state == stateTerminated {
		m.mu.Unlock()
		return
	}
	m.state = stateTerminated
	m.clearTimersLocked()
	cb := m.callbacks.OnTerminate
	m.mu.Unlock()

	if cb != nil {
		cb(reason)
	}
}

func (m *Monitor) clearTimersLocked() {
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.termTimer != nil {
		m.termTimer.Stop()
		m.termTimer = nil
	}
}
