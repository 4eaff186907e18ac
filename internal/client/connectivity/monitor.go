// Package connectivity tracks whether the sync server is reachable.
//
// A Monitor combines two sources: signals pushed by the host environment
// (SetOnline/SetOffline) and a periodic active probe (Run). Both feed the same
// transition logic, so subscribers hear about each change exactly once.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/tabkeeper/internal/logging"
)

const (
	DefaultProbeInterval = 30 * time.Second
	DefaultProbeTimeout  = 3 * time.Second

	OfflineNotice = "You are offline. Changes are saved locally and will sync when the connection is back."
	OnlineNotice  = "Back online. Syncing your changes."
)

// Prober performs a best-effort reachability check.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a plain function (for example client.HTTPClient.Ping).
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Options configures a Monitor. Zero durations fall back to the defaults.
type Options struct {
	Prober        Prober
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	// InitialOnline is what the environment reports at construction time.
	InitialOnline bool
	Logger        logging.Logger
	// OnNotice receives the one-shot user notices. Optional.
	OnNotice func(online bool, message string)
}

type subscriber struct {
	id uint64
	fn func(online bool)
}

// Monitor holds the current connectivity belief and fans transitions out to
// subscribers in registration order.
type Monitor struct {
	prober        Prober
	probeInterval time.Duration
	probeTimeout  time.Duration
	log           logging.Logger
	onNotice      func(online bool, message string)

	// transition is held from the state flip until the last subscriber
	// returns, so observers see transitions in the order they happened.
	// Subscribers must not call Signal, SetOnline or SetOffline.
	transition sync.Mutex

	mu          sync.Mutex
	online      bool
	noticeShown bool
	subs        []subscriber
	nextID      uint64
}

// New returns a Monitor that starts in opts.InitialOnline. Probing starts only
// once Run is called.
func New(opts Options) *Monitor {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = DefaultProbeInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Monitor{
		prober:        opts.Prober,
		probeInterval: opts.ProbeInterval,
		probeTimeout:  opts.ProbeTimeout,
		log:           opts.Logger.With("component", "connectivity"),
		onNotice:      opts.OnNotice,
		online:        opts.InitialOnline,
	}
}

// Status reports the current belief about connectivity.
func (m *Monitor) Status() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// NoticeShown reports whether the offline notice was already surfaced for
// the current offline period.
func (m *Monitor) NoticeShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.noticeShown
}

// Subscribe registers fn for every future transition. The returned function
// removes it and may be called any number of times.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Monitor) SetOnline()  { m.Signal(context.Background(), true) }
func (m *Monitor) SetOffline() { m.Signal(context.Background(), false) }

// Signal records an observed connectivity state. It is a no-op when the
// state does not change. Concurrent calls are applied one at a time.
func (m *Monitor) Signal(ctx context.Context, online bool) {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	var notice string
	if online {
		m.noticeShown = false
		notice = OnlineNotice
	} else if !m.noticeShown {
		m.noticeShown = true
		notice = OfflineNotice
	}

	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if online {
		m.log.Info(ctx, "connection restored")
	} else {
		m.log.Warn(ctx, "connection lost")
	}
	if notice != "" && m.onNotice != nil {
		m.onNotice(online, notice)
	}

	for _, s := range subs {
		m.dispatch(ctx, s, online)
	}
}

func (m *Monitor) dispatch(ctx context.Context, s subscriber, online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(ctx, "connectivity subscriber panicked", "subscriber", s.id, "panic", r)
		}
	}()
	s.fn(online)
}

// WaitForOnline returns true as soon as the monitor is online, or false when
// timeout elapses or ctx is done first.
func (m *Monitor) WaitForOnline(ctx context.Context, timeout time.Duration) bool {
	if m.Status() {
		return true
	}

	ch := make(chan struct{}, 1)
	unsubscribe := m.Subscribe(func(online bool) {
		if online {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	// The transition may have happened between the first check and Subscribe.
	if m.Status() {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// ProbeNow runs one active check and feeds its result into the transition
// logic. It returns the resulting status.
func (m *Monitor) ProbeNow(ctx context.Context) bool {
	if m.prober == nil {
		return m.Status()
	}

	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.prober.Probe(pctx)
	cancel()

	if ctx.Err() != nil {
		// Shutting down; a canceled probe says nothing about the network.
		return m.Status()
	}
	if err != nil {
		m.log.Debug(ctx, "probe failed", "error", err)
	}
	m.Signal(ctx, err == nil)
	return err == nil
}

// Run probes every probe interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.ProbeNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}
