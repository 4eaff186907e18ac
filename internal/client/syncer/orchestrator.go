package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/tabkeeper/internal/client/client"
	"github.com/dmitrijs2005/tabkeeper/internal/client/merge"
	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/client/storage"
	"github.com/dmitrijs2005/tabkeeper/internal/logging"
)

// Connectivity is the part of connectivity.Monitor the orchestrator uses.
type Connectivity interface {
	Status() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Options wires an Orchestrator to its collaborators. Client, Store and
// Monitor are required.
type Options struct {
	Client  client.Client
	Store   storage.Store
	Monitor Connectivity
	Clock   models.Clock
	Logger  logging.Logger

	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
	// SyncInterval is the period of the background trigger started by Start.
	SyncInterval time.Duration

	// OnUnauthorized is called when the server rejects the session.
	OnUnauthorized func(err error)
}

// Orchestrator runs sync cycles against one local replica, one at a time.
type Orchestrator struct {
	client         client.Client
	store          storage.Store
	monitor        Connectivity
	clock          models.Clock
	log            logging.Logger
	minDelay       time.Duration
	maxDelay       time.Duration
	interval       time.Duration
	onUnauthorized func(err error)

	mu                sync.Mutex
	dirty             bool
	syncing           bool
	checkpoint        int64
	lastLocalChangeAt int64
	changeSeq         uint64
	retryDelay        time.Duration
	retryTimer        *time.Timer
	status            Status
	lastErr           error

	// persistMu orders SaveState calls so the newest snapshot is written last.
	persistMu sync.Mutex

	runMu       sync.Mutex
	runCtx      context.Context
	cancelRun   context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// New validates opts and fills in the default delays. Call Restore before the
// first sync to pick up persisted state.
func New(opts Options) (*Orchestrator, error) {
	if opts.Client == nil || opts.Store == nil || opts.Monitor == nil {
		return nil, errors.New("syncer: client, store and monitor are required")
	}
	if opts.MinRetryDelay <= 0 {
		opts.MinRetryDelay = DefaultMinRetryDelay
	}
	if opts.MaxRetryDelay < opts.MinRetryDelay {
		opts.MaxRetryDelay = max(DefaultMaxRetryDelay, opts.MinRetryDelay)
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	return &Orchestrator{
		client:         opts.Client,
		store:          opts.Store,
		monitor:        opts.Monitor,
		clock:          opts.Clock,
		log:            opts.Logger.With("component", "syncer"),
		minDelay:       opts.MinRetryDelay,
		maxDelay:       opts.MaxRetryDelay,
		interval:       opts.SyncInterval,
		onUnauthorized: opts.OnUnauthorized,
		status:         StatusIdle,
	}, nil
}

// Restore loads the persisted dirty flag and checkpoint, so a restarted
// client still owes the sync it did not finish.
func (o *Orchestrator) Restore(ctx context.Context) error {
	st, err := o.store.LoadState(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.dirty = st.Dirty
	o.checkpoint = st.LastSyncTimestamp
	o.lastLocalChangeAt = st.LastLocalChangeAt
	o.mu.Unlock()
	return nil
}

// MarkDirty records a local mutation. Every create, update and delete calls it.
func (o *Orchestrator) MarkDirty(ctx context.Context) error {
	now := o.clock.Millis()

	o.mu.Lock()
	o.dirty = true
	if now > o.lastLocalChangeAt {
		o.lastLocalChangeAt = now
	}
	o.changeSeq++
	o.mu.Unlock()

	return o.persistState(ctx)
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() State {
	return State{
		Dirty:             o.dirty,
		Syncing:           o.syncing,
		LastSyncTimestamp: o.checkpoint,
		LastLocalChangeAt: o.lastLocalChangeAt,
		RetryDelay:        o.retryDelay,
		Status:            o.status,
		LastError:         o.lastErr,
	}
}

// ShouldSync evaluates the gate against the current state.
func (o *Orchestrator) ShouldSync() bool {
	online := o.monitor.Status()
	o.mu.Lock()
	defer o.mu.Unlock()
	return ShouldSync(o.dirty, online, o.syncing)
}

func (o *Orchestrator) persistState(ctx context.Context) error {
	o.persistMu.Lock()
	defer o.persistMu.Unlock()

	o.mu.Lock()
	st := storage.SyncState{
		Dirty:             o.dirty,
		LastSyncTimestamp: o.checkpoint,
		LastLocalChangeAt: o.lastLocalChangeAt,
	}
	o.mu.Unlock()

	return o.store.SaveState(ctx, st)
}

// SyncNow runs one cycle if the gate allows it. A trigger that arrives while
// another cycle is running is dropped, not queued. Transport failures are
// returned as *client.SyncError; retryable ones also schedule a retry.
func (o *Orchestrator) SyncNow(ctx context.Context) (Result, error) {
	online := o.monitor.Status()

	o.mu.Lock()
	if !ShouldSync(o.dirty, online, o.syncing) {
		reason := SkipNotDirty
		switch {
		case o.syncing:
			reason = SkipInProgress
		case !online:
			reason = SkipOffline
		}
		o.mu.Unlock()
		return Result{Skipped: true, Reason: reason}, nil
	}
	o.syncing = true
	o.status = StatusSyncing
	cycleStart := o.clock.Millis()
	startSeq := o.changeSeq
	checkpoint := o.checkpoint
	o.mu.Unlock()

	res, err := o.runCycle(ctx, checkpoint)
	if err != nil {
		o.fail(ctx, err)
		return Result{}, err
	}

	o.mu.Lock()
	o.checkpoint = res.Checkpoint
	if o.lastLocalChangeAt <= cycleStart && o.changeSeq == startSeq {
		o.dirty = false
	}
	res.Dirty = o.dirty
	o.syncing = false
	o.status = StatusIdle
	o.lastErr = nil
	o.retryDelay = 0
	if o.retryTimer != nil {
		o.retryTimer.Stop()
		o.retryTimer = nil
	}
	o.mu.Unlock()

	if err := o.persistState(ctx); err != nil {
		o.log.Error(ctx, "failed to persist sync state", "error", err)
	}

	o.log.Info(ctx, "sync finished",
		"pushed", res.Pushed,
		"pulled", res.Pulled,
		"local_wins", res.Stats.LocalWins,
		"server_wins", res.Stats.ServerWins,
		"checkpoint", res.Checkpoint,
		"still_dirty", res.Dirty,
	)
	return res, nil
}

// runCycle is push, pull, merge, persist and checkpoint, strictly in order.
func (o *Orchestrator) runCycle(ctx context.Context, checkpoint int64) (Result, error) {
	local, err := o.store.LoadAll(ctx)
	if err != nil {
		return Result{}, err
	}
	local.LastSyncTimestamp = checkpoint

	if err := o.client.Push(ctx, local); err != nil {
		return Result{}, err
	}

	pulled, err := o.client.Pull(ctx, client.PullRequest{LastSyncTimestamp: checkpoint})
	if err != nil {
		return Result{}, err
	}

	next := checkpoint
	if pulled.LastSyncTimestamp > 0 {
		next = pulled.LastSyncTimestamp
	}

	// Merge against the replica as it is now, not the snapshot that was
	// pushed, so edits saved during the network calls survive.
	var stats merge.Stats
	err = o.store.Update(ctx, func(current *models.Dataset) (*models.Dataset, error) {
		merged, s := merge.Dataset(current, pulled)
		merged.LastSyncTimestamp = next
		stats = s
		return merged, nil
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Pushed:     local.Len(),
		Pulled:     pulled.Len(),
		Stats:      stats,
		Checkpoint: next,
	}, nil
}

func (o *Orchestrator) fail(ctx context.Context, err error) {
	kind := client.KindOf(err)

	o.mu.Lock()
	o.syncing = false
	o.lastErr = err
	var delay time.Duration
	switch {
	case kind == client.KindUnauthorized:
		o.status = StatusUnauthorized
	case client.IsRetryable(err):
		o.status = StatusError
		o.retryDelay = NextRetryDelay(o.retryDelay, o.minDelay, o.maxDelay)
		delay = o.retryDelay
		o.scheduleRetryLocked(delay)
	default:
		o.status = StatusError
	}
	o.mu.Unlock()

	switch {
	case kind == client.KindUnauthorized:
		o.log.Warn(ctx, "sync rejected: session is not valid", "error", err)
		if o.onUnauthorized != nil {
			o.onUnauthorized(err)
		}
	case delay > 0:
		o.log.Warn(ctx, "sync failed, will retry", "error", err, "kind", kind, "retry_in", delay)
	default:
		o.log.Error(ctx, "sync failed", "error", err, "kind", kind)
	}
}

func (o *Orchestrator) scheduleRetryLocked(delay time.Duration) {
	if o.retryTimer != nil {
		o.retryTimer.Stop()
	}
	o.retryTimer = time.AfterFunc(delay, func() {
		o.trigger("retry")
	})
}

// trigger starts an automatic attempt in the background. Automatic attempts
// stay quiet while the session is rejected; only SyncNow after a new sign-in
// clears that.
func (o *Orchestrator) trigger(reason string) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	ctx := o.runCtx
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if o.Status() == StatusUnauthorized {
		o.log.Debug(ctx, "sync trigger ignored", "trigger", reason, "reason", SkipUnauthorized)
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		res, err := o.SyncNow(ctx)
		if err == nil && res.Skipped {
			o.log.Debug(ctx, "sync skipped", "trigger", reason, "reason", res.Reason)
		}
	}()
}

// Start enables automatic sync: on reconnect, every SyncInterval and on
// scheduled retries. It also runs one attempt right away.
func (o *Orchestrator) Start(ctx context.Context) {
	o.runMu.Lock()
	if o.runCtx != nil {
		o.runMu.Unlock()
		return
	}
	o.runCtx, o.cancelRun = context.WithCancel(ctx)
	runCtx := o.runCtx
	o.unsubscribe = o.monitor.Subscribe(func(online bool) {
		if online {
			o.trigger("reconnect")
		}
	})
	o.wg.Add(1)
	o.runMu.Unlock()

	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.trigger("interval")
			case <-runCtx.Done():
				return
			}
		}
	}()

	o.trigger("start")
}

// Stop disables automatic sync and waits for a running cycle to finish.
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	if o.runCtx == nil {
		o.runMu.Unlock()
		return
	}
	o.cancelRun()
	o.unsubscribe()
	o.runCtx = nil
	o.runMu.Unlock()

	o.mu.Lock()
	if o.retryTimer != nil {
		o.retryTimer.Stop()
		o.retryTimer = nil
	}
	o.mu.Unlock()

	o.wg.Wait()
}
