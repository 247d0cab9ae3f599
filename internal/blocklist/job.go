package blocklist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"shrike/internal/ipfilter"
)

// State describes the lifecycle of the most recent load run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the completion notification of one load run. On success Err
// is nil and Filter carries ownership of the finished range set; the
// job never touches the filter again after sending it.
type Result struct {
	Path      string
	RuleCount int
	Filter    *ipfilter.Filter
	Err       error
}

// LoadJob parses one filter file at a time on a background worker. A
// new Submit supersedes any in-flight run: the previous worker is
// cancelled cooperatively (checked once per record) and joined before
// the next one starts, and a superseded run never delivers a result.
type LoadJob struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	state   atomic.Int32
	results chan Result
	diag    DiagnosticFunc
}

func NewLoadJob(diag DiagnosticFunc) *LoadJob {
	return &LoadJob{
		results: make(chan Result, 1),
		diag:    diag,
	}
}

// Results delivers at most one notification per non-superseded run.
func (j *LoadJob) Results() <-chan Result {
	return j.results
}

// State returns the lifecycle state of the most recent run.
func (j *LoadJob) State() State {
	return State(j.state.Load())
}

// Submit starts parsing path on the worker, superseding any run still
// in flight.
func (j *LoadJob) Submit(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stopLocked()

	// A completed-but-unread result from a superseded run must not be
	// observed once the new run has started.
	select {
	case <-j.results:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})
	j.state.Store(int32(StateRunning))

	go j.run(ctx, path, j.done)
}

// Stop cancels the in-flight run, if any, and waits for the worker to
// settle. No result is delivered for a stopped run.
func (j *LoadJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stopLocked()
}

func (j *LoadJob) stopLocked() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	<-j.done
	j.cancel = nil
}

func (j *LoadJob) run(ctx context.Context, path string, done chan struct{}) {
	defer close(done)

	ruleCount, filter, err := parseFilterFile(ctx, path, j.diag)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			j.state.Store(int32(StateCancelled))
			log.Debug("Filter load cancelled", "path", path)
			return
		}
		j.state.Store(int32(StateFailed))
		j.deliver(ctx, Result{Path: path, Err: err})
		return
	}

	j.state.Store(int32(StateCompleted))
	j.deliver(ctx, Result{Path: path, RuleCount: ruleCount, Filter: filter})
}

// deliver blocks until the consumer takes the result or the run is
// superseded, in which case the result is dropped.
func (j *LoadJob) deliver(ctx context.Context, res Result) {
	select {
	case j.results <- res:
	case <-ctx.Done():
	}
}

// parseFilterFile dispatches on the filename suffix. Supported formats:
//   - eMule IP list (.dat)
//   - PeerGuardian text (.p2p)
//   - PeerGuardian binary (.p2b)
//
// An unrecognized suffix completes with zero rules and an empty filter.
func parseFilterFile(ctx context.Context, path string, diag DiagnosticFunc) (int, *ipfilter.Filter, error) {
	var parse func(context.Context, io.Reader, *ipfilter.Filter, DiagnosticFunc) (int, error)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".dat":
		parse = ParseDAT
	case ".p2p":
		parse = ParseP2P
	case ".p2b":
		parse = ParseP2B
	default:
		return 0, ipfilter.New(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("open filter file: %w", err)
	}
	defer file.Close()

	filter := ipfilter.New()
	ruleCount, err := parse(ctx, file, filter, diag)
	if err != nil {
		return ruleCount, nil, err
	}
	return ruleCount, filter, nil
}
