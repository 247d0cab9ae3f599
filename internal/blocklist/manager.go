package blocklist

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"shrike/internal/ipaddr"
	"shrike/internal/ipfilter"
)

// The manager owns the load job and publishes each finished filter for
// lock-free reads. The filter swap is a pure ownership transfer: the
// worker builds a fresh filter per run and never mutates it after
// handing it over.
var (
	activeFilter atomic.Pointer[ipfilter.Filter]
	activeStatus atomic.Value // Status

	defaultJob = NewLoadJob(nil)
)

// Status is a snapshot of the currently published filter.
type Status struct {
	Path      string    `json:"path"`
	RuleCount int       `json:"ruleCount"`
	Ranges    int       `json:"ranges"`
	LoadedAt  time.Time `json:"loadedAt,omitempty"`
	JobState  string    `json:"jobState"`
}

func init() {
	activeFilter.Store(ipfilter.New())
	activeStatus.Store(Status{})
}

// StartManager consumes load results until ctx is done, publishing each
// completed filter. Call once at startup.
func StartManager(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				defaultJob.Stop()
				return
			case res := <-defaultJob.Results():
				applyResult(res)
			}
		}
	}()
}

func applyResult(res Result) {
	if res.Err != nil {
		log.Error("IP filter load failed", "path", res.Path, "error", res.Err)
		return
	}

	activeFilter.Store(res.Filter)
	activeStatus.Store(Status{
		Path:      res.Path,
		RuleCount: res.RuleCount,
		Ranges:    res.Filter.Len(),
		LoadedAt:  time.Now(),
	})
	log.Info("IP filter loaded", "path", res.Path, "rules", res.RuleCount, "ranges", res.Filter.Len())
}

// Reload submits path to the load job, superseding any run in flight.
func Reload(path string) {
	log.Debug("Submitting filter file", "path", path)
	defaultJob.Submit(path)
}

// IsBlocked reports whether the textual address falls inside the active
// filter. Unparseable input is never blocked.
func IsBlocked(ip string) bool {
	addr, ok := ipaddr.Parse(ip)
	if !ok {
		return false
	}
	return activeFilter.Load().Contains(addr)
}

// ActiveFilter returns the currently published filter.
func ActiveFilter() *ipfilter.Filter {
	return activeFilter.Load()
}

// GetStatus returns a snapshot of the published filter and the job
// lifecycle state.
func GetStatus() Status {
	status := activeStatus.Load().(Status)
	status.JobState = defaultJob.State().String()
	return status
}
