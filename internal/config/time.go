package config

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultFilterRefreshInterval = 6 * time.Hour

var (
	filterRefreshInterval    atomic.Value
	refreshIntervalListeners []chan time.Duration
	listenersMu              sync.Mutex
)

func init() {
	filterRefreshInterval.Store(defaultFilterRefreshInterval)
}

// applyTimers recalculates derived intervals after a config update.
func applyTimers() {
	cfg := GetConfig()
	setFilterRefreshInterval(calculateFilterRefreshInterval(cfg))
}

// CalculateBetweenTime converts a Timer to a duration, enforcing a one
// second minimum.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := CalculateMillisecondsOfPeriod(timer)

	minInterval := uint64(1000)
	if intervalMs < minInterval {
		intervalMs = minInterval
	}

	return time.Duration(intervalMs) * time.Millisecond
}

func CalculateMillisecondsOfPeriod(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

func GetFilterRefreshInterval() time.Duration {
	return filterRefreshInterval.Load().(time.Duration)
}

// FilterRefreshIntervalUpdates returns a channel that receives the
// current interval immediately and every later change.
func FilterRefreshIntervalUpdates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	listenersMu.Lock()
	refreshIntervalListeners = append(refreshIntervalListeners, ch)
	listenersMu.Unlock()

	ch <- GetFilterRefreshInterval()
	return ch
}

func setFilterRefreshInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultFilterRefreshInterval
	}

	current := GetFilterRefreshInterval()
	if current == interval {
		return
	}

	filterRefreshInterval.Store(interval)

	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, ch := range refreshIntervalListeners {
		select {
		case ch <- interval:
		default:
		}
	}
}

func calculateFilterRefreshInterval(cfg Config) time.Duration {
	timer := cfg.Filter.RefreshTimer
	if timer.Days == 0 && timer.Hours == 0 && timer.Minutes == 0 && timer.Seconds == 0 {
		return defaultFilterRefreshInterval
	}
	return CalculateBetweenTime(timer)
}
