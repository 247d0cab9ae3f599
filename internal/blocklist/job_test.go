package blocklist

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFilterFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func awaitResult(t *testing.T, job *LoadJob) Result {
	t.Helper()
	select {
	case res := <-job.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for load result")
		return Result{}
	}
}

func TestLoadJobCompletesDAT(t *testing.T) {
	path := writeFilterFile(t, "filter.dat", "1.0.0.0-1.0.0.9,100\n2.0.0.0-2.0.0.9\n")

	job := NewLoadJob(nil)
	job.Submit(path)

	res := awaitResult(t, job)
	if res.Err != nil {
		t.Fatalf("result error = %v", res.Err)
	}
	if res.RuleCount != 2 {
		t.Errorf("RuleCount = %d, want 2", res.RuleCount)
	}
	if res.Path != path {
		t.Errorf("Path = %q, want %q", res.Path, path)
	}
	if res.Filter == nil || !res.Filter.Contains(netip.MustParseAddr("1.0.0.5")) {
		t.Error("delivered filter does not contain an inserted range")
	}
	if got := job.State(); got != StateCompleted {
		t.Errorf("State() = %v, want completed", got)
	}
}

func TestLoadJobDispatchIsCaseInsensitive(t *testing.T) {
	path := writeFilterFile(t, "FILTER.DAT", "1.0.0.0-1.0.0.9\n")

	job := NewLoadJob(nil)
	job.Submit(path)

	res := awaitResult(t, job)
	if res.Err != nil || res.RuleCount != 1 {
		t.Fatalf("result = %+v, want one rule and no error", res)
	}
}

func TestLoadJobUnknownExtension(t *testing.T) {
	path := writeFilterFile(t, "filter.txt", "1.0.0.0-1.0.0.9\n")

	job := NewLoadJob(nil)
	job.Submit(path)

	res := awaitResult(t, job)
	if res.Err != nil {
		t.Fatalf("result error = %v, want nil for unknown extension", res.Err)
	}
	if res.RuleCount != 0 {
		t.Errorf("RuleCount = %d, want 0", res.RuleCount)
	}
	if res.Filter == nil || res.Filter.Len() != 0 {
		t.Error("want an empty filter for unknown extension")
	}
	if got := job.State(); got != StateCompleted {
		t.Errorf("State() = %v, want completed", got)
	}
}

func TestLoadJobMissingFile(t *testing.T) {
	job := NewLoadJob(nil)
	job.Submit(filepath.Join(t.TempDir(), "nope.dat"))

	res := awaitResult(t, job)
	if res.Err == nil {
		t.Fatal("result error = nil, want open failure")
	}
	if !errors.Is(res.Err, fs.ErrNotExist) {
		t.Errorf("result error = %v, want fs.ErrNotExist", res.Err)
	}
	if got := job.State(); got != StateFailed {
		t.Errorf("State() = %v, want failed", got)
	}
}

func TestLoadJobP2BFormatErrorYieldsNoFilter(t *testing.T) {
	content := string(p2bMagic) + "\x01x\x00\x01\x02\x03\x04\x01\x02" // truncated record
	path := writeFilterFile(t, "filter.p2b", content)

	job := NewLoadJob(nil)
	job.Submit(path)

	res := awaitResult(t, job)
	if !errors.Is(res.Err, ErrInvalidFormat) {
		t.Fatalf("result error = %v, want ErrInvalidFormat", res.Err)
	}
	if res.Filter != nil {
		t.Error("a failed load must not deliver a partial filter")
	}
	if got := job.State(); got != StateFailed {
		t.Errorf("State() = %v, want failed", got)
	}
}

func TestLoadJobSubmitSupersedes(t *testing.T) {
	// A large first file keeps the first run busy long enough for the
	// second Submit to supersede it; even if it finishes early, Submit
	// discards its unread result, so only the second result is visible.
	var big strings.Builder
	for i := 0; i < 200000; i++ {
		fmt.Fprintf(&big, "10.%d.%d.0-10.%d.%d.255\n", i/250%250, i%250, i/250%250, i%250)
	}
	first := writeFilterFile(t, "big.dat", big.String())
	second := writeFilterFile(t, "small.dat", "1.0.0.0-1.0.0.9\n")

	job := NewLoadJob(nil)
	job.Submit(first)
	job.Submit(second)

	res := awaitResult(t, job)
	if res.Path != second {
		t.Fatalf("result path = %q, want the superseding submission %q", res.Path, second)
	}
	if res.Err != nil || res.RuleCount != 1 {
		t.Fatalf("result = %+v, want one rule and no error", res)
	}
}

func TestLoadJobStopWithoutRun(t *testing.T) {
	job := NewLoadJob(nil)
	job.Stop() // must not panic or block

	if got := job.State(); got != StateIdle {
		t.Errorf("State() = %v, want idle", got)
	}
}

func TestLoadJobStopCancelsRun(t *testing.T) {
	var big strings.Builder
	for i := 0; i < 200000; i++ {
		fmt.Fprintf(&big, "10.%d.%d.0-10.%d.%d.255\n", i/250%250, i%250, i/250%250, i%250)
	}
	path := writeFilterFile(t, "big.dat", big.String())

	job := NewLoadJob(nil)
	job.Submit(path)
	job.Stop()

	// The run either got cancelled mid-parse or finished just before
	// Stop; in both cases Stop has joined the worker.
	if got := job.State(); got != StateCancelled && got != StateCompleted {
		t.Errorf("State() = %v, want cancelled or completed", got)
	}
}
