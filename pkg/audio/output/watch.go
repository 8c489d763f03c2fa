// ABOUTME: Runtime failure reporting for output backends
// ABOUTME: Once-only failure delivery and a polling watcher for device health
package output

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// reporter delivers a device failure to a FailFunc at most once
type reporter struct {
	once sync.Once
	fail FailFunc
}

func newReporter(fail FailFunc) *reporter {
	return &reporter{fail: fail}
}

func (r *reporter) report(err error) {
	if r == nil || r.fail == nil || err == nil {
		return
	}
	r.once.Do(func() { r.fail(err) })
}

// watcher polls check until it returns an error or the watcher is stopped
type watcher struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startWatcher(interval time.Duration, check func() error, rep *reporter) *watcher {
	w := &watcher{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(w.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := check(); err != nil {
					rep.report(err)
					return
				}
			case <-w.stop:
				return
			}
		}
	}()
	return w
}

// Stop ends polling and waits for the watcher to exit. No failure is reported
// after Stop returns.
func (w *watcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

// stallCheck fails once last (unix nanos) is older than timeout
func stallCheck(last *atomic.Int64, timeout time.Duration) func() error {
	return func() error {
		idle := time.Since(time.Unix(0, last.Load()))
		if idle > timeout {
			return fmt.Errorf("audio stream stalled: no callback for %v", idle.Round(time.Millisecond))
		}
		return nil
	}
}
