package runloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"adbwatch/internal/artifact"
	"adbwatch/internal/installer"
	"adbwatch/internal/watchdog"
)

type fakeWatchdog struct {
	mu        sync.Mutex
	connected bool
	calls     int
}

func (f *fakeWatchdog) EnsureConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.connected
}

func (f *fakeWatchdog) Target() string { return "192.168.1.50:5555" }

func (f *fakeWatchdog) Snapshot() (watchdog.State, time.Time) {
	return watchdog.StateConnected, time.Now()
}

type fakeTracker struct {
	mu      sync.Mutex
	pending []artifact.Signature
	calls   int
}

func (f *fakeTracker) DetectChange() (artifact.Signature, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.pending) == 0 {
		return artifact.Signature{}, false
	}
	sig := f.pending[0]
	f.pending = f.pending[1:]
	return sig, true
}

type fakeInstaller struct {
	mu        sync.Mutex
	installed []string
}

func (f *fakeInstaller) Install(apkPath string) installer.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed = append(f.installed, apkPath)
	return installer.Outcome{ApkPath: apkPath, Succeeded: true}
}

func (f *fakeInstaller) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.installed...)
}

type nopStatus struct{}

func (nopStatus) Update(string) {}
func (nopStatus) Clear()        {}

func TestRecheckSignalTriggersInstall(t *testing.T) {
	wd := &fakeWatchdog{connected: true}
	tracker := &fakeTracker{pending: []artifact.Signature{{Path: "/builds/app-v2.apk", Size: 500000}}}
	inst := &fakeInstaller{}
	loop := New(wd, tracker, inst, nopStatus{}, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	loop.RecheckC() <- struct{}{}

	deadline := time.After(2 * time.Second)
	for len(inst.paths()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected install after recheck signal")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := inst.paths(); len(got) != 1 || got[0] != "/builds/app-v2.apk" {
		t.Fatalf("expected one install of app-v2, got %v", got)
	}
}

func TestTickDrivesConnectivityAndPoll(t *testing.T) {
	wd := &fakeWatchdog{connected: true}
	tracker := &fakeTracker{}
	loop := New(wd, tracker, &fakeInstaller{}, nopStatus{}, 10*time.Millisecond, 25*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_ = loop.Run(ctx)

	wd.mu.Lock()
	connectivityCalls := wd.calls
	wd.mu.Unlock()
	tracker.mu.Lock()
	pollCalls := tracker.calls
	tracker.mu.Unlock()

	if connectivityCalls < 5 {
		t.Fatalf("expected connectivity check on every tick, got %d", connectivityCalls)
	}
	if pollCalls < 2 {
		t.Fatalf("expected poll-driven rechecks, got %d", pollCalls)
	}
	if pollCalls >= connectivityCalls {
		t.Fatalf("poll cadence must be slower than the tick: %d vs %d", pollCalls, connectivityCalls)
	}
}
