package watchdog

import (
	"context"
	"testing"
	"time"

	"adbwatch/internal/bridge"
)

type fakeBridge struct {
	devices   []bridge.Device
	routedIP  string
	reachable map[string]bool

	listCalls      int
	routedCalls    int
	tcpipSerials   []string
	connectTargets []string
	reachableCalls int

	// reachableAfterConnect flips the target reachable once Connect ran.
	reachableAfterConnect bool
}

func (f *fakeBridge) ListDevices() ([]bridge.Device, error) {
	f.listCalls++
	return f.devices, nil
}

func (f *fakeBridge) RoutedIP(serial string) (string, error) {
	f.routedCalls++
	return f.routedIP, nil
}

func (f *fakeBridge) EnableTCPIP(serial string, port int) {
	f.tcpipSerials = append(f.tcpipSerials, serial)
}

func (f *fakeBridge) IsReachable(target string) bool {
	f.reachableCalls++
	return f.reachable[target]
}

func (f *fakeBridge) Connect(target string) {
	f.connectTargets = append(f.connectTargets, target)
	if f.reachableAfterConnect {
		if f.reachable == nil {
			f.reachable = map[string]bool{}
		}
		f.reachable[target] = true
	}
}

func TestEnsureConnectedCheapPathIsIdempotent(t *testing.T) {
	fake := &fakeBridge{reachable: map[string]bool{"192.168.1.50:5555": true}}
	w := New(fake, "192.168.1.50:5555", 5555, nil)

	if !w.EnsureConnected() {
		t.Fatalf("expected connected")
	}
	if fake.reachableCalls != 1 {
		t.Fatalf("expected exactly one reachability check, got %d", fake.reachableCalls)
	}
	if fake.listCalls != 0 || len(fake.tcpipSerials) != 0 || len(fake.connectTargets) != 0 {
		t.Fatalf("cheap path must not issue recovery calls: %+v", fake)
	}
}

func TestEnsureConnectedRecoversViaUSB(t *testing.T) {
	fake := &fakeBridge{
		devices:               []bridge.Device{{Serial: "R58M123ABC", State: "device"}},
		reachableAfterConnect: true,
	}
	w := New(fake, "192.168.1.50:5555", 5555, nil)

	if !w.EnsureConnected() {
		t.Fatalf("expected recovery to succeed")
	}
	if len(fake.tcpipSerials) != 1 || fake.tcpipSerials[0] != "R58M123ABC" {
		t.Fatalf("expected tcpip on usb serial, got %v", fake.tcpipSerials)
	}
	if len(fake.connectTargets) != 1 || fake.connectTargets[0] != "192.168.1.50:5555" {
		t.Fatalf("expected connect to target, got %v", fake.connectTargets)
	}
	state, since := w.Snapshot()
	if state != StateConnected || since.IsZero() {
		t.Fatalf("expected connected state with session start, got %v %v", state, since)
	}
}

func TestEnsureConnectedWithoutUSBStillTriesConnect(t *testing.T) {
	fake := &fakeBridge{}
	w := New(fake, "192.168.1.50:5555", 5555, nil)

	if w.EnsureConnected() {
		t.Fatalf("recovery without usb or armed listener cannot succeed")
	}
	if len(fake.tcpipSerials) != 0 {
		t.Fatalf("tcpip must not run without a usb device")
	}
	if len(fake.connectTargets) != 1 {
		t.Fatalf("connect must still be attempted, got %v", fake.connectTargets)
	}
	state, since := w.Snapshot()
	if state != StateDisconnected || !since.IsZero() {
		t.Fatalf("expected disconnected with cleared session start, got %v %v", state, since)
	}
}

func TestConnectedSinceStampedOnlyOnEdge(t *testing.T) {
	fake := &fakeBridge{reachable: map[string]bool{"192.168.1.50:5555": true}}
	w := New(fake, "192.168.1.50:5555", 5555, nil)

	w.EnsureConnected()
	_, first := w.Snapshot()
	time.Sleep(10 * time.Millisecond)
	w.EnsureConnected()
	_, second := w.Snapshot()
	if !first.Equal(second) {
		t.Fatalf("connectedSince must not move while already connected: %v vs %v", first, second)
	}
}

func TestResolveTargetBlocksWithoutUSBDevice(t *testing.T) {
	fake := &fakeBridge{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := ResolveTarget(ctx, fake, 5555, 10*time.Millisecond); err == nil {
		t.Fatalf("expected resolution to stay blocked until ctx cancellation")
	}
	if fake.listCalls < 2 {
		t.Fatalf("expected repeated enumeration attempts, got %d", fake.listCalls)
	}
	if fake.routedCalls != 0 {
		t.Fatalf("routed ip must not be queried without a usb device")
	}
}

func TestResolveTargetFromUSBDevice(t *testing.T) {
	fake := &fakeBridge{
		devices:  []bridge.Device{{Serial: "R58M123ABC", State: "device"}},
		routedIP: "192.168.1.50",
	}

	target, err := ResolveTarget(context.Background(), fake, 5555, time.Millisecond)
	if err != nil {
		t.Fatalf("resolve target failed: %v", err)
	}
	if target != "192.168.1.50:5555" {
		t.Fatalf("expected 192.168.1.50:5555, got %s", target)
	}
	if len(fake.tcpipSerials) != 1 || len(fake.connectTargets) != 1 {
		t.Fatalf("expected listener armed and connect attempted: %+v", fake)
	}
}
