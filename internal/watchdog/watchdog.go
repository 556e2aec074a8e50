// Package watchdog owns the wireless endpoint and its connection state. It
// resolves the target once at startup from a USB-attached device and repairs
// a lost link on demand.
package watchdog

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"adbwatch/internal/bridge"
)

// Bridge is the subset of the adb client the watchdog drives.
type Bridge interface {
	ListDevices() ([]bridge.Device, error)
	RoutedIP(serial string) (string, error)
	EnableTCPIP(serial string, port int)
	IsReachable(target string) bool
	Connect(target string)
}

// Clearer removes any in-place status line before discrete log output.
type Clearer interface {
	Clear()
}

// State is the watchdog's view of the wireless link.
type State int

const (
	StateUnknown State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Watchdog verifies and restores reachability of a single fixed target.
// Single-writer: callers must not invoke EnsureConnected concurrently.
type Watchdog struct {
	bridge  Bridge
	console Clearer
	target  string
	port    int

	state          State
	connectedSince time.Time
}

// New creates a Watchdog for an already resolved target. console may be nil.
func New(b Bridge, target string, port int, console Clearer) *Watchdog {
	return &Watchdog{bridge: b, console: console, target: target, port: port}
}

// Target returns the fixed host:port endpoint.
func (w *Watchdog) Target() string {
	return w.target
}

// Snapshot returns the current state and, when connected, the session start.
func (w *Watchdog) Snapshot() (State, time.Time) {
	return w.state, w.connectedSince
}

// EnsureConnected returns true when the target is reachable, recovering the
// link first if needed. The cheap path is a single device-list check, safe
// to call every tick.
func (w *Watchdog) EnsureConnected() bool {
	if w.bridge.IsReachable(w.target) {
		w.markConnected()
		return true
	}
	w.markDisconnected()

	devices, err := w.bridge.ListDevices()
	if err != nil {
		log.Warn().Err(err).Msg("recovery: device enumeration failed")
	}
	usb := firstUSBSerial(devices)
	if usb != "" {
		log.Info().Str("serial", usb).Int("port", w.port).Msg("recovery: re-arming wireless listener over usb")
		w.bridge.EnableTCPIP(usb, w.port)
	} else {
		log.Info().Msg("recovery: no usb device attached, relying on device-side listener")
	}
	w.bridge.Connect(w.target)

	if w.bridge.IsReachable(w.target) {
		w.markConnected()
		return true
	}
	log.Warn().Str("target", w.target).Msg("recovery failed, will retry next tick")
	return false
}

func (w *Watchdog) markConnected() {
	if w.state == StateConnected {
		return
	}
	w.state = StateConnected
	w.connectedSince = time.Now()
	log.Info().Str("target", w.target).Msg("wireless link established")
}

func (w *Watchdog) markDisconnected() {
	if w.state == StateDisconnected {
		return
	}
	if w.console != nil {
		w.console.Clear()
	}
	w.state = StateDisconnected
	w.connectedSince = time.Time{}
	log.Warn().Str("target", w.target).Msg("wireless link lost")
}

// ResolveTarget blocks until a USB-attached device with a routed IPv4 is
// found, arms its wireless listener and returns "<ip>:<port>". Only ctx
// cancellation ends the wait.
func ResolveTarget(ctx context.Context, b Bridge, port int, retry time.Duration) (string, error) {
	for {
		if target, ok := tryResolve(b, port); ok {
			return target, nil
		}
		select {
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "target resolution interrupted")
		case <-time.After(retry):
		}
	}
}

func tryResolve(b Bridge, port int) (string, bool) {
	devices, err := b.ListDevices()
	if err != nil {
		log.Warn().Err(err).Msg("waiting for usb device: enumeration failed")
		return "", false
	}
	serial := firstUSBSerial(devices)
	if serial == "" {
		log.Info().Msg("waiting for usb device to resolve wireless target")
		return "", false
	}
	ip, err := b.RoutedIP(serial)
	if err != nil {
		log.Warn().Err(err).Str("serial", serial).Msg("waiting for usb device: no routed ip yet")
		return "", false
	}
	target := net.JoinHostPort(ip, fmt.Sprintf("%d", port))
	b.EnableTCPIP(serial, port)
	b.Connect(target)
	log.Info().Str("serial", serial).Str("target", target).Msg("wireless target resolved")
	return target, true
}

func firstUSBSerial(devices []bridge.Device) string {
	for _, dev := range devices {
		if dev.State == "device" && dev.IsUSB() {
			return dev.Serial
		}
	}
	return ""
}
