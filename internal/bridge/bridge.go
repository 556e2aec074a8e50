// Package bridge wraps the adb command line tool. Every operation is a
// synchronous invocation of the external binary; callers interpret textual
// output and exit codes, nothing else.
package bridge

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Device is one row of `adb devices` output.
type Device struct {
	Serial string
	State  string
}

// IsUSB reports whether the device is attached over USB, i.e. its serial is
// not a network host:port endpoint.
func (d Device) IsUSB() bool {
	return !isNetworkSerial(d.Serial)
}

// Client issues adb CLI calls through a Runner. It holds no mutable state.
type Client struct {
	adbPath string
	runner  Runner
}

// NewClient creates a Client invoking the given adb binary.
func NewClient(adbPath string) *Client {
	return NewClientWithRunner(adbPath, execRunner{})
}

// NewClientWithRunner creates a Client with a custom process runner.
func NewClientWithRunner(adbPath string, runner Runner) *Client {
	if strings.TrimSpace(adbPath) == "" {
		adbPath = "adb"
	}
	return &Client{adbPath: adbPath, runner: runner}
}

// Probe checks that the adb binary is invocable. Callers treat a failure as
// a warning, not a fatal condition.
func (c *Client) Probe() error {
	out, code, err := c.runner.Run(c.adbPath, "version")
	if err != nil {
		return errors.Wrapf(err, "invoke %s", c.adbPath)
	}
	if code != 0 {
		return errors.Errorf("%s version exited with code %d: %s", c.adbPath, code, firstLine(out))
	}
	log.Debug().Str("adb", c.adbPath).Str("version", firstLine(out)).Msg("adb probe ok")
	return nil
}

// ListDevices parses `adb devices`: one "serial<ws>state" row per device,
// header and daemon chatter skipped.
func (c *Client) ListDevices() ([]Device, error) {
	out, code, err := c.runner.Run(c.adbPath, "devices")
	if err != nil {
		return nil, errors.Wrap(err, "adb devices")
	}
	if code != 0 {
		return nil, errors.Errorf("adb devices exited with code %d", code)
	}
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, Device{Serial: fields[0], State: fields[1]})
	}
	return devices, nil
}

// RoutedIP reads the device routing table and returns the first `src` IPv4,
// which is the address the device answers on over the wireless link.
func (c *Client) RoutedIP(serial string) (string, error) {
	out, code, err := c.runner.Run(c.adbPath, "-s", serial, "shell", "ip", "route")
	if err != nil {
		return "", errors.Wrapf(err, "adb -s %s shell ip route", serial)
	}
	if code != 0 {
		return "", errors.Errorf("ip route on %s exited with code %d", serial, code)
	}
	tokens := strings.Fields(out)
	for i, tok := range tokens {
		if tok != "src" || i+1 >= len(tokens) {
			continue
		}
		ip := net.ParseIP(tokens[i+1])
		if ip != nil && ip.To4() != nil {
			return ip.String(), nil
		}
	}
	return "", errors.Errorf("no src ipv4 in routing table of %s", serial)
}

// EnableTCPIP re-arms the device-side wireless listener. Best effort:
// failures are logged and swallowed.
func (c *Client) EnableTCPIP(serial string, port int) {
	out, code, err := c.runner.Run(c.adbPath, "-s", serial, "tcpip", strconv.Itoa(port))
	if err != nil {
		log.Warn().Err(err).Str("serial", serial).Int("port", port).Msg("adb tcpip failed")
		return
	}
	if code != 0 {
		log.Warn().Str("serial", serial).Int("port", port).Str("output", firstLine(out)).Msg("adb tcpip exited nonzero")
		return
	}
	log.Info().Str("serial", serial).Int("port", port).Msg("wireless listener armed")
}

// IsReachable reports whether the device list contains the target endpoint
// in the "device" state.
func (c *Client) IsReachable(target string) bool {
	devices, err := c.ListDevices()
	if err != nil {
		log.Warn().Err(err).Msg("reachability check failed")
		return false
	}
	for _, dev := range devices {
		if dev.Serial == target && dev.State == "device" {
			return true
		}
	}
	return false
}

// Connect attempts `adb connect <target>`. Success of the command does not
// guarantee reachability; callers must re-check IsReachable.
func (c *Client) Connect(target string) {
	out, code, err := c.runner.Run(c.adbPath, "connect", target)
	if err != nil {
		log.Warn().Err(err).Str("target", target).Msg("adb connect failed")
		return
	}
	log.Info().Str("target", target).Int("exit_code", code).Str("output", firstLine(out)).Msg("adb connect attempted")
}

// InstallPackage pushes the apk to the target. Streaming is disabled:
// wireless transport drops large streamed payloads more often than
// store-and-forward installs. The external exit code is returned verbatim.
func (c *Client) InstallPackage(target, apkPath string) (int, error) {
	out, code, err := c.runner.Run(c.adbPath, "-s", target, "install", "-r", "-t", "--no-streaming", "--", apkPath)
	if err != nil {
		return -1, errors.Wrapf(err, "adb install %s", apkPath)
	}
	if code != 0 {
		log.Warn().Str("target", target).Str("apk", apkPath).Int("exit_code", code).Str("output", lastLine(out)).Msg("adb install exited nonzero")
	}
	return code, nil
}

func isNetworkSerial(serial string) bool {
	host, port, err := net.SplitHostPort(serial)
	if err != nil || host == "" {
		return false
	}
	_, err = strconv.Atoi(port)
	return err == nil
}

func firstLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[0])
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
