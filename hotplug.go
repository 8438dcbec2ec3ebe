package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Action classifies a hotplug notification.
type Action int

const (
	ActionOther Action = iota
	ActionAdd
	ActionRemove
)

// Notification is a decoded kernel uevent relevant to input devices.
type Notification struct {
	Action Action
	Device DeviceID
}

// EventSource delivers raw hotplug payloads. Receive blocks for at most
// the given timeout and returns a nil payload when nothing arrived in
// that slice; a non-nil error means the source failed and no further
// payloads will be delivered.
type EventSource interface {
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

// ueventSocket is a raw netlink socket subscribed to the kernel uevent
// multicast group.
type ueventSocket struct {
	fd int
}

// openUeventSocket opens and binds the kernel event channel. Group 1 is
// the standard kernel device-event group; udev broadcasts on group 2
// and is deliberately not subscribed.
func openUeventSocket() (*ueventSocket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("open uevent socket: %w", err)
	}

	sa := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Pid:    uint32(os.Getpid()),
		Groups: 1,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind uevent socket: %w", err)
	}

	return &ueventSocket{fd: fd}, nil
}

// Receive waits up to timeout for one uevent datagram. Interrupted or
// would-block reads count as an empty slice so the caller can recheck
// its stop signal.
func (s *ueventSocket) Receive(timeout time.Duration) ([]byte, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("poll uevent socket: %w", err)
	}
	if n == 0 || fds[0].Revents&unix.POLLIN == 0 {
		return nil, nil
	}

	buf := make([]byte, 2048)
	nr, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			return nil, nil
		}
		return nil, fmt.Errorf("read uevent socket: %w", err)
	}
	return buf[:nr], nil
}

func (s *ueventSocket) Close() error {
	return unix.Close(s.fd)
}

// parseUevent decodes a kernel uevent payload. The summary line has the
// form "action@devpath", NUL-terminated, with KEY=VALUE records after
// it. Only payloads whose devpath ends in an eventN segment are of
// interest; everything else reports ok=false and is discarded.
func parseUevent(payload []byte) (Notification, bool) {
	header := payload
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		header = payload[:i]
	}

	action, devpath, ok := strings.Cut(string(header), "@")
	if !ok {
		return Notification{}, false
	}

	n := Notification{}
	switch action {
	case "add":
		n.Action = ActionAdd
	case "remove":
		n.Action = ActionRemove
	default:
		// Well-formed but irrelevant (change, bind, move, ...).
		return Notification{Action: ActionOther}, true
	}

	n.Device, ok = eventID(devpath)
	if !ok {
		return Notification{}, false
	}
	return n, true
}

// eventID extracts the trailing eventN segment from a device path.
// The suffix after "event" must be decimal digits.
func eventID(devpath string) (DeviceID, bool) {
	for _, seg := range strings.Split(devpath, "/") {
		rest, found := strings.CutPrefix(seg, "event")
		if !found || rest == "" {
			continue
		}
		digits := true
		for _, c := range rest {
			if c < '0' || c > '9' {
				digits = false
				break
			}
		}
		if digits {
			return DeviceID(seg), true
		}
	}
	return "", false
}
