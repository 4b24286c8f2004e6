// Package systemd reports service state to the systemd notify socket.
// Outside systemd every call is a no-op.
package systemd

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify states.
type Notifier interface {
	Notify(state string) error
}

// Socket notifies through $NOTIFY_SOCKET.
type Socket struct{}

func (Socket) Notify(state string) error {
	_, err := daemon.SdNotify(false, state)
	return err
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string) error { return nil }

func Ready(n Notifier) error { return n.Notify(daemon.SdNotifyReady) }
func Stopping(n Notifier) error { return n.Notify(daemon.SdNotifyStopping) }
func Reloading(n Notifier) error { return n.Notify(daemon.SdNotifyReloading) }

// Status publishes a free-form status line shown by systemctl status.
func Status(n Notifier, format string, args ...any) error {
	return n.Notify("STATUS=" + fmt.Sprintf(format, args...))
}
