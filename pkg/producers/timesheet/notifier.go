package timesheet

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// DBusNotifier sends desktop notifications through the freedesktop
// notification service on the session bus.
type DBusNotifier struct {
	obj dbus.BusObject
}

// NewDBusNotifier connects to the session bus. Returns an error when no
// session bus is available; callers then pass a nil Notifier.
func NewDBusNotifier() (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &DBusNotifier{
		obj: conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications"),
	}, nil
}

// Notify implements Notifier.
func (n *DBusNotifier) Notify(summary, body string) error {
	// Notify(app_name, replaces_id, app_icon, summary, body, actions,
	// hints, expire_timeout)
	call := n.obj.Call("org.freedesktop.Notifications.Notify", 0,
		"pulsebar", uint32(0), "dialog-information", summary, body,
		[]string{}, map[string]dbus.Variant{}, int32(0))
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	return nil
}
