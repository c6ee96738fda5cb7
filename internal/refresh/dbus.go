package refresh

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

// BusRegistry discovers provider instances on the session bus. A running
// provider owns the bus name matching its application id.
type BusRegistry struct {
	conn *dbus.Conn
}

// NewBusRegistry connects to the session bus.
func NewBusRegistry() (*BusRegistry, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &BusRegistry{conn: conn}, nil
}

// Close releases the bus connection.
func (r *BusRegistry) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// ListInstances reports the current owner of the provider's bus name, if any.
func (r *BusRegistry) ListInstances(ctx context.Context, providerRef string) ([]Instance, error) {
	bus := r.conn.BusObject()

	var hasOwner bool
	call := bus.CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, providerRef)
	if call.Err != nil {
		return nil, fmt.Errorf("query name owner: %w", call.Err)
	}
	if err := call.Store(&hasOwner); err != nil {
		return nil, fmt.Errorf("decode name owner reply: %w", err)
	}
	if !hasOwner {
		return nil, nil
	}

	var pid uint32
	call = bus.CallWithContext(ctx, "org.freedesktop.DBus.GetConnectionUnixProcessID", 0, providerRef)
	if call.Err != nil {
		// Owner raced away between the two calls; treat as not running.
		return nil, nil
	}
	if err := call.Store(&pid); err != nil {
		return nil, fmt.Errorf("decode pid reply: %w", err)
	}

	return []Instance{{BusName: providerRef, PID: int(pid)}}, nil
}

// ReloadVoices makes the instance pick up its changed voice registry: the
// running process is terminated and the activatable bus name is pinged so
// the bus relaunches it with the new voice set. The ping doubles as the
// bounded acknowledgment wait.
func (r *BusRegistry) ReloadVoices(ctx context.Context, instance Instance) error {
	if instance.PID > 0 {
		if err := unix.Kill(instance.PID, unix.SIGTERM); err != nil && err != unix.ESRCH {
			return fmt.Errorf("terminate provider pid %d: %w", instance.PID, err)
		}
	}

	obj := r.conn.Object(instance.BusName, "/")
	if call := obj.CallWithContext(ctx, "org.freedesktop.DBus.Peer.Ping", 0); call.Err != nil {
		return fmt.Errorf("ping %s: %w", instance.BusName, call.Err)
	}
	return nil
}
