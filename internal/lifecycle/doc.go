// Package lifecycle provides the keep-alive capability the bridge acquires
// at startup so the host does not suspend it while it holds a broker
// connection.
//
// On systemd hosts it takes a logind "sleep:idle" block inhibitor; the lock
// holds until the returned descriptor is closed or the process exits. The
// bridge never closes it.
package lifecycle
