package ftp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/soloftp/soloftp/netio"
)

// ErrNoDataConnection means no peer showed up on the data channel within
// the connect-wait window.
var ErrNoDataConnection = errors.New("ftp: no data connection")

// DataChannel manages the session's secondary connection. Exactly one data
// connection is live at a time; establishing a new one always tears down
// the old one first, even mid-transfer, which is how ABOR and repeated
// PASV/PORT behave. The passive listener is fixed and pre-bound by the
// server, so releasing an accepted connection promptly matters: the port
// cannot be rebound per transfer.
type DataChannel struct {
	listener netio.Listener // fixed passive data port, owned by the server
	dial     netio.Dialer

	connectTimeout time.Duration

	passive    bool
	remoteAddr string // active-mode target, host:port

	conn netio.Conn
}

func newDataChannel(listener netio.Listener, dial netio.Dialer, connectTimeout time.Duration) *DataChannel {
	return &DataChannel{
		listener:       listener,
		dial:           dial,
		connectTimeout: connectTimeout,
		passive:        true,
	}
}

// SetPassive switches to passive mode, closing any live connection.
func (d *DataChannel) SetPassive() {
	d.Close()
	d.passive = true
}

// SetActive switches to active mode targeting addr, closing any live
// connection.
func (d *DataChannel) SetActive(addr string) {
	d.Close()
	d.passive = false
	d.remoteAddr = addr
}

// Port returns the passive listener's port, as advertised in PASV and the
// transfer banners.
func (d *DataChannel) Port() int {
	if addr, ok := d.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Establish produces a live data connection, reusing the current one when
// still open. Passive mode waits (bounded) for the peer to connect; active
// mode dials out to the PORT address.
func (d *DataChannel) Establish() (netio.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}
	if d.passive {
		conn, err := d.listener.AcceptWithin(d.connectTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNoDataConnection, err)
		}
		d.conn = conn
		return conn, nil
	}
	conn, err := d.dial(d.remoteAddr, d.connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDataConnection, err)
	}
	d.conn = conn
	return conn, nil
}

// Conn returns the live connection, or nil.
func (d *DataChannel) Conn() netio.Conn { return d.conn }

// Close tears the channel down: the live connection is closed and any
// connection already queued on the passive listener is drained and closed
// too. Idempotent and total, so every abort path can call it blindly.
func (d *DataChannel) Close() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	for {
		pending, err := d.listener.TryAccept()
		if err != nil || pending == nil {
			return
		}
		pending.Close()
	}
}

// parsePortParam decodes the PORT argument: four dotted-decimal address
// octets and two port octets, all comma separated.
func parsePortParam(param string) (string, error) {
	parts := strings.Split(param, ",")
	if len(parts) != 6 {
		return "", fmt.Errorf("expected 6 octets, got %d", len(parts))
	}
	vals := make([]int, 6)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 || v > 255 {
			return "", fmt.Errorf("bad octet %q", part)
		}
		vals[i] = v
	}
	host := fmt.Sprintf("%d.%d.%d.%d", vals[0], vals[1], vals[2], vals[3])
	port := vals[4]*256 + vals[5]
	if port == 0 {
		return "", errors.New("port must not be zero")
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
