// Package portal talks to xdg-desktop-portal over the session bus to ask the
// user for a screen-cast and obtain a PipeWire remote for it.
package portal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	objectName = "org.freedesktop.portal.Desktop"
	objectPath = dbus.ObjectPath("/org/freedesktop/portal/desktop")

	callBaseName       = "org.freedesktop.portal"
	requestInterface   = callBaseName + ".Request"
	sessionInterface   = callBaseName + ".Session"
	propertiesGetName  = "org.freedesktop.DBus.Properties.Get"
	responseMember     = "Response"
	sessionCloseMethod = sessionInterface + ".Close"
)

// Response codes of org.freedesktop.portal.Request.
const (
	responseSuccess   uint32 = 0
	responseCancelled uint32 = 1
	responseEnded     uint32 = 2
)

var (
	ErrCancelled          = errors.New("portal request was cancelled by the user")
	ErrEnded              = errors.New("portal request ended without a result")
	ErrUnexpectedResponse = errors.New("unexpected response from portal")
)

// Bus is a session bus connection to the desktop portal.
type Bus struct {
	conn *dbus.Conn
}

// Connect uses the shared session bus connection.
func Connect() (*Bus, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &Bus{conn: conn}, nil
}

func (b *Bus) call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) (*dbus.Call, error) {
	obj := b.conn.Object(objectName, path)
	call := obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, fmt.Errorf("%s: %w", method, call.Err)
	}
	return call, nil
}

func (b *Bus) property(ctx context.Context, iface, name string) (any, error) {
	call, err := b.call(ctx, objectPath, propertiesGetName, iface, name)
	if err != nil {
		return nil, err
	}
	var value dbus.Variant
	if err := call.Store(&value); err != nil {
		return nil, fmt.Errorf("property %s.%s: %w", iface, name, err)
	}
	return value.Value(), nil
}

func (b *Bus) uint32Property(ctx context.Context, iface, name string) (uint32, error) {
	value, err := b.property(ctx, iface, name)
	if err != nil {
		return 0, err
	}
	n, ok := value.(uint32)
	if !ok {
		return 0, fmt.Errorf("property %s returned unexpected type %T", name, value)
	}
	return n, nil
}

// newToken returns a handle token unique enough for one process.
func newToken() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(1<<32))
	return "gamevision" + strconv.FormatUint(n.Uint64(), 16)
}

// requestPath predicts the Request object the portal will create for token,
// so the Response signal can be subscribed to before the call is made.
func (b *Bus) requestPath(token string) dbus.ObjectPath {
	sender := strings.TrimPrefix(b.conn.Names()[0], ":")
	sender = strings.ReplaceAll(sender, ".", "_")
	return dbus.ObjectPath("/org/freedesktop/portal/desktop/request/" + sender + "/" + token)
}
