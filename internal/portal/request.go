package portal

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// subscription receives the Response signal of one portal request.
type subscription struct {
	conn    *dbus.Conn
	path    dbus.ObjectPath
	signals chan *dbus.Signal
}

func (b *Bus) subscribe(path dbus.ObjectPath) (*subscription, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(requestInterface),
		dbus.WithMatchMember(responseMember),
	}
	if err := b.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	s := &subscription{
		conn:    b.conn,
		path:    path,
		signals: make(chan *dbus.Signal, 4),
	}
	b.conn.Signal(s.signals)
	return s, nil
}

func (s *subscription) close() {
	if s == nil {
		return
	}
	s.conn.RemoveSignal(s.signals)
	_ = s.conn.RemoveMatchSignal(
		dbus.WithMatchObjectPath(s.path),
		dbus.WithMatchInterface(requestInterface),
		dbus.WithMatchMember(responseMember),
	)
}

// wait blocks until the request answers or ctx is done. The portal keeps the
// dialog open while we wait, so ctx is the only way to give up.
func (s *subscription) wait(ctx context.Context) (map[string]dbus.Variant, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sig, ok := <-s.signals:
			if !ok {
				return nil, ErrEnded
			}
			if sig.Path != s.path || sig.Name != requestInterface+"."+responseMember {
				continue
			}
			return parseResponse(sig.Body)
		}
	}
}

func parseResponse(body []any) (map[string]dbus.Variant, error) {
	if len(body) != 2 {
		return nil, fmt.Errorf("%w: %d values", ErrUnexpectedResponse, len(body))
	}
	status, ok := body[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("%w: status is %T", ErrUnexpectedResponse, body[0])
	}
	results, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("%w: results are %T", ErrUnexpectedResponse, body[1])
	}

	switch status {
	case responseSuccess:
		return results, nil
	case responseCancelled:
		return nil, ErrCancelled
	default:
		return nil, ErrEnded
	}
}

// request calls a portal method that answers through a Request object and
// waits for the answer. options receives the handle_token.
func (b *Bus) request(ctx context.Context, method string, options map[string]dbus.Variant, args ...any) (map[string]dbus.Variant, error) {
	token := newToken()
	options["handle_token"] = dbus.MakeVariant(token)

	sub, err := b.subscribe(b.requestPath(token))
	if err != nil {
		return nil, err
	}
	defer func() { sub.close() }()

	call, err := b.call(ctx, objectPath, method, append(args, options)...)
	if err != nil {
		return nil, err
	}
	var handle dbus.ObjectPath
	if err := call.Store(&handle); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	// Portals older than 0.9 pick their own path.
	if sub, err = follow(sub, handle, b.subscribe); err != nil {
		return nil, err
	}
	return sub.wait(ctx)
}

// follow moves sub to path. On failure sub is returned unchanged so the
// caller still closes the subscription it holds.
func follow(sub *subscription, path dbus.ObjectPath, subscribe func(dbus.ObjectPath) (*subscription, error)) (*subscription, error) {
	if path == sub.path {
		return sub, nil
	}
	next, err := subscribe(path)
	if err != nil {
		return sub, err
	}
	sub.close()
	return next, nil
}
