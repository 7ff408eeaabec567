package portal

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	screenCastInterface    = callBaseName + ".ScreenCast"
	createSessionName      = screenCastInterface + ".CreateSession"
	selectSourcesName      = screenCastInterface + ".SelectSources"
	startName              = screenCastInterface + ".Start"
	openPipeWireRemoteName = screenCastInterface + ".OpenPipeWireRemote"
)

const (
	SourceTypeMonitor uint32 = 1
	SourceTypeWindow  uint32 = 2
	SourceTypeVirtual uint32 = 4
)

const (
	CursorModeHidden   uint32 = 1
	CursorModeEmbedded uint32 = 2
	CursorModeMetadata uint32 = 4
)

// Stream is one PipeWire node granted by Start.
type Stream struct {
	NodeID     uint32
	Position   [2]int32
	Size       [2]int32
	SourceType uint32
	ID         string
}

// SelectOptions picks what the user is offered in the share dialog.
type SelectOptions struct {
	Types      uint32
	Multiple   bool
	CursorMode uint32
}

// Session is an open ScreenCast session.
type Session struct {
	bus  *Bus
	Path dbus.ObjectPath
}

// AvailableSourceTypes reports the source type bitmask the portal offers.
func (b *Bus) AvailableSourceTypes(ctx context.Context) (uint32, error) {
	return b.uint32Property(ctx, screenCastInterface, "AvailableSourceTypes")
}

// AvailableCursorModes reports the cursor mode bitmask the portal offers.
func (b *Bus) AvailableCursorModes(ctx context.Context) (uint32, error) {
	return b.uint32Property(ctx, screenCastInterface, "AvailableCursorModes")
}

// CursorModeFor picks the cursor mode to request from the modes the portal
// offers: embedded when possible, hidden otherwise, and none (the portal's
// default) when neither is offered.
func CursorModeFor(available uint32) uint32 {
	switch {
	case available&CursorModeEmbedded != 0:
		return CursorModeEmbedded
	case available&CursorModeHidden != 0:
		return CursorModeHidden
	}
	return 0
}

// SourceTypesFor narrows want to what the portal offers. An empty result
// falls back to monitors, which every ScreenCast portal supports.
func SourceTypesFor(available, want uint32) uint32 {
	if t := available & want; t != 0 {
		return t
	}
	return SourceTypeMonitor
}

// CreateSession starts a ScreenCast session. ErrCancelled is returned when
// the portal declines.
func (b *Bus) CreateSession(ctx context.Context) (*Session, error) {
	results, err := b.request(ctx, createSessionName, map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant(newToken()),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	handle, ok := results["session_handle"]
	if !ok {
		return nil, fmt.Errorf("create session: %w: missing session_handle", ErrUnexpectedResponse)
	}
	var path dbus.ObjectPath
	switch v := handle.Value().(type) {
	case string:
		path = dbus.ObjectPath(v)
	case dbus.ObjectPath:
		path = v
	default:
		return nil, fmt.Errorf("create session: %w: session_handle is %T", ErrUnexpectedResponse, v)
	}
	return &Session{bus: b, Path: path}, nil
}

// SelectSources configures the share dialog shown by Start.
func (s *Session) SelectSources(ctx context.Context, options SelectOptions) error {
	data := map[string]dbus.Variant{}
	if options.Types != 0 {
		data["types"] = dbus.MakeVariant(options.Types)
	}
	if options.Multiple {
		data["multiple"] = dbus.MakeVariant(true)
	}
	if options.CursorMode != 0 {
		data["cursor_mode"] = dbus.MakeVariant(options.CursorMode)
	}

	if _, err := s.bus.request(ctx, selectSourcesName, data, s.Path); err != nil {
		return fmt.Errorf("select sources: %w", err)
	}
	return nil
}

// Start shows the share dialog and returns the streams the user granted.
func (s *Session) Start(ctx context.Context, parentWindow string) ([]Stream, error) {
	results, err := s.bus.request(ctx, startName, map[string]dbus.Variant{}, s.Path, parentWindow)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	variant, ok := results["streams"]
	if !ok {
		return nil, nil
	}
	return parseStreams(variant.Value()), nil
}

func parseStreams(value any) []Stream {
	var raw [][]any
	switch rs := value.(type) {
	case [][]any:
		raw = rs
	case []any:
		for _, r := range rs {
			if s, ok := r.([]any); ok {
				raw = append(raw, s)
			}
		}
	default:
		return nil
	}

	streams := make([]Stream, 0, len(raw))
	for _, fields := range raw {
		if len(fields) < 2 {
			continue
		}

		var stream Stream
		if nodeID, ok := fields[0].(uint32); ok {
			stream.NodeID = nodeID
		}
		if props, ok := fields[1].(map[string]dbus.Variant); ok {
			if v, ok := props["position"]; ok {
				if pair, ok := parseInt32Pair(v.Value()); ok {
					stream.Position = pair
				}
			}
			if v, ok := props["size"]; ok {
				if pair, ok := parseInt32Pair(v.Value()); ok {
					stream.Size = pair
				}
			}
			if v, ok := props["source_type"]; ok {
				if t, ok := v.Value().(uint32); ok {
					stream.SourceType = t
				}
			}
			if v, ok := props["id"]; ok {
				if id, ok := v.Value().(string); ok {
					stream.ID = id
				}
			}
		}
		streams = append(streams, stream)
	}
	return streams
}

func parseInt32Pair(value any) ([2]int32, bool) {
	switch v := value.(type) {
	case [2]int32:
		return v, true
	case []any:
		if len(v) < 2 {
			return [2]int32{}, false
		}
		left, ok := v[0].(int32)
		if !ok {
			return [2]int32{}, false
		}
		right, ok := v[1].(int32)
		if !ok {
			return [2]int32{}, false
		}
		return [2]int32{left, right}, true
	}
	return [2]int32{}, false
}

// OpenPipeWireRemote returns a file descriptor for a PipeWire connection
// restricted to the session's streams. The caller owns the descriptor.
func (s *Session) OpenPipeWireRemote(ctx context.Context) (int, error) {
	call, err := s.bus.call(ctx, objectPath, openPipeWireRemoteName, s.Path, map[string]dbus.Variant{})
	if err != nil {
		return -1, err
	}

	var fd dbus.UnixFD
	if err := call.Store(&fd); err != nil {
		return -1, fmt.Errorf("open pipewire remote: %w", err)
	}
	return int(fd), nil
}

// Close ends the session. The portal stops all of its streams.
func (s *Session) Close() error {
	_, err := s.bus.call(context.Background(), s.Path, sessionCloseMethod)
	return err
}
