package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"beacon/cmd/internal/metrics"
)

// Broadcaster delivers full updated lists to every observer currently
// joined to a session's room. Implemented by the realtime hub; a publish
// for a session with no room is a no-op.
type Broadcaster interface {
	PublishDevices(sessionID string, devices []Device)
	PublishMessages(sessionID string, messages []Message)
}

type nopBroadcaster struct{}

func (nopBroadcaster) PublishDevices(string, []Device)   {}
func (nopBroadcaster) PublishMessages(string, []Message) {}

// Snapshot is the full roster + log delivered once to a newly joined observer.
type Snapshot struct {
	Devices  []Device
	Messages []Message
}

// Service sequences every externally visible session operation:
// load -> registry mutation -> persist -> publish -> return.
//
// It is the only component allowed to call both the Store and the
// Broadcaster. A failed Save is returned to the caller and suppresses the
// broadcast; nothing is ever published for state that did not persist.
type Service struct {
	log   *slog.Logger
	store Store
	cast  Broadcaster
	met   *metrics.Metrics
}

// NewService constructs a Service. A nil broadcaster disables fan-out
// (useful in tests); a nil metrics handle disables instrumentation.
func NewService(log *slog.Logger, store Store, cast Broadcaster, met *metrics.Metrics) *Service {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if cast == nil {
		cast = nopBroadcaster{}
	}
	return &Service{log: log, store: store, cast: cast, met: met}
}

// Ensure creates the session document for id if absent. Idempotent.
func (s *Service) Ensure(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, ErrMissingSessionID
	}

	sess, err := s.store.Ensure(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return Session{}, err
	}

	if s.met != nil {
		s.met.SessionsEnsured.Inc()
	}
	s.log.Info("session.ensure", "session_id", sessionID)
	return sess, nil
}

// Delete removes the session document. Deleting an absent session returns
// ErrSessionNotFound; observers still joined to the room are unaffected
// (membership is transport state, not session state).
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}

	if s.met != nil {
		s.met.SessionsDeleted.Inc()
	}
	s.log.Info("session.delete", "session_id", sessionID)
	return nil
}

// UpsertDevice resolves the caller's device input, replaces-or-appends it
// in the roster, persists, and publishes the full updated roster.
func (s *Service) UpsertDevice(ctx context.Context, sessionID string, in DeviceInput) (Device, []Device, error) {
	now := time.Now().UTC()

	dev, err := ResolveDevice(in, now)
	if err != nil {
		return Device{}, nil, err
	}

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Device{}, nil, err
	}

	devices := UpsertDevice(&sess, dev)

	if err := s.store.Save(ctx, &sess, now); err != nil {
		return Device{}, nil, err
	}

	if s.met != nil {
		s.met.DeviceUpserts.Inc()
	}
	s.log.Info("session.device.upsert", "session_id", sessionID, "device_id", dev.ID, "roster_size", len(devices))

	s.cast.PublishDevices(sessionID, devices)
	return dev, devices, nil
}

// AppendMessage appends msg to the session log verbatim (SentAt defaulted),
// persists, and publishes the full updated log.
func (s *Service) AppendMessage(ctx context.Context, sessionID string, msg Message) (Message, []Message, error) {
	now := time.Now().UTC()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Message{}, nil, err
	}

	messages := AppendMessage(&sess, msg, now)
	stored := messages[len(messages)-1]

	if err := s.store.Save(ctx, &sess, now); err != nil {
		return Message{}, nil, err
	}

	if s.met != nil {
		s.met.MessageAppends.Inc()
	}
	s.log.Info("session.message.append", "session_id", sessionID, "message_type", stored.Type, "log_size", len(messages))

	s.cast.PublishMessages(sessionID, messages)
	return stored, messages, nil
}

// Devices returns the current roster, or an empty list for an absent
// session (reads never 404).
func (s *Service) Devices(ctx context.Context, sessionID string) ([]Device, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return []Device{}, nil
	}
	if err != nil {
		return nil, err
	}
	return sess.Devices, nil
}

// Messages returns the current log, or an empty list for an absent session.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}

// SnapshotFor returns the join-time snapshot for id. found is false when
// the session does not exist; joining an absent session is allowed and
// simply delivers no snapshot.
func (s *Service) SnapshotFor(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return Snapshot{Devices: sess.Devices, Messages: sess.Messages}, true, nil
}
