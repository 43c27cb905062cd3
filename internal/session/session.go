package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/spbnode/internal/credentials"
	"github.com/nerrad567/spbnode/internal/sparkplug"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Session is a single Sparkplug B edge node session.
type Session struct {
	id        string
	transport Transport
	codec     *sparkplug.Codec
	topics    sparkplug.Topics

	creds     *credentials.Credentials
	birth     sparkplug.Values
	logger    Logger
	observers []Observer
	now       func() time.Time

	// death is the NDEATH payload registered as last will on Connect.
	death    []byte
	deathSeq uint8

	// mu guards the fields below, which are read by Snapshot.
	mu          sync.RWMutex
	state       State
	current     sparkplug.Values
	published   map[sparkplug.MessageType]int
	connectedAt time.Time
	lastPublish time.Time
}

// Option configures a Session.
type Option func(*options)

type options struct {
	creds     *credentials.Credentials
	initial   sparkplug.Values
	defaults  sparkplug.Defaults
	logger    Logger
	observers []Observer
	now       func() time.Time
	id        string
}

// WithCredentials sets the credentials passed to the transport before connecting.
func WithCredentials(c credentials.Credentials) Option {
	return func(o *options) { o.creds = &c }
}

// WithBirthValues sets initial metric values for the birth certificate.
// Metrics not listed are filled from the default table.
func WithBirthValues(v sparkplug.Values) Option {
	return func(o *options) { o.initial = v.Clone() }
}

// WithDefaults replaces the per-datatype default table used to complete the birth.
func WithDefaults(d sparkplug.Defaults) Option {
	return func(o *options) { o.defaults = d }
}

// WithLogger sets the session logger.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver registers an observer notified after each successful publish.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithClock sets the clock used for message and snapshot times.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithID overrides the generated session identifier.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// New creates a Session in the Disconnected state.
//
// The birth values are resolved here so that a bad initial value or an
// incomplete default table is reported before any network activity.
//
// Returns:
//   - *Session: Session ready for Connect
//   - error: sparkplug.ErrUnknownMetric, ErrTypeMismatch or ErrIncompleteBirth
//     for invalid birth values; sparkplug.ErrInvalidTopic for bad topics
func New(transport Transport, codec *sparkplug.Codec, topics sparkplug.Topics, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("session: transport is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("session: codec is required")
	}
	if err := topics.Validate(); err != nil {
		return nil, err
	}

	o := options{
		defaults: sparkplug.DefaultValues(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}

	birth, err := codec.Schema().Complete(o.initial, o.defaults)
	if err != nil {
		return nil, fmt.Errorf("resolving birth values: %w", err)
	}

	return &Session{
		id:        o.id,
		transport: transport,
		codec:     codec,
		topics:    topics,
		creds:     o.creds,
		birth:     birth,
		logger:    o.logger,
		observers: o.observers,
		now:       o.now,
		state:     StateDisconnected,
		published: make(map[sparkplug.MessageType]int),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Topics returns the node topics used by the session.
func (s *Session) Topics() sparkplug.Topics {
	return s.topics
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Sequence returns the sequence number the next data payload will carry.
func (s *Session) Sequence() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codec.Sequence()
}

// DeathPayload returns a copy of the registered death certificate, or nil
// before Connect.
func (s *Session) DeathPayload() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.death == nil {
		return nil
	}
	out := make([]byte, len(s.death))
	copy(out, s.death)
	return out
}

// Connect registers the death certificate as last will, opens the transport
// and publishes the birth certificate.
//
// On success the session is Live. A transport failure returns a
// *TransportError and leaves the session Failed.
func (s *Session) Connect(ctx context.Context) error {
	if st := s.State(); st != StateDisconnected {
		return fmt.Errorf("%w: connect called in state %s", ErrInvalidState, st)
	}

	// The will is part of the MQTT CONNECT packet, so the death payload must
	// exist before the connection is opened.
	s.mu.Lock()
	s.death = s.codec.EncodeDeath()
	s.deathSeq = s.codec.Sequence()
	s.mu.Unlock()

	if s.creds != nil {
		s.transport.SetCredentials(s.creds.Username, s.creds.Password)
	}
	s.transport.SetLastWill(s.topics.NDeath(), s.death)

	s.logger.Info("connecting", "session_id", s.id, "will_topic", s.topics.NDeath())
	if err := s.transport.Connect(ctx); err != nil {
		s.setState(StateFailed)
		return &TransportError{Op: "connect", Err: err}
	}
	s.mu.Lock()
	s.state = StateAwaitingBirth
	s.connectedAt = s.now()
	payload, err := s.codec.EncodeBirth(s.birth)
	s.mu.Unlock()
	if err != nil {
		// Birth values were validated in New; reaching here is a programming error.
		s.abort()
		return fmt.Errorf("encoding birth: %w", err)
	}

	s.logger.Info("publishing birth", "topic", s.topics.NBirth(), "metrics", len(s.birth))
	if err := s.transport.Publish(ctx, s.topics.NBirth(), payload); err != nil {
		s.abort()
		return &TransportError{Op: "publish", Topic: s.topics.NBirth(), Err: err}
	}

	s.mu.Lock()
	s.state = StateLive
	s.current = s.birth.Clone()
	s.mu.Unlock()

	s.recordPublish(ctx, Message{
		Type:    sparkplug.NBirth,
		Topic:   s.topics.NBirth(),
		Seq:     0,
		Payload: payload,
		Values:  s.birth.Clone(),
	})
	return nil
}

// Publish encodes values as an NDATA payload and sends it.
//
// values may be any non-empty subset of the schema. Validation errors from
// the codec are returned unchanged and the session stays Live. Returns
// ErrNotConnected, without touching the transport, unless the session is Live.
// A transport failure closes the transport and leaves the session Failed.
func (s *Session) Publish(ctx context.Context, values sparkplug.Values) error {
	s.mu.Lock()
	if s.state != StateLive {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: publish called in state %s", ErrNotConnected, st)
	}
	norm, err := s.codec.Schema().Normalize(values)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	seq := s.codec.Sequence()
	payload, err := s.codec.EncodeData(norm)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	topic := s.topics.NData()
	if err := s.transport.Publish(ctx, topic, payload); err != nil {
		s.abort()
		return &TransportError{Op: "publish", Topic: topic, Err: err}
	}

	s.mu.Lock()
	for k, v := range norm {
		s.current[k] = v
	}
	s.mu.Unlock()

	s.logger.Debug("published data", "topic", topic, "seq", seq, "values", norm)
	s.recordPublish(ctx, Message{
		Type:    sparkplug.NData,
		Topic:   topic,
		Seq:     seq,
		Payload: payload,
		Values:  norm,
	})
	s.logger.Info("last published state", "values", s.CurrentValues())
	return nil
}

// Disconnect publishes the registered death certificate and closes the
// transport. The session is Dead afterwards.
//
// Returns ErrNotConnected unless the session is Live. If publishing the
// death fails the transport is still closed and the session is Failed.
func (s *Session) Disconnect(ctx context.Context) error {
	if st := s.State(); st != StateLive {
		return fmt.Errorf("%w: disconnect called in state %s", ErrNotConnected, st)
	}

	topic := s.topics.NDeath()
	death := s.DeathPayload()

	s.logger.Info("publishing death", "topic", topic, "seq", s.deathSeq)
	if err := s.transport.Publish(ctx, topic, death); err != nil {
		s.abort()
		return &TransportError{Op: "publish", Topic: topic, Err: err}
	}
	s.recordPublish(ctx, Message{
		Type:    sparkplug.NDeath,
		Topic:   topic,
		Seq:     s.deathSeq,
		Payload: death,
	})

	s.logger.Info("disconnecting", "session_id", s.id)
	if err := s.transport.Disconnect(); err != nil {
		s.setState(StateFailed)
		return &TransportError{Op: "disconnect", Err: err}
	}
	s.setState(StateDead)
	return nil
}

// CurrentValues returns the last published value of every metric.
// It is nil before the birth certificate is published.
func (s *Session) CurrentValues() sparkplug.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Snapshot is a point-in-time view of a session for status reporting.
type Snapshot struct {
	ID            string                        `json:"id"`
	State         string                        `json:"state"`
	Group         string                        `json:"group"`
	Node          string                        `json:"node"`
	Sequence      uint8                         `json:"sequence"`
	Values        sparkplug.Values              `json:"values,omitempty"`
	Published     map[sparkplug.MessageType]int `json:"published"`
	ConnectedAt   *time.Time                    `json:"connected_at,omitempty"`
	LastPublishAt *time.Time                    `json:"last_publish_at,omitempty"`
}

// Snapshot returns the current session status. Safe for concurrent use.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:        s.id,
		State:     s.state.String(),
		Group:     s.topics.Group,
		Node:      s.topics.Node,
		Sequence:  s.codec.Sequence(),
		Values:    s.current.Clone(),
		Published: make(map[sparkplug.MessageType]int, len(s.published)),
	}
	for k, v := range s.published {
		snap.Published[k] = v
	}
	if !s.connectedAt.IsZero() {
		t := s.connectedAt
		snap.ConnectedAt = &t
	}
	if !s.lastPublish.IsZero() {
		t := s.lastPublish
		snap.LastPublishAt = &t
	}
	return snap
}

// abort marks the session Failed and releases the transport after a failure
// mid-lifecycle.
func (s *Session) abort() {
	s.setState(StateFailed)
	if err := s.transport.Disconnect(); err != nil {
		s.logger.Warn("closing transport after failure", "error", err)
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// recordPublish updates counters and notifies observers.
func (s *Session) recordPublish(ctx context.Context, msg Message) {
	msg.SessionID = s.id
	msg.Time = s.now()

	s.mu.Lock()
	s.published[msg.Type]++
	s.lastPublish = msg.Time
	s.mu.Unlock()

	for _, obs := range s.observers {
		if err := obs.OnPublish(ctx, msg); err != nil {
			s.logger.Warn("publish observer failed",
				"type", msg.Type,
				"seq", msg.Seq,
				"error", err,
			)
		}
	}
}
