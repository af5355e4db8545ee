// Package client implements the player-side session: it joins a server,
// streams the local head pose up, and mirrors everyone else's poses into
// a remote-player table for a rendering collaborator to consume.
package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skyezerfox/headsync/constants"
	"github.com/skyezerfox/headsync/models"
	"github.com/skyezerfox/headsync/protocol"
)

// ErrJoinTimeout reports that the server never answered the Join in time.
var ErrJoinTimeout = errors.New("client: join timed out")

const writeTimeout = 5 * time.Second

// Options configures a session. Zero values select defaults.
type Options struct {
	// Addr is the server's TCP address. Ignored when Conn is set.
	Addr string
	// Name is the requested player name; the server substitutes a random
	// one when empty.
	Name string
	// Conn supplies a pre-established transport (tests, websocket).
	Conn net.Conn

	// JoinTimeout bounds the whole dial + handshake.
	JoinTimeout time.Duration
	// SendHz caps outgoing pose updates. 0 adopts the server's broadcast
	// rate from the JoinAck.
	SendHz int
	// Keepalive forces a pose resend after this long without movement so
	// an idle client is not kicked for inactivity.
	Keepalive time.Duration
	// StaleAfter evicts remote players unseen for this long.
	StaleAfter time.Duration
	// MaxFrameBytes bounds incoming frames.
	MaxFrameBytes int

	// OnRemotePlayers fires whenever the remote-player table changes.
	// Called from the session's goroutines; keep it cheap.
	OnRemotePlayers func([]models.PlayerState)
}

func (o Options) withDefaults() Options {
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 5 * time.Second
	}
	if o.Keepalive <= 0 {
		o.Keepalive = 10 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 5 * time.Second
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = protocol.DefaultMaxFrameBytes
	}
	return o
}

// RemotePlayer is one entry of the client's view of everyone else.
type RemotePlayer struct {
	ID       uuid.UUID
	Pose     models.Pose
	LastSeen time.Time
}

// Session is a live connection to the server. All methods are safe for
// concurrent use.
type Session struct {
	opts Options
	conn net.Conn
	fr   *protocol.FrameReader

	id     uuid.UUID
	tickHz int32
	state  int32 // constants.Session*, atomic

	wmu sync.Mutex // serializes writes to conn

	mu      sync.Mutex
	local   models.Pose
	dirty   bool
	remotes map[uuid.UUID]RemotePlayer

	done     chan struct{}
	failOnce sync.Once
	errMu    sync.Mutex
	err      error
}

// Dial connects, joins, and starts the session's pump goroutines. On any
// failure the connection is closed and no session is returned; a
// reconnect is a fresh Dial and yields a new player id.
func Dial(opts Options) (*Session, error) {
	opts = opts.withDefaults()
	s := &Session{
		opts:    opts,
		local:   models.IdentityPose(),
		remotes: make(map[uuid.UUID]RemotePlayer),
		state:   constants.SessionConnecting,
		done:    make(chan struct{}),
	}

	conn := opts.Conn
	if conn == nil {
		c, err := net.DialTimeout("tcp", opts.Addr, opts.JoinTimeout)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", opts.Addr, err)
		}
		conn = c
	}
	s.conn = conn
	s.fr = protocol.NewFrameReader(conn, opts.MaxFrameBytes)

	if err := s.join(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	atomic.StoreInt32(&s.state, constants.SessionActive)
	go s.readLoop()
	go s.sendLoop()
	return s, nil
}

func (s *Session) join() error {
	deadline := time.Now().Add(s.opts.JoinTimeout)
	_ = s.conn.SetDeadline(deadline)

	join := protocol.Join{Version: constants.ProtocolVersion, Name: s.opts.Name}
	if _, err := s.conn.Write(protocol.Encode(join)); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	msg, err := s.fr.Read()
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return ErrJoinTimeout
		}
		return fmt.Errorf("await join ack: %w", err)
	}
	ack, ok := msg.(protocol.JoinAck)
	if !ok {
		return fmt.Errorf("expected join ack, got tag %d", msg.Tag())
	}

	s.id = ack.PlayerID
	s.tickHz = ack.TickHz
	atomic.StoreInt32(&s.state, constants.SessionJoined)
	_ = s.conn.SetDeadline(time.Time{})

	log.Info().
		Str("id", s.id.String()).
		Int32("tick_hz", s.tickHz).
		Msg("Joined server")
	return nil
}

// ID returns the server-assigned player id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current session state (constants.Session*).
func (s *Session) State() int {
	return int(atomic.LoadInt32(&s.state))
}

// Done is closed once the session is disconnected for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session disconnected; nil after a clean Close.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// SetPose records the local player's latest transform. The input
// collaborator calls this as often as it likes; actual sends are
// throttled by the send loop. Non-finite poses are dropped.
func (s *Session) SetPose(p models.Pose) {
	if !p.Finite() {
		return
	}
	s.mu.Lock()
	s.local = p
	s.dirty = true
	s.mu.Unlock()
}

// Remotes returns a copy of the current remote-player table for
// collaborators that poll instead of subscribing.
func (s *Session) Remotes() []models.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() []models.PlayerState {
	out := make([]models.PlayerState, 0, len(s.remotes))
	for _, rp := range s.remotes {
		out = append(out, models.PlayerState{ID: rp.ID, Pose: rp.Pose})
	}
	return out
}

// Close announces a clean leave and tears the session down. Err is nil
// afterwards.
func (s *Session) Close() error {
	s.write(protocol.Encode(protocol.Leave{})) // best effort
	s.fail(nil)
	return nil
}

func (s *Session) write(frame []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := s.conn.Write(frame)
	return err
}

// fail moves the session to Disconnected exactly once and wakes everyone
// waiting on Done.
func (s *Session) fail(err error) {
	s.failOnce.Do(func() {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
		atomic.StoreInt32(&s.state, constants.SessionDisconnected)
		close(s.done)
		_ = s.conn.Close()
		if err != nil {
			log.Info().Err(err).Str("id", s.id.String()).Msg("Session disconnected")
		}
	})
}
