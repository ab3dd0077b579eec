package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sellerchat/internal/models"
	"sellerchat/internal/roomcodec"
	"sellerchat/internal/ws"
)

const (
	queueSize    = 64
	noticeBuffer = 100
	writeWait    = 10 * time.Second
)

// HistoryLoader fetches the backlog of a room.
type HistoryLoader interface {
	Load(ctx context.Context, roomID string) ([]models.ChatMessage, error)
}

// PreviewSink receives the body of every live message.
type PreviewSink interface {
	UpdatePreview(roomID, body string)
}

type Config struct {
	Identity models.Identity
	BaseURL  string
	Dialer   ws.Dialer
	History  HistoryLoader
	Previews PreviewSink // optional
	Logger   *slog.Logger
	Now      func() time.Time
}

// session owns the channel of one room selection.
type session struct {
	models.ConnectionState
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	conn   ws.Conn
}

// Manager owns the single live channel of the client. Commands from the UI
// and results of asynchronous work (dials, history fetches, inbound frames)
// are funneled through one queue and applied in order by Run, so state is
// never touched from two goroutines at once.
//
// Every async result carries the session it was started for; once the user
// has moved on to another room, results for the old session are dropped.
type Manager struct {
	me      models.Identity
	baseURL string
	dialer  ws.Dialer
	history HistoryLoader
	preview PreviewSink
	logger  *slog.Logger
	now     func() time.Time

	stream  *Stream
	queue   chan func()
	notices chan models.Notice
	stopped chan struct{}

	// owned by Run
	runCtx context.Context
	active *session
	gen    uint64
}

func NewManager(config Config) (*Manager, error) {
	if config.Identity.IsZero() {
		return nil, models.ErrNoIdentity
	}
	if config.Dialer == nil {
		return nil, errors.New("dialer is required")
	}
	if config.History == nil {
		return nil, errors.New("history loader is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		me:      config.Identity,
		baseURL: config.BaseURL,
		dialer:  config.Dialer,
		history: config.History,
		preview: config.Previews,
		logger:  logger,
		now:     now,
		stream:  NewStream(),
		queue:   make(chan func(), queueSize),
		notices: make(chan models.Notice, noticeBuffer),
		stopped: make(chan struct{}),
	}, nil
}

// Stream is the message buffer of the selected room.
func (m *Manager) Stream() *Stream {
	return m.stream
}

// Notices delivers user-visible events. Notices are dropped when the
// consumer falls behind.
func (m *Manager) Notices() <-chan models.Notice {
	return m.notices
}

func (m *Manager) Identity() models.Identity {
	return m.me
}

// Run processes the queue until ctx is done, then closes the live channel.
// It must be called exactly once.
func (m *Manager) Run(ctx context.Context) error {
	m.runCtx = ctx
	defer close(m.stopped)
	defer func() {
		if m.active != nil {
			m.release(m.active)
		}
	}()

	m.logger.Debug("connection manager started", "member_id", m.me.MemberID)
	for {
		select {
		case fn := <-m.queue:
			fn()
		case <-ctx.Done():
			m.logger.Debug("connection manager stopped")
			return nil
		}
	}
}

// Connect selects roomID. The previous room's channel, if any, is closed
// before the new one is dialed. Connect returns once the dial has started;
// progress is reported on Notices.
func (m *Manager) Connect(ctx context.Context, roomID string) error {
	if roomID == "" {
		return models.ErrNoActiveRoom
	}
	return m.do(ctx, func() { m.open(roomID) })
}

// Disconnect closes the channel of the selected room and clears the selection.
func (m *Manager) Disconnect(ctx context.Context) error {
	return m.do(ctx, func() {
		if m.active == nil {
			return
		}
		m.release(m.active)
		m.active = nil
		m.stream.Reset()
	})
}

func (m *Manager) State(ctx context.Context) (models.ConnectionState, error) {
	var state models.ConnectionState
	err := m.do(ctx, func() {
		if m.active != nil {
			state = m.active.ConnectionState
		}
	})
	return state, err
}

// Send transmits text into the selected room. Blank text is ignored. The
// message is not added to the stream; it shows up when the server echoes it.
func (m *Manager) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sendErr error
	if err := m.do(ctx, func() { sendErr = m.send(text) }); err != nil {
		return err
	}
	return sendErr
}

// do runs fn on the Run goroutine and waits for it.
func (m *Manager) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case m.queue <- task:
	case <-m.stopped:
		return models.ErrManagerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-m.stopped:
		return models.ErrManagerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn from a worker goroutine. It never runs on the Run goroutine.
func (m *Manager) post(fn func()) {
	select {
	case m.queue <- fn:
	case <-m.stopped:
	}
}

func (m *Manager) open(roomID string) {
	if m.active != nil {
		m.release(m.active)
	}
	m.stream.Reset()

	m.gen++
	ctx, cancel := context.WithCancel(m.runCtx)
	s := &session{
		ConnectionState: models.ConnectionState{RoomID: roomID, Phase: models.PhaseConnecting},
		gen:             m.gen,
		ctx:             ctx,
		cancel:          cancel,
	}
	m.active = s
	m.notifyPhase(s)

	address, err := ws.ChannelURL(m.baseURL, roomcodec.Encode(roomID))
	if err != nil {
		m.fail(s, fmt.Errorf("%w: %w", models.ErrChannelOpenFailed, err))
		return
	}

	m.logger.Debug("dialing channel", "room_id", roomID, "gen", s.gen)
	go func() {
		conn, err := m.dialer.Dial(ctx, address)
		m.post(func() { m.handleOpen(s, conn, err) })
	}()
}

func (m *Manager) handleOpen(s *session, conn ws.Conn, err error) {
	if m.active != s || s.Phase != models.PhaseConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		m.logger.Debug("discarding stale dial", "room_id", s.RoomID, "gen", s.gen)
		return
	}
	if err != nil {
		m.fail(s, fmt.Errorf("%w: %w", models.ErrChannelOpenFailed, err))
		return
	}

	s.conn = conn
	s.Phase = models.PhaseOpen
	m.notifyPhase(s)
	m.logger.Info("channel open", "room_id", s.RoomID, "gen", s.gen)

	go ws.ReadLoop(conn,
		func(raw []byte) { m.post(func() { m.handleFrame(s, raw) }) },
		func(err error) { m.post(func() { m.handleClosed(s, err) }) },
	)

	roomID := s.RoomID
	go func() {
		msgs, err := m.history.Load(s.ctx, roomID)
		m.post(func() { m.handleHistory(s, roomID, msgs, err) })
	}()
}

func (m *Manager) handleFrame(s *session, raw []byte) {
	if m.active != s || s.conn == nil {
		return
	}
	msg, err := models.ParseWireMessage(raw)
	if err != nil {
		m.logger.Warn("dropping inbound message", "room_id", s.RoomID, "error", err)
		return
	}

	m.stream.Append(msg)
	if m.preview != nil {
		roomID := msg.RoomID
		if roomID == "" {
			roomID = s.RoomID
		}
		m.preview.UpdatePreview(roomID, msg.Body)
	}
	m.notify(models.Notice{Type: models.NoticeMessage, RoomID: s.RoomID, Message: &msg})
}

func (m *Manager) handleClosed(s *session, err error) {
	if m.active != s || s.conn == nil {
		return
	}
	_ = s.conn.Close()
	s.conn = nil
	s.cancel()

	if ws.IsNormalClose(err) {
		m.logger.Info("channel closed by peer", "room_id", s.RoomID)
		s.Phase = models.PhaseClosed
		m.notifyPhase(s)
		return
	}
	m.logger.Warn("channel failed", "room_id", s.RoomID, "error", err)
	s.Phase = models.PhaseError
	m.notifyPhase(s)
	m.alert(s, fmt.Errorf("%w: %w", models.ErrChannelError, err))
}

func (m *Manager) handleHistory(s *session, roomID string, msgs []models.ChatMessage, err error) {
	if m.active != s || s.RoomID != roomID {
		m.logger.Debug("discarding stale history", "room_id", roomID)
		return
	}
	if err != nil {
		// A channel that already went down has reported its own state.
		if errors.Is(err, context.Canceled) || !s.Phase.Live() {
			m.logger.Debug("history abandoned", "room_id", roomID, "phase", s.Phase, "error", err)
			return
		}
		m.alert(s, err)
		return
	}
	m.stream.Replace(msgs)
	m.notify(models.Notice{Type: models.NoticeHistory, RoomID: roomID, Count: len(msgs)})
}

func (m *Manager) send(text string) error {
	s := m.active
	if s == nil {
		return models.ErrNoActiveRoom
	}
	if s.Phase != models.PhaseOpen || s.conn == nil {
		return fmt.Errorf("%w: %s is %s", models.ErrChannelNotOpen, s.RoomID, s.Phase)
	}

	msg := compose(m.me, s.RoomID, text, m.now())
	if d, ok := s.conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = d.SetWriteDeadline(time.Now().Add(writeWait))
	}
	if err := s.conn.WriteJSON(msg.Wire()); err != nil {
		m.logger.Warn("send failed", "room_id", s.RoomID, "error", err)
		_ = s.conn.Close()
		s.conn = nil
		s.cancel()
		s.Phase = models.PhaseError
		m.notifyPhase(s)
		return fmt.Errorf("%w: %w", models.ErrChannelError, err)
	}
	return nil
}

// release closes the channel of s exactly once and stops its workers.
func (m *Manager) release(s *session) {
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			m.logger.Debug("channel close", "room_id", s.RoomID, "error", err)
		}
		s.conn = nil
	}
	s.cancel()
	if s.Phase.Live() {
		s.Phase = models.PhaseClosed
		m.notifyPhase(s)
	}
}

func (m *Manager) fail(s *session, err error) {
	m.logger.Warn("channel open failed", "room_id", s.RoomID, "error", err)
	s.cancel()
	s.Phase = models.PhaseError
	m.notifyPhase(s)
	m.alert(s, err)
}

func (m *Manager) notifyPhase(s *session) {
	m.notify(models.Notice{Type: models.NoticePhase, RoomID: s.RoomID, Phase: s.Phase})
}

func (m *Manager) alert(s *session, err error) {
	m.notify(models.Notice{Type: models.NoticeAlert, RoomID: s.RoomID, Phase: s.Phase, Err: err})
}

func (m *Manager) notify(n models.Notice) {
	select {
	case m.notices <- n:
	default:
		m.logger.Warn("notice dropped", "type", n.Type, "room_id", n.RoomID)
	}
}
