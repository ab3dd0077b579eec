package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sellerchat/internal/chat"
	"sellerchat/internal/directory"
	"sellerchat/internal/identity"
	"sellerchat/internal/models"
	"sellerchat/internal/view"
)

const helpText = `commands:
  /rooms            list conversations
  /refresh          reload conversations from the server
  /search <query>   filter conversations by partner name
  /join <n|roomId>  open a conversation
  /leave            close the current conversation
  /quit             exit
anything else is sent to the open conversation
live messages are shown once the conversation's history has loaded`

type SessionConfig struct {
	Identity   models.Identity
	Rooms      *directory.Directory
	Manager    *chat.Manager
	Renderer   *view.Renderer
	TimeLayout string
	Out        io.Writer
	Logger     *slog.Logger
}

// Session is the line-oriented chat front end.
type Session struct {
	me       models.Identity
	rooms    *directory.Directory
	manager  *chat.Manager
	composer *chat.Composer
	renderer *view.Renderer
	layout   string
	logger   *slog.Logger

	mu     sync.Mutex
	out    io.Writer
	listed []models.ChatRoom

	// seeded is owned by the watch goroutine. Live messages are held back
	// until the room's history has been shown, since the history replaces
	// whatever arrived before it.
	seeded bool
}

func NewSession(config SessionConfig) *Session {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		me:       config.Identity,
		rooms:    config.Rooms,
		manager:  config.Manager,
		composer: chat.NewComposer(config.Manager),
		renderer: config.Renderer,
		layout:   config.TimeLayout,
		logger:   logger,
		out:      config.Out,
	}
}

// Run reads commands from in until /quit, EOF or ctx is done, rendering
// manager notices as they arrive.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	lines := make(chan string)

	g.Go(func() error {
		s.watch(gCtx)
		return nil
	})

	// The scanner cannot be interrupted; it is left behind when ctx ends first.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gCtx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.Warn("input read failed", "error", err)
		}
	}()

	g.Go(func() error {
		defer cancel()
		s.showRooms(gCtx, false)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if quit := s.Handle(gCtx, line); quit {
					return nil
				}
			case <-gCtx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

// Handle executes one input line. It reports whether the user asked to quit.
func (s *Session) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		s.send(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		if err := s.manager.Disconnect(ctx); err != nil && !errors.Is(err, models.ErrManagerStopped) {
			s.logger.Debug("disconnect on quit", "error", err)
		}
		return true
	case "/rooms":
		s.showRooms(ctx, false)
	case "/refresh":
		s.showRooms(ctx, true)
	case "/search":
		s.list(s.rooms.Search(arg))
	case "/join":
		s.join(ctx, arg)
	case "/leave":
		if err := s.manager.Disconnect(ctx); err != nil {
			s.alert(err)
		}
	case "/help":
		s.println(helpText)
	default:
		s.println(fmt.Sprintf("unknown command %s; try /help", cmd))
	}
	return false
}

func (s *Session) send(ctx context.Context, text string) {
	s.composer.SetDraft(text)
	if err := s.composer.Submit(ctx); err != nil {
		s.alert(err)
	}
}

func (s *Session) showRooms(ctx context.Context, refresh bool) {
	load := s.rooms.Load
	if refresh {
		load = s.rooms.Refresh
	}
	rooms, err := load(ctx, s.me)
	if err != nil {
		s.alert(err)
	}
	s.list(rooms)
}

func (s *Session) list(rooms []models.ChatRoom) {
	s.mu.Lock()
	s.listed = rooms
	s.mu.Unlock()
	s.println(s.renderer.Rooms(rooms))
}

func (s *Session) join(ctx context.Context, arg string) {
	if arg == "" {
		s.println("usage: /join <n|roomId>")
		return
	}

	roomID := arg
	if n, err := strconv.Atoi(arg); err == nil {
		s.mu.Lock()
		listed := s.listed
		s.mu.Unlock()
		if n < 1 || n > len(listed) {
			s.println(fmt.Sprintf("no conversation #%d; see /rooms", n))
			return
		}
		roomID = listed[n-1].ID
	}

	title, ok := identity.ResolvePartnerName(roomID, s.me.Name)
	if !ok {
		s.println(fmt.Sprintf("%s is not one of your conversations", roomID))
		return
	}
	if err := s.manager.Connect(ctx, roomID); err != nil {
		s.alert(err)
		return
	}
	s.println(s.renderer.Header(title, models.ConnectionState{RoomID: roomID, Phase: models.PhaseConnecting}))
}

func (s *Session) watch(ctx context.Context) {
	for {
		select {
		case n := <-s.manager.Notices():
			s.render(n)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) render(n models.Notice) {
	switch n.Type {
	case models.NoticeMessage:
		if n.Message != nil && s.seeded {
			s.println(s.renderer.Message(chat.Classify(*n.Message, s.me, s.layout)))
		}
	case models.NoticeHistory:
		s.seeded = true
		s.println(s.renderer.Notice(n))
		if n.Count > 0 {
			s.println(s.renderer.Messages(s.manager.Stream().Display(s.me, s.layout)))
		}
	case models.NoticePhase:
		// CONNECTING is already announced by the room header
		if n.Phase == models.PhaseConnecting {
			s.seeded = false
			return
		}
		s.println(s.renderer.Notice(n))
	case models.NoticeAlert:
		s.println(s.renderer.Notice(n))
		if !s.seeded && errors.Is(n.Err, models.ErrHistoryUnavailable) {
			// no history is coming; show what arrived live so far
			s.seeded = true
			if s.manager.Stream().Len() > 0 {
				s.println(s.renderer.Messages(s.manager.Stream().Display(s.me, s.layout)))
			}
		}
	default:
		s.println(s.renderer.Notice(n))
	}
}

func (s *Session) alert(err error) {
	s.println(s.renderer.Alert(err))
}

func (s *Session) println(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.out, text); err != nil {
		s.logger.Debug("output write failed", "error", err)
	}
}
