package httpserver

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/spaceandstories/community-feed/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsCommand is a client-to-server message on the feed socket.
type wsCommand struct {
	Type     string `json:"type"`
	Token    string `json:"token,omitempty"`
	Language string `json:"language,omitempty"`
}

// wsEvent is a server-to-client message: either a full feed frame or a
// command error.
type wsEvent struct {
	Type  string        `json:"type"`
	Frame *domain.Frame `json:"frame,omitempty"`
	Error string        `json:"error,omitempty"`
}

// handleFeedSocket runs one feed session per connection. The session's event
// loop serializes everything: server-pushed snapshot replacements and the
// client's filter/load-more/auth commands interleave without races, and
// every recomputation is pushed back as a complete frame.
func (s *Server) handleFeedSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := domain.NewSession(s.source, s.logger)
	go func() {
		if err := session.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("feed session exited", "error", err)
		}
	}()

	// gorilla allows one concurrent writer, so frames and command errors
	// merge into a single write loop.
	errs := make(chan string, 8)
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-session.Frames():
				if conn.WriteJSON(wsEvent{Type: "feed", Frame: &frame}) != nil {
					cancel()
					return
				}
			case msg := <-errs:
				if conn.WriteJSON(wsEvent{Type: "error", Error: msg}) != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			cancel()
			break
		}
		s.dispatchFeedCommand(ctx, session, cmd, errs)
	}
	<-writeDone
}

func (s *Server) dispatchFeedCommand(ctx context.Context, session *domain.Session, cmd wsCommand, errs chan<- string) {
	switch cmd.Type {
	case "auth":
		userID, err := s.tokens.Verify(cmd.Token)
		if err != nil {
			sendErr(errs, "invalid session token")
			return
		}
		user, err := s.provider.Lookup(ctx, userID)
		if err != nil {
			sendErr(errs, "unknown account")
			return
		}
		session.SetIdentity(ctx, domain.Author{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
		})

	case "signout":
		session.SetIdentity(ctx, domain.Author{})

	case "filter":
		filter, err := domain.ParseFilter(cmd.Language)
		if err != nil {
			sendErr(errs, err.Error())
			return
		}
		session.SetFilter(ctx, filter)

	case "loadMore":
		session.LoadMore(ctx)

	default:
		sendErr(errs, "unknown command: "+cmd.Type)
	}
}

func sendErr(errs chan<- string, msg string) {
	select {
	case errs <- msg:
	default:
	}
}
