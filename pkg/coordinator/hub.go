package coordinator

import (
	"net/http"

	"github.com/watchparty/watchparty/pkg/com"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/room"
)

type Hub struct {
	room *room.Room
	conn *com.Connector
	log  *logger.Logger
}

func NewHub(r *room.Room, conn *com.Connector, log *logger.Logger) *Hub {
	return &Hub{room: r, conn: conn, log: log}
}

// handleUserConnection serves one participant for the whole time
// of its websocket connection.
func (h *Hub) handleUserConnection(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Str("addr", r.RemoteAddr).Msg("Handshake")

	conn, err := h.conn.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("couldn't init user connection")
		return
	}
	usr := NewUser(conn, h.room)
	usr.HandleRequests()
	usr.Bind()
	participants.Inc()
	defer participants.Dec()

	<-usr.Listen()
	usr.Unbind()
}
