package coordinator

import (
	"github.com/watchparty/watchparty/pkg/com"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/room"
)

// User is a websocket participant of the room.
type User struct {
	*com.SocketClient

	Name string
	room *room.Room
	log  *logger.Logger
}

func NewUser(conn *com.SocketClient, r *room.Room) *User {
	return &User{SocketClient: conn, room: r, log: conn.Logger()}
}

// Bind puts the user into the room.
func (u *User) Bind() { u.Name = u.room.Join(u) }

// Unbind removes the user from the room, the host role included.
func (u *User) Unbind() {
	u.room.Leave(u)
	u.log.Info().Str("name", u.Name).Msg("Disconnect from coordinator")
}
