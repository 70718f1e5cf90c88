package coordinator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/com"
	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/media"
	"github.com/watchparty/watchparty/pkg/monitoring"
	"github.com/watchparty/watchparty/pkg/network/httpx"
	"github.com/watchparty/watchparty/pkg/room"
	"github.com/watchparty/watchparty/pkg/service"
	"github.com/watchparty/watchparty/pkg/storage"
)

type Coordinator struct {
	service.Group

	hub    *Hub
	server *httpx.Server
	log    *logger.Logger
}

// New makes the coordinator with its single room and all the services around it.
func New(conf config.CoordinatorConfig, log *logger.Logger) (*Coordinator, error) {
	cc := conf.Coordinator
	mirror := storage.New(context.Background(), cc.Media, log)
	lib, err := media.NewLibrary(cc.Media, mirror, log.Module("media"))
	if err != nil {
		return nil, err
	}

	opts := []room.Option{
		room.WithIce(iceServers(conf.Webrtc.IceServers)),
		room.WithChatLimit(cc.Chat.MaxLength),
		room.WithLogger(log.Module("room")),
	}
	if current, ok := lib.Current(); ok {
		opts = append(opts, room.WithMedia(&current))
	}
	r := room.New(opts...)
	lib.OnChange(r.ChangeMedia)
	lib.OnRemove(r.ClearMedia)

	hub := NewHub(r, com.NewConnector(com.WithOrigin(cc.Origin.UserWs)), log)
	h, err := NewHTTPServer(conf, log, func(mux *httpx.Mux) *httpx.Mux {
		return mux.
			HandleFunc("/ws", hub.handleUserConnection).
			Handle("/upload", upload(cc.Media, lib, r, log)).
			Handle(media.UrlPrefix, http.StripPrefix(media.UrlPrefix, noDotFiles(httpx.FileServer(lib.Dir()))))
	})
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	c := &Coordinator{hub: hub, server: h, log: log}
	c.Add(lib, h)
	if cc.Monitoring.IsEnabled() {
		mon, err := monitoring.New(cc.Monitoring, cc.Server.GetAddr(), log)
		if err != nil {
			return nil, err
		}
		c.Add(mon)
	}
	return c, nil
}

func (c *Coordinator) Room() *room.Room { return c.hub.room }

// Addr is the actual address of the HTTP server.
func (c *Coordinator) Addr() string { return c.server.Addr }

func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.hub.room.Close()
	return c.Group.Shutdown(ctx)
}

func iceServers(servers []config.IceServer) []api.IceServer {
	out := make([]api.IceServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, api.IceServer{Urls: s.Urls, Username: s.Username, Credential: s.Credential})
	}
	return out
}
