package monitoring

import (
	"context"
	"fmt"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network/httpx"
)

type Monitoring struct {
	conf   config.Monitoring
	server *httpx.Server
	log    *logger.Logger
}

// New creates new monitoring service.
func New(conf config.Monitoring, baseAddr string, log *logger.Logger) (*Monitoring, error) {
	serv, err := httpx.NewServer(
		httpx.MergeAddresses(baseAddr, conf.Port),
		func(serv *httpx.Server) httpx.Handler {
			h := httpx.NewServeMux(conf.URLPrefix)
			if conf.ProfilingEnabled {
				prefix := "/debug/pprof"
				log.Info().Msgf("Profiling is enabled at %v", serv.Addr+conf.URLPrefix+prefix)
				h.HandleFunc(prefix+"/", pprof.Index).
					HandleFunc(prefix+"/cmdline", pprof.Cmdline).
					HandleFunc(prefix+"/profile", pprof.Profile).
					HandleFunc(prefix+"/symbol", pprof.Symbol).
					HandleFunc(prefix+"/trace", pprof.Trace).
					// pprof handler for custom pprof path needs to be explicitly specified
					Handle(prefix+"/allocs", pprof.Handler("allocs")).
					Handle(prefix+"/block", pprof.Handler("block")).
					Handle(prefix+"/goroutine", pprof.Handler("goroutine")).
					Handle(prefix+"/heap", pprof.Handler("heap")).
					Handle(prefix+"/mutex", pprof.Handler("mutex")).
					Handle(prefix+"/threadcreate", pprof.Handler("threadcreate"))
			}
			if conf.MetricEnabled {
				log.Info().Msgf("Prometheus metric is enabled at %v", serv.Addr+conf.URLPrefix+"/metrics")
				h.Handle("/metrics", promhttp.Handler())
			}
			return h
		},
		httpx.WithPortRoll(true),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("monitoring server: %w", err)
	}
	return &Monitoring{conf: conf, server: serv, log: log}, nil
}

func (m *Monitoring) Run() {
	m.log.Info().Msgf("Starting monitoring server at %v", m.server.Addr)
	m.server.Run()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	m.log.Info().Msg("Shutting down monitoring server")
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
