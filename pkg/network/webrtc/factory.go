package webrtc

import (
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network/socket"
)

type ApiFactory struct {
	api *webrtc.API

	mu   sync.Mutex
	conf webrtc.Configuration
}

type ModApiFun func(m *webrtc.MediaEngine, i *interceptor.Registry, s *webrtc.SettingEngine)

func NewApiFactory(conf config.Webrtc, log *logger.Logger, mod ModApiFun) (f *ApiFactory, err error) {
	m := &webrtc.MediaEngine{}
	if err = m.RegisterDefaultCodecs(); err != nil {
		return
	}
	i := &interceptor.Registry{}
	if !conf.DisableDefaultInterceptors {
		if err = webrtc.RegisterDefaultInterceptors(m, i); err != nil {
			return
		}
	}
	customLogger := logger.NewPionLogger(log, conf.LogLevel)
	s := webrtc.SettingEngine{LoggerFactory: customLogger}
	if conf.HasPortRange() {
		if err = s.SetEphemeralUDPPortRange(conf.IcePorts.Min, conf.IcePorts.Max); err != nil {
			return
		}
	}
	if conf.HasSinglePort() {
		udp, err := socket.NewUDPPortRoll(conf.SinglePort)
		if err != nil {
			return nil, err
		}
		s.SetICEUDPMux(webrtc.NewICEUDPMux(customLogger, udp))
		log.Info().Msgf("The single port mode is active for %s", udp.LocalAddr())
	}
	if conf.HasIceIpMap() {
		s.SetNAT1To1IPs([]string{conf.IceIpMap}, webrtc.ICECandidateTypeHost)
		log.Info().Msgf("The NAT mapping is active for %v", conf.IceIpMap)
	}

	if mod != nil {
		mod(m, i, &s)
	}

	ice := make([]api.IceServer, len(conf.IceServers))
	for k, server := range conf.IceServers {
		ice[k] = api.IceServer{Urls: server.Urls, Username: server.Username, Credential: server.Credential}
	}

	return &ApiFactory{
		api:  webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		conf: webrtc.Configuration{ICEServers: IceServers(ice)},
	}, nil
}

// UseIce replaces the ICE servers for new peers,
// a participant takes them from the coordinator.
func (a *ApiFactory) UseIce(servers []api.IceServer) {
	if len(servers) == 0 {
		return
	}
	a.mu.Lock()
	a.conf.ICEServers = IceServers(servers)
	a.mu.Unlock()
}

func (a *ApiFactory) NewPeer() (*webrtc.PeerConnection, error) {
	a.mu.Lock()
	conf := a.conf
	a.mu.Unlock()
	return a.api.NewPeerConnection(conf)
}

func IceServers(servers []api.IceServer) []webrtc.ICEServer {
	res := make([]webrtc.ICEServer, 0, len(servers))
	for _, server := range servers {
		res = append(res, webrtc.ICEServer{
			URLs:       []string{server.Urls},
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return res
}
