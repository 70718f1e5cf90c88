package config

import "github.com/spf13/pflag"

type Monitoring struct {
	Port             int    `default:"6601"`
	URLPrefix        string `default:"/party"`
	MetricEnabled    bool   `json:"metric_enabled"`
	ProfilingEnabled bool   `json:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

type Server struct {
	Address  string `default:"0.0.0.0:3000"`
	Https    bool
	PortRoll bool
	Tls      struct {
		Address   string `default:":443"`
		Domain    string
		HttpsKey  string
		HttpsCert string
	}
}

func (s *Server) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.Address, "address", s.Address, "HTTP server address (host:port)")
	fs.StringVar(&s.Tls.Address, "httpsAddress", s.Tls.Address, "HTTPS server address (host:port)")
	fs.StringVar(&s.Tls.HttpsKey, "httpsKey", s.Tls.HttpsKey, "HTTPS key")
	fs.StringVar(&s.Tls.HttpsCert, "httpsCert", s.Tls.HttpsCert, "HTTPS chain")
	fs.BoolVar(&s.PortRoll, "portRoll", s.PortRoll, "Try next ports when the port is busy")
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}
