package config

import "github.com/spf13/pflag"

type ParticipantConfig struct {
	Participant Participant
	Webrtc      Webrtc
}

type Participant struct {
	Debug bool
	// the coordinator websocket endpoint
	Coordinator string `default:"ws://localhost:3000/ws"`
	// declare itself a host right after the connection
	Host bool
	// an IVF (VP8) file streamed to viewers in the host mode
	Source string
	// playback difference in seconds tolerated before a re-seek
	DriftThreshold float64 `default:"0.5"`
}

func NewParticipantConfig(path string) (conf ParticipantConfig, err error) {
	if _, err = LoadConfig(&conf, path); err != nil {
		return
	}
	err = conf.Webrtc.Validate()
	return
}

func (c *ParticipantConfig) AddFlags(fs *pflag.FlagSet) *ParticipantConfig {
	fs.BoolVar(&c.Participant.Debug, "debug", c.Participant.Debug, "Verbose logs")
	fs.StringVarP(&c.Participant.Coordinator, "coordinator", "a", c.Participant.Coordinator, "Coordinator websocket URL")
	fs.BoolVar(&c.Participant.Host, "host", c.Participant.Host, "Become the host and stream the source")
	fs.StringVarP(&c.Participant.Source, "source", "s", c.Participant.Source, "IVF file to stream as the host")
	fs.Float64Var(&c.Participant.DriftThreshold, "drift", c.Participant.DriftThreshold, "Drift threshold in seconds")
	fs.String(confFlag, "", "Set custom configuration file path")
	return c
}

func (c *ParticipantConfig) ParseFlags() {
	c.AddFlags(pflag.CommandLine)
	pflag.Parse()
}
