package config

import (
	"time"

	"github.com/spf13/pflag"
)

type CoordinatorConfig struct {
	Coordinator Coordinator
	Webrtc      Webrtc
}

type Coordinator struct {
	Debug      bool
	Chat       Chat
	Media      Media
	Monitoring Monitoring
	Origin     struct {
		UserWs string
	}
	Server Server
	// a directory with the browser app
	Web string `default:"./public"`
}

type Chat struct {
	// longer texts are cut
	MaxLength int `default:"500"`
}

type Media struct {
	// where uploads are kept and served from /uploads
	Dir string `default:"uploads"`
	// base name of the shared video, the extension comes from the upload
	Name string `default:"current_movie"`
	// multipart form field with the file
	Field string `default:"videoFile"`
	// max upload size in MiB
	MaxSize int64 `default:"4096"`
	// rescan the dir when files are dropped there by hand
	WatchMode bool
	Import    struct {
		Enabled bool
		Timeout time.Duration `default:"10m"`
	}
	// copies of uploads in a cloud bucket, off when empty
	Mirror struct {
		// Google Cloud Storage bucket and an optional service account file
		Bucket      string
		Credentials string
		// any S3-compatible storage
		S3 struct {
			Endpoint string
			Bucket   string
			Key      string
			Secret   string
		}
		// Oracle Object Storage pre-authenticated request URL
		Oracle string
	}
}

func (m Media) MaxBytes() int64 { return m.MaxSize << 20 }

func NewCoordinatorConfig(path string) (conf CoordinatorConfig, paths []string, err error) {
	if paths, err = LoadConfig(&conf, path); err != nil {
		return
	}
	err = conf.Webrtc.Validate()
	return
}

func (c *CoordinatorConfig) AddFlags(fs *pflag.FlagSet) *CoordinatorConfig {
	c.Coordinator.Server.AddFlags(fs)
	fs.BoolVar(&c.Coordinator.Debug, "debug", c.Coordinator.Debug, "Verbose logs")
	fs.IntVar(&c.Coordinator.Monitoring.Port, "monitoring.port", c.Coordinator.Monitoring.Port, "Monitoring server port")
	fs.StringVar(&c.Coordinator.Media.Dir, "media.dir", c.Coordinator.Media.Dir, "Uploads directory")
	fs.StringVar(&c.Coordinator.Web, "web", c.Coordinator.Web, "Static web app directory")
	fs.String(confFlag, "", "Set custom configuration file path")
	return c
}

func (c *CoordinatorConfig) ParseFlags() {
	c.AddFlags(pflag.CommandLine)
	pflag.Parse()
}
