package main

import (
	"context"
	goflag "flag"
	stdos "os"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/coordinator"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network/httpx"
	"github.com/watchparty/watchparty/pkg/os"
)

var Version = "?"

func main() {
	conf, paths, err := config.NewCoordinatorConfig(config.Path(stdos.Args[1:]))
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config load")
	}
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Coordinator.Debug, "c", false)

	log.Info().Msgf("version %s", Version)
	log.Info().Msgf("config paths: %v", paths)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}
	c, err := coordinator.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init fail")
	}
	c.Start()

	_, port := httpx.Address(c.Addr()).SplitHostPort()
	log.Info().Msgf("Watch party is on http://%v", c.Addr())
	for _, ip := range httpx.LocalIPv4() {
		if port > 0 {
			ip = httpx.MergeAddresses(ip, port)
		}
		log.Info().Msgf("  network: http://%v", ip)
	}

	<-os.ExpectTermination()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
