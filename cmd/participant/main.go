package main

import (
	"bufio"
	"context"
	"errors"
	goflag "flag"
	"net/url"
	stdos "os"

	pion "github.com/pion/webrtc/v4"
	flag "github.com/spf13/pflag"
	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/client"
	"github.com/watchparty/watchparty/pkg/com"
	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network"
	"github.com/watchparty/watchparty/pkg/network/webrtc"
	"github.com/watchparty/watchparty/pkg/os"
	"github.com/watchparty/watchparty/pkg/playback"
)

var Version = "?"

func main() {
	conf, err := config.NewParticipantConfig(config.Path(stdos.Args[1:]))
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config load")
	}
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Participant.Debug, "p", false)
	log.Info().Msgf("version %s", Version)

	address, err := url.Parse(conf.Participant.Coordinator)
	if err != nil {
		log.Fatal().Err(err).Msg("coordinator address")
	}
	factory, err := webrtc.NewApiFactory(conf.Webrtc, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-os.ExpectTermination()
		cancel()
	}()

	var opts []client.Option
	if conf.Participant.Source != "" {
		src, err := webrtc.NewFileSource(conf.Participant.Source, log)
		if err != nil {
			log.Fatal().Err(err).Msg("source")
		}
		go func() {
			if err := src.Run(ctx); err != nil {
				log.Error().Err(err).Msg("source")
			}
		}()
		opts = append(opts, client.WithSource(src))
	}

	player := playback.NewSimPlayer()
	con := &console{player: player, out: stdos.Stdout}
	opts = append(opts,
		client.WithLogger(log),
		client.WithDrift(conf.Participant.DriftThreshold),
		client.OnChat(con.chat),
		client.OnTrack(func(track *pion.TrackRemote) {
			log.Info().Str("codec", track.Codec().MimeType).Msg("Watching the host stream")
			go func() {
				for {
					if _, _, err := track.ReadRTP(); err != nil {
						return
					}
				}
			}()
		}),
	)

	go func() {
		in := bufio.NewScanner(stdos.Stdin)
		for in.Scan() {
			if err := con.exec(in.Text()); err != nil {
				if errors.Is(err, errQuit) {
					cancel()
					return
				}
				log.Warn().Err(err).Send()
			}
		}
	}()

	retry := network.NewRetry()
	for ctx.Err() == nil {
		conn, err := com.NewConnector().NewClient(*address, log)
		if err != nil {
			log.Warn().Err(err).Msgf("no connection, retry in %v", retry.Time())
			retry.Fail(ctx)
			continue
		}
		retry.Success()

		cl := client.New(conn, player, factory, opts...)
		con.attach(cl)
		conn.OnPacket(func(in api.In) error {
			err := cl.Handle(in)
			if in.T == api.Welcome && conf.Participant.Host {
				err = errors.Join(err, cl.BecomeHost())
			}
			return err
		})

		select {
		case <-conn.Listen():
			log.Warn().Msg("Lost the coordinator")
		case <-ctx.Done():
			conn.Disconnect()
		}
		con.attach(nil)
		cl.Close()
	}
	log.Info().Msg("Bye")
}
