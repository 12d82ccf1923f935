// echoline is a line echo server built on the pipefix pipeline:
// [line-framer, string-codec, echo] served over TCP.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/pipefix/pipefix/codec"
	"github.com/pipefix/pipefix/pipeline"
	"github.com/pipefix/pipefix/transport"
)

type config struct {
	Addr     string `env:"ECHOLINE_ADDR" envDefault:":7777"`
	LogLevel string `env:"ECHOLINE_LOG_LEVEL" envDefault:"info"`
}

func main() {
	godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "bad config:", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Addr).Msg("can't listen")
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("echoline listening")

	factory := func() *pipeline.Pipeline[[]byte, string] {
		b := pipeline.New[[]byte, string]()
		b.Options().Logger = &log
		return pipeline.Build(
			pipeline.AddBack(
				pipeline.AddBack(
					pipeline.AddBack(b, codec.NewLineFramer()),
					codec.NewStringCodec()),
				newEcho()))
	}

	err = transport.ListenTCP(ln, factory, transport.ServerOptions{Logger: &log})
	log.Fatal().Err(err).Msg("listener done")
}

// echo queues every inbound line for the outbound drain.
type echo struct {
	wq []string
}

func newEcho() pipeline.Handler[string, string, string, string] {
	return &echo{}
}

func (e *echo) Name() string { return "echo" }

func (e *echo) TransportActive(ctx *pipeline.Context[string, string, string])   {}
func (e *echo) TransportInactive(ctx *pipeline.Context[string, string, string]) {}

func (e *echo) HandleRead(ctx *pipeline.Context[string, string, string], msg string) {
	e.wq = append(e.wq, msg)
}

func (e *echo) ReadException(ctx *pipeline.Context[string, string, string], err error) {}
func (e *echo) ReadEOF(ctx *pipeline.Context[string, string, string])                  {}

func (e *echo) HandleTimeout(ctx *pipeline.Context[string, string, string], now time.Time) {}
func (e *echo) PollTimeout(ctx *pipeline.Context[string, string, string], eto *time.Time)  {}

func (e *echo) Write(ctx *pipeline.Context[string, string, string], msg string) {
	e.wq = append(e.wq, msg)
}

func (e *echo) PollWrite(ctx *pipeline.Context[string, string, string]) (string, bool) {
	if len(e.wq) == 0 {
		return "", false
	}
	msg := e.wq[0]
	e.wq = e.wq[1:]
	return msg, true
}

func (e *echo) Close(ctx *pipeline.Context[string, string, string]) {}
