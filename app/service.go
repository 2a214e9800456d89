// Package app wires the world runtime and the dispatcher into runnable
// processes: channels, tick loops, journals, metrics and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apidispatch "github.com/kilianp07/robodelivery/api/dispatch"
	"github.com/kilianp07/robodelivery/api/robots"
	"github.com/kilianp07/robodelivery/config"
	"github.com/kilianp07/robodelivery/core/dispatch"
	"github.com/kilianp07/robodelivery/core/dispatch/logging"
	"github.com/kilianp07/robodelivery/core/fleetstatus"
	coremetrics "github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/core/transport"
	"github.com/kilianp07/robodelivery/core/world"
	"github.com/kilianp07/robodelivery/infra/journal"
	"github.com/kilianp07/robodelivery/infra/logger"
	"github.com/kilianp07/robodelivery/infra/metrics"
	"github.com/kilianp07/robodelivery/infra/transport/mqtt"
	"github.com/kilianp07/robodelivery/infra/transport/tcp"
	"github.com/kilianp07/robodelivery/internal/eventbus"
)

// Sides a process can run.
const (
	SideWorld      = "world"
	SideDispatcher = "dispatcher"
	// SideSimulate runs both sides in one process over an in-memory pipe.
	SideSimulate = "simulate"
)

// Service is one process: the world, the dispatcher or both.
type Service struct {
	cfg  *config.Config
	side string
	log  logger.Logger
	sink coremetrics.MetricsSink

	World      *WorldService
	Dispatcher *DispatcherService
	Status     *fleetstatus.MemoryStore
	Logs       logging.LogStore

	bus      *eventbus.TypedBus[dispatch.Notice]
	channel  transport.Channel
	channels []transport.Channel
	journals []*journal.Writer
	step     Steppers
	ticks    int
}

// Option customises a Service.
type Option func(*Service)

// WithSink replaces the sinks described by the metrics configuration.
func WithSink(s coremetrics.MetricsSink) Option { return func(svc *Service) { svc.sink = s } }

// WithChannel replaces the configured transport of a single sided process.
func WithChannel(ch transport.Channel) Option { return func(svc *Service) { svc.channel = ch } }

// WithTickLimit stops Run after n ticks. Zero runs until the context ends.
func WithTickLimit(n int) Option { return func(svc *Service) { svc.ticks = n } }

// New builds the process for side.
func New(cfg *config.Config, side string, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg, side: side, log: logger.New("service")}
	for _, o := range opts {
		o(s)
	}
	if s.sink == nil {
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		s.sink = sink
	}

	var err error
	switch side {
	case SideWorld, SideDispatcher:
		ch := s.channel
		if ch == nil {
			if ch, err = OpenChannel(cfg.Transport, side); err != nil {
				return nil, err
			}
		}
		s.channels = append(s.channels, ch)
		if side == SideWorld {
			err = s.buildWorld(ch)
		} else {
			err = s.buildDispatcher(ch)
		}
	case SideSimulate:
		a, b := transport.Pipe()
		s.channels = append(s.channels, a, b)
		if err = s.buildWorld(a); err == nil {
			err = s.buildDispatcher(b)
		}
	default:
		err = fmt.Errorf("unknown side %q", side)
	}
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// OpenChannel opens the configured transport for side. Over TCP the world
// listens and the dispatcher dials.
func OpenChannel(cfg config.TransportConfig, side string) (transport.Channel, error) {
	log := logger.New("transport-" + cfg.Kind)
	switch cfg.Kind {
	case config.TransportTCP:
		if side == SideWorld {
			return tcp.Listen(cfg.TCP, log)
		}
		return tcp.Dial(cfg.TCP, log)
	case config.TransportMQTT:
		c := cfg.MQTT
		c.Role = side
		return mqtt.NewChannel(c, log)
	}
	return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
}

func (s *Service) journal(side string) *journal.Writer {
	if !s.cfg.Journal.Enabled {
		return nil
	}
	w := journal.NewWriter(s.cfg.Journal.Dir, side)
	s.journals = append(s.journals, w)
	return w
}

func (s *Service) buildWorld(ch transport.Channel) error {
	log := logger.New(SideWorld)
	engine, err := world.NewEngine(s.cfg.World, world.WithLogger(log))
	if err != nil {
		return err
	}
	s.World = NewWorldService(engine, ch, s.sink, s.journal(SideWorld), log)
	s.step = append(s.step, s.World)
	return nil
}

func (s *Service) buildDispatcher(ch transport.Channel) error {
	log := logger.New(SideDispatcher)
	store, err := logging.Open(s.cfg.DecisionLog)
	if err != nil {
		return fmt.Errorf("decision log: %w", err)
	}
	s.Logs = store
	s.Status = fleetstatus.NewMemoryStore()
	s.bus = eventbus.NewTyped[dispatch.Notice]()
	d, err := dispatch.New(s.cfg.Dispatcher,
		dispatch.WithLogger(log),
		dispatch.WithSink(s.sink),
		dispatch.WithBus(s.bus),
		dispatch.WithLogStore(store),
		dispatch.WithStatusStore(s.Status),
	)
	if err != nil {
		return err
	}
	s.Dispatcher = NewDispatcherService(d, ch, s.sink, s.journal(SideDispatcher), log)
	s.step = append(s.step, s.Dispatcher)
	return nil
}

type connWaiter interface {
	WaitConnected(ctx context.Context) error
}

// Run serves the HTTP endpoints and drives the tick loop until ctx is done,
// the tick limit is reached or a channel fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.side == SideDispatcher {
		if w, ok := s.channels[0].(connWaiter); ok {
			s.log.Infof("waiting for the world runtime")
			if err := w.WaitConnected(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("connect: %w", err)
			}
		}
	}

	var collected <-chan struct{}
	if s.bus != nil {
		collected = metrics.StartNoticeCollector(ctx, s.bus, s.sink)
	}
	if addr := s.cfg.Metrics.HTTPAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, s.Mount); err != nil {
				s.log.Errorf("http server: %v", err)
			}
		}()
	}

	interval := time.Duration(s.cfg.TickMS) * time.Millisecond
	s.log.Infof("running %s every %s", s.side, interval)
	err := RunTicks(ctx, s.step, interval, s.ticks)
	stopping := ctx.Err() != nil
	cancel()
	if collected != nil {
		<-collected
	}
	if stopping {
		return nil
	}
	return err
}

// Mount registers the read API of the dispatcher on mux.
func (s *Service) Mount(mux *http.ServeMux) {
	if s.Status == nil {
		return
	}
	mux.Handle("/api/robots/status", robots.NewStatusHandler(s.Status))
	mux.Handle("/api/robots/", robots.NewRobotHandler(s.Status))
	mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(s.Logs, s.cfg.API.Token))
}

// Close releases channels, journals, the decision log and the sinks.
func (s *Service) Close() error {
	var errs []error
	if s.bus != nil {
		s.bus.Close()
	}
	for _, ch := range s.channels {
		errs = append(errs, ch.Close())
	}
	for _, j := range s.journals {
		errs = append(errs, j.Close())
	}
	if s.Logs != nil {
		errs = append(errs, s.Logs.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return errors.Join(errs...)
}
