package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/infra/logger"
)

// InfluxConfig locates an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes dispatcher activity to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A trailing
// /api/v2/write on the URL is tolerated.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the instance and returns a NopSink when the
// health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes an assignment decision.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	p := write.NewPointWithMeasurement("assignment").
		AddTag("outcome", ev.Outcome).
		AddTag("robot", strconv.Itoa(ev.Robot)).
		AddField("order", ev.Order).
		AddField("distance", ev.Distance).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordTransition writes a state machine event.
func (s *InfluxSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	p := write.NewPointWithMeasurement("fsm_event").
		AddTag("machine", ev.Machine).
		AddTag("event", ev.Event).
		AddTag("accepted", strconv.FormatBool(ev.Accepted)).
		AddField("from", ev.From).
		AddField("to", ev.To).
		SetTime(ev.Time)
	if ev.Transition != "" {
		p = p.AddField("transition", ev.Transition)
	}
	return s.write(p)
}

// RecordTick writes a tick summary.
func (s *InfluxSink) RecordTick(ev coremetrics.TickEvent) error {
	p := write.NewPointWithMeasurement("tick").
		AddTag("side", ev.Side).
		AddField("tick", ev.Tick).
		AddField("inbound", ev.Inbound).
		AddField("outbound", ev.Outbound).
		AddField("duration_ms", float64(ev.Duration.Microseconds())/1000).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordDelivery writes a completed delivery.
func (s *InfluxSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	p := write.NewPointWithMeasurement("delivery").
		AddTag("robot", strconv.Itoa(ev.Robot)).
		AddField("order", ev.Order).
		AddField("ticks", ev.Ticks).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordDecision writes a dispatcher decision.
func (s *InfluxSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	p := write.NewPointWithMeasurement("decision").
		AddTag("decision", ev.Decision).
		AddField("order", ev.Order).
		AddField("robot", ev.Robot).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }
