// Package util holds fixtures shared by the integration tests of the
// world and dispatcher processes.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	BrokerReadyTimeout = 5 * time.Second
	MetricTimeout      = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// Broker is a throwaway Mosquitto instance. TopicPrefix is unique per
// broker so two channel pairs started by the same test never cross-talk.
type Broker struct {
	URL         string
	TopicPrefix string

	stop func()
}

// Close terminates the container and removes its config directory.
func (b *Broker) Close() {
	if b.stop != nil {
		b.stop()
	}
}

// Sample renders the exposition line prefix of a metric with its labels in
// the sorted order promhttp writes them, e.g.
// robodelivery_assignments_total{outcome="assigned"}.
func Sample(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}

// WaitForMetric scrapes metricsURL until a line starting with want shows up.
// A want ending in a value (e.g. `..."} 1`) matches that value exactly.
func WaitForMetric(ctx context.Context, metricsURL, want string) error {
	for {
		found, err := scrape(ctx, metricsURL, want)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("sample %q never exported: %w", want, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func scrape(ctx context.Context, metricsURL, want string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
	if err != nil {
		return false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		// the endpoint may not be listening yet
		return false, nil
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read scrape: %w", err)
	}
	for _, line := range strings.Split(string(body), "\n") {
		if line == want || strings.HasPrefix(line, want+" ") || strings.HasPrefix(line, want+"{") {
			return true, nil
		}
	}
	return false, nil
}

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
max_packet_size 1048576
`

// StartBroker runs eclipse-mosquitto in Docker and blocks until a probe
// client can publish on the broker's topic prefix.
func StartBroker(ctx context.Context) (*Broker, error) {
	dir, err := os.MkdirTemp("", "robodelivery-mosq")
	if err != nil {
		return nil, err
	}
	confPath := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(confPath, []byte(mosquittoConf), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
			Files: []tc.ContainerFile{{
				HostFilePath:      confPath,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	b := &Broker{
		TopicPrefix: "robodelivery-" + uuid.NewString()[:8],
		stop: func() {
			_ = cont.Terminate(context.Background())
			_ = os.RemoveAll(dir)
		},
	}
	host, err := cont.Host(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		b.Close()
		return nil, err
	}
	b.URL = fmt.Sprintf("tcp://%s:%s", host, port.Port())

	readyCtx, cancel := context.WithTimeout(ctx, BrokerReadyTimeout)
	defer cancel()
	if err := probe(readyCtx, b); err != nil {
		b.Close()
		return nil, fmt.Errorf("broker %s not ready: %w", b.URL, err)
	}
	return b, nil
}

func probe(ctx context.Context, b *Broker) error {
	opts := paho.NewClientOptions().
		AddBroker(b.URL).
		SetClientID(b.TopicPrefix + "-probe").
		SetConnectTimeout(time.Second)
	for {
		cli := paho.NewClient(opts)
		if tok := cli.Connect(); tok.Wait() && tok.Error() == nil {
			pub := cli.Publish(b.TopicPrefix+"/probe", 0, false, []byte("[]"))
			pub.Wait()
			cli.Disconnect(100)
			if pub.Error() == nil {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
