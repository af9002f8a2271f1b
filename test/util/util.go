// Package util holds helpers shared by the container-backed integration
// tests.
package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	HTTPTimeout   = 5 * time.Second
	MetricTimeout = 5 * time.Second
	brokerTimeout = 10 * time.Second

	pollInterval = 50 * time.Millisecond
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
`

// Broker is a disposable Mosquitto container.
type Broker struct {
	URL       string
	container tc.Container
}

// StartMosquitto runs eclipse-mosquitto and waits until it accepts MQTT
// connections.
func StartMosquitto(ctx context.Context) (*Broker, error) {
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			Reader:            strings.NewReader(mosquittoConf),
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return nil, err
	}
	b := &Broker{container: cont}
	endpoint, err := cont.PortEndpoint(ctx, "1883/tcp", "tcp")
	if err != nil {
		b.Close()
		return nil, err
	}
	b.URL = endpoint

	readyCtx, cancel := context.WithTimeout(ctx, brokerTimeout)
	defer cancel()
	if err := poll(readyCtx, b.connects); err != nil {
		b.Close()
		return nil, fmt.Errorf("broker not ready: %w", err)
	}
	return b, nil
}

func (b *Broker) connects() bool {
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(b.URL).SetClientID("readiness-probe"))
	tok := cli.Connect()
	if !tok.WaitTimeout(time.Second) || tok.Error() != nil {
		return false
	}
	cli.Disconnect(50)
	return true
}

// Close terminates the container.
func (b *Broker) Close() {
	if b.container != nil {
		_ = b.container.Terminate(context.Background())
	}
}

// FreeAddr returns a loopback address whose port was free when checked.
func FreeAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := l.Addr().String()
	return addr, l.Close()
}

// WaitForHTTP polls url until it answers 200.
func WaitForHTTP(ctx context.Context, url string) error {
	return poll(ctx, func() bool {
		code, _, err := get(ctx, url)
		return err == nil && code == http.StatusOK
	})
}

// WaitForMetric polls a Prometheus endpoint until substr shows up in the
// exposition.
func WaitForMetric(ctx context.Context, url, substr string) error {
	err := poll(ctx, func() bool {
		_, body, err := get(ctx, url)
		return err == nil && strings.Contains(body, substr)
	})
	if err != nil {
		return fmt.Errorf("metric %q: %w", substr, err)
	}
	return nil
}

func get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), err
}

// poll calls ok until it succeeds or ctx is done.
func poll(ctx context.Context, ok func() bool) error {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		if ok() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
