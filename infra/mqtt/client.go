// Package mqtt connects the simulator to an MQTT broker with Eclipse Paho.
package mqtt

import (
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kilianp07/agv/core/mqtt"
	"github.com/kilianp07/agv/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// OrderHandler receives the decoded order commands.
type OrderHandler func(coremqtt.OrderCommand)

// PahoClient implements coremqtt.Client.
type PahoClient struct {
	cli      pahoClient
	cfg      Config
	topics   coremqtt.Topics
	onOrder  OrderHandler
	log      logger.Logger
	backoff  time.Duration
	presence bool
}

// NewPahoClient connects to the broker. When onOrder is set the order
// command topic is subscribed on every connection, reconnections included.
func NewPahoClient(cfg Config, onOrder OrderHandler) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	pc := &PahoClient{
		cfg:      cfg,
		topics:   cfg.Topics(),
		onOrder:  onOrder,
		log:      logger.New("mqtt_client"),
		backoff:  time.Duration(cfg.BackoffMS) * time.Millisecond,
		presence: cfg.Presence,
	}
	opts.OnConnect = pc.connected
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		pc.log.Errorf("connection to %s lost: %v", cfg.Broker, err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		pc.log.Warnf("reconnecting to %s", cfg.Broker)
	}

	c := newMQTTClient(opts)
	if tok := c.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, tok.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions maps Config onto Paho options.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	if cfg.usesPassword() {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.Presence {
		opts.SetWill(cfg.Topics().Presence(), coremqtt.Offline, 1, true)
	}
	return opts, nil
}

func (p *PahoClient) connected(c paho.Client) {
	p.log.Infof("connected to %s", p.cfg.Broker)
	if p.presence {
		c.Publish(p.topics.Presence(), 1, true, coremqtt.Online)
	}
	if p.onOrder == nil {
		return
	}
	tok := c.Subscribe(p.topics.Orders(), p.qosFor(coremqtt.KindCommand), p.onCommand)
	if tok.Wait() && tok.Error() != nil {
		p.log.Errorf("subscribe %s: %v", p.topics.Orders(), tok.Error())
	}
}

func (p *PahoClient) qosFor(k coremqtt.Kind) byte { return p.cfg.QoS[string(k)] }

func (p *PahoClient) onCommand(_ paho.Client, msg paho.Message) {
	var cmd coremqtt.OrderCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		p.log.Errorf("decode order command: %v", err)
		return
	}
	p.log.Infof("order command %s received", cmd.CommandID)
	p.onOrder(cmd)
}

// Publish sends the payload. Failed attempts are retried MaxRetries times
// with a doubling backoff; the last error is returned.
func (p *PahoClient) Publish(topic string, kind coremqtt.Kind, retained bool, payload []byte) error {
	if p.cli == nil {
		return coremqtt.ErrNotConnected
	}
	qos := p.qosFor(kind)
	wait := p.backoff
	var err error
	for attempt := 0; ; attempt++ {
		tok := p.cli.Publish(topic, qos, retained, payload)
		tok.Wait()
		if err = tok.Error(); err == nil {
			return nil
		}
		p.log.Errorf("publish %s attempt %d: %v", topic, attempt+1, err)
		if attempt >= p.cfg.MaxRetries {
			return err
		}
		time.Sleep(wait)
		wait *= 2
	}
}

// Disconnect marks the simulator offline and closes the connection.
func (p *PahoClient) Disconnect() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	if p.presence {
		p.cli.Publish(p.topics.Presence(), 1, true, coremqtt.Offline).WaitTimeout(time.Second)
	}
	p.cli.Disconnect(250)
}
