package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"

	coremqtt "github.com/kilianp07/agv/core/mqtt"
)

// Auth methods.
const (
	AuthPassword    = "username_password"
	AuthCertificate = "certificate"
	AuthBoth        = "both"
)

// Config holds the broker connection and the topic layout.
type Config struct {
	Enabled     bool            `json:"enabled"`
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	AuthMethod  string          `json:"auth_method"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	QoS         map[string]byte `json:"qos"`
	// Presence publishes a retained "online" on connect and registers
	// "offline" as the last will.
	Presence   bool        `json:"presence"`
	MaxRetries int         `json:"max_retries"`
	BackoffMS  int         `json:"backoff_ms"`
	QueueSize  int         `json:"queue_size"`
	TLSConfig  *tls.Config `json:"-"`
}

// SetDefaults fills the broker address, client id and retry policy.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "agv-sim"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "agv"
	}
	if c.AuthMethod == "" {
		c.AuthMethod = AuthPassword
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
}

// Validate checks the auth method, the TLS material and the QoS table. A
// disabled section is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var err error
	switch c.AuthMethod {
	case "", AuthPassword, AuthBoth:
	case AuthCertificate:
		if !c.UseTLS {
			err = multierr.Append(err, errors.New("certificate auth requires use_tls"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown auth_method %q", c.AuthMethod))
	}
	if c.UseTLS && c.TLSConfig == nil && (c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "") {
		err = multierr.Append(err, errors.New("use_tls requires client_cert, client_key and ca_bundle"))
	}
	for kind, q := range c.QoS {
		switch coremqtt.Kind(kind) {
		case coremqtt.KindEvent, coremqtt.KindSnapshot, coremqtt.KindVehicle, coremqtt.KindAck, coremqtt.KindCommand:
		default:
			err = multierr.Append(err, fmt.Errorf("qos: unknown message kind %q", kind))
		}
		if q > 2 {
			err = multierr.Append(err, fmt.Errorf("qos: %s level %d out of range", kind, q))
		}
	}
	return err
}

// Topics returns the topic layout of the configured prefix.
func (c Config) Topics() coremqtt.Topics { return coremqtt.Topics{Prefix: c.TopicPrefix} }

func (c Config) usesPassword() bool {
	return c.AuthMethod == "" || c.AuthMethod == AuthPassword || c.AuthMethod == AuthBoth
}

// LoadTLSConfig returns TLSConfig when set, otherwise reads the PEM files
// named in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, errors.New("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	ca, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("ca bundle %s holds no certificate", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
