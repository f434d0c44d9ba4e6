package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClientConfigDefaultsAndValidate(t *testing.T) {
	cfg := &ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "tesla-exporter-test"}
	setDefaultConfig(cfg)

	if cfg.KeepAlive != 60 || cfg.ConnectTimeout != 5*time.Second || cfg.ReconnectBackoff != 3*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	for _, bad := range []*ClientConfig{
		{ClientID: "x"},
		{BrokerURL: "not a url", ClientID: "x"},
		{BrokerURL: "tcp://localhost:1883"},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%+v) succeeded, want error", bad)
		}
	}
}

func TestPublishBeforeStart(t *testing.T) {
	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "x"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Publish(context.Background(), "t", 1, false, nil); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Publish before Start = %v, want ErrNotStarted", err)
	}
	if c.IsConnected() {
		t.Errorf("client reports connected before Start")
	}
}
