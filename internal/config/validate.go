package config

import (
	"fmt"

	"github.com/zhxiaoyu/zeromqtt/internal/bridgeerr"
)

// ValidateMQTTEndpoints enforces that client-id is unique across enabled
// MQTT endpoints of the same broker (host:port).
func ValidateMQTTEndpoints(endpoints []MQTTEndpoint) error {
	seen := make(map[string]int64) // "host:port/client-id" -> endpoint id
	for _, e := range endpoints {
		if !e.Enabled {
			continue
		}
		key := fmt.Sprintf("%s:%d/%s", e.Host, e.Port, e.ClientID)
		if prior, ok := seen[key]; ok {
			return fmt.Errorf("%w: mqtt endpoints %d and %d share client-id %q on %s:%d",
				bridgeerr.ErrConfigInvalid, prior, e.ID, e.ClientID, e.Host, e.Port)
		}
		seen[key] = e.ID
	}
	return nil
}

// ValidateZMQEndpoint enforces that a pub/xpub endpoint has a bind
// address or at least one connect address, and likewise for sub/xsub.
func ValidateZMQEndpoint(e ZMQEndpoint) error {
	if !e.Enabled {
		return nil
	}
	if e.BindAddress == "" && len(e.ConnectAddresses) == 0 {
		return fmt.Errorf("%w: zmq endpoint %d (%s) has neither a bind address nor connect addresses",
			bridgeerr.ErrConfigInvalid, e.ID, e.Role)
	}
	return nil
}

// ValidateZMQEndpoints validates every endpoint in the slice.
func ValidateZMQEndpoints(endpoints []ZMQEndpoint) error {
	for _, e := range endpoints {
		if err := ValidateZMQEndpoint(e); err != nil {
			return err
		}
	}
	return nil
}
