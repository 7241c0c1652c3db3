package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMQTTEndpointsDuplicateClientID(t *testing.T) {
	endpoints := []MQTTEndpoint{
		{ID: 1, Host: "broker", Port: 1883, ClientID: "c1", Enabled: true},
		{ID: 2, Host: "broker", Port: 1883, ClientID: "c1", Enabled: true},
	}
	assert.Error(t, ValidateMQTTEndpoints(endpoints))
}

func TestValidateMQTTEndpointsIgnoresDisabled(t *testing.T) {
	endpoints := []MQTTEndpoint{
		{ID: 1, Host: "broker", Port: 1883, ClientID: "c1", Enabled: true},
		{ID: 2, Host: "broker", Port: 1883, ClientID: "c1", Enabled: false},
	}
	assert.NoError(t, ValidateMQTTEndpoints(endpoints))
}

func TestValidateZMQEndpointRequiresBindOrConnect(t *testing.T) {
	err := ValidateZMQEndpoint(ZMQEndpoint{ID: 1, Role: RolePub, Enabled: true})
	assert.Error(t, err)

	err = ValidateZMQEndpoint(ZMQEndpoint{ID: 1, Role: RolePub, Enabled: true, BindAddress: "tcp://*:5555"})
	assert.NoError(t, err)

	err = ValidateZMQEndpoint(ZMQEndpoint{ID: 2, Role: RoleSub, Enabled: true, ConnectAddresses: []string{"tcp://127.0.0.1:5555"}})
	assert.NoError(t, err)
}
