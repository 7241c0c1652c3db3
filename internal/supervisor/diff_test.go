package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
)

func TestDiffMQTTClassifiesSpawnShutdownRespawnSurviving(t *testing.T) {
	unchanged := config.MQTTEndpoint{ID: 1, Name: "a", Enabled: true, Host: "h1", Port: 1883, ClientID: "c1"}
	toRemove := config.MQTTEndpoint{ID: 2, Name: "b", Enabled: true, Host: "h2", Port: 1883, ClientID: "c2"}
	changedOld := config.MQTTEndpoint{ID: 3, Name: "c", Enabled: true, Host: "h3", Port: 1883, ClientID: "c3"}
	changedNew := changedOld
	changedNew.Port = 1884
	toAdd := config.MQTTEndpoint{ID: 4, Name: "d", Enabled: true, Host: "h4", Port: 1883, ClientID: "c4"}

	old := []config.MQTTEndpoint{unchanged, toRemove, changedOld}
	newEps := []config.MQTTEndpoint{unchanged, changedNew, toAdd}

	d := diffMQTT(old, newEps)
	assert.ElementsMatch(t, []config.EndpointRef{toRemove.Ref()}, d.shutdown)
	assert.ElementsMatch(t, []config.EndpointRef{toAdd.Ref()}, d.spawn)
	assert.ElementsMatch(t, []config.EndpointRef{changedOld.Ref()}, d.respawn)
	assert.ElementsMatch(t, []config.EndpointRef{unchanged.Ref()}, d.surviving)
}

func TestDiffMQTTDisablingAnEndpointShutsItDown(t *testing.T) {
	ep := config.MQTTEndpoint{ID: 1, Name: "a", Enabled: true, Host: "h", Port: 1883, ClientID: "c"}
	disabled := ep
	disabled.Enabled = false

	d := diffMQTT([]config.MQTTEndpoint{ep}, []config.MQTTEndpoint{disabled})
	assert.Equal(t, []config.EndpointRef{ep.Ref()}, d.shutdown)
	assert.Empty(t, d.spawn)
	assert.Empty(t, d.respawn)
	assert.Empty(t, d.surviving)
}

func TestDiffZMQRespawnsOnConnectAddressChange(t *testing.T) {
	old := config.ZMQEndpoint{ID: 1, Name: "a", Enabled: true, Role: config.RoleSub, ConnectAddresses: []string{"tcp://h1:5555"}}
	newEp := old
	newEp.ConnectAddresses = []string{"tcp://h2:5555"}

	d := diffZMQ([]config.ZMQEndpoint{old}, []config.ZMQEndpoint{newEp})
	assert.Equal(t, []config.EndpointRef{old.Ref()}, d.respawn)
	assert.Empty(t, d.surviving)
}

func TestDiffZMQSameConnectAddressesIsSurviving(t *testing.T) {
	old := config.ZMQEndpoint{ID: 1, Name: "a", Enabled: true, Role: config.RoleSub, ConnectAddresses: []string{"tcp://h1:5555", "tcp://h2:5555"}}
	newEp := old
	newEp.ConnectAddresses = []string{"tcp://h1:5555", "tcp://h2:5555"}

	d := diffZMQ([]config.ZMQEndpoint{old}, []config.ZMQEndpoint{newEp})
	assert.Equal(t, []config.EndpointRef{old.Ref()}, d.surviving)
	assert.Empty(t, d.respawn)
}

func TestMergeCombinesBothDiffs(t *testing.T) {
	a := endpointDiff{shutdown: []config.EndpointRef{{Kind: config.KindMQTT, ID: 1}}}
	b := endpointDiff{shutdown: []config.EndpointRef{{Kind: config.KindZMQ, ID: 2}}}
	merged := merge(a, b)
	assert.Len(t, merged.shutdown, 2)
}
