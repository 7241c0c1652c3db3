package supervisor

import (
	"github.com/zhxiaoyu/zeromqtt/internal/config"
)

// endpointDiff is the result of comparing a live endpoint set to a newly
// loaded one.
type endpointDiff struct {
	shutdown  []config.EndpointRef // live but absent or disabled in the new set
	spawn     []config.EndpointRef // new and enabled, not previously live
	respawn   []config.EndpointRef // live in both, but a non-enabled attribute changed
	surviving []config.EndpointRef // live in both, unchanged
}

func diffMQTT(old, newEps []config.MQTTEndpoint) endpointDiff {
	oldByID := make(map[int64]config.MQTTEndpoint, len(old))
	for _, e := range old {
		if e.Enabled {
			oldByID[e.ID] = e
		}
	}
	newByID := make(map[int64]config.MQTTEndpoint, len(newEps))
	for _, e := range newEps {
		if e.Enabled {
			newByID[e.ID] = e
		}
	}

	var d endpointDiff
	for id, oe := range oldByID {
		ne, stillEnabled := newByID[id]
		if !stillEnabled {
			d.shutdown = append(d.shutdown, oe.Ref())
			continue
		}
		if mqttAttrsEqual(oe, ne) {
			d.surviving = append(d.surviving, oe.Ref())
		} else {
			d.respawn = append(d.respawn, oe.Ref())
		}
	}
	for id, ne := range newByID {
		if _, existed := oldByID[id]; !existed {
			d.spawn = append(d.spawn, ne.Ref())
		}
	}
	return d
}

func mqttAttrsEqual(a, b config.MQTTEndpoint) bool {
	a.Enabled, b.Enabled = false, false
	return a == b
}

func diffZMQ(old, newEps []config.ZMQEndpoint) endpointDiff {
	oldByID := make(map[int64]config.ZMQEndpoint, len(old))
	for _, e := range old {
		if e.Enabled {
			oldByID[e.ID] = e
		}
	}
	newByID := make(map[int64]config.ZMQEndpoint, len(newEps))
	for _, e := range newEps {
		if e.Enabled {
			newByID[e.ID] = e
		}
	}

	var d endpointDiff
	for id, oe := range oldByID {
		ne, stillEnabled := newByID[id]
		if !stillEnabled {
			d.shutdown = append(d.shutdown, oe.Ref())
			continue
		}
		if zmqAttrsEqual(oe, ne) {
			d.surviving = append(d.surviving, oe.Ref())
		} else {
			d.respawn = append(d.respawn, oe.Ref())
		}
	}
	for id, ne := range newByID {
		if _, existed := oldByID[id]; !existed {
			d.spawn = append(d.spawn, ne.Ref())
		}
	}
	return d
}

func zmqAttrsEqual(a, b config.ZMQEndpoint) bool {
	if len(a.ConnectAddresses) != len(b.ConnectAddresses) {
		return false
	}
	for i := range a.ConnectAddresses {
		if a.ConnectAddresses[i] != b.ConnectAddresses[i] {
			return false
		}
	}
	return a.Name == b.Name &&
		a.Role == b.Role &&
		a.BindAddress == b.BindAddress &&
		a.HighWaterMark == b.HighWaterMark &&
		a.ReconnectMillis == b.ReconnectMillis
}

func merge(a, b endpointDiff) endpointDiff {
	return endpointDiff{
		shutdown:  append(append([]config.EndpointRef{}, a.shutdown...), b.shutdown...),
		spawn:     append(append([]config.EndpointRef{}, a.spawn...), b.spawn...),
		respawn:   append(append([]config.EndpointRef{}, a.respawn...), b.respawn...),
		surviving: append(append([]config.EndpointRef{}, a.surviving...), b.surviving...),
	}
}
