// Package config holds the bridge's data model — endpoints and mappings —
// and the Store interface the bridge consumes to load them. The REST
// control plane, authentication, and the concrete configuration store
// backing (database, file, whatever) are external collaborators; this
// package only defines the shapes the bridge reads and validates.
package config

import "fmt"

// EndpointKind distinguishes an MQTT endpoint from a ZeroMQ endpoint.
type EndpointKind int

const (
	KindMQTT EndpointKind = iota
	KindZMQ
)

func (k EndpointKind) String() string {
	switch k {
	case KindMQTT:
		return "mqtt"
	case KindZMQ:
		return "zmq"
	default:
		return fmt.Sprintf("EndpointKind(%d)", int(k))
	}
}

// EndpointRef identifies an endpoint by kind and id, the key the Mapping
// Index and worker table are both keyed on.
type EndpointRef struct {
	Kind EndpointKind
	ID   int64
}

func (r EndpointRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// MQTTEndpoint is one configured attachment to an MQTT broker.
type MQTTEndpoint struct {
	ID           int64
	Name         string
	Enabled      bool
	Host         string
	Port         int
	ClientID     string
	Username     string
	Password     string
	TLS          bool
	KeepAlive    int
	CleanSession bool
}

func (e MQTTEndpoint) Ref() EndpointRef { return EndpointRef{Kind: KindMQTT, ID: e.ID} }

// ZMQRole is the ZeroMQ socket role of a configured endpoint.
type ZMQRole int

const (
	RolePub ZMQRole = iota
	RoleSub
	RoleXPub
	RoleXSub
)

func (r ZMQRole) String() string {
	switch r {
	case RolePub:
		return "pub"
	case RoleSub:
		return "sub"
	case RoleXPub:
		return "xpub"
	case RoleXSub:
		return "xsub"
	default:
		return fmt.Sprintf("ZMQRole(%d)", int(r))
	}
}

// IsPublisher reports whether r is a role that sends (pub/xpub).
func (r ZMQRole) IsPublisher() bool { return r == RolePub || r == RoleXPub }

// IsSubscriber reports whether r is a role that receives (sub/xsub).
func (r ZMQRole) IsSubscriber() bool { return r == RoleSub || r == RoleXSub }

// ZMQEndpoint is one configured attachment to a ZeroMQ peer set.
type ZMQEndpoint struct {
	ID               int64
	Name             string
	Enabled          bool
	Role             ZMQRole
	BindAddress      string
	ConnectAddresses []string
	HighWaterMark    int
	ReconnectMillis  int
}

func (e ZMQEndpoint) Ref() EndpointRef { return EndpointRef{Kind: KindZMQ, ID: e.ID} }

// Direction names the allowed flow of a Mapping.
type Direction int

const (
	DirMQTTToZMQ Direction = iota
	DirZMQToMQTT
	DirMQTTToMQTT
	DirZMQToZMQ
	DirBidirectional
)

func (d Direction) String() string {
	switch d {
	case DirMQTTToZMQ:
		return "mqtt_to_zmq"
	case DirZMQToMQTT:
		return "zmq_to_mqtt"
	case DirMQTTToMQTT:
		return "mqtt_to_mqtt"
	case DirZMQToZMQ:
		return "zmq_to_zmq"
	case DirBidirectional:
		return "bidirectional"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Mapping is one routing rule linking a source endpoint/topic pattern to a
// target endpoint/topic template. A Bidirectional mapping implies two
// logical rules sharing this same ID; see mapping.Build.
type Mapping struct {
	ID          int64
	Source      EndpointRef
	Target      EndpointRef
	SourceTopic string
	TargetTopic string
	Direction   Direction
	Enabled     bool
	Description string
}

// Snapshot is the immutable view of configuration the bridge builds its
// runtime state from: every endpoint and mapping record, enabled or not
// (EnabledMQTT, EnabledZMQ and EnabledMappings return the active subsets).
// Start loads it from the Store with LoadSnapshot; ApplyConfig receives
// it from the caller.
type Snapshot struct {
	MQTT     []MQTTEndpoint
	ZMQ      []ZMQEndpoint
	Mappings []Mapping
}

// EnabledMQTT returns the enabled subset of s.MQTT.
func (s Snapshot) EnabledMQTT() []MQTTEndpoint {
	out := make([]MQTTEndpoint, 0, len(s.MQTT))
	for _, e := range s.MQTT {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// EnabledZMQ returns the enabled subset of s.ZMQ.
func (s Snapshot) EnabledZMQ() []ZMQEndpoint {
	out := make([]ZMQEndpoint, 0, len(s.ZMQ))
	for _, e := range s.ZMQ {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// EnabledMappings returns the enabled subset of s.Mappings.
func (s Snapshot) EnabledMappings() []Mapping {
	out := make([]Mapping, 0, len(s.Mappings))
	for _, m := range s.Mappings {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}
