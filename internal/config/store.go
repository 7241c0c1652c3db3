package config

import "context"

// Store is the configuration store the bridge consumes — modeled as a
// key/value/row interface over the three tables the bridge reads
// (mqtt_endpoints, zmq_endpoints, mappings). The REST control plane owns
// writes and the `users` table; neither is part of this interface. A
// concrete Store (SQL-backed, file-backed, whatever) lives outside this
// repository.
type Store interface {
	ListMQTTEndpoints(ctx context.Context) ([]MQTTEndpoint, error)
	ListZMQEndpoints(ctx context.Context) ([]ZMQEndpoint, error)
	ListMappings(ctx context.Context) ([]Mapping, error)
}

// LoadSnapshot reads all three tables from store and assembles a Snapshot.
// It does not filter by Enabled — callers needing only the active set use
// Snapshot.EnabledMQTT/EnabledZMQ/EnabledMappings.
func LoadSnapshot(ctx context.Context, store Store) (Snapshot, error) {
	mqtt, err := store.ListMQTTEndpoints(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	zmq, err := store.ListZMQEndpoints(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	mappings, err := store.ListMappings(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{MQTT: mqtt, ZMQ: zmq, Mappings: mappings}, nil
}
