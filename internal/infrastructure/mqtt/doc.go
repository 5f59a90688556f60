// Package mqtt provides MQTT connectivity for the Ember bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS and retained-message support
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament for offline detection
//   - Topic builders for the bridge's topic contract
//
// # Architecture
//
// The message bus is the sole synchronisation channel between bridge
// instances: ownership leases are retained claim messages, discovery
// descriptors are retained config messages, and commands arrive on
// per-device set topics. Retained-message semantics therefore matter:
// publishing an empty retained payload clears the retained message, which
// is how leases are released and discovery entries retracted.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Watch all peers' ownership claims
//	err = client.Subscribe(mqtt.ClaimSubscribeTopic(), 1,
//	    func(topic string, payload []byte) error {
//	        instance, mac, _ := mqtt.ParseClaimTopic(topic)
//	        ...
//	        return nil
//	    })
package mqtt
