package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes.
//
// Coordination topics (claims, pairing, instance status) live under the
// bridge prefix. Device state and command topics live under the device
// prefix, matching what the home-automation platform's discovery templates
// reference. Autodiscovery config topics use the configurable discovery
// prefix and are built by DiscoveryConfigTopic.
const (
	// TopicPrefixBridge is the base for bridge coordination topics.
	TopicPrefixBridge = "emberbridge"

	// TopicPrefixDevice is the base for per-device state/command topics.
	TopicPrefixDevice = "ember"
)

// SanitiseMAC returns a hardware address in a form usable inside topic
// segments (colons are not allowed there by convention): ":" becomes "_".
func SanitiseMAC(mac string) string {
	return strings.ReplaceAll(mac, ":", "_")
}

// DesanitiseMAC reverses SanitiseMAC.
func DesanitiseMAC(s string) string {
	return strings.ReplaceAll(s, "_", ":")
}

// =============================================================================
// Ownership claim topics
// =============================================================================

// ClaimTopic returns the retained lease topic for a device claimed by an instance.
//
// Example: emberbridge/kitchen-pi/claim/AA_BB_CC_DD_EE_FF
func ClaimTopic(instanceID, mac string) string {
	return fmt.Sprintf("%s/%s/claim/%s", TopicPrefixBridge, instanceID, SanitiseMAC(mac))
}

// ClaimSubscribeTopic returns the pattern matching all instances' claims.
//
// Pattern: emberbridge/+/claim/+
func ClaimSubscribeTopic() string {
	return fmt.Sprintf("%s/+/claim/+", TopicPrefixBridge)
}

// ParseClaimTopic extracts the instance ID and hardware address from a claim
// topic. Returns ok=false if the topic does not match the claim scheme.
func ParseClaimTopic(topic string) (instanceID, mac string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefixBridge || parts[2] != "claim" {
		return "", "", false
	}
	return parts[1], DesanitiseMAC(parts[3]), true
}

// =============================================================================
// Pairing topics
// =============================================================================

// PairingPendingTopic returns the topic carrying the pending candidate list.
//
// Example: emberbridge/pairing/pending
func PairingPendingTopic() string {
	return fmt.Sprintf("%s/pairing/pending", TopicPrefixBridge)
}

// PairingClaimTopic returns the topic a UI publishes to in order to claim a
// pairing candidate.
//
// Example: emberbridge/pairing/claim/AA_BB_CC_DD_EE_FF
func PairingClaimTopic(mac string) string {
	return fmt.Sprintf("%s/pairing/claim/%s", TopicPrefixBridge, SanitiseMAC(mac))
}

// PairingClaimSubscribeTopic returns the pattern matching all pairing claims.
//
// Pattern: emberbridge/pairing/claim/+
func PairingClaimSubscribeTopic() string {
	return fmt.Sprintf("%s/pairing/claim/+", TopicPrefixBridge)
}

// ParsePairingClaimTopic extracts the hardware address from a pairing claim topic.
func ParsePairingClaimTopic(topic string) (mac string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefixBridge || parts[1] != "pairing" || parts[2] != "claim" {
		return "", false
	}
	return DesanitiseMAC(parts[3]), true
}

// =============================================================================
// Device state and command topics
// =============================================================================

// StateTopic returns the retained state topic for a device.
//
// Example: ember/AA_BB_CC_DD_EE_FF/state
func StateTopic(mac string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixDevice, SanitiseMAC(mac))
}

// CommandTopic returns the command topic for a device attribute.
//
// Example: ember/AA_BB_CC_DD_EE_FF/temperature/set
func CommandTopic(mac, attribute string) string {
	return fmt.Sprintf("%s/%s/%s/set", TopicPrefixDevice, SanitiseMAC(mac), attribute)
}

// CommandSubscribeTopic returns the pattern matching all device commands.
//
// Pattern: ember/+/+/set
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/+/+/set", TopicPrefixDevice)
}

// ParseCommandTopic extracts the hardware address and attribute from a
// command topic. Returns ok=false if the topic does not match the scheme.
func ParseCommandTopic(topic string) (mac, attribute string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefixDevice || parts[3] != "set" {
		return "", "", false
	}
	return DesanitiseMAC(parts[1]), parts[2], true
}

// =============================================================================
// Discovery and status topics
// =============================================================================

// DiscoveryConfigTopic returns the retained autodiscovery descriptor topic
// for an entity.
//
// Example: homeassistant/climate/AA_BB_CC_DD_EE_FF/root/config
func DiscoveryConfigTopic(prefix, component, mac, object string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, component, SanitiseMAC(mac), object)
}

// DiscoverySubscribeTopic returns the pattern matching the whole discovery
// tree. Peers' retained descriptors tell this instance which devices exist
// on the network even if it has never seen them advertise.
func DiscoverySubscribeTopic(prefix string) string {
	return prefix + "/#"
}

// ParseDiscoveryConfigTopic extracts the component, hardware address, and
// object name from a discovery descriptor topic under the given prefix.
// Returns ok=false if the topic does not match the discovery scheme.
func ParseDiscoveryConfigTopic(prefix, topic string) (component, mac, object string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[3] != "config" {
		return "", "", "", false
	}
	return parts[0], DesanitiseMAC(parts[1]), parts[2], true
}

// StatusTopic returns the retained instance status topic (also used as LWT).
//
// Example: emberbridge/kitchen-pi/status
func StatusTopic(instanceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixBridge, instanceID)
}
