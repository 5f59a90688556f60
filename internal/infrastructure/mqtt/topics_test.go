package mqtt

import "testing"

func TestSanitiseMAC(t *testing.T) {
	if got := SanitiseMAC("AA:BB:CC:DD:EE:FF"); got != "AA_BB_CC_DD_EE_FF" {
		t.Errorf("SanitiseMAC = %q", got)
	}
	if got := DesanitiseMAC("AA_BB_CC_DD_EE_FF"); got != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("DesanitiseMAC = %q", got)
	}
}

func TestClaimTopicRoundTrip(t *testing.T) {
	topic := ClaimTopic("bridge-a", "AA:BB:CC:DD:EE:FF")
	want := "emberbridge/bridge-a/claim/AA_BB_CC_DD_EE_FF"
	if topic != want {
		t.Fatalf("ClaimTopic = %q, want %q", topic, want)
	}

	instance, mac, ok := ParseClaimTopic(topic)
	if !ok {
		t.Fatal("ParseClaimTopic failed")
	}
	if instance != "bridge-a" {
		t.Errorf("instance = %q", instance)
	}
	if mac != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("mac = %q", mac)
	}
}

func TestParseClaimTopicRejectsForeignTopics(t *testing.T) {
	bad := []string{
		"emberbridge/bridge-a/claim",
		"ember/AA_BB/temperature/set",
		"emberbridge/bridge-a/status",
		"other/bridge-a/claim/AA_BB",
	}
	for _, topic := range bad {
		if _, _, ok := ParseClaimTopic(topic); ok {
			t.Errorf("ParseClaimTopic(%q) should fail", topic)
		}
	}
}

func TestCommandTopicRoundTrip(t *testing.T) {
	topic := CommandTopic("AA:BB:CC:DD:EE:FF", "temperature")
	want := "ember/AA_BB_CC_DD_EE_FF/temperature/set"
	if topic != want {
		t.Fatalf("CommandTopic = %q, want %q", topic, want)
	}

	mac, attr, ok := ParseCommandTopic(topic)
	if !ok {
		t.Fatal("ParseCommandTopic failed")
	}
	if mac != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("mac = %q", mac)
	}
	if attr != "temperature" {
		t.Errorf("attribute = %q", attr)
	}
}

func TestParsePairingClaimTopic(t *testing.T) {
	topic := PairingClaimTopic("AA:BB:CC:DD:EE:FF")
	mac, ok := ParsePairingClaimTopic(topic)
	if !ok || mac != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("ParsePairingClaimTopic(%q) = %q, %v", topic, mac, ok)
	}

	if _, ok := ParsePairingClaimTopic("emberbridge/pairing/pending"); ok {
		t.Error("pending topic should not parse as a pairing claim")
	}
}

func TestDiscoveryConfigTopic(t *testing.T) {
	got := DiscoveryConfigTopic("homeassistant", "climate", "AA:BB:CC:DD:EE:FF", "root")
	want := "homeassistant/climate/AA_BB_CC_DD_EE_FF/root/config"
	if got != want {
		t.Errorf("DiscoveryConfigTopic = %q, want %q", got, want)
	}
}

func TestParseDiscoveryConfigTopic(t *testing.T) {
	topic := DiscoveryConfigTopic("homeassistant", "climate", "AA:BB:CC:DD:EE:FF", "root")

	component, mac, object, ok := ParseDiscoveryConfigTopic("homeassistant", topic)
	if !ok {
		t.Fatal("expected topic to parse")
	}
	if component != "climate" || mac != "AA:BB:CC:DD:EE:FF" || object != "root" {
		t.Errorf("parsed %q/%q/%q", component, mac, object)
	}

	// Missing config suffix, wrong prefix, wrong segment counts.
	bad := []string{
		"homeassistant/climate/AA_BB/root",
		"otherprefix/climate/AA_BB/root/config",
		"homeassistant/climate/AA_BB/config",
		"homeassistant/a/b/c/d/config",
	}
	for _, topic := range bad {
		if _, _, _, ok := ParseDiscoveryConfigTopic("homeassistant", topic); ok {
			t.Errorf("expected %q to be rejected", topic)
		}
	}
}
