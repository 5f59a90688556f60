// Package discovery publishes MQTT autodiscovery descriptors so the
// home-automation platform creates entities for each owned mug without
// manual configuration.
//
// Five entities are emitted per device: a climate entity for the
// heater, sensors for battery charge and charging status, a light for
// the accent LED, and a pairing button. The climate entity's mode list
// depends on liquid presence (an empty mug cannot heat), so descriptors
// are republished on state changes; unchanged descriptors are skipped.
package discovery
