package discovery

import (
	"encoding/json"
	"fmt"

	"github.com/hearthware/emberbridge/internal/infrastructure/mqtt"
)

// Manufacturer shown on the home-automation device page.
const Manufacturer = "Ember"

// Capabilities describes what a device currently exposes. The climate
// entity's available modes depend on liquid presence, so Publish is
// called again whenever that changes.
type Capabilities struct {
	// Name is the advertised device name, e.g. "Ember Travel Mug".
	Name string

	// Metric reports whether the mug displays Celsius.
	Metric bool

	// LiquidPresent gates the "heat" mode; an empty mug only offers "off".
	LiquidPresent bool
}

// DeviceInfo groups entities under one device in the platform UI.
type DeviceInfo struct {
	Name          string      `json:"name"`
	Connections   [][2]string `json:"connections"`
	Model         string      `json:"model"`
	Manufacturer  string      `json:"manufacturer"`
	SuggestedArea string      `json:"suggested_area,omitempty"`
}

// ClimateEntity is the temperature-control discovery descriptor.
type ClimateEntity struct {
	Name                       string     `json:"name"`
	ModeStateTopic             string     `json:"mode_state_topic"`
	ModeStateTemplate          string     `json:"mode_state_template"`
	CurrentTemperatureTopic    string     `json:"current_temperature_topic"`
	CurrentTemperatureTemplate string     `json:"current_temperature_template"`
	TemperatureStateTopic      string     `json:"temperature_state_topic"`
	TemperatureStateTemplate   string     `json:"temperature_state_template"`
	AvailabilityTopic          string     `json:"availability_topic"`
	AvailabilityTemplate       string     `json:"availability_template"`
	ModeCommandTopic           string     `json:"mode_command_topic"`
	TemperatureCommandTopic    string     `json:"temperature_command_topic"`
	Modes                      []string   `json:"modes"`
	TemperatureUnit            string     `json:"temperature_unit"`
	TempStep                   float64    `json:"temp_step"`
	UniqueID                   string     `json:"unique_id"`
	Device                     DeviceInfo `json:"device"`
	Icon                       string     `json:"icon"`
	MaxTemp                    float64    `json:"max_temp"`
	MinTemp                    float64    `json:"min_temp"`
}

// SensorEntity covers plain sensors (battery percentage).
type SensorEntity struct {
	Name                 string     `json:"name"`
	DeviceClass          string     `json:"device_class"`
	UnitOfMeasurement    string     `json:"unit_of_measurement,omitempty"`
	Device               DeviceInfo `json:"device"`
	UniqueID             string     `json:"unique_id"`
	AvailabilityTopic    string     `json:"availability_topic"`
	AvailabilityTemplate string     `json:"availability_template"`
	StateTopic           string     `json:"state_topic"`
	ValueTemplate        string     `json:"value_template"`
}

// LightEntity is the LED discovery descriptor.
type LightEntity struct {
	Name                 string     `json:"name"`
	Device               DeviceInfo `json:"device"`
	UniqueID             string     `json:"unique_id"`
	Optimistic           bool       `json:"optimistic"`
	AvailabilityTopic    string     `json:"availability_topic"`
	AvailabilityTemplate string     `json:"availability_template"`
	StateTopic           string     `json:"state_topic"`
	StateValueTemplate   string     `json:"state_value_template"`
	CommandTopic         string     `json:"command_topic"`
	// The LED brightness is not controllable, but without a brightness
	// command topic the platform UI degrades the color picker to a
	// brightness slider and routes color changes through it.
	BrightnessCommandTopic string `json:"brightness_command_topic"`
	RGBCommandTopic        string `json:"rgb_command_topic"`
	RGBCommandTemplate     string `json:"rgb_command_template"`
	RGBStateTopic          string `json:"rgb_state_topic"`
	RGBValueTemplate       string `json:"rgb_value_template"`
}

// ButtonEntity is the pairing-button discovery descriptor.
type ButtonEntity struct {
	Name         string     `json:"name"`
	Device       DeviceInfo `json:"device"`
	UniqueID     string     `json:"unique_id"`
	Icon         string     `json:"icon"`
	CommandTopic string     `json:"command_topic"`
}

// entity pairs a discovery config topic with its encoded payload.
type entity struct {
	topic   string
	payload []byte
	retain  bool
}

// Objects within the discovery topic tree, also used to enumerate the
// topics to clear on retraction.
var entityObjects = []struct {
	component string
	object    string
}{
	{"climate", "root"},
	{"sensor", "battery"},
	{"binary_sensor", "battery_charging"},
	{"light", "led"},
	{"button", "pairing_button"},
}

// buildEntities renders every discovery descriptor for a device.
func buildEntities(prefix, deviceID string, caps Capabilities) ([]entity, error) {
	stateTopic := mqtt.StateTopic(deviceID)
	device := DeviceInfo{
		Name:          caps.Name,
		Connections:   [][2]string{{"mac", deviceID}},
		Model:         caps.Name,
		Manufacturer:  Manufacturer,
		SuggestedArea: "Office",
	}

	modes := []string{"off"}
	if caps.LiquidPresent {
		modes = []string{"heat", "off"}
	}

	unit, minTemp, maxTemp := "F", 120.0, 145.0
	if caps.Metric {
		unit, minTemp, maxTemp = "C", 50.0, 62.5
	}

	climate := ClimateEntity{
		Name:                       "Mug Temperature Control",
		ModeStateTopic:             stateTopic,
		ModeStateTemplate:          "{{ value_json.power }}",
		CurrentTemperatureTopic:    stateTopic,
		CurrentTemperatureTemplate: "{{ value_json.current_temperature }}",
		TemperatureStateTopic:      stateTopic,
		TemperatureStateTemplate:   "{{ value_json.desired_temperature }}",
		AvailabilityTopic:          stateTopic,
		AvailabilityTemplate:       "{{ value_json.availability }}",
		ModeCommandTopic:           mqtt.CommandTopic(deviceID, "power"),
		TemperatureCommandTopic:    mqtt.CommandTopic(deviceID, "temperature"),
		Modes:                      modes,
		TemperatureUnit:            unit,
		TempStep:                   1,
		UniqueID:                   deviceID,
		Device:                     device,
		Icon:                       "mdi:coffee",
		MaxTemp:                    maxTemp,
		MinTemp:                    minTemp,
	}

	battery := SensorEntity{
		Name:                 "Mug Battery",
		DeviceClass:          "battery",
		UnitOfMeasurement:    "%",
		Device:               device,
		UniqueID:             deviceID + "_battery",
		AvailabilityTopic:    stateTopic,
		AvailabilityTemplate: "{{ value_json.availability }}",
		StateTopic:           stateTopic,
		ValueTemplate:        "{{ value_json.battery_percent }}",
	}

	charging := SensorEntity{
		Name:                 "Mug Battery Charging",
		DeviceClass:          "battery_charging",
		Device:               device,
		UniqueID:             deviceID + "_battery_charging",
		AvailabilityTopic:    stateTopic,
		AvailabilityTemplate: "{{ value_json.availability }}",
		StateTopic:           stateTopic,
		ValueTemplate:        "{{ value_json.battery_charging }}",
	}

	led := LightEntity{
		Name:                   "Mug LED",
		Device:                 device,
		UniqueID:               deviceID + "_led",
		Optimistic:             false,
		AvailabilityTopic:      stateTopic,
		AvailabilityTemplate:   "{{ value_json.availability }}",
		StateTopic:             stateTopic,
		StateValueTemplate:     "{{ value_json.led }}",
		CommandTopic:           mqtt.CommandTopic(deviceID, "led"),
		BrightnessCommandTopic: mqtt.CommandTopic(deviceID, "led_brightness"),
		RGBCommandTopic:        mqtt.CommandTopic(deviceID, "led_color"),
		RGBCommandTemplate:     "{{ red }},{{ green }},{{ blue }}",
		RGBStateTopic:          stateTopic,
		RGBValueTemplate:       "{{ value_json.led_rgb }}",
	}

	pairing := ButtonEntity{
		Name:         "Pair With Device",
		Device:       device,
		UniqueID:     deviceID + "_pairing_button",
		Icon:         "mdi:coffee-off-outline",
		CommandTopic: mqtt.PairingClaimTopic(deviceID),
	}

	payloads := []any{climate, battery, charging, led, pairing}

	entities := make([]entity, 0, len(entityObjects))
	for i, obj := range entityObjects {
		payload, err := json.Marshal(payloads[i])
		if err != nil {
			return nil, fmt.Errorf("marshal %s descriptor: %w", obj.component, err)
		}
		entities = append(entities, entity{
			topic:   mqtt.DiscoveryConfigTopic(prefix, obj.component, deviceID, obj.object),
			payload: payload,
			// The pairing button is transient: it only makes sense while
			// the candidate is pending, so it is never retained.
			retain: obj.component != "button",
		})
	}
	return entities, nil
}
