// Package config loads the daemon configuration from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/senseo-control/internal/adc"
	"github.com/sweeney/senseo-control/internal/gpio"
	"github.com/sweeney/senseo-control/internal/machine"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config represents the daemon configuration.
type Config struct {
	Brew    BrewConfig   `yaml:"brew"`
	Sensors SensorConfig `yaml:"sensors"`
	Buttons ButtonConfig `yaml:"buttons"`
	Timing  TimingConfig `yaml:"timing"`
	GPIO    GPIOConfig   `yaml:"gpio"`
	ADC     ADCConfig    `yaml:"adc"`
	MQTT    MQTTConfig   `yaml:"mqtt"`
	HTTP    HTTPConfig   `yaml:"http"`
}

// BrewConfig contains the pump program.
type BrewConfig struct {
	OneEspresso      time.Duration `yaml:"one_espresso"`
	TwoEspresso      time.Duration `yaml:"two_espresso"`
	OneCoffee        time.Duration `yaml:"one_coffee"`
	TwoCoffee        time.Duration `yaml:"two_coffee"`
	PreInfusionStart time.Duration `yaml:"preinfusion_start"`
	PreInfusionEnd   time.Duration `yaml:"preinfusion_end"`
	TriggerPulse     time.Duration `yaml:"trigger_pulse"`
	CoffeeWish       bool          `yaml:"coffee_wish"` // latch requests while heating
}

// SensorConfig contains raw ADC thresholds.
type SensorConfig struct {
	TemperatureOK   uint16 `yaml:"temperature_ok"`
	WaterLow        uint16 `yaml:"water_low"`
	WaterOK         uint16 `yaml:"water_ok"`
	ZeroCrossingMax uint16 `yaml:"zero_crossing_max"`
}

// ButtonConfig contains press thresholds and the idle timeout.
type ButtonConfig struct {
	Press   time.Duration `yaml:"press"`
	Clean   time.Duration `yaml:"clean"`
	Long    time.Duration `yaml:"long"`
	AutoOff time.Duration `yaml:"auto_off"`
}

// TimingConfig contains the hosted time base. The tick period is fixed at
// machine.TickPeriod since every threshold is counted in ticks.
type TimingConfig struct {
	Poll time.Duration `yaml:"poll"` // busy-wait pass
}

// GPIOConfig contains the digital wiring.
type GPIOConfig struct {
	Chip string    `yaml:"chip"`
	Pins gpio.Pins `yaml:"pins"`
}

// ADCConfig contains the serial link to the ADC co-processor.
type ADCConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// MQTTConfig contains telemetry settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

// HTTPConfig contains the status page settings. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the factory configuration.
func Default() *Config {
	m := machine.DefaultConfig()
	return &Config{
		Brew: BrewConfig{
			OneEspresso:      m.OneEspresso,
			TwoEspresso:      m.TwoEspresso,
			OneCoffee:        m.OneCoffee,
			TwoCoffee:        m.TwoCoffee,
			PreInfusionStart: m.PreInfusionStart,
			PreInfusionEnd:   m.PreInfusionEnd,
			TriggerPulse:     m.TriggerPulse,
			CoffeeWish:       m.CoffeeWish,
		},
		Sensors: SensorConfig{
			TemperatureOK:   m.TemperatureOK,
			WaterLow:        m.WaterLow,
			WaterOK:         m.WaterOK,
			ZeroCrossingMax: m.ZeroCrossingMax,
		},
		Buttons: ButtonConfig{
			Press:   m.ButtonPress,
			Clean:   m.ButtonClean,
			Long:    m.ButtonLong,
			AutoOff: m.AutoOff,
		},
		Timing: TimingConfig{
			Poll: 250 * time.Microsecond,
		},
		GPIO: GPIOConfig{
			Chip: "gpiochip0",
			Pins: gpio.DefaultPins,
		},
		ADC: ADCConfig{
			Port: "/dev/ttyACM0",
			Baud: adc.DefaultBaudRate,
		},
		MQTT: MQTTConfig{
			Broker:    "tcp://192.168.1.200:1883",
			ClientID:  "senseo-control",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults, and missing fields are filled from them. The result is validated.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Unknown keys are rejected so a stale or misspelled setting is not
	// silently ignored.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ensureDefaults fills zero-valued fields from Default where zero is never
// a usable value. Sensor thresholds are left alone since 0 is a valid raw
// level, and keys missing from the file already hold the defaults Load
// started from. Broker and HTTP address are left alone since empty
// disables them.
func (c *Config) ensureDefaults() {
	def := Default()

	setDuration(&c.Brew.OneEspresso, def.Brew.OneEspresso)
	setDuration(&c.Brew.TwoEspresso, def.Brew.TwoEspresso)
	setDuration(&c.Brew.OneCoffee, def.Brew.OneCoffee)
	setDuration(&c.Brew.TwoCoffee, def.Brew.TwoCoffee)
	setDuration(&c.Brew.PreInfusionEnd, def.Brew.PreInfusionEnd)
	setDuration(&c.Brew.TriggerPulse, def.Brew.TriggerPulse)

	setDuration(&c.Buttons.Press, def.Buttons.Press)
	setDuration(&c.Buttons.Clean, def.Buttons.Clean)
	setDuration(&c.Buttons.Long, def.Buttons.Long)
	setDuration(&c.Buttons.AutoOff, def.Buttons.AutoOff)

	setDuration(&c.Timing.Poll, def.Timing.Poll)

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}
	if c.GPIO.Pins == (gpio.Pins{}) {
		c.GPIO.Pins = def.GPIO.Pins
	}

	if c.ADC.Port == "" {
		c.ADC.Port = def.ADC.Port
	}
	if c.ADC.Baud == 0 {
		c.ADC.Baud = def.ADC.Baud
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

// Counter widths of the tick handler.
const (
	maxBrew       = 65 * time.Second
	maxPressTicks = 255
	maxLongTicks  = 65535
)

// Validate checks the thresholds against each other and against the
// counter widths of the tick handler.
func (c *Config) Validate() error {
	if c.Sensors.WaterLow >= c.Sensors.WaterOK {
		return fmt.Errorf("%w: water_low %d must be below water_ok %d", ErrInvalid, c.Sensors.WaterLow, c.Sensors.WaterOK)
	}

	brews := []struct {
		name string
		d    time.Duration
	}{
		{"one_espresso", c.Brew.OneEspresso},
		{"two_espresso", c.Brew.TwoEspresso},
		{"one_coffee", c.Brew.OneCoffee},
		{"two_coffee", c.Brew.TwoCoffee},
	}
	for _, b := range brews {
		if b.d <= 0 || b.d > maxBrew {
			return fmt.Errorf("%w: %s %v must be in (0, %v]", ErrInvalid, b.name, b.d, maxBrew)
		}
	}
	if c.Brew.PreInfusionStart >= c.Brew.PreInfusionEnd {
		return fmt.Errorf("%w: preinfusion_start %v must be before preinfusion_end %v", ErrInvalid, c.Brew.PreInfusionStart, c.Brew.PreInfusionEnd)
	}
	if c.Brew.TriggerPulse <= 0 {
		return fmt.Errorf("%w: trigger_pulse must be positive", ErrInvalid)
	}

	if c.Buttons.Press/machine.TickPeriod >= maxPressTicks {
		return fmt.Errorf("%w: buttons.press %v must stay below %d ticks", ErrInvalid, c.Buttons.Press, maxPressTicks)
	}
	if c.Buttons.Long/machine.TickPeriod >= maxLongTicks {
		return fmt.Errorf("%w: buttons.long %v must stay below %d ticks", ErrInvalid, c.Buttons.Long, maxLongTicks)
	}
	if c.Buttons.Press <= 0 || c.Buttons.Clean <= 0 || c.Buttons.Long <= 0 {
		return fmt.Errorf("%w: button thresholds must be positive", ErrInvalid)
	}
	if c.Buttons.AutoOff < time.Second {
		return fmt.Errorf("%w: auto_off %v must be at least 1s", ErrInvalid, c.Buttons.AutoOff)
	}

	if c.Timing.Poll <= 0 {
		return fmt.Errorf("%w: timing.poll must be positive", ErrInvalid)
	}
	if c.MQTT.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat must not be negative", ErrInvalid)
	}
	return nil
}

// Machine returns the controller parameters.
func (c *Config) Machine() machine.Config {
	return machine.Config{
		OneEspresso:      c.Brew.OneEspresso,
		TwoEspresso:      c.Brew.TwoEspresso,
		OneCoffee:        c.Brew.OneCoffee,
		TwoCoffee:        c.Brew.TwoCoffee,
		PreInfusionStart: c.Brew.PreInfusionStart,
		PreInfusionEnd:   c.Brew.PreInfusionEnd,
		TemperatureOK:    c.Sensors.TemperatureOK,
		WaterLow:         c.Sensors.WaterLow,
		WaterOK:          c.Sensors.WaterOK,
		ZeroCrossingMax:  c.Sensors.ZeroCrossingMax,
		TriggerPulse:     c.Brew.TriggerPulse,
		ButtonPress:      c.Buttons.Press,
		ButtonClean:      c.Buttons.Clean,
		ButtonLong:       c.Buttons.Long,
		AutoOff:          c.Buttons.AutoOff,
		CoffeeWish:       c.Brew.CoffeeWish,
	}
}
