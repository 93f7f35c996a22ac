package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/senseo-control/internal/gpio"
	"github.com/sweeney/senseo-control/internal/machine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "senseo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 15*time.Second, cfg.Brew.OneEspresso)
	assert.Equal(t, 28*time.Second, cfg.Brew.TwoEspresso)
	assert.Equal(t, 26*time.Second, cfg.Brew.OneCoffee)
	assert.Equal(t, 52*time.Second, cfg.Brew.TwoCoffee)
	assert.Equal(t, uint16(125), cfg.Sensors.TemperatureOK)
	assert.Equal(t, uint16(30), cfg.Sensors.WaterLow)
	assert.Equal(t, uint16(100), cfg.Sensors.WaterOK)
	assert.Equal(t, 180*time.Second, cfg.Buttons.AutoOff)
	assert.False(t, cfg.Brew.CoffeeWish)
	assert.Equal(t, gpio.DefaultPins, cfg.GPIO.Pins)
	assert.NoError(t, cfg.Validate())
}

func TestDefault_MatchesMachineDefaults(t *testing.T) {
	assert.Equal(t, machine.DefaultConfig(), Default().Machine())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, `
brew:
  one_espresso: 12s
  two_coffee: 50s
  coffee_wish: true
sensors:
  temperature_ok: 140
  water_low: 20
  water_ok: 90
buttons:
  long: 1200ms
gpio:
  chip: gpiochip4
  pins:
    one_cup: 2
    two_cup: 3
    power: 4
    boiler: 14
    pump: 15
    red: 16
    green: 20
    blue: 21
adc:
  port: /dev/ttyUSB0
mqtt:
  broker: ""
  heartbeat: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12*time.Second, cfg.Brew.OneEspresso)
	assert.Equal(t, 50*time.Second, cfg.Brew.TwoCoffee)
	assert.Equal(t, 28*time.Second, cfg.Brew.TwoEspresso) // default
	assert.True(t, cfg.Brew.CoffeeWish)
	assert.Equal(t, uint16(140), cfg.Sensors.TemperatureOK)
	assert.Equal(t, uint16(20), cfg.Sensors.WaterLow)
	assert.Equal(t, 1200*time.Millisecond, cfg.Buttons.Long)
	assert.Equal(t, 100*time.Millisecond, cfg.Buttons.Press) // default
	assert.Equal(t, "gpiochip4", cfg.GPIO.Chip)
	assert.Equal(t, 14, cfg.GPIO.Pins.Boiler)
	assert.Equal(t, "/dev/ttyUSB0", cfg.ADC.Port)
	assert.Equal(t, 115200, cfg.ADC.Baud) // default
	assert.Empty(t, cfg.MQTT.Broker, "empty broker disables mqtt")
	assert.Equal(t, time.Minute, cfg.MQTT.Heartbeat)

	m := cfg.Machine()
	assert.Equal(t, 12*time.Second, m.PumpTime(machine.BrewOneEspresso))
	assert.True(t, m.CoffeeWish)
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "invalid: yaml: content: ["))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidDuration(t *testing.T) {
	cfg, err := Load(writeConfig(t, "brew:\n  one_coffee: forever\n"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_TickPeriodIsFixed(t *testing.T) {
	// Every threshold is counted in machine ticks, so the period is not a setting.
	cfg, err := Load(writeConfig(t, "timing:\n  tick: 2ms\n"))
	assert.Error(t, err)
	assert.Nil(t, cfg)

	cfg, err = Load(writeConfig(t, "timing:\n  poll: 1ms\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, cfg.Timing.Poll)
}

func TestLoad_UnknownKey(t *testing.T) {
	cfg, err := Load(writeConfig(t, "brew:\n  one_lungo: 40s\n"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ZeroSensorThresholds(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sensors:
  water_low: 0
  zero_crossing_max: 0
brew:
  preinfusion_start: 0s
`))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), cfg.Sensors.WaterLow)
	assert.Equal(t, uint16(0), cfg.Sensors.ZeroCrossingMax)
	assert.Equal(t, uint16(100), cfg.Sensors.WaterOK) // default
	assert.Equal(t, time.Duration(0), cfg.Brew.PreInfusionStart)

	m := cfg.Machine()
	assert.Equal(t, uint16(0), m.WaterLow)
	assert.Equal(t, uint16(0), m.ZeroCrossingMax)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sensors:\n  water_low: 120\n"))
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Nil(t, cfg)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"water band inverted":   func(c *Config) { c.Sensors.WaterLow, c.Sensors.WaterOK = 100, 30 },
		"water band empty":      func(c *Config) { c.Sensors.WaterLow = c.Sensors.WaterOK },
		"brew too long":         func(c *Config) { c.Brew.TwoCoffee = 66 * time.Second },
		"brew negative":         func(c *Config) { c.Brew.OneCoffee = -time.Second },
		"preinfusion inverted":  func(c *Config) { c.Brew.PreInfusionStart = 5 * time.Second },
		"press past power max":  func(c *Config) { c.Buttons.Press = 255 * time.Millisecond },
		"long past counter max": func(c *Config) { c.Buttons.Long = 70 * time.Second },
		"no trigger pulse":      func(c *Config) { c.Brew.TriggerPulse = 0 },
		"auto off too short":    func(c *Config) { c.Buttons.AutoOff = 500 * time.Millisecond },
		"negative heartbeat":    func(c *Config) { c.MQTT.Heartbeat = -time.Second },
		"no poll interval":      func(c *Config) { c.Timing.Poll = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidate_Limits(t *testing.T) {
	cfg := Default()
	cfg.Brew.TwoCoffee = 65 * time.Second
	cfg.Buttons.Press = 254 * time.Millisecond
	assert.NoError(t, cfg.Validate())
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Brew.OneCoffee = 30 * time.Second
	cfg.ADC.Port = "/dev/ttyS0"
	cfg.MQTT.Broker = ""

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
