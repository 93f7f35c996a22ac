package machine

// waterReady applies the water level hysteresis: a ready tank stays ready
// until raw drops to low, an empty tank needs raw to reach high.
func waterReady(ready bool, raw, low, high uint16) bool {
	if ready {
		return raw > low
	}
	return raw >= high
}

// temperatureReady has a single threshold and no hysteresis.
func temperatureReady(raw, threshold uint16) bool {
	return raw >= threshold
}

// readWater samples the hall sensor and updates the water flag.
func (c *Controller) readWater() bool {
	was := c.water.Load()
	ok := waterReady(was, c.sensors.Read(SensorWater), c.cfg.WaterLow, c.cfg.WaterOK)
	c.water.Store(ok)
	if ok != was {
		if ok {
			c.report(Event{Type: EventWaterOK})
		} else {
			c.report(Event{Type: EventWaterLow})
		}
	}
	return ok
}

// readTemperature samples the thermistor and updates the temperature flag.
func (c *Controller) readTemperature() bool {
	ok := temperatureReady(c.sensors.Read(SensorTemperature), c.cfg.TemperatureOK)
	c.temperature.Store(ok)
	return ok
}

// readZeroCrossing returns the raw zero-crossing sample.
func (c *Controller) readZeroCrossing() uint16 {
	return c.sensors.Read(SensorZeroCrossing)
}
