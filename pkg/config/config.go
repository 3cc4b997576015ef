// Package config loads the sensor generator configuration.
//
// The file is JSON or YAML:
//
//	{
//	  "mqtt": {"host": "localhost", "port": 1883, "topic": "sensors/"},
//	  "misc": {"duration": 60, "verbose": true, "dry-run": false},
//	  "sensors": {
//	    "room1/temp": {
//	      "active": true,
//	      "waitBeforeSendSec": 1,
//	      "data": {"temp": 20, "temp-range": [18, 24]}
//	    }
//	  }
//	}
package config

import (
	"io/ioutil"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/ppanyukov/sensorgen/pkg/template"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for configurations no runner can start with.
var ErrInvalid = errors.New("invalid config")

// Defaults.
const (
	DefaultHost               = "localhost"
	DefaultPort               = 1883
	DefaultDurationSecs       = 60
	DefaultWaitBeforeSendSec  = 1
	DefaultTimestampFieldName = "timestamp"
)

// Config is the whole configuration file.
type Config struct {
	MQTT    MQTTConfig              `yaml:"mqtt"`
	Misc    MiscConfig              `yaml:"misc"`
	Sensors map[string]SensorConfig `yaml:"sensors"`
}

// MQTTConfig is the broker every sensor publishes to.
type MQTTConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Topic is prepended as is to the sensor name.
	Topic string `yaml:"topic"`
	QoS   byte   `yaml:"qos"`
}

// MiscConfig holds the run settings shared by all sensors.
type MiscConfig struct {
	// DurationSecs bounds how long every sensor runs. Nil until
	// defaults are applied.
	DurationSecs *float64 `yaml:"duration"`
	Verbose      bool     `yaml:"verbose"`
	DryRun       bool     `yaml:"dry-run"`

	TimestampFieldName     string `yaml:"timestamp-field-name"`
	TimestampUnixInSeconds bool   `yaml:"timestamp-unix-in-seconds"`

	// Seed seeds random values, 0 means time based.
	Seed int64 `yaml:"seed"`
}

// Duration returns DurationSecs as a time.Duration.
func (m MiscConfig) Duration() time.Duration {
	if m.DurationSecs == nil {
		return secs(DefaultDurationSecs)
	}
	return secs(*m.DurationSecs)
}

// SensorConfig is one sensor and its template.
type SensorConfig struct {
	Active   bool   `yaml:"active"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// WaitBeforeSendSec is the pause between records. An explicit 0
	// publishes back to back.
	WaitBeforeSendSec *float64 `yaml:"waitBeforeSendSec"`

	Data yaml.Node `yaml:"data"`

	// Template is compiled from Data by Load and Parse, for active
	// sensors only.
	Template *template.Template `yaml:"-"`

	// Err is set for an active sensor which cannot start, such as one
	// with a broken template. Such a sensor is skipped; the others run.
	Err error `yaml:"-"`
}

// Wait returns WaitBeforeSendSec as a time.Duration.
func (s SensorConfig) Wait() time.Duration {
	if s.WaitBeforeSendSec == nil {
		return secs(DefaultWaitBeforeSendSec)
	}
	return secs(*s.WaitBeforeSendSec)
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "decode: %v", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SensorNames returns the sensor names in sorted order.
func (c *Config) SensorNames() []string {
	names := make([]string, 0, len(c.Sensors))
	for name := range c.Sensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) applyDefaults() {
	if c.MQTT.Host == "" {
		c.MQTT.Host = DefaultHost
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = DefaultPort
	}
	if c.Misc.DurationSecs == nil {
		c.Misc.DurationSecs = float64Ptr(DefaultDurationSecs)
	}
	if c.Misc.TimestampFieldName == "" {
		c.Misc.TimestampFieldName = DefaultTimestampFieldName
	}
	for name, s := range c.Sensors {
		if s.WaitBeforeSendSec == nil {
			s.WaitBeforeSendSec = float64Ptr(DefaultWaitBeforeSendSec)
		}
		c.Sensors[name] = s
	}
}

// validate rejects configurations no sensor can run with. Faults of a
// single active sensor are recorded in its Err instead, so the other
// sensors still start. Inactive sensors are not checked.
func (c *Config) validate() error {
	if len(c.Sensors) == 0 {
		return errors.Wrap(ErrInvalid, "no sensors specified")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return errors.Wrapf(ErrInvalid, "mqtt.port %d out of range", c.MQTT.Port)
	}
	if c.MQTT.QoS > 2 {
		return errors.Wrapf(ErrInvalid, "mqtt.qos %d must be 0, 1 or 2", c.MQTT.QoS)
	}
	if d := *c.Misc.DurationSecs; d <= 0 {
		return errors.Wrapf(ErrInvalid, "misc.duration %v must be positive", d)
	}

	var (
		active    int
		startable int
		firstErr  error
	)
	for _, name := range c.SensorNames() {
		s := c.Sensors[name]
		if !s.Active {
			continue
		}
		active++

		s.Template, s.Err = c.compileSensor(name, s)
		if s.Err == nil {
			startable++
		} else if firstErr == nil {
			firstErr = s.Err
		}
		c.Sensors[name] = s
	}

	if active > 0 && startable == 0 {
		return errors.Wrapf(firstErr, "none of %d active sensors can start", active)
	}
	return nil
}

func (c *Config) compileSensor(name string, s SensorConfig) (*template.Template, error) {
	if w := *s.WaitBeforeSendSec; w < 0 {
		return nil, errors.Wrapf(ErrInvalid, "sensors.%s.waitBeforeSendSec %v must not be negative", name, w)
	}

	tpl, err := template.Compile(&s.Data)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalid, "sensors.%s.data: %v", name, err)
	}
	for _, e := range tpl.Entries {
		if e.Name == c.Misc.TimestampFieldName {
			return nil, errors.Wrapf(ErrInvalid, "sensors.%s.data: field %q is reserved for the timestamp", name, e.Name)
		}
	}
	return tpl, nil
}

// ActiveSensorNames returns the names of active sensors in sorted order,
// including those which cannot start.
func (c *Config) ActiveSensorNames() []string {
	var names []string
	for _, name := range c.SensorNames() {
		if c.Sensors[name].Active {
			names = append(names, name)
		}
	}
	return names
}

func float64Ptr(f float64) *float64 {
	return &f
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
