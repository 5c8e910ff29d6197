package zipkin

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultSampleRate is the sample rate used when the configuration does not
// set one.
const DefaultSampleRate = 0.1

// Config is the resolved tracer configuration. It is validated once by
// Resolve and not modified afterwards. Build it with NewConfig to get the
// default sample rate; a literal without SampleRate never samples.
type Config struct {
	ServiceName string
	ServicePort int
	SampleRate  float64
	// CollectorAddress is the Zipkin collector to report spans to, either a
	// full URL or a host:port. Empty means spans are only logged.
	CollectorAddress string
}

// NewConfig returns a Config with the default sample rate.
func NewConfig(serviceName string, servicePort int) Config {
	return Config{
		ServiceName: serviceName,
		ServicePort: servicePort,
		SampleRate:  DefaultSampleRate,
	}
}

// Validate checks the required fields and the sample rate range.
func (c Config) Validate() error {
	if len(c.ServiceName) == 0 {
		return &ConfigError{Field: "service_name", Reason: "is required"}
	}
	if c.ServicePort <= 0 {
		return &ConfigError{Field: "service_port", Reason: "is required and must be positive"}
	}
	if !(c.SampleRate >= 0 && c.SampleRate <= 1) {
		return &ConfigError{Field: "sample_rate", Reason: fmt.Sprintf("%v is outside [0,1]", c.SampleRate)}
	}
	return nil
}

// A ConfigError reports an invalid or missing tracer configuration. It is
// only returned at construction time.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "zipkin: invalid tracer config"
	if len(e.Field) > 0 {
		msg += ": " + e.Field
	}
	if len(e.Reason) > 0 {
		msg += " " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConfigProvider is implemented by applications that carry their own tracer
// configuration. The returned value is resolved like an explicit config.
type ConfigProvider interface {
	ZipkinTracerConfig() interface{}
}

// settings is the key-value form of Config.
type settings struct {
	ServiceName      *string  `yaml:"service_name"`
	ServicePort      *int     `yaml:"service_port"`
	SampleRate       *float64 `yaml:"sample_rate"`
	CollectorAddress string   `yaml:"collector_address"`
	ScribeServer     string   `yaml:"scribe_server"`
}

// Resolve returns the tracer configuration. The explicit value wins; when it
// is nil and app implements ConfigProvider the application's configuration
// is used. Accepted values are Config, *Config, map[string]interface{} and
// map[string]string with the keys service_name, service_port, sample_rate
// and collector_address. Any other value, a missing service name or port,
// or a sample rate outside [0,1] result in a *ConfigError.
func Resolve(explicit interface{}, app interface{}) (Config, error) {
	value := explicit
	if value == nil {
		if p, ok := app.(ConfigProvider); ok {
			value = p.ZipkinTracerConfig()
		}
	}
	if value == nil {
		return Config{}, &ConfigError{Reason: "no tracer configuration provided"}
	}

	var cfg Config
	switch v := value.(type) {
	case Config:
		cfg = v
	case *Config:
		if v == nil {
			return Config{}, &ConfigError{Reason: "no tracer configuration provided"}
		}
		cfg = *v
	case map[string]interface{}:
		var node yaml.Node
		if err := node.Encode(v); err != nil {
			return Config{}, &ConfigError{Reason: "cannot be encoded", Err: errors.Wrap(err, "encode settings")}
		}
		c, err := decodeSettings(&node)
		if err != nil {
			return Config{}, err
		}
		cfg = c
	case map[string]string:
		c, err := decodeSettings(stringMapNode(v))
		if err != nil {
			return Config{}, err
		}
		cfg = c
	default:
		return Config{}, &ConfigError{Reason: fmt.Sprintf("%T is not a key-value structure", value)}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeSettings(node *yaml.Node) (Config, error) {
	var s settings
	if err := node.Decode(&s); err != nil {
		return Config{}, &ConfigError{Reason: "cannot be decoded", Err: errors.Wrap(err, "decode settings")}
	}
	if s.ServiceName == nil {
		return Config{}, &ConfigError{Field: "service_name", Reason: "is required"}
	}
	if s.ServicePort == nil {
		return Config{}, &ConfigError{Field: "service_port", Reason: "is required"}
	}
	cfg := Config{
		ServiceName:      *s.ServiceName,
		ServicePort:      *s.ServicePort,
		SampleRate:       DefaultSampleRate,
		CollectorAddress: s.CollectorAddress,
	}
	if s.SampleRate != nil {
		cfg.SampleRate = *s.SampleRate
	}
	if len(cfg.CollectorAddress) == 0 {
		cfg.CollectorAddress = s.ScribeServer
	}
	return cfg, nil
}

// stringMapNode builds a mapping node of plain scalars so that values such
// as "9410" resolve to their natural type when decoded.
func stringMapNode(m map[string]string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for k, v := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v})
	}
	return node
}

// LoadConfigFile reads a YAML tracer settings file into a map suitable for
// Resolve.
func LoadConfigFile(path string) (map[string]interface{}, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read tracer config %s", path)
	}
	m := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrapf(err, "parse tracer config %s", path)
	}
	return m, nil
}
