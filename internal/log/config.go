package log

import "time"

const (
	DefaultPattern = "%time [%level] %caller: %msg %field%n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

type LoggerConfig struct {
	Level     string           `mapstructure:"level" yaml:"level"`
	Pattern   string           `mapstructure:"pattern" yaml:"pattern"`
	Time      string           `mapstructure:"time" yaml:"time"`
	Caller    bool             `mapstructure:"caller" yaml:"caller"`
	Appenders []AppenderConfig `mapstructure:"appenders" yaml:"appenders,omitempty"`

	// Advisory warnings from the packet path are limited to Burst per
	// Interval and per kind. Zero Burst disables the limit.
	Advisory AdvisoryConfig `mapstructure:"advisory" yaml:"advisory"`
}

type AppenderConfig struct {
	Type    string                 `mapstructure:"type" yaml:"type"` // console | stderr | file
	Options map[string]interface{} `mapstructure:"options" yaml:"options,omitempty"`
}

type AdvisoryConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Burst    int           `mapstructure:"burst" yaml:"burst"`
}
