package log

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`    // megabytes
	MaxBackups int    `mapstructure:"max_backups"` // number of backups
	MaxAge     int    `mapstructure:"max_age"`     // days
	Compress   bool   `mapstructure:"compress"`
}

// decodeFileAppenderOpt turns the free-form options of a file appender into
// FileAppenderOpt.
func decodeFileAppenderOpt(options map[string]interface{}) (FileAppenderOpt, error) {
	opt := FileAppenderOpt{MaxSize: 100, MaxBackups: 5, MaxAge: 30}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opt,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return opt, err
	}
	if err := dec.Decode(options); err != nil {
		return opt, fmt.Errorf("file appender options: %w", err)
	}
	if opt.Filename == "" {
		return opt, fmt.Errorf("file appender requires 'filename' option")
	}
	return opt, nil
}

func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) *MultiWriter {
	return m.Add(&lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAge,
		Compress:   options.Compress,
	})
}
