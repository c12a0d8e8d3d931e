// Package guc holds the runtime settings of the backend. The struct tags
// let a kong command line embed Config directly.
package guc

import (
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap/zapcore"

	"PGTupDesc/access"
	"PGTupDesc/utils/mmgr"
)

type Config struct {
	WorkMem        string `name:"work-mem" default:"0" env:"PGTD_WORK_MEM" help:"Per memory context allocation limit (e.g. 4MB, 0 for unlimited)."`
	ToastThreshold int    `name:"toast-threshold" default:"2032" env:"PGTD_TOAST_THRESHOLD" help:"Composite datum size in bytes above which values are compressed."`
	LogLevel       string `name:"log-level" default:"info" env:"PGTD_LOG_LEVEL" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)."`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		WorkMem:        "0",
		ToastThreshold: 2032,
		LogLevel:       "info",
	}
}

// WorkMemBytes parses WorkMem.
func (c Config) WorkMemBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.WorkMem)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid work_mem %q", c.WorkMem)
	}
	if n > 1<<62 {
		return 0, errors.Newf("work_mem %q is too large", c.WorkMem)
	}
	return int64(n), nil
}

// Validate checks every setting.
func (c Config) Validate() error {
	if _, err := c.WorkMemBytes(); err != nil {
		return err
	}
	if c.ToastThreshold < 128 || c.ToastThreshold > access.MaxVarlenaSize {
		return errors.Newf("toast threshold %d out of range [128, %d]", c.ToastThreshold, access.MaxVarlenaSize)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level %q", c.LogLevel)
	}
	return nil
}

// Apply validates c and installs it. It affects memory contexts created
// afterwards and composite datums formed afterwards.
func (c Config) Apply() error {
	if err := c.Validate(); err != nil {
		return err
	}
	limit, _ := c.WorkMemBytes()
	mmgr.SetDefaultLimit(limit)
	access.ToastTupleThreshold = c.ToastThreshold
	return nil
}
