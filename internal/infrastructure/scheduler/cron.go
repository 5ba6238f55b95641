package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/dojo-hub/dojo-progress/pkg/logger"
)

// cronLogger routes robfig/cron's key/value logging into pkg/logger.
// cron's Info lines (schedule, wake, run) are noisy, so they go to debug.
type cronLogger struct {
	log *logger.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(fields(keysAndValues), logger.Err(err))...)
}

// fields pairs up cron's alternating key/value arguments. A trailing key
// without a value is kept with a nil value.
func fields(keysAndValues []interface{}) []logger.Field {
	out := make([]logger.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		var value interface{}
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		out = append(out, logger.Any(key, value))
	}
	return out
}
