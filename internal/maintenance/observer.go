package maintenance

import (
	"context"

	"github.com/wordbank/lexstore/internal/logging"
)

// Observer receives progress messages from a running job. Jobs are handed
// their observer explicitly; there is no ambient registration.
type Observer interface {
	Message(ctx context.Context, msg string)
}

// LogObserver forwards job messages to a structured logger.
type LogObserver struct {
	log logging.Logger
}

func NewLogObserver(log logging.Logger) *LogObserver {
	return &LogObserver{log: log}
}

func (o *LogObserver) Message(ctx context.Context, msg string) {
	o.log.Info(ctx, msg)
}
