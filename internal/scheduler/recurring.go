package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Recurring runs named jobs on cron specs ("@every 1h", "0 9 * * MON-FRI").
type Recurring struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewRecurring builds a stopped cron runner whose jobs recover from panics
// and never overlap with themselves.
func NewRecurring(logger *zap.Logger) *Recurring {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := zapCronLogger{logger.Sugar()}
	return &Recurring{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger,
	}
}

// Add registers fn under name. The schedule is validated immediately.
func (r *Recurring) Add(spec, name string, fn func()) error {
	id, err := r.cron.AddFunc(spec, fn)
	if err != nil {
		return err
	}
	r.logger.Info("recurring job registered", zap.String("job", name), zap.String("schedule", spec), zap.Int("entry_id", int(id)))
	return nil
}

// Len counts registered jobs.
func (r *Recurring) Len() int {
	return len(r.cron.Entries())
}

// Start begins running jobs in the background.
func (r *Recurring) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx expires.
func (r *Recurring) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		r.logger.Warn("recurring jobs still running at shutdown")
	}
}

// ValidateSpec reports whether spec parses with the standard cron parser.
func ValidateSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

type zapCronLogger struct {
	s *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
