package tasks

import (
	"context"

	"github.com/requestarr/requestarr/internal/config"
	"github.com/requestarr/requestarr/internal/processor"
	"github.com/requestarr/requestarr/internal/scheduler"
)

// RegisterProcessRequestsTask registers the periodic pending-request
// processing task.
func RegisterProcessRequestsTask(sched *scheduler.Scheduler, proc *processor.Processor, cfg *config.ProcessorConfig) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "process-requests",
		Name:        "Process Requests",
		Description: "Classifies pending media requests and routes them to the configured managers",
		Cron:        cfg.Cron,
		RunOnStart:  cfg.RunOnStart,
		Func: func(ctx context.Context) error {
			_, err := proc.ProcessPending(ctx)
			return err
		},
	})
}
