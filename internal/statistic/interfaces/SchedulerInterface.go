package interfaces

import "context"

type SchedulerInterface interface {
	Init()
	Stop()
	RunPrecompute(ctx context.Context) error
	RunOrphanSweep(ctx context.Context) error
}
