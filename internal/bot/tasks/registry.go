package tasks

import (
	"context"
)

// Task names, as used in the scheduler configuration.
const (
	DailyPostTaskName      = "daily_post"
	SQLMaintenanceTaskName = "sql_maintenance"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks initializes and returns all scheduled tasks keyed by name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	tasks[DailyPostTaskName] = newDailyPostTask(deps)
	if deps.Store != nil {
		tasks[SQLMaintenanceTaskName] = newSQLMaintenanceTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
