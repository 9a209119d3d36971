// Package scheduler runs the engine's background work over asynq: the
// periodic time-based and inactivity sweeps and the send retry chain.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskTimeBasedTick = "automation.tick.time"

const TaskInactivitySweep = "automation.sweep.inactivity"

const TaskSendRetry = "automation.retry.send"

// SendRetryPayload re-runs a failed send_message execution.
type SendRetryPayload struct {
	CompanyID string `json:"companyId"`
	RuleID    string `json:"ruleId"`
	LeadID    string `json:"leadId"`
	Attempt   int    `json:"attempt"`
}

func NewTimeBasedTickTask() *asynq.Task {
	return asynq.NewTask(TaskTimeBasedTick, nil)
}

func NewInactivitySweepTask() *asynq.Task {
	return asynq.NewTask(TaskInactivitySweep, nil)
}

func NewSendRetryTask(payload SendRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendRetry, data), nil
}

func ParseSendRetryPayload(task *asynq.Task) (SendRetryPayload, error) {
	var payload SendRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SendRetryPayload{}, err
	}
	return payload, nil
}
