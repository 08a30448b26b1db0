package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskReminderSend = "reminders.send"

const TaskCampaignRun = "campaigns.run"

const (
	TaskScanNoReply    = "scans.noreply"
	TaskScanDepositDue = "scans.depositdue"
	TaskScanDunning    = "scans.dunning"
)

type ReminderSendPayload struct {
	ReminderID     string `json:"reminderId"`
	OrganizationID string `json:"organizationId"`
}

type CampaignRunPayload struct {
	CampaignID     string `json:"campaignId"`
	OrganizationID string `json:"organizationId"`
}

func NewReminderSendTask(payload ReminderSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReminderSend, data), nil
}

func ParseReminderSendPayload(task *asynq.Task) (ReminderSendPayload, error) {
	var payload ReminderSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReminderSendPayload{}, err
	}
	return payload, nil
}

func NewCampaignRunTask(payload CampaignRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCampaignRun, data), nil
}

func ParseCampaignRunPayload(task *asynq.Task) (CampaignRunPayload, error) {
	var payload CampaignRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CampaignRunPayload{}, err
	}
	return payload, nil
}
