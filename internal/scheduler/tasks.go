package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskDocumentExpiryNotice = "documents.expiry_notice"

const TaskFollowUpNudge = "leads.followup_nudge"

type DocumentExpiryNoticePayload struct {
	Token         string `json:"token"`
	EntityID      string `json:"entityId"`
	OpportunityID string `json:"opportunityId"`
}

type FollowUpNudgePayload struct {
	EntityID      string `json:"entityId"`
	OpportunityID string `json:"opportunityId"`
	Stage         string `json:"stage"`
}

func NewDocumentExpiryNoticeTask(payload DocumentExpiryNoticePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentExpiryNotice, data), nil
}

func ParseDocumentExpiryNoticePayload(task *asynq.Task) (DocumentExpiryNoticePayload, error) {
	var payload DocumentExpiryNoticePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DocumentExpiryNoticePayload{}, err
	}
	return payload, nil
}

func NewFollowUpNudgeTask(payload FollowUpNudgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowUpNudge, data), nil
}

func ParseFollowUpNudgePayload(task *asynq.Task) (FollowUpNudgePayload, error) {
	var payload FollowUpNudgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowUpNudgePayload{}, err
	}
	return payload, nil
}
