package workflow

import (
	"time"

	"brokerage_backend/internal/pipeline"
)

// DefaultCatalog returns the built-in workflow definitions. The catalog is
// declarative so operators can review the whole automation surface in one
// place; a zero Cooldown falls back to the engine default.
func DefaultCatalog() []Definition {
	return []Definition{
		{
			ID:      "welcome-sms",
			Name:    "Welcome SMS on new lead",
			Trigger: Trigger{Type: TriggerNewLead},
			Actions: []Action{
				{
					Type:     ActionSendSMS,
					Template: "Hi {{first_name}}, thanks for reaching out about {{loan_type}} funding. A specialist will contact you shortly.",
				},
				{Type: ActionTagContact, Tags: []string{"new-lead", "automated-welcome"}},
			},
			Enabled: true,
		},
		{
			ID:      "hot-lead-escalation",
			Name:    "Escalate hot leads to a callback task",
			Trigger: Trigger{Type: TriggerNewLead},
			Conditions: []Condition{
				{Field: "priority", Operator: OpEquals, Value: "hot"},
			},
			Actions: []Action{
				{Type: ActionCreateTask, TaskTitle: "Call hot lead {{first_name}} {{last_name}} within 15 minutes"},
				{Type: ActionTagContact, Tags: []string{"hot-lead"}},
			},
			Enabled:  true,
			Cooldown: time.Hour,
		},
		{
			ID:      "docs-pending-request",
			Name:    "Document request on Documents Pending",
			Trigger: Trigger{Type: TriggerStageChanged, Stage: pipeline.StageDocumentsPending},
			Actions: []Action{
				{
					Type:     ActionSendEmail,
					Subject:  "Documents needed for your {{loan_type}} application",
					Template: "<p>Hi {{first_name}},</p><p>To keep your application moving we need your ID, bank statements, and business license. Use your secure upload link: {{upload_url}}</p>",
				},
				{
					Type:     ActionSendSMS,
					Template: "{{first_name}}, your funding application needs documents. Upload them here: {{upload_url}}",
				},
				{Type: ActionTriggerExternalWF},
			},
			Enabled: true,
		},
		{
			ID:      "application-started-nudge",
			Name:    "Follow up when an application is started",
			Trigger: Trigger{Type: TriggerStageChanged, Stage: pipeline.StageApplicationStarted},
			Actions: []Action{
				{Type: ActionCreateTask, TaskTitle: "Review new application for {{first_name}} {{last_name}}"},
				{Type: ActionTriggerExternalWF},
			},
			Enabled: true,
		},
		{
			ID:      "underwriting-notice",
			Name:    "Notify borrower their file is in underwriting",
			Trigger: Trigger{Type: TriggerStageChanged, Stage: pipeline.StageUnderwriting},
			Actions: []Action{
				{
					Type:     ActionSendEmail,
					Subject:  "Your application is in underwriting",
					Template: "<p>Hi {{first_name}},</p><p>Your {{loan_type}} application of {{loan_amount}} is now with our underwriting team. We will reach out if anything else is needed.</p>",
				},
			},
			Enabled: true,
		},
		{
			ID:      "approval-congrats",
			Name:    "Congratulate on approval",
			Trigger: Trigger{Type: TriggerStageChanged, Stage: pipeline.StageApproved},
			Actions: []Action{
				{
					Type:     ActionSendSMS,
					Template: "Great news {{first_name}}! Your {{loan_type}} application has been approved. Your contract is on the way.",
				},
				{Type: ActionTagContact, Tags: []string{"approved"}},
				{Type: ActionTriggerExternalWF},
			},
			Enabled: true,
		},
		{
			ID:      "funded-celebration",
			Name:    "Funded follow-through",
			Trigger: Trigger{Type: TriggerStageChanged, Stage: pipeline.StageFunded},
			Actions: []Action{
				{
					Type:     ActionSendEmail,
					Subject:  "Congratulations, your funding is complete",
					Template: "<p>Hi {{first_name}},</p><p>Your funding has been disbursed. Thank you for working with us. We would love a referral or a review.</p>",
				},
				{Type: ActionTagContact, Tags: []string{"funded", "referral-candidate"}},
			},
			Enabled: true,
		},
		{
			ID:      "documents-complete-advance",
			Name:    "Advance pipeline when the document set completes",
			Trigger: Trigger{Type: TriggerDocumentsComplete},
			Actions: []Action{
				{Type: ActionUpdateStage, Stage: pipeline.StageFullApplicationComplete},
				{
					Type:     ActionSendSMS,
					Template: "Thanks {{first_name}}, we received everything we need. Your file is moving to review.",
				},
			},
			Enabled:  true,
			Cooldown: time.Hour,
		},
		{
			ID:      "abandoned-lead-nudge",
			Name:    "Re-engage abandoned leads",
			Trigger: Trigger{Type: TriggerTimeElapsed, Threshold: 7 * 24 * time.Hour, Source: SourceAbandonedLeads},
			Actions: []Action{
				{
					Type:     ActionSendSMS,
					Template: "Hi {{first_name}}, still interested in {{loan_type}} funding? Reply YES and we will pick up right where we left off.",
				},
				{Type: ActionTagContact, Tags: []string{"re-engagement"}},
			},
			Enabled: true,
		},
		{
			ID:      "stuck-opportunity-alert",
			Name:    "Flag opportunities stalled past three days",
			Trigger: Trigger{Type: TriggerTimeElapsed, Threshold: 72 * time.Hour, Source: SourceStuckOpportunities},
			Actions: []Action{
				{Type: ActionCreateTask, TaskTitle: "Opportunity for {{first_name}} {{last_name}} stalled in {{stage}}"},
			},
			Enabled: true,
		},
		{
			ID:      "stage-followup-nudge",
			Name:    "Daily follow-up for attention stages",
			Trigger: Trigger{Type: TriggerTimeElapsed, Threshold: 24 * time.Hour, Source: SourceStageFollowUp},
			Actions: []Action{
				{Type: ActionCreateTask, TaskTitle: "Follow up with {{first_name}} {{last_name}} in {{stage}}"},
				{
					Type:     ActionSendSMS,
					Template: "Hi {{first_name}}, checking in on your funding application. Anything we can help with?",
				},
			},
			Enabled: true,
		},
		{
			ID:      "document-expiry-warning",
			Name:    "Warn before an upload link expires",
			Trigger: Trigger{Type: TriggerTimeElapsed, Source: SourceDocumentExpiry},
			Actions: []Action{
				{
					Type:     ActionSendSMS,
					Template: "{{first_name}}, your secure document upload link expires soon. Please upload the remaining items: {{missing_documents}}",
				},
				{
					Type:     ActionSendEmail,
					Subject:  "Your document upload link expires soon",
					Template: "<p>Hi {{first_name}},</p><p>Your secure upload link is about to expire. Still needed: {{missing_documents}}.</p>",
				},
			},
			Enabled: true,
		},
		{
			ID:      "high-value-ai-followup",
			Name:    "AI-drafted follow-up for large requests",
			Trigger: Trigger{Type: TriggerStageChanged, Stage: pipeline.StageQualified},
			Conditions: []Condition{
				{Field: "loan_amount", Operator: OpGreaterThan, Value: "250000"},
			},
			Actions: []Action{
				{
					Type:      ActionAIFollowup,
					Directive: "Draft a personalized follow-up for a qualified high-value borrower summarizing next steps.",
				},
			},
			Enabled: true,
		},
		{
			ID:      "partner-webhook-relay",
			Name:    "Relay webhook events to the partner desk",
			Trigger: Trigger{Type: TriggerWebhookReceived, Source: "partner-desk"},
			Actions: []Action{
				{
					Type:    ActionWebhook,
					URL:     "https://hooks.internal.fundingdesk.example/relay",
					Payload: map[string]any{"channel": "partner-desk"},
				},
			},
			Enabled: true,
		},
	}
}

// DefaultStageAutomations maps pipeline stages to the external CRM automation
// ids fired by trigger_external_workflow actions. Stages without a mapping are
// intentionally absent; the engine treats them as no-ops.
func DefaultStageAutomations() map[string]string {
	return map[string]string{
		pipeline.StageDocumentsPending:   "crm-auto-doc-request",
		pipeline.StageApplicationStarted: "crm-auto-app-started",
		pipeline.StageApproved:           "crm-auto-approved",
		pipeline.StageContractOut:        "crm-auto-contract-out",
		pipeline.StageFunded:             "crm-auto-funded",
	}
}
