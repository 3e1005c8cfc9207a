package pipeline

// Resolution is the outcome of a stage lookup. Unresolved means neither the
// name table nor the CRM stage-ID table matched and Stage carries the raw
// input as a best-effort passthrough. Callers can distinguish this from a
// resolved stage instead of treating both as success.
type Resolution struct {
	Stage      string
	Division   Division
	Unresolved bool
}

// crmStageIDs maps external CRM pipeline-stage identifiers to canonical stage
// names. The CRM sends these in webhook payloads instead of display names.
var crmStageIDs = map[string]string{
	"stage_new":            StageNewLead,
	"stage_contacted":      StageInitialContact,
	"stage_qualified":      StageQualified,
	"stage_app_started":    StageApplicationStarted,
	"stage_docs_pending":   StageDocumentsPending,
	"stage_app_complete":   StageFullApplicationComplete,
	"stage_underwriting":   StageUnderwriting,
	"stage_approved":       StageApproved,
	"stage_contract_out":   StageContractOut,
	"stage_contract_sign":  StageContractSigned,
	"stage_funded":         StageFunded,
	"stage_won":            StageAmountWon,
	"stage_disqualified":   StageDisqualified,
	"stage_property":       StagePropertyReview,
	"stage_offer":          StageOfferSubmitted,
	"stage_under_contract": StageUnderContract,
	"stage_closing":        StageClosing,
}

// ResolveStage performs the two-tier stage lookup: canonical name first, then
// CRM stage ID, then an explicit unresolved passthrough.
func ResolveStage(d Division, raw string) Resolution {
	if IsValidStage(d, raw) {
		return Resolution{Stage: raw, Division: d}
	}

	if name, ok := crmStageIDs[raw]; ok && IsValidStage(d, name) {
		return Resolution{Stage: name, Division: d}
	}

	return Resolution{Stage: raw, Division: d, Unresolved: true}
}
