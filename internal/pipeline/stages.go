// Package pipeline provides the per-division pipeline state machine for
// opportunities, including canonical stage lists and transition rules.
package pipeline

// Division identifies a business line. Each division carries its own ordered
// stage list and document requirements.
type Division string

const (
	DivisionLending    Division = "lending"
	DivisionInvestment Division = "investment"
	DivisionRealEstate Division = "real_estate"
)

const (
	StageNewLead                 = "New Lead"
	StageInitialContact          = "Initial Contact"
	StageQualified               = "Qualified"
	StageApplicationStarted      = "Application Started"
	StageDocumentsPending        = "Documents Pending"
	StageFullApplicationComplete = "Full Application Complete"
	StageUnderwriting            = "Underwriting"
	StageApproved                = "Approved"
	StageContractOut             = "Contract Out"
	StageContractSigned          = "Contract Signed"
	StageFunded                  = "Funded $"
	StageAmountWon               = "Amount Won $"
	StageDisqualified            = "Disqualified"

	StagePresentationScheduled = "Presentation Scheduled"
	StagePresentationComplete  = "Presentation Complete"
	StageCommitmentPending     = "Commitment Pending"

	StagePropertyReview = "Property Review"
	StageOfferSubmitted = "Offer Submitted"
	StageUnderContract  = "Under Contract"
	StageClosing        = "Closing"
)

// stageLists holds the ordered canonical stage list per division. Disqualified
// is an absorbing alternate terminal reachable from any non-terminal stage.
var stageLists = map[Division][]string{
	DivisionLending: {
		StageNewLead,
		StageInitialContact,
		StageQualified,
		StageApplicationStarted,
		StageDocumentsPending,
		StageFullApplicationComplete,
		StageUnderwriting,
		StageApproved,
		StageContractOut,
		StageContractSigned,
		StageFunded,
		StageAmountWon,
	},
	DivisionInvestment: {
		StageNewLead,
		StageInitialContact,
		StageQualified,
		StagePresentationScheduled,
		StagePresentationComplete,
		StageCommitmentPending,
		StageAmountWon,
	},
	DivisionRealEstate: {
		StageNewLead,
		StageInitialContact,
		StageQualified,
		StagePropertyReview,
		StageOfferSubmitted,
		StageUnderContract,
		StageClosing,
		StageFunded,
	},
}

// terminalStages accept no further automatic transitions. Attempts are a
// no-op, not an error, so manual override paths stay open.
var terminalStages = map[string]bool{
	StageFunded:       true,
	StageAmountWon:    true,
	StageDisqualified: true,
}

// IsKnownDivision reports whether the division has a canonical stage list.
func IsKnownDivision(d Division) bool {
	_, ok := stageLists[d]
	return ok
}

// Stages returns the ordered stage list for a division. The returned slice
// must not be mutated.
func Stages(d Division) []string {
	return stageLists[d]
}

// IsValidStage reports whether stage belongs to the division's canonical
// list. Disqualified is valid for every division.
func IsValidStage(d Division, stage string) bool {
	if stage == StageDisqualified {
		return true
	}
	for _, s := range stageLists[d] {
		if s == stage {
			return true
		}
	}
	return false
}

// IsTerminalStage reports whether the stage accepts no automatic transitions.
func IsTerminalStage(stage string) bool {
	return terminalStages[stage]
}
