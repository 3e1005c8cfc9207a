package partners

import (
	"sort"
	"strings"
)

// SelectParams describes a qualified loan request.
type SelectParams struct {
	LoanType    string
	LoanAmount  float64
	CreditScore int
	Urgent      bool
}

// Select routes a loan request to the best-matching funding partner. Pure and
// deterministic: the same params always yield the same partner.
//
// Specialty routing runs before generic in-house routing on purpose:
// equipment, real-estate and startup requests would otherwise land on a
// generalist.
func Select(params SelectParams) FundingPartner {
	loanType := strings.ToLower(params.LoanType)

	if p, ok := selectSpecialty(loanType, params); ok {
		return p
	}

	if p, ok := selectInHouse(loanType, params); ok {
		return p
	}

	if p, ok := selectGeneric(loanType, params); ok {
		return p
	}

	return DefaultPartner
}

func selectSpecialty(loanType string, params SelectParams) (FundingPartner, bool) {
	if strings.Contains(loanType, "equipment") {
		return mustByID("equipcap"), true
	}

	if strings.Contains(loanType, "real estate") || strings.Contains(loanType, "bridge") || strings.Contains(loanType, "property") {
		candidates := filterBySpecialty("real estate")
		inRange := candidates[:0:0]
		for _, p := range candidates {
			if params.LoanAmount >= p.MinAmount && params.LoanAmount <= p.MaxAmount {
				inRange = append(inRange, p)
			}
		}
		if len(inRange) > 0 {
			sort.SliceStable(inRange, func(i, j int) bool {
				return inRange[i].Priority < inRange[j].Priority
			})
			return inRange[0], true
		}
	}

	if strings.Contains(loanType, "startup") && params.CreditScore >= 700 && params.LoanAmount <= 100_000 {
		return mustByID("zerostart"), true
	}

	sbaLabeled := strings.Contains(loanType, "sba")
	growthLabeled := strings.Contains(loanType, "expansion") || strings.Contains(loanType, "acquisition")
	if (sbaLabeled || growthLabeled) && params.CreditScore >= 650 {
		return mustByID("sba-gateway"), true
	}

	return FundingPartner{}, false
}

func selectInHouse(loanType string, params SelectParams) (FundingPartner, bool) {
	if !isGeneralBusiness(loanType) {
		return FundingPartner{}, false
	}

	inHouse := mustByID("inhouse")
	if params.LoanAmount >= inHouse.MinAmount && params.LoanAmount <= inHouse.MaxAmount && params.CreditScore >= inHouse.MinCredit {
		return inHouse, true
	}
	return FundingPartner{}, false
}

func selectGeneric(loanType string, params SelectParams) (FundingPartner, bool) {
	var eligible []FundingPartner
	for _, p := range Catalog {
		if params.LoanAmount < p.MinAmount || params.LoanAmount > p.MaxAmount {
			continue
		}
		if params.CreditScore < p.MinCredit {
			continue
		}
		if loanType != "" && !matchesPurpose(p, loanType) {
			continue
		}
		eligible = append(eligible, p)
	}

	if len(eligible) == 0 {
		return FundingPartner{}, false
	}

	if params.Urgent {
		sort.SliceStable(eligible, func(i, j int) bool {
			return eligible[i].SpeedDays < eligible[j].SpeedDays
		})
	} else {
		sort.SliceStable(eligible, func(i, j int) bool {
			return eligible[i].Priority < eligible[j].Priority
		})
	}

	return eligible[0], true
}

func isGeneralBusiness(loanType string) bool {
	if loanType == "" {
		return true
	}
	return strings.Contains(loanType, "business") ||
		strings.Contains(loanType, "working capital") ||
		strings.Contains(loanType, "general")
}

func matchesPurpose(p FundingPartner, loanType string) bool {
	for _, s := range p.Specialties {
		if strings.Contains(loanType, s) {
			return true
		}
	}
	// Generalists still qualify for a request with no recognizable keyword.
	for _, s := range p.Specialties {
		if s == "business" && isGeneralBusiness(loanType) {
			return true
		}
	}
	return false
}

func filterBySpecialty(specialty string) []FundingPartner {
	var out []FundingPartner
	for _, p := range Catalog {
		for _, s := range p.Specialties {
			if s == specialty {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func mustByID(id string) FundingPartner {
	p, ok := ByID(id)
	if !ok {
		return DefaultPartner
	}
	return p
}
