// Package partners provides the static funding-partner catalog and the
// deterministic routing algorithm that matches a qualified loan request to
// the best partner.
package partners

// SubmissionChannel is how a packaged deal reaches the partner.
type SubmissionChannel string

const (
	ChannelEmail  SubmissionChannel = "email"
	ChannelPortal SubmissionChannel = "portal"
	ChannelAPI    SubmissionChannel = "api"
)

// FundingPartner is a static catalog entry. Read-only reference data; never
// created or mutated at runtime.
type FundingPartner struct {
	ID                string
	Name              string
	Specialties       []string
	MinAmount         float64
	MaxAmount         float64
	MinCredit         int
	SpeedDays         int
	Priority          int // lower is preferred
	SubmissionChannel SubmissionChannel
}

// Catalog ordering is not significant; routing priority lives in the
// selector, not in list position.
var Catalog = []FundingPartner{
	{
		ID:                "equipcap",
		Name:              "EquipCap Finance",
		Specialties:       []string{"equipment"},
		MinAmount:         10_000,
		MaxAmount:         2_000_000,
		MinCredit:         600,
		SpeedDays:         5,
		Priority:          1,
		SubmissionChannel: ChannelPortal,
	},
	{
		ID:                "bridgepoint",
		Name:              "Bridgepoint Capital",
		Specialties:       []string{"real estate", "bridge"},
		MinAmount:         100_000,
		MaxAmount:         5_000_000,
		MinCredit:         640,
		SpeedDays:         14,
		Priority:          1,
		SubmissionChannel: ChannelEmail,
	},
	{
		ID:                "summit-re",
		Name:              "Summit RE Lending",
		Specialties:       []string{"real estate", "bridge"},
		MinAmount:         25_000,
		MaxAmount:         750_000,
		MinCredit:         620,
		SpeedDays:         10,
		Priority:          2,
		SubmissionChannel: ChannelPortal,
	},
	{
		ID:                "zerostart",
		Name:              "ZeroStart Funding",
		Specialties:       []string{"startup"},
		MinAmount:         10_000,
		MaxAmount:         100_000,
		MinCredit:         700,
		SpeedDays:         21,
		Priority:          1,
		SubmissionChannel: ChannelPortal,
	},
	{
		ID:                "sba-gateway",
		Name:              "SBA Gateway Partners",
		Specialties:       []string{"sba", "expansion", "acquisition"},
		MinAmount:         50_000,
		MaxAmount:         5_000_000,
		MinCredit:         650,
		SpeedDays:         45,
		Priority:          1,
		SubmissionChannel: ChannelEmail,
	},
	{
		ID:                "inhouse",
		Name:              "In-House Fund",
		Specialties:       []string{"business", "working capital"},
		MinAmount:         25_000,
		MaxAmount:         500_000,
		MinCredit:         620,
		SpeedDays:         7,
		Priority:          0,
		SubmissionChannel: ChannelAPI,
	},
	{
		ID:                "rapid-advance",
		Name:              "Rapid Advance Group",
		Specialties:       []string{"business", "working capital", "merchant"},
		MinAmount:         5_000,
		MaxAmount:         250_000,
		MinCredit:         550,
		SpeedDays:         2,
		Priority:          5,
		SubmissionChannel: ChannelAPI,
	},
	{
		ID:                "meridian",
		Name:              "Meridian Business Credit",
		Specialties:       []string{"business", "working capital", "expansion"},
		MinAmount:         50_000,
		MaxAmount:         1_500_000,
		MinCredit:         660,
		SpeedDays:         7,
		Priority:          2,
		SubmissionChannel: ChannelEmail,
	},
	{
		ID:                "capital-union",
		Name:              "Capital Union",
		Specialties:       []string{"business", "working capital", "equipment", "expansion"},
		MinAmount:         100_000,
		MaxAmount:         3_000_000,
		MinCredit:         680,
		SpeedDays:         12,
		Priority:          3,
		SubmissionChannel: ChannelPortal,
	},
}

// DefaultPartner is the hard-coded fallback when no catalog entry matches.
var DefaultPartner = FundingPartner{
	ID:                "fundingdesk",
	Name:              "FundingDesk Marketplace",
	Specialties:       []string{"business"},
	MinAmount:         5_000,
	MaxAmount:         5_000_000,
	MinCredit:         500,
	SpeedDays:         10,
	Priority:          9,
	SubmissionChannel: ChannelEmail,
}

// ByID returns the catalog entry with the given id.
func ByID(id string) (FundingPartner, bool) {
	for _, p := range Catalog {
		if p.ID == id {
			return p, true
		}
	}
	if id == DefaultPartner.ID {
		return DefaultPartner, true
	}
	return FundingPartner{}, false
}
