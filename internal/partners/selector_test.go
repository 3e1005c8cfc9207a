package partners

import "testing"

func TestSelect_EquipmentRoutesToSpecialist(t *testing.T) {
	params := SelectParams{LoanType: "equipment purchase", LoanAmount: 200_000, CreditScore: 680}

	// Repetition must not change the outcome.
	for i := 0; i < 3; i++ {
		got := Select(params)
		if got.ID != "equipcap" {
			t.Fatalf("expected equipment specialist, got %s", got.ID)
		}
	}
}

func TestSelect_StartupRequiresCreditFloor(t *testing.T) {
	qualified := Select(SelectParams{LoanType: "startup capital", LoanAmount: 50_000, CreditScore: 720})
	if qualified.ID != "zerostart" {
		t.Fatalf("expected zero-percent startup partner, got %s", qualified.ID)
	}

	belowFloor := Select(SelectParams{LoanType: "startup capital", LoanAmount: 50_000, CreditScore: 650})
	if belowFloor.ID == "zerostart" {
		t.Fatal("credit 650 must not route to the startup partner")
	}
}

func TestSelect_StartupAmountCap(t *testing.T) {
	got := Select(SelectParams{LoanType: "startup capital", LoanAmount: 150_000, CreditScore: 750})
	if got.ID == "zerostart" {
		t.Fatal("amounts above 100k must not route to the startup partner")
	}
}

func TestSelect_RealEstateLowestPriorityWins(t *testing.T) {
	// 300k fits both real-estate specialists; bridgepoint has the lower
	// priority number and must win.
	got := Select(SelectParams{LoanType: "real estate bridge loan", LoanAmount: 300_000, CreditScore: 700})
	if got.ID != "bridgepoint" {
		t.Fatalf("expected bridgepoint, got %s", got.ID)
	}

	// 50k only fits summit-re's band.
	got = Select(SelectParams{LoanType: "bridge loan", LoanAmount: 50_000, CreditScore: 700})
	if got.ID != "summit-re" {
		t.Fatalf("expected summit-re for small bridge loan, got %s", got.ID)
	}
}

func TestSelect_SBAAndExpansionRouting(t *testing.T) {
	cases := []struct {
		loanType string
		credit   int
		wantSBA  bool
	}{
		{"sba 7a loan", 660, true},
		{"business expansion", 700, true},
		{"practice acquisition", 650, true},
		{"business expansion", 600, false},
	}

	for _, tc := range cases {
		got := Select(SelectParams{LoanType: tc.loanType, LoanAmount: 400_000, CreditScore: tc.credit})
		isSBA := got.ID == "sba-gateway"
		if isSBA != tc.wantSBA {
			t.Errorf("Select(%q, credit %d) = %s, wantSBA=%v", tc.loanType, tc.credit, got.ID, tc.wantSBA)
		}
	}
}

func TestSelect_GeneralBusinessRoutesInHouse(t *testing.T) {
	got := Select(SelectParams{LoanType: "business working capital", LoanAmount: 100_000, CreditScore: 650})
	if got.ID != "inhouse" {
		t.Fatalf("expected in-house fund, got %s", got.ID)
	}
}

func TestSelect_OutsideInHouseBandFallsToGeneric(t *testing.T) {
	// 1M exceeds the in-house band; meridian (priority 2) beats
	// capital-union (priority 3) in non-urgent routing.
	got := Select(SelectParams{LoanType: "business working capital", LoanAmount: 1_000_000, CreditScore: 700})
	if got.ID != "meridian" {
		t.Fatalf("expected meridian, got %s", got.ID)
	}
}

func TestSelect_UrgencySortsBySpeed(t *testing.T) {
	// Below in-house credit floor: generic routing applies. Urgent picks the
	// fastest eligible partner rather than the best priority.
	got := Select(SelectParams{LoanType: "business working capital", LoanAmount: 50_000, CreditScore: 560, Urgent: true})
	if got.ID != "rapid-advance" {
		t.Fatalf("expected rapid-advance for urgent request, got %s", got.ID)
	}
}

func TestSelect_NoMatchFallsBackToDefault(t *testing.T) {
	got := Select(SelectParams{LoanType: "startup capital", LoanAmount: 50_000, CreditScore: 400})
	if got.ID != DefaultPartner.ID {
		t.Fatalf("expected default partner, got %s", got.ID)
	}
}
