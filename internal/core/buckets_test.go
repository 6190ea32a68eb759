package core

import "testing"

func TestClassifyBucketPersonal(t *testing.T) {
	cases := []struct {
		category string
		want     Bucket
	}{
		{"Rent", Essential},
		{"Groceries", Essential},
		{"Health insurance", Essential},
		{"Emergency fund", Savings},
		{"ETF purchase", Investments},
		{"Credit card repayment", DebtFinancing},
		{"Restaurants", FreeSpending},
		{"Streaming subscription", FreeSpending},
		{"General spending", Miscellaneous},
		{"", Miscellaneous},
	}
	for i, tc := range cases {
		if got := ClassifyBucket(tc.category, Personal); got != tc.want {
			t.Fatalf("case %d: ClassifyBucket(%q) = %s, want %s", i, tc.category, got, tc.want)
		}
	}
}

func TestClassifyBucketBusiness(t *testing.T) {
	cases := []struct {
		category string
		want     Bucket
	}{
		{"Payroll", Essential},
		{"SaaS hosting", Essential},
		{"New equipment", Investments},
		{"Loan interest", DebtFinancing},
		{"Cash reserve", Savings},
		{"Client dinner", FreeSpending},
		{"Unclassifiable thing", Miscellaneous},
	}
	for i, tc := range cases {
		if got := ClassifyBucket(tc.category, Business); got != tc.want {
			t.Fatalf("case %d: ClassifyBucket(%q) = %s, want %s", i, tc.category, got, tc.want)
		}
	}
}

// The same wording can land in different buckets per space; the tables
// are ordered so the space bias decides, not the call site.
func TestClassifyBucketSpaceBias(t *testing.T) {
	if got := ClassifyBucket("Travel", Personal); got != FreeSpending {
		t.Fatalf("personal travel: got %s", got)
	}
	if got := ClassifyBucket("Equipment upgrade", Business); got != Investments {
		t.Fatalf("business equipment: got %s", got)
	}
}

func TestBucketValidate(t *testing.T) {
	for _, b := range Buckets() {
		if err := b.Validate(); err != nil {
			t.Fatalf("bucket %s must validate: %v", b, err)
		}
	}
	if err := Bucket("Groceries").Validate(); err != ErrInvalidBucket {
		t.Fatalf("expected ErrInvalidBucket, got %v", err)
	}
}
