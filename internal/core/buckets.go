package core

import (
	"regexp"
	"strings"
)

// Bucket is one of the six fixed semantic spending categories. Business
// UIs relabel these for display; the identifiers themselves never change.
type Bucket string

const (
	Essential     Bucket = "Essential"
	Savings       Bucket = "Savings"
	FreeSpending  Bucket = "Free Spending"
	Investments   Bucket = "Investments"
	Miscellaneous Bucket = "Miscellaneous"
	DebtFinancing Bucket = "Debt Financing"
)

// Buckets lists every valid bucket.
func Buckets() []Bucket {
	return []Bucket{Essential, Savings, FreeSpending, Investments, Miscellaneous, DebtFinancing}
}

func (b Bucket) Validate() error {
	switch b {
	case Essential, Savings, FreeSpending, Investments, Miscellaneous, DebtFinancing:
		return nil
	}
	return ErrInvalidBucket
}

// bucketRule maps a category keyword pattern to a bucket. Rules are
// evaluated in order against the lower-cased category; first match wins.
type bucketRule struct {
	pattern *regexp.Regexp
	bucket  Bucket
}

var personalBucketRules = []bucketRule{
	{regexp.MustCompile(`rent|mortgage|housing|utilit|electric|water|gas bill|grocer|food|supermarket|insurance|medical|health|pharmacy|transport|fuel|commute|phone|internet`), Essential},
	{regexp.MustCompile(`saving|emergency fund|deposit`), Savings},
	{regexp.MustCompile(`invest|stock|etf|crypto|pension|retirement`), Investments},
	{regexp.MustCompile(`loan|debt|credit card|repayment|interest|mortgage payment`), DebtFinancing},
	{regexp.MustCompile(`dining|restaurant|coffee|entertain|movie|game|hobby|travel|vacation|shopping|clothes|subscription|streaming`), FreeSpending},
}

var businessBucketRules = []bucketRule{
	{regexp.MustCompile(`payroll|salar|wage|rent|office|lease|utilit|software|saas|hosting|server|supplies|inventory|insurance|tax|accounting|legal`), Essential},
	{regexp.MustCompile(`invest|equipment|capital|expansion|r&d|research`), Investments},
	{regexp.MustCompile(`loan|debt|credit|financing|repayment|interest`), DebtFinancing},
	{regexp.MustCompile(`reserve|saving|retained`), Savings},
	{regexp.MustCompile(`marketing|travel|entertain|meal|conference|client`), FreeSpending},
}

// ClassifyBucket infers a bucket from a free-text category. The keyword
// tables are heuristics: callers that carry an explicit user selection
// must prefer it over the inferred value. Unmatched input falls back to
// Miscellaneous.
func ClassifyBucket(category string, space Space) Bucket {
	rules := personalBucketRules
	if space == Business {
		rules = businessBucketRules
	}
	lowered := strings.ToLower(category)
	for _, r := range rules {
		if r.pattern.MatchString(lowered) {
			return r.bucket
		}
	}
	return Miscellaneous
}
