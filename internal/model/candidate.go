package model

// InsufficientDataIssue marks a candidate for which no enrichment response
// could be parsed.
const InsufficientDataIssue = "insufficient data"

// AnnualCost is the fixed-shape yearly cost breakdown in ILS.
// Each category is clamped to its plausible band after aggregation.
type AnnualCost struct {
	Insurance    int `json:"insurance"`
	Fuel         int `json:"fuel"`
	Maintenance  int `json:"maintenance"`
	Repairs      int `json:"repairs"`
	Depreciation int `json:"depreciation"`
}

// Total returns the combined annual cost, the secondary ranking key
func (c AnnualCost) Total() int {
	return c.Insurance + c.Fuel + c.Maintenance + c.Repairs + c.Depreciation
}

// CandidateRecord is the enriched, aggregated view of one candidate model
type CandidateRecord struct {
	ModelName        string     `json:"model_name"`
	Valid            bool       `json:"valid"`
	Price            *float64   `json:"price,omitempty"`
	ModelYear        *int       `json:"model_year,omitempty"`
	ReliabilityScore int        `json:"reliability_score"` // 0-100
	AnnualCost       AnnualCost `json:"annual_cost"`
	Issues           []string   `json:"issues"`
}

// AggregationResult is the ranked shortlist handed to the presentation
// adapter: at most five valid records in rank order.
type AggregationResult struct {
	Records []CandidateRecord `json:"records"`
	Policy  string            `json:"policy"`
}

// Recommendation is the outcome of one complete advisor run
type Recommendation struct {
	Result AggregationResult `json:"result"`
	Text   string            `json:"text"`
	Took   int64             `json:"took_ms"`
}
