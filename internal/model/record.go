package model

// CarbonScopes and CarbonYears define the full carbon-footprint matrix every
// normalized record carries. Cells are strings (empty when unreported) so the
// tabular exporters never deal with missing or typed-null values.
var (
	CarbonScopes = []string{"scope1", "scope2", "scope3", "total"}
	CarbonYears  = []string{"2022", "2023", "2024"}
)

// CarbonKey builds the matrix key for one scope/year cell, e.g. "scope1_2023".
func CarbonKey(scope, year string) string {
	return scope + "_" + year
}

// Address is a postal address inside CompanyDetails.
type Address struct {
	Street  string `json:"street"`
	ZipCode string `json:"zipCode"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// ContactInfo holds company contact channels.
type ContactInfo struct {
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website"`
}

// CompanyDetails is the company master-data block of a record. The normalizer
// guarantees the block exists and is structurally complete even when the model
// reported nothing.
type CompanyDetails struct {
	LegalName     string      `json:"legalName"`
	Description   string      `json:"description"`
	Sector        string      `json:"sector"`
	Address       Address     `json:"address"`
	ContactInfo   ContactInfo `json:"contactInfo"`
	FoundingYear  string      `json:"foundingYear"`
	EmployeeRange string      `json:"employeeRange"`
	RevenueRange  string      `json:"revenueRange"`
}

// BasicInformation describes the report the record was extracted from.
type BasicInformation struct {
	CompanyName     string `json:"companyName"`
	ReportTitle     string `json:"reportTitle"`
	ReportingPeriod string `json:"reportingPeriod"`
	ReportURL       string `json:"reportUrl"`
}

// CriterionActions holds the ranked action bullet points for one criterion.
// Extracts carries the supporting quote/explanation when the call site
// requires it.
type CriterionActions struct {
	Actions  []string `json:"actions"`
	Extracts string   `json:"extracts,omitempty"`
}

// ExtractedRecord is the normalized, schema-complete ESG data object for one
// source record. Invariants (enforced by the normalizer, relied on by the
// exporters):
//
//   - Criteria contains every criterion ID required for Industry, each with a
//     non-empty Actions list (placeholder if nothing was found).
//   - CarbonFootprint contains every scope x year cell as a string.
type ExtractedRecord struct {
	Industry         string                      `json:"industry,omitempty"`
	SourceType       string                      `json:"sourceType,omitempty"`
	CompanyDetails   *CompanyDetails             `json:"companyDetails,omitempty"`
	BasicInformation *BasicInformation           `json:"basicInformation,omitempty"`
	Abstract         string                      `json:"abstract,omitempty"`
	Highlights       []string                    `json:"highlights,omitempty"`
	Criteria         map[string]CriterionActions `json:"criteria,omitempty"`
	CarbonFootprint  map[string]string           `json:"carbonFootprint,omitempty"`
	ClimateStandards map[string]string           `json:"climateStandards,omitempty"`
	OtherInitiatives string                      `json:"otherInitiatives,omitempty"`
	Controversies    string                      `json:"controversies,omitempty"`

	// Failure side-channel: set only on fallback records so downstream
	// export rows are clearly marked instead of silently dropped.
	ExtractionError string `json:"extractionError,omitempty"`
	RawExcerpt      string `json:"rawExcerpt,omitempty"`
}

// Failed reports whether the record is a synthesized fallback for a
// failed extraction.
func (r *ExtractedRecord) Failed() bool {
	return r.ExtractionError != ""
}
