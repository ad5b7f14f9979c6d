package domain

import (
	"errors"
	"time"
)

var (
	// ErrSiteNotFound is returned by repositories when no site has the requested code.
	ErrSiteNotFound = errors.New("site not found")

	// ErrMissingSiteCode is returned for upload rows that do not identify a site.
	ErrMissingSiteCode = errors.New("row has no siteCode")
)

// Location is a WGS-84 coordinate pair. Either component may be absent.
type Location struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// TestRecord is one sampling event for one site. Date is nil when the
// upload's date could not be parsed. Records are immutable once stored;
// narrative enrichment lives in a separate store keyed by ID.
type TestRecord struct {
	ID         string             `json:"id"`
	Date       *time.Time         `json:"date"`
	Season     *string            `json:"season"`
	Metals     []MetalMeasurement `json:"metals"`
	HPI        Index              `json:"HPI"`
	HEI        Index              `json:"HEI"`
	RecordedAt time.Time          `json:"recordedAt"`
}

// Site is a sampling location and its test history in upload order.
type Site struct {
	SiteArea  string       `json:"siteArea"`
	State     string       `json:"State"`
	SiteCode  string       `json:"siteCode"`
	Location  Location     `json:"location"`
	Tests     []TestRecord `json:"tests"`
	CreatedAt time.Time    `json:"createdAt"`
}

// SiteSeed carries the site metadata from an upload row. It is only used
// when the row creates a new site; existing sites keep their metadata.
type SiteSeed struct {
	SiteArea string   `json:"siteArea"`
	State    string   `json:"State"`
	SiteCode string   `json:"siteCode"`
	Location Location `json:"location"`
}

// NewSite builds a site from a seed with an empty history.
func NewSite(seed SiteSeed, createdAt time.Time) Site {
	return Site{
		SiteArea:  seed.SiteArea,
		State:     seed.State,
		SiteCode:  seed.SiteCode,
		Location:  seed.Location,
		Tests:     []TestRecord{},
		CreatedAt: createdAt,
	}
}

// SiteTest is an assembled upload row, ready to be appended to a site.
type SiteTest struct {
	Seed SiteSeed
	Test TestRecord
}

// RecordedTest is the event published to the sink topic after a test has
// been appended to its site.
type RecordedTest struct {
	SiteCode    string     `json:"siteCode"`
	SiteArea    string     `json:"siteArea"`
	State       string     `json:"State"`
	Location    Location   `json:"location"`
	SiteCreated bool       `json:"siteCreated"`
	RiskLevel   RiskLevel  `json:"riskLevel"`
	Test        TestRecord `json:"test"`
}

// NewRecordedTest builds the sink event for an appended test.
func NewRecordedTest(st SiteTest, created bool) RecordedTest {
	return RecordedTest{
		SiteCode:    st.Seed.SiteCode,
		SiteArea:    st.Seed.SiteArea,
		State:       st.Seed.State,
		Location:    st.Seed.Location,
		SiteCreated: created,
		RiskLevel:   ClassifyRisk(st.Test.HPI),
		Test:        st.Test,
	}
}
