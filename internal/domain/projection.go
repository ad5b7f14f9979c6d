package domain

import (
	"sort"
	"strconv"
	"time"
)

// RiskLevel buckets a site by the HPI of its latest test.
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// riskOrder is the order buckets are reported in.
var riskOrder = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskUnknown}

// UndatedYear is the timeline key for tests whose date could not be parsed.
const UndatedYear = "unknown"

// ClassifyRisk maps an HPI to a risk level: <50 Low, [50,100) Medium,
// >=100 High, unavailable Unknown.
func ClassifyRisk(hpi Index) RiskLevel {
	if !hpi.Valid {
		return RiskUnknown
	}
	switch {
	case hpi.Value < 50:
		return RiskLow
	case hpi.Value < 100:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// LatestTest returns the most recently uploaded test, which is the last
// element of the history regardless of sampling dates.
func LatestTest(site Site) (TestRecord, bool) {
	if len(site.Tests) == 0 {
		return TestRecord{}, false
	}
	return site.Tests[len(site.Tests)-1], true
}

// LatestSampled returns the test with the most recent sampling date. Ties go
// to the later upload. Undated tests are only considered when no test has a
// date, in which case the last upload wins.
func LatestSampled(site Site) (TestRecord, bool) {
	if len(site.Tests) == 0 {
		return TestRecord{}, false
	}
	best := -1
	for i, t := range site.Tests {
		if t.Date == nil {
			continue
		}
		if best < 0 || !t.Date.Before(*site.Tests[best].Date) {
			best = i
		}
	}
	if best < 0 {
		return site.Tests[len(site.Tests)-1], true
	}
	return site.Tests[best], true
}

// TimelineEntry is one test as shown on a site's timeline.
type TimelineEntry struct {
	Date   *time.Time         `json:"date"`
	HPI    Index              `json:"HPI"`
	HEI    Index              `json:"HEI"`
	Metals []MetalMeasurement `json:"metals"`
}

// Timeline sorts a site's tests by sampling date (ascending, stable) and
// groups them by calendar year in UTC. Undated tests sort last and are
// grouped under UndatedYear.
func Timeline(site Site) map[string][]TimelineEntry {
	tests := make([]TestRecord, len(site.Tests))
	copy(tests, site.Tests)

	sort.SliceStable(tests, func(i, j int) bool {
		a, b := tests[i].Date, tests[j].Date
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	grouped := make(map[string][]TimelineEntry)
	for _, t := range tests {
		key := UndatedYear
		if t.Date != nil {
			key = strconv.Itoa(t.Date.UTC().Year())
		}
		grouped[key] = append(grouped[key], TimelineEntry{
			Date:   t.Date,
			HPI:    t.HPI,
			HEI:    t.HEI,
			Metals: t.Metals,
		})
	}
	return grouped
}

// MapSite is a site with its latest uploaded test, for map layers.
type MapSite struct {
	SiteArea   string      `json:"siteArea"`
	State      string      `json:"State"`
	SiteCode   string      `json:"siteCode"`
	Location   Location    `json:"location"`
	LatestTest *TestRecord `json:"latestTest"`
}

// MapSites projects sites onto their latest uploaded test (last element).
func MapSites(sites []Site) []MapSite {
	out := make([]MapSite, 0, len(sites))
	for _, s := range sites {
		ms := MapSite{
			SiteArea: s.SiteArea,
			State:    s.State,
			SiteCode: s.SiteCode,
			Location: s.Location,
		}
		if t, ok := LatestTest(s); ok {
			ms.LatestTest = &t
		}
		out = append(out, ms)
	}
	return out
}

// RiskSite is a site entry within a risk bucket.
type RiskSite struct {
	SiteCode  string   `json:"siteCode"`
	SiteArea  string   `json:"siteArea"`
	State     string   `json:"State"`
	Location  Location `json:"location"`
	LatestHPI Index    `json:"latestHPI"`
}

// RiskBucket groups the sites sharing a risk level.
type RiskBucket struct {
	Level RiskLevel  `json:"riskLevel"`
	Count int        `json:"count"`
	Sites []RiskSite `json:"sites"`
}

// RiskSummary buckets every site with at least one test by the HPI of its
// most recently sampled test (see LatestSampled). Buckets are returned in
// Low, Medium, High, Unknown order; empty buckets are omitted.
func RiskSummary(sites []Site) []RiskBucket {
	byLevel := make(map[RiskLevel][]RiskSite)
	for _, s := range sites {
		t, ok := LatestSampled(s)
		if !ok {
			continue
		}
		level := ClassifyRisk(t.HPI)
		byLevel[level] = append(byLevel[level], RiskSite{
			SiteCode:  s.SiteCode,
			SiteArea:  s.SiteArea,
			State:     s.State,
			Location:  s.Location,
			LatestHPI: t.HPI,
		})
	}

	out := make([]RiskBucket, 0, len(byLevel))
	for _, level := range riskOrder {
		entries, ok := byLevel[level]
		if !ok {
			continue
		}
		out = append(out, RiskBucket{Level: level, Count: len(entries), Sites: entries})
	}
	return out
}
