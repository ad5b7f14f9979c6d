package domain

// AssembleTest builds a TestRecord from a parsed row: per-metal indices,
// aggregate HPI/HEI, the sampling date and the season. An unparseable date
// leaves Date nil rather than rejecting the row.
func AssembleTest(row ParsedRow) TestRecord {
	hpi, hei := CalculateAggregate(row.Metals)

	var season *string
	if row.Season != "" {
		s := row.Season
		season = &s
	}

	return TestRecord{
		ID:         newID(),
		Date:       parseSampleDate(row.Date),
		Season:     season,
		Metals:     CalculateMetals(row.Metals),
		HPI:        hpi,
		HEI:        hei,
		RecordedAt: clock.Now().UTC(),
	}
}

// SeedFromRow extracts the site metadata from a parsed row.
func SeedFromRow(row ParsedRow) SiteSeed {
	return SiteSeed{
		SiteArea: row.SiteArea,
		State:    row.State,
		SiteCode: row.SiteCode,
		Location: Location{
			Lat: parseOptionalFloat(row.Lat),
			Lon: parseOptionalFloat(row.Lon),
		},
	}
}

// BuildSiteTest turns a parsed row into an appendable SiteTest.
// Rows without a siteCode are rejected with ErrMissingSiteCode.
func BuildSiteTest(row ParsedRow) (SiteTest, error) {
	if row.SiteCode == "" {
		return SiteTest{}, ErrMissingSiteCode
	}
	return SiteTest{
		Seed: SeedFromRow(row),
		Test: AssembleTest(row),
	}, nil
}
