// Package domain models groundwater heavy-metal sampling data and the
// pollution indices derived from it.
//
// # Data Source
//
// Field teams upload tabular sampling results, one row per sampling event.
// The ingest CLI reads the CSV upload and publishes each row as flat JSON
// (column name -> string value) to the Kafka source topic. Recognized columns:
//
//	siteArea, State, siteCode, lat, lon, date, season
//	Pb, Cd, Zn, Cu, Ni, Mn, As, Cr   (concentrations, µg/L)
//
// Metal columns that are empty or not numeric are skipped; they never count
// as zero. Unknown columns are ignored.
//
// # Reference Constants
//
// Each metal carries three regulatory reference values (see [LookupConstant]):
//
//	S  standard permissible limit
//	I  ideal (background) value
//	B  baseline crustal abundance
//
// The values are literals from the water-quality standard the dashboard
// reports against and are not configurable.
//
// # Per-metal indices
//
// For a concentration M:
//
//	CF   = M / S                  contamination factor
//	Igeo = log2(M / (1.5 * B))    geo-accumulation index
//	EF   = M / B                  enrichment factor
//	ERI  = CF * M                 ecological risk index (uses the rounded CF)
//
// # Aggregate indices
//
// Over every metal with both S and I known:
//
//	Wi  = 1 / S
//	Qi  = (M - I) / (S - I) * 100
//	HPI = Σ(Wi * Qi) / Σ(Wi)
//
// and over every metal with S known:
//
//	HEI = Σ(M / S)
//
// All indices are rounded to three decimals, half away from zero
// (math.Round(x*1000)/1000). A missing constant or a non-finite result
// (log2 of zero, S == I) yields an unavailable [Index], serialized as JSON null.
//
// # Site history
//
// Sites are keyed by siteCode. Each upload row appends one [TestRecord] to the
// site's history. The history is ordered by upload, not by sampling date:
//
//   - the site view, the map view and narrative enrichment treat the last
//     appended test as the latest ([LatestTest]);
//   - the timeline re-sorts by sampling date ([Timeline]);
//   - the overview picks the test with the most recent sampling date
//     ([RiskSummary]).
//
// The two notions of "latest" disagree when rows are uploaded out of date
// order. Both are kept as-is because the views depend on them.
//
// Risk levels bucket the latest HPI:
//
//	HPI < 50 Low | 50 <= HPI < 100 Medium | HPI >= 100 High | otherwise Unknown
package domain
