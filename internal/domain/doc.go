// Package domain models weather observations fetched from the Open-Meteo API.
//
// # Data Source
//
// Observations come from the Open-Meteo forecast endpoint
// (https://api.open-meteo.com/v1/forecast) queried with current=... parameters
// for a fixed set of configured locations. Each response carries a "current"
// object holding the observation timestamp plus one numeric value per
// requested parameter. Open-Meteo reports current conditions at minute
// resolution ("2024-05-11T14:00") with a sampling interval of 15 minutes.
//
// # Metric Columns
//
// Raw API parameter names are mapped to the dataset's column names during
// transformation, e.g. "temperature_2m" becomes "temperature_celsius" and
// "wind_speed_10m" becomes "wind_speed_kmh". Parameters without a mapping
// keep their raw name, so adding a parameter to the API configuration flows
// through to the stored datasets as a new column. See [MetricColumn].
//
// Weather condition codes follow the WMO 4677 table Open-Meteo uses
// (0 = clear sky, 61 = slight rain, 95 = thunderstorm, ...). Codes are kept
// numeric and also resolved to a human-readable description column. See
// [DescribeWeatherCode].
//
// # Extraction Identity
//
// Every observation gets a deterministic extraction ID derived from the
// location ID and the observation timestamp truncated to the minute. Fetching
// the same observation twice (a rerun, a retry, an overlapping schedule)
// yields the same ID, which is what makes every downstream write idempotent:
// raw artifacts overwrite by ID, dataset merges dedupe by ID, and the
// warehouse upserts by ID. See [NewExtractionID].
package domain
