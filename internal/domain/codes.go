package domain

// weatherCodes maps the WMO 4677 condition codes Open-Meteo emits to display
// descriptions. The table covers the codes the API actually produces for
// current conditions; anything else resolves to "Unknown".
var weatherCodes = map[int64]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	95: "Thunderstorm",
}

// DescribeWeatherCode returns the human-readable description for a WMO
// weather code, or "Unknown" for codes outside the table.
func DescribeWeatherCode(code int64) string {
	if desc, ok := weatherCodes[code]; ok {
		return desc
	}
	return "Unknown"
}
