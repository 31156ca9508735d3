// ABOUTME: WMO weather interpretation codes used by Open-Meteo.
// ABOUTME: Maps codes to labels and to the thunder/snow/rain classes used by advice rules.

package forecast

var wmoLabels = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Freezing drizzle",
	57: "Freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Freezing rain",
	67: "Freezing rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Rain showers",
	81: "Rain showers",
	82: "Violent rain showers",
	85: "Snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with heavy hail",
}

// Describe returns a human label for a WMO code.
func Describe(code int) string {
	if label, ok := wmoLabels[code]; ok {
		return label
	}
	return "Unknown"
}

// IsThunder reports thunderstorm codes.
func IsThunder(code int) bool {
	return code == 95 || code == 96 || code == 99
}

// IsSnow reports snowfall codes.
func IsSnow(code int) bool {
	switch code {
	case 71, 73, 75, 77, 85, 86:
		return true
	}
	return false
}

// IsRain reports rain and drizzle codes.
func IsRain(code int) bool {
	switch code {
	case 51, 53, 55, 56, 57, 61, 63, 65, 66, 67, 80, 81, 82:
		return true
	}
	return false
}
