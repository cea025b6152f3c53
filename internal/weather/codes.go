package weather

// WMO天気コードの表示ラベルとアイコン。
var codeTable = map[int]struct {
	label string
	icon  string
}{
	0:  {"Clear sky", "☀"},
	1:  {"Mainly clear", "🌤"},
	2:  {"Partly cloudy", "⛅"},
	3:  {"Overcast", "☁"},
	45: {"Fog", "🌫"},
	48: {"Rime fog", "🌫"},
	51: {"Light drizzle", "🌦"},
	53: {"Drizzle", "🌦"},
	55: {"Dense drizzle", "🌧"},
	61: {"Slight rain", "🌦"},
	63: {"Rain", "🌧"},
	65: {"Heavy rain", "🌧"},
	71: {"Slight snow", "🌨"},
	73: {"Snow", "🌨"},
	75: {"Heavy snow", "❄"},
	80: {"Rain showers", "🌦"},
	81: {"Rain showers", "🌧"},
	82: {"Violent showers", "⛈"},
	95: {"Thunderstorm", "⛈"},
	96: {"Thunderstorm, hail", "⛈"},
	99: {"Thunderstorm, hail", "⛈"},
}

// Describe は天気コードの表示ラベルとアイコンを返す。未知のコードは "Unknown" とする。
func Describe(code int) (label, icon string) {
	if c, ok := codeTable[code]; ok {
		return c.label, c.icon
	}
	return "Unknown", "?"
}
