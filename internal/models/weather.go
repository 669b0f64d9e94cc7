package models

// KMA category codes used by the temperature feeds.
const (
	CategoryHourlyTemp  = "TMP" // hourly forecast temperature
	CategoryDailyMin    = "TMN" // forecast daily minimum
	CategoryDailyMax    = "TMX" // forecast daily maximum
	CategoryCurrentTemp = "T1H" // live observation temperature
)

// Feed names, used as cache keys and metric labels.
const (
	FeedForecast    = "forecast"
	FeedObservation = "observation"
)

// GridCoordinate is the KMA forecast grid cell (nx, ny) the service reports on.
type GridCoordinate struct {
	NX int `json:"nx"`
	NY int `json:"ny"`
}

// Slot identifies an upstream broadcast by base date (YYYYMMDD) and base time (HHMM).
type Slot struct {
	Date string
	Time string
}

// TemperatureSample is one decoded upstream record. Date is empty for observations.
type TemperatureSample struct {
	Date     string
	Category string
	Value    float64
}

// DailySummary holds today's temperature statistics; nil fields are absent.
type DailySummary struct {
	Average *float64
	Max     *float64
	Min     *float64
}

// DailyTemperatures is the display form of DailySummary rendered on the index page.
type DailyTemperatures struct {
	Average string `json:"avg"`
	Max     string `json:"max"`
	Min     string `json:"min"`
}

// BlogPost is one blog-search result returned by the recommendation API.
type BlogPost struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	BloggerName string `json:"bloggername"`
}

// WeatherSnapshot is what a weather-decorated page shows.
type WeatherSnapshot struct {
	Current string            `json:"current_temp"`
	Today   DailyTemperatures `json:"today"`
}
