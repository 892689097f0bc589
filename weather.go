package netatmo

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// Station and module types reported by the weather API.
const (
	TypeStation       = "NAMain"
	TypeOutdoorModule = "NAModule1"
	TypeWindModule    = "NAModule2"
	TypeRainModule    = "NAModule3"
	TypeIndoorModule  = "NAModule4"
)

// StationsData is the payload of a stations data call: every weather
// station the account can see, plus the owning user.
type StationsData struct {
	Devices []*Device `json:"devices"`
	User    *User     `json:"user,omitempty"`
}

// Device is a weather station base unit (or a home coach device, which
// shares the same shape).
type Device struct {
	ID              string         `json:"_id"`
	Type            string         `json:"type"`
	StationName     string         `json:"station_name,omitempty"`
	ModuleName      string         `json:"module_name,omitempty"`
	HomeID          string         `json:"home_id,omitempty"`
	HomeName        string         `json:"home_name,omitempty"`
	Firmware        int            `json:"firmware,omitempty"`
	WifiStatus      int            `json:"wifi_status,omitempty"`
	Reachable       bool           `json:"reachable,omitempty"`
	CO2Calibrating  bool           `json:"co2_calibrating,omitempty"`
	DateSetup       int64          `json:"date_setup,omitempty"`
	LastSetup       int64          `json:"last_setup,omitempty"`
	LastStatusStore int64          `json:"last_status_store,omitempty"`
	LastUpgrade     int64          `json:"last_upgrade,omitempty"`
	DataType        []string       `json:"data_type,omitempty"`
	Place           *Place         `json:"place,omitempty"`
	DashboardData   *DashboardData `json:"dashboard_data,omitempty"`
	Modules         []*Module      `json:"modules,omitempty"`
}

// Module is a wireless module paired with a station: outdoor, wind, rain or
// additional indoor.
type Module struct {
	ID             string         `json:"_id"`
	Type           string         `json:"type"`
	ModuleName     string         `json:"module_name,omitempty"`
	Firmware       int            `json:"firmware,omitempty"`
	RFStatus       int            `json:"rf_status,omitempty"`
	BatteryVP      int            `json:"battery_vp,omitempty"`
	BatteryPercent int            `json:"battery_percent,omitempty"`
	Reachable      bool           `json:"reachable,omitempty"`
	LastSetup      int64          `json:"last_setup,omitempty"`
	LastMessage    int64          `json:"last_message,omitempty"`
	LastSeen       int64          `json:"last_seen,omitempty"`
	DataType       []string       `json:"data_type,omitempty"`
	DashboardData  *DashboardData `json:"dashboard_data,omitempty"`
}

// Place describes where a device is installed.
type Place struct {
	Altitude float64   `json:"altitude,omitempty"`
	City     string    `json:"city,omitempty"`
	Country  string    `json:"country,omitempty"`
	Timezone string    `json:"timezone,omitempty"`
	Location []float64 `json:"location,omitempty"` // [longitude, latitude]
}

// User is the account owning the devices.
type User struct {
	Mail           string          `json:"mail,omitempty"`
	Administrative *Administrative `json:"administrative,omitempty"`
}

// Administrative holds the account's locale and unit preferences.
type Administrative struct {
	Country      string `json:"country,omitempty"`
	Lang         string `json:"lang,omitempty"`
	RegLocale    string `json:"reg_locale,omitempty"`
	Unit         int    `json:"unit,omitempty"`
	Windunit     int    `json:"windunit,omitempty"`
	Pressureunit int    `json:"pressureunit,omitempty"`
	FeelLikeAlgo int    `json:"feel_like_algo,omitempty"`
}

// DashboardData carries the current readings of a device or module.
// Pointers distinguish "not measured by this hardware" from a legitimate
// zero reading; a rain gauge has no Temperature, an indoor module no Rain.
type DashboardData struct {
	TimeUTC int64 `json:"time_utc,omitempty"`

	Temperature *float64 `json:"Temperature,omitempty"`
	TempTrend   string   `json:"temp_trend,omitempty"`
	MinTemp     *float64 `json:"min_temp,omitempty"`
	MaxTemp     *float64 `json:"max_temp,omitempty"`
	DateMinTemp int64    `json:"date_min_temp,omitempty"`
	DateMaxTemp int64    `json:"date_max_temp,omitempty"`

	CO2       *int `json:"CO2,omitempty"`
	Humidity  *int `json:"Humidity,omitempty"`
	Noise     *int `json:"Noise,omitempty"`
	HealthIdx *int `json:"health_idx,omitempty"`

	Pressure         *float64 `json:"Pressure,omitempty"`
	AbsolutePressure *float64 `json:"AbsolutePressure,omitempty"`
	PressureTrend    string   `json:"pressure_trend,omitempty"`

	Rain      *float64 `json:"Rain,omitempty"`
	SumRain1  *float64 `json:"sum_rain_1,omitempty"`
	SumRain24 *float64 `json:"sum_rain_24,omitempty"`

	WindStrength   *int  `json:"WindStrength,omitempty"`
	WindAngle      *int  `json:"WindAngle,omitempty"`
	GustStrength   *int  `json:"GustStrength,omitempty"`
	GustAngle      *int  `json:"GustAngle,omitempty"`
	MaxWindStr     *int  `json:"max_wind_str,omitempty"`
	MaxWindAngle   *int  `json:"max_wind_angle,omitempty"`
	DateMaxWindStr int64 `json:"date_max_wind_str,omitempty"`
}

// GetStationsData returns the weather stations visible to the credential.
// deviceID narrows the result to one station; empty returns all of them.
// Requires ScopeReadStation.
func (c *Client) GetStationsData(ctx context.Context, deviceID string) (*StationsData, error) {
	params := url.Values{}
	if deviceID != "" {
		params.Set("device_id", deviceID)
	}

	resp, err := c.AuthorizedPost(ctx, "getstationsdata", params)
	if err != nil {
		return nil, err
	}

	return unmarshalBody[StationsData](resp.Body, "stations data")
}

// Scale is the aggregation interval of a measurement request.
type Scale string

// Aggregation intervals accepted by the measure endpoint.
const (
	ScaleMax    Scale = "max"
	Scale30Min  Scale = "30min"
	Scale1Hour  Scale = "1hour"
	Scale3Hours Scale = "3hours"
	Scale1Day   Scale = "1day"
	Scale1Week  Scale = "1week"
	Scale1Month Scale = "1month"
)

// MeasureType selects a measured quantity.
type MeasureType string

// Measured quantities accepted by the measure endpoint. Availability
// depends on scale; sum/min/max variants only exist at aggregated scales.
const (
	MeasureTemperature  MeasureType = "Temperature"
	MeasureCO2          MeasureType = "CO2"
	MeasureHumidity     MeasureType = "Humidity"
	MeasurePressure     MeasureType = "Pressure"
	MeasureNoise        MeasureType = "Noise"
	MeasureRain         MeasureType = "Rain"
	MeasureWindStrength MeasureType = "WindStrength"
	MeasureWindAngle    MeasureType = "WindAngle"
	MeasureGustStrength MeasureType = "GustStrength"
	MeasureGustAngle    MeasureType = "GustAngle"
	MeasureSumRain      MeasureType = "sum_rain"
	MeasureMinTemp      MeasureType = "min_temp"
	MeasureMaxTemp      MeasureType = "max_temp"
)

// MeasureRequest selects the device, interval and quantities to fetch.
type MeasureRequest struct {
	// DeviceID is the station to query. Required.
	DeviceID string
	// ModuleID selects a paired module; empty queries the base unit.
	ModuleID string
	// Scale is the aggregation interval. Required.
	Scale Scale
	// Types are the quantities to fetch, in order. Required.
	Types []MeasureType
	// DateBegin and DateEnd bound the window in epoch seconds; zero means
	// open-ended.
	DateBegin int64
	DateEnd   int64
	// Limit caps the number of returned points (server max 1024).
	Limit int
	// RealTime disables the server's half-interval timestamp shift at
	// aggregated scales.
	RealTime bool
}

// MeasureSeries is one run of measurements at a fixed step. Value rows
// follow the order of the requested types; a nil entry means the quantity
// was not measured at that point.
type MeasureSeries struct {
	BegTime  int64        `json:"beg_time"`
	StepTime int64        `json:"step_time"`
	Value    [][]*float64 `json:"value"`
}

// MeasureData is the payload of a measure call.
type MeasureData struct {
	Series []*MeasureSeries
}

// GetMeasure fetches raw measurements. Responses are requested in the
// server's optimized series form. Requires the read scope matching the
// device.
func (c *Client) GetMeasure(ctx context.Context, req *MeasureRequest) (*MeasureData, error) {
	if req == nil || req.DeviceID == "" {
		return nil, ErrEmptyDeviceID
	}
	if req.Scale == "" {
		return nil, ErrEmptyScale
	}
	if len(req.Types) == 0 {
		return nil, ErrNoMeasureTypes
	}

	types := make([]string, len(req.Types))
	for i, t := range req.Types {
		types[i] = string(t)
	}

	params := url.Values{}
	params.Set("device_id", req.DeviceID)
	params.Set("scale", string(req.Scale))
	params.Set("type", strings.Join(types, ","))
	params.Set("optimize", "true")
	if req.ModuleID != "" {
		params.Set("module_id", req.ModuleID)
	}
	if req.DateBegin > 0 {
		params.Set("date_begin", strconv.FormatInt(req.DateBegin, 10))
	}
	if req.DateEnd > 0 {
		params.Set("date_end", strconv.FormatInt(req.DateEnd, 10))
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.RealTime {
		params.Set("real_time", "true")
	}

	resp, err := c.AuthorizedPost(ctx, "getmeasure", params)
	if err != nil {
		return nil, err
	}

	series, err := unmarshalBody[[]*MeasureSeries](resp.Body, "measure")
	if err != nil {
		return nil, err
	}

	return &MeasureData{Series: *series}, nil
}
