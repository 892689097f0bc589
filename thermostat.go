package netatmo

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// Thermostat hardware types.
const (
	TypeRelay      = "NAPlug"
	TypeThermostat = "NATherm1"
)

// ThermMode is a thermostat setpoint mode.
type ThermMode string

// Setpoint modes accepted by the thermostat API. Manual needs a target
// temperature and an end time; max needs an end time.
const (
	ThermModeProgram ThermMode = "program"
	ThermModeAway    ThermMode = "away"
	ThermModeHG      ThermMode = "hg" // frost guard
	ThermModeManual  ThermMode = "manual"
	ThermModeOff     ThermMode = "off"
	ThermModeMax     ThermMode = "max"
)

// ThermostatsData is the payload of a thermostats data call: every relay
// plug the account owns, each with its thermostat modules.
type ThermostatsData struct {
	Devices []*Relay `json:"devices"`
	User    *User    `json:"user,omitempty"`
}

// Relay is the plug bridging thermostats to the network.
type Relay struct {
	ID                  string              `json:"_id"`
	Type                string              `json:"type"`
	StationName         string              `json:"station_name,omitempty"`
	Firmware            int                 `json:"firmware,omitempty"`
	WifiStatus          int                 `json:"wifi_status,omitempty"`
	PlugConnectedBoiler int                 `json:"plug_connected_boiler,omitempty"`
	LastStatusStore     int64               `json:"last_status_store,omitempty"`
	Place               *Place              `json:"place,omitempty"`
	Modules             []*ThermostatModule `json:"modules,omitempty"`
}

// ThermostatModule is one thermostat paired with a relay.
type ThermostatModule struct {
	ID               string          `json:"_id"`
	Type             string          `json:"type"`
	ModuleName       string          `json:"module_name,omitempty"`
	Firmware         int             `json:"firmware,omitempty"`
	RFStatus         int             `json:"rf_status,omitempty"`
	BatteryVP        int             `json:"battery_vp,omitempty"`
	BatteryPercent   int             `json:"battery_percent,omitempty"`
	ThermOrientation int             `json:"therm_orientation,omitempty"`
	ThermRelayCmd    int             `json:"therm_relay_cmd,omitempty"`
	Anticipating     bool            `json:"anticipating,omitempty"`
	Measured         *ThermMeasured  `json:"measured,omitempty"`
	Setpoint         *Setpoint       `json:"setpoint,omitempty"`
	ThermProgramList []*ThermProgram `json:"therm_program_list,omitempty"`
}

// ThermMeasured is the thermostat's latest reading.
type ThermMeasured struct {
	Time         int64   `json:"time,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	SetpointTemp float64 `json:"setpoint_temp,omitempty"`
}

// Setpoint is the currently active setpoint.
type Setpoint struct {
	Mode        ThermMode `json:"setpoint_mode,omitempty"`
	EndTime     int64     `json:"setpoint_endtime,omitempty"`
	Temperature float64   `json:"setpoint_temp,omitempty"`
}

// ThermProgram is one weekly heating schedule.
type ThermProgram struct {
	ProgramID string            `json:"program_id,omitempty"`
	Name      string            `json:"name,omitempty"`
	Selected  bool              `json:"selected,omitempty"`
	Zones     []*SetpointZone   `json:"zones,omitempty"`
	Timetable []*TimetableEntry `json:"timetable,omitempty"`
}

// SetpointZone defines a temperature zone referenced by timetable entries.
type SetpointZone struct {
	Type int     `json:"type"`
	ID   int     `json:"id"`
	Temp float64 `json:"temp"`
}

// TimetableEntry activates a zone at an offset (in minutes) from Monday
// midnight.
type TimetableEntry struct {
	MOffset int `json:"m_offset"`
	ID      int `json:"id"`
}

// GetThermostatsData returns the relays and thermostats visible to the
// credential. deviceID narrows to one relay; empty returns all. Requires
// ScopeReadThermostat.
func (c *Client) GetThermostatsData(ctx context.Context, deviceID string) (*ThermostatsData, error) {
	params := url.Values{}
	if deviceID != "" {
		params.Set("device_id", deviceID)
	}

	resp, err := c.AuthorizedPost(ctx, "getthermostatsdata", params)
	if err != nil {
		return nil, err
	}

	return unmarshalBody[ThermostatsData](resp.Body, "thermostats data")
}

// ThermPointRequest changes the active setpoint of one thermostat.
type ThermPointRequest struct {
	// DeviceID is the relay, ModuleID the thermostat. Both required.
	DeviceID string
	ModuleID string
	// Mode is the setpoint mode to activate. Required.
	Mode ThermMode
	// Temperature is the manual target, in Celsius. Used by ThermModeManual.
	Temperature float64
	// EndTime is when the setpoint expires, epoch seconds. Used by
	// ThermModeManual and ThermModeMax.
	EndTime int64
}

// SetThermPoint changes a thermostat's active setpoint. Requires
// ScopeWriteThermostat.
func (c *Client) SetThermPoint(ctx context.Context, req *ThermPointRequest) error {
	if req == nil || req.DeviceID == "" {
		return ErrEmptyDeviceID
	}
	if req.ModuleID == "" {
		return ErrEmptyModuleID
	}
	if req.Mode == "" {
		return ErrEmptyThermMode
	}

	params := url.Values{}
	params.Set("device_id", req.DeviceID)
	params.Set("module_id", req.ModuleID)
	params.Set("setpoint_mode", string(req.Mode))
	if req.Mode == ThermModeManual {
		params.Set("setpoint_temp", strconv.FormatFloat(req.Temperature, 'f', -1, 64))
	}
	if req.EndTime > 0 {
		params.Set("setpoint_endtime", strconv.FormatInt(req.EndTime, 10))
	}

	_, err := c.AuthorizedPost(ctx, "setthermpoint", params)
	return err
}

// ScheduleRequest replaces the weekly schedule of one thermostat.
type ScheduleRequest struct {
	// DeviceID is the relay, ModuleID the thermostat. Both required.
	DeviceID string
	ModuleID string
	// Zones and Timetable define the schedule, in the shapes returned by
	// GetThermostatsData.
	Zones     []*SetpointZone
	Timetable []*TimetableEntry
}

// SyncSchedule pushes a new weekly schedule to a thermostat. The zones and
// timetable travel as JSON-encoded form fields. Requires
// ScopeWriteThermostat.
func (c *Client) SyncSchedule(ctx context.Context, req *ScheduleRequest) error {
	if req == nil || req.DeviceID == "" {
		return ErrEmptyDeviceID
	}
	if req.ModuleID == "" {
		return ErrEmptyModuleID
	}

	zones, err := json.Marshal(req.Zones)
	if err != nil {
		return &ParseError{Resource: "schedule zones", Err: err}
	}
	timetable, err := json.Marshal(req.Timetable)
	if err != nil {
		return &ParseError{Resource: "schedule timetable", Err: err}
	}

	params := url.Values{}
	params.Set("device_id", req.DeviceID)
	params.Set("module_id", req.ModuleID)
	params.Set("zones", string(zones))
	params.Set("timetable", string(timetable))

	_, err = c.AuthorizedPost(ctx, "syncschedule", params)
	return err
}
