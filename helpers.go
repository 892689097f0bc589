package netatmo

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// timeStringLayout is the layout used by ToTimeString and ToEpoch.
const timeStringLayout = "2006-01-02_15:04:05"

// apiResponse is the envelope the API wraps JSON payloads in.
type apiResponse[T any] struct {
	Body       T       `json:"body"`
	Status     string  `json:"status"`
	TimeExec   float64 `json:"time_exec"`
	TimeServer int64   `json:"time_server"`
}

// unmarshalResponse unmarshals JSON data with consistent error reporting.
// This helper reduces boilerplate across all API response parsing.
func unmarshalResponse[T any](data []byte, resourceName string) (*T, error) {
	var resp T
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ParseError{Resource: resourceName, Preview: truncatePreview(data), Err: err}
	}
	return &resp, nil
}

// unmarshalBody unwraps the API envelope and returns its body payload.
func unmarshalBody[T any](data []byte, resourceName string) (*T, error) {
	env, err := unmarshalResponse[apiResponse[T]](data, resourceName)
	if err != nil {
		return nil, err
	}
	return &env.Body, nil
}

// truncatePreview returns a truncated string for error messages.
func truncatePreview(data []byte) string {
	s := string(data)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// GetString navigates a nested map and returns a string value.
// Returns the value and true if found, or empty string and false if not.
//
// Example:
//
//	// Extract: data["body"]["user"]["mail"]
//	mail, ok := netatmo.GetString(resp.Data, "body", "user", "mail")
func GetString(data map[string]any, keys ...string) (string, bool) {
	val, ok := navigate(data, keys)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// GetInt navigates a nested map and returns an int value.
// Handles JSON's float64 representation of numbers.
// Returns false if the value is outside the valid int range.
//
// Example:
//
//	// Extract: data["body"]["home"]["id"]
//	ts, ok := netatmo.GetInt(resp.Data, "time_server")
func GetInt(data map[string]any, keys ...string) (int, bool) {
	val, ok := navigate(data, keys)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		// Check for overflow before conversion
		if v > float64(math.MaxInt) || v < float64(math.MinInt) || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case int64:
		// Check for overflow on 32-bit systems
		if v > int64(math.MaxInt) || v < int64(math.MinInt) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// GetFloat navigates a nested map and returns a float64 value.
//
// Example:
//
//	// Extract: device["dashboard_data"]["Temperature"]
//	temp, ok := netatmo.GetFloat(device, "dashboard_data", "Temperature")
func GetFloat(data map[string]any, keys ...string) (float64, bool) {
	val, ok := navigate(data, keys)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// GetBool navigates a nested map and returns a bool value.
//
// Example:
//
//	// Extract: device["co2_calibrating"]
//	calibrating, ok := netatmo.GetBool(device, "co2_calibrating")
func GetBool(data map[string]any, keys ...string) (bool, bool) {
	val, ok := navigate(data, keys)
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// GetMap navigates a nested map and returns a map[string]any value.
//
// Example:
//
//	// Extract: data["body"]
//	body, ok := netatmo.GetMap(resp.Data, "body")
func GetMap(data map[string]any, keys ...string) (map[string]any, bool) {
	val, ok := navigate(data, keys)
	if !ok {
		return nil, false
	}
	m, ok := val.(map[string]any)
	return m, ok
}

// GetArray navigates a nested map and returns a []any value.
//
// Example:
//
//	// Extract: data["body"]["devices"]
//	devices, ok := netatmo.GetArray(resp.Data, "body", "devices")
func GetArray(data map[string]any, keys ...string) ([]any, bool) {
	val, ok := navigate(data, keys)
	if !ok {
		return nil, false
	}
	arr, ok := val.([]any)
	return arr, ok
}

// GetStringEquals checks if a nested string value equals the expected value.
//
// Example:
//
//	// Check: data["status"] == "ok"
//	ok := netatmo.GetStringEquals(resp.Data, "ok", "status")
func GetStringEquals(data map[string]any, expected string, keys ...string) bool {
	val, ok := GetString(data, keys...)
	return ok && val == expected
}

// navigate walks through nested maps and arrays following the provided keys.
// Array elements are addressed by their decimal index, so "body", "devices",
// "0" reaches the first device. Returns the final value and true if
// successful, or nil and false if any key is missing.
func navigate(data map[string]any, keys []string) (any, bool) {
	if len(keys) == 0 {
		return data, true
	}

	var current any = data
	for _, key := range keys {
		switch node := current.(type) {
		case map[string]any:
			val, exists := node[key]
			if !exists {
				return nil, false
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

// CelsiusToFahrenheit converts Celsius to Fahrenheit. The API reports all
// temperatures in Celsius regardless of the account's unit preference.
// Returns 0 if the input is NaN, Inf, or would overflow int range.
func CelsiusToFahrenheit(celsius float64) int {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return 0
	}
	result := celsius*9/5 + 32
	if result > float64(math.MaxInt32) || result < float64(math.MinInt32) {
		return 0
	}
	return int(result)
}

// FahrenheitToCelsius converts Fahrenheit to Celsius.
func FahrenheitToCelsius(fahrenheit int) float64 {
	return float64(fahrenheit-32) * 5 / 9
}

// ToStringSlice converts a []any to []string, filtering out non-string values.
// Useful for extracting lists like a module's data_type from raw responses.
//
// Example:
//
//	arr, _ := netatmo.GetArray(module, "data_type")
//	types := netatmo.ToStringSlice(arr) // []string{"Temperature", "Humidity"}
func ToStringSlice(arr []any) []string {
	if arr == nil {
		return nil
	}
	result := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// ToIntSlice converts a []any to []int, filtering out non-numeric values.
// Handles both int and float64 (JSON number representation).
func ToIntSlice(arr []any) []int {
	if arr == nil {
		return nil
	}
	result := make([]int, 0, len(arr))
	for _, v := range arr {
		switch n := v.(type) {
		case int:
			result = append(result, n)
		case float64:
			result = append(result, int(n))
		case int64:
			result = append(result, int(n))
		}
	}
	return result
}

// ToTimeString renders an epoch timestamp the way the vendor's tools do:
// UTC, date and time joined by an underscore.
func ToTimeString(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(timeStringLayout)
}

// ToEpoch parses a ToTimeString-formatted timestamp back to epoch seconds.
func ToEpoch(value string) (int64, error) {
	t, err := time.Parse(timeStringLayout, value)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// TodayStamps returns the epoch bounds of the current UTC day: midnight
// today and midnight tomorrow.
func TodayStamps() (int64, int64) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Unix(), midnight.Add(24 * time.Hour).Unix()
}
