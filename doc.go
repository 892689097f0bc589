// Package netatmo provides a Go client library for the Netatmo connect API.
//
// This library covers the Netatmo REST endpoints for weather stations, home
// coach air-quality monitors, Welcome/Presence cameras, thermostats, and
// webhook registration, along with the OAuth2 token lifecycle Netatmo
// requires.
//
// # Authentication
//
// With an access token you already hold (for example from a web session),
// construct a plain client:
//
//	client, err := netatmo.NewClient("your-access-token")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For long-running use, build a TokenManager with your application
// credentials. It obtains tokens via the password or authorization-code
// grant and transparently refreshes them before they expire:
//
//	config := &netatmo.OAuthConfig{
//	    ClientID:     "your-client-id",
//	    ClientSecret: "your-client-secret",
//	    Scopes:       []netatmo.Scope{netatmo.ScopeReadStation},
//	}
//	tm, err := netatmo.NewTokenManager(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tm.Authenticate(ctx, "user@example.com", "password"); err != nil {
//	    log.Fatal(err)
//	}
//
// Tokens expire after a few hours. The TokenManager treats a token as
// expired 30 minutes before its server-side deadline and refreshes it at
// most once per expiry, so concurrent callers never race multiple refresh
// requests. To persist refreshed tokens, register a TokenUpdater:
//
//	tm, err := netatmo.NewTokenManager(config,
//	    netatmo.WithTokenUpdater(netatmo.TokenUpdaterFunc(func(cred *netatmo.Credential) {
//	        saveToDisk(cred)
//	    })),
//	)
//
// # Basic Usage
//
// Read your weather stations:
//
//	data, err := tm.GetStationsData(ctx, "")
//	for _, device := range data.Devices {
//	    if device.DashboardData.Temperature != nil {
//	        fmt.Printf("%s: %.1f C\n", device.StationName, *device.DashboardData.Temperature)
//	    }
//	}
//
// Fetch historical measurements:
//
//	measures, err := tm.GetMeasure(ctx, &netatmo.MeasureRequest{
//	    DeviceID: "70:ee:50:xx:xx:xx",
//	    Scale:    netatmo.Scale30Min,
//	    Types:    []netatmo.MeasureType{netatmo.MeasureTemperature, netatmo.MeasureHumidity},
//	})
//
// Call an endpoint the typed surface does not cover:
//
//	resp, err := tm.AuthorizedPost(ctx, "getstationsdata", nil)
//	temp, ok := netatmo.GetFloat(resp.Data, "body", "devices", "0", "dashboard_data", "Temperature")
//
// # Error Handling
//
// Check for specific error conditions:
//
//	data, err := tm.GetStationsData(ctx, "")
//	if err != nil {
//	    if netatmo.IsAuthError(err) {
//	        // Credentials rejected or refresh failed; re-authenticate.
//	    } else if netatmo.IsNotFound(err) {
//	        // Unknown device.
//	    } else if netatmo.IsRateLimited(err) {
//	        // Usage limit reached.
//	    }
//	}
//
// # API Coverage
//
// The library supports the following Netatmo endpoints:
//
//   - Weather: getstationsdata, getmeasure
//   - Home coach: gethomecoachsdata
//   - Cameras: gethomedata, getcamerapicture, geteventsuntil,
//     setpersonsaway, setpersonshome
//   - Thermostats: getthermostatsdata, setthermpoint, syncschedule
//   - Webhooks: addwebhook, dropwebhook
//
// For more information, see https://dev.netatmo.com/apidocumentation/
package netatmo
