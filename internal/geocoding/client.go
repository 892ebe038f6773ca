// Package geocoding resolves customer addresses with the Google Geocoding API.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

const (
	CodeAPIKeyMissing      = "API_KEY_MISSING"
	CodeInvalidAddress     = "INVALID_ADDRESS"
	CodeInvalidCoordinates = "INVALID_COORDINATES"
	CodeNetworkError       = "NETWORK_ERROR"
)

// Error carries the API status (or one of the Code constants) and a readable message.
type Error struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

type Location struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formatted_address"`
	PlaceID          string  `json:"place_id"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (c *Client) Geocode(ctx context.Context, address string) (*Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, &Error{Code: CodeInvalidAddress, Message: "Address is required"}
	}
	return c.lookup(ctx, url.Values{"address": {address}}, "Geocoding failed")
}

// Reverse returns the nearest address for a point, e.g. a driver's current position.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Location, error) {
	if !ValidCoordinates(lat, lng) {
		return nil, &Error{Code: CodeInvalidCoordinates, Message: "Latitude must be within 90 and longitude within 180 degrees"}
	}
	latlng := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
	return c.lookup(ctx, url.Values{"latlng": {latlng}}, "Reverse geocoding failed")
}

// ValidCoordinates rejects NaN and out-of-range values.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

type apiResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		PlaceID          string `json:"place_id"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *Client) lookup(ctx context.Context, query url.Values, fallback string) (*Location, error) {
	if c.apiKey == "" {
		return nil, &Error{Code: CodeAPIKeyMissing, Message: "Google Maps API key is not configured"}
	}
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Code: CodeNetworkError, Message: "Failed to connect to Google Geocoding API"}
	}
	defer func() { _ = resp.Body.Close() }()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}

	if body.Status != "OK" || len(body.Results) == 0 {
		msg := body.ErrorMessage
		if msg == "" {
			msg = fallback
		}
		return nil, &Error{Code: body.Status, Message: msg}
	}

	r := body.Results[0]
	return &Location{
		Lat:              r.Geometry.Location.Lat,
		Lng:              r.Geometry.Location.Lng,
		FormattedAddress: r.FormattedAddress,
		PlaceID:          r.PlaceID,
	}, nil
}

// IsCode reports whether err is a geocoding Error with the given code.
func IsCode(err error, code string) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Code == code
}
