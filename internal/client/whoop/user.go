package whoop

import (
	"context"
	"fmt"
	"net/http"

	go_json "github.com/goccy/go-json"
)

type userService struct {
	client *Client
}

func (s *userService) GetProfile(ctx context.Context) (*UserProfile, error) {
	const route = "/v2/user/profile/basic"

	var raw go_json.RawMessage
	if err := s.client.do(ctx, http.MethodGet, route, nil, &raw); err != nil {
		return nil, err
	}

	var profile UserProfile
	if err := go_json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	profile.SetRaw(raw)
	return &profile, nil
}

func (s *userService) GetBodyMeasurement(ctx context.Context) (*BodyMeasurement, error) {
	const route = "/v2/user/measurement/body"

	var raw go_json.RawMessage
	if err := s.client.do(ctx, http.MethodGet, route, nil, &raw); err != nil {
		return nil, err
	}

	var measurement BodyMeasurement
	if err := go_json.Unmarshal(raw, &measurement); err != nil {
		return nil, fmt.Errorf("decoding body measurement: %w", err)
	}
	measurement.SetRaw(raw)
	return &measurement, nil
}
