package whoop

import "context"

type UserService interface {
	GetProfile(ctx context.Context) (*UserProfile, error)
	GetBodyMeasurement(ctx context.Context) (*BodyMeasurement, error)
}

type CycleService interface {
	// ListAll fetches every cycle in the window, following pagination and
	// deduplicating by cycle ID.
	ListAll(ctx context.Context, params *ListParams) ([]Cycle, error)
}

type RecoveryService interface {
	ListAll(ctx context.Context, params *ListParams) ([]Recovery, error)
}

type SleepService interface {
	ListAll(ctx context.Context, params *ListParams) ([]Sleep, error)
}

type WorkoutService interface {
	ListAll(ctx context.Context, params *ListParams) ([]Workout, error)
}

type cycleService struct {
	client *Client
}

func (s *cycleService) ListAll(ctx context.Context, params *ListParams) ([]Cycle, error) {
	const route = "/v2/cycle"
	return collectAll[Cycle](ctx, s.client, route, params)
}

type sleepService struct {
	client *Client
}

func (s *sleepService) ListAll(ctx context.Context, params *ListParams) ([]Sleep, error) {
	const route = "/v2/activity/sleep"
	return collectAll[Sleep](ctx, s.client, route, params)
}

type workoutService struct {
	client *Client
}

func (s *workoutService) ListAll(ctx context.Context, params *ListParams) ([]Workout, error) {
	const route = "/v2/activity/workout"
	return collectAll[Workout](ctx, s.client, route, params)
}

type recoveryService struct {
	client *Client
}

func (s *recoveryService) ListAll(ctx context.Context, params *ListParams) ([]Recovery, error) {
	const route = "/v2/recovery"
	return collectAll[Recovery](ctx, s.client, route, params)
}
