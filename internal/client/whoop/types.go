package whoop

import (
	"strconv"
	"time"

	go_json "github.com/goccy/go-json"
)

// rawPayload carries the undecoded provider record alongside the typed
// fields, so normalization never loses information.
type rawPayload struct {
	Raw go_json.RawMessage `json:"-"`
}

func (p *rawPayload) SetRaw(raw go_json.RawMessage) {
	p.Raw = append(go_json.RawMessage(nil), raw...)
}

type UserProfile struct {
	rawPayload

	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type BodyMeasurement struct {
	rawPayload

	HeightMeter    float64 `json:"height_meter"`
	WeightKilogram float64 `json:"weight_kilogram"`
	MaxHeartRate   int     `json:"max_heart_rate"`
}

type Cycle struct {
	rawPayload

	ID             int64       `json:"id"`
	UserID         int64       `json:"user_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Start          time.Time   `json:"start"`
	End            *time.Time  `json:"end"`
	TimezoneOffset string      `json:"timezone_offset"`
	ScoreState     ScoreState  `json:"score_state"`
	Score          *CycleScore `json:"score"`
}

func (c Cycle) Key() string { return strconv.FormatInt(c.ID, 10) }

type CycleScore struct {
	Strain           float64 `json:"strain"`
	Kilojoule        float64 `json:"kilojoule"`
	AverageHeartRate int     `json:"average_heart_rate"`
	MaxHeartRate     int     `json:"max_heart_rate"`
}

type Sleep struct {
	rawPayload

	ID             string      `json:"id"`
	CycleID        int64       `json:"cycle_id"`
	UserID         int64       `json:"user_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	TimezoneOffset string      `json:"timezone_offset"`
	Nap            bool        `json:"nap"`
	ScoreState     ScoreState  `json:"score_state"`
	Score          *SleepScore `json:"score"`
}

func (s Sleep) Key() string { return s.ID }

type SleepScore struct {
	RespiratoryRate            float64 `json:"respiratory_rate"`
	SleepPerformancePercentage float64 `json:"sleep_performance_percentage"`
	SleepConsistencyPercentage float64 `json:"sleep_consistency_percentage"`
	SleepEfficiencyPercentage  float64 `json:"sleep_efficiency_percentage"`
}

type Workout struct {
	rawPayload

	ID             string        `json:"id"`
	UserID         int64         `json:"user_id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	TimezoneOffset string        `json:"timezone_offset"`
	SportName      string        `json:"sport_name"`
	ScoreState     ScoreState    `json:"score_state"`
	Score          *WorkoutScore `json:"score"`
}

func (w Workout) Key() string { return w.ID }

type WorkoutScore struct {
	Strain           float64  `json:"strain"`
	AverageHeartRate int      `json:"average_heart_rate"`
	MaxHeartRate     int      `json:"max_heart_rate"`
	Kilojoule        float64  `json:"kilojoule"`
	DistanceMeter    *float64 `json:"distance_meter"`
}

type Recovery struct {
	rawPayload

	CycleID    int64          `json:"cycle_id"`
	SleepID    string         `json:"sleep_id"`
	UserID     int64          `json:"user_id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ScoreState ScoreState     `json:"score_state"`
	Score      *RecoveryScore `json:"score"`
}

// Key is the sleep ID: recoveries have no ID of their own and conflict on
// the sleep they score.
func (r Recovery) Key() string { return r.SleepID }

type RecoveryScore struct {
	UserCalibrating  bool    `json:"user_calibrating"`
	RecoveryScore    float64 `json:"recovery_score"`
	RestingHeartRate float64 `json:"resting_heart_rate"`
	HRVRmssdMilli    float64 `json:"hrv_rmssd_milli"`
}
