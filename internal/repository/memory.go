package repository

import (
	"context"
	"sync"
	"time"

	"github.com/wakti/whoopsync/internal/client/whoop"
)

// Memory is an in-process Repository used by tests and local development.
// Rows are keyed exactly as in Postgres: cycles/sleeps/workouts by ID,
// recoveries by sleep ID, credentials and profiles by user ID.
type Memory struct {
	mu sync.Mutex

	creds      map[string]Credential
	cycles     map[string]map[int64]whoop.Cycle
	sleeps     map[string]map[string]whoop.Sleep
	workouts   map[string]map[string]whoop.Workout
	recoveries map[string]map[string]whoop.Recovery
	profiles   map[string]memoryProfile
}

type memoryProfile struct {
	profile *whoop.UserProfile
	body    *whoop.BodyMeasurement
}

func NewMemory() *Memory {
	return &Memory{
		creds:      make(map[string]Credential),
		cycles:     make(map[string]map[int64]whoop.Cycle),
		sleeps:     make(map[string]map[string]whoop.Sleep),
		workouts:   make(map[string]map[string]whoop.Workout),
		recoveries: make(map[string]map[string]whoop.Recovery),
		profiles:   make(map[string]memoryProfile),
	}
}

// Repo bundles the memory store behind the Repository interfaces.
func (m *Memory) Repo() *Repository {
	return &Repository{
		Credentials: (*memoryCredentials)(m),
		Cycles:      (*memoryCycles)(m),
		Sleeps:      (*memorySleeps)(m),
		Workouts:    (*memoryWorkouts)(m),
		Recoveries:  (*memoryRecoveries)(m),
		Profiles:    (*memoryProfiles)(m),
	}
}

func (m *Memory) CycleCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cycles[userID])
}

func (m *Memory) SleepCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sleeps[userID])
}

func (m *Memory) WorkoutCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workouts[userID])
}

func (m *Memory) RecoveryCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recoveries[userID])
}

func (m *Memory) Sleep(userID, id string) (whoop.Sleep, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sleeps[userID][id]
	return s, ok
}

func (m *Memory) Credential(userID string) (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[userID]
	return cred, ok
}

type memoryCredentials Memory

var _ CredentialRepository = (*memoryCredentials)(nil)

func (m *memoryCredentials) Get(_ context.Context, userID string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[userID]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

func (m *memoryCredentials) GetByAPIKeyHash(_ context.Context, hash string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cred := range m.creds {
		if cred.APIKeyHash != nil && *cred.APIKeyHash == hash {
			return &cred, nil
		}
	}
	return nil, nil
}

func (m *memoryCredentials) List(_ context.Context) ([]Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds := make([]Credential, 0, len(m.creds))
	for _, cred := range m.creds {
		creds = append(creds, cred)
	}
	return creds, nil
}

func (m *memoryCredentials) Upsert(_ context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.UserID] = *cred
	return nil
}

func (m *memoryCredentials) SaveTokens(_ context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[userID]
	if !ok {
		return nil
	}
	cred.AccessToken = accessToken
	cred.RefreshToken = refreshToken
	cred.ExpiresAt = expiresAt
	cred.ReconnectNeeded = false
	m.creds[userID] = cred
	return nil
}

func (m *memoryCredentials) UpdateLastSynced(_ context.Context, userID string, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[userID]
	if !ok {
		return nil
	}
	cred.LastSyncedAt = &syncedAt
	m.creds[userID] = cred
	return nil
}

func (m *memoryCredentials) SetReconnectNeeded(_ context.Context, userID string, needed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[userID]
	if !ok {
		return nil
	}
	cred.ReconnectNeeded = needed
	m.creds[userID] = cred
	return nil
}

type memoryCycles Memory

var _ CycleRepository = (*memoryCycles)(nil)

func (m *memoryCycles) UpsertBatch(_ context.Context, userID string, cycles []whoop.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.cycles[userID]
	if !ok {
		rows = make(map[int64]whoop.Cycle)
		m.cycles[userID] = rows
	}
	for _, c := range cycles {
		rows[c.ID] = c
	}
	return nil
}

type memorySleeps Memory

var _ SleepRepository = (*memorySleeps)(nil)

func (m *memorySleeps) UpsertBatch(_ context.Context, userID string, sleeps []whoop.Sleep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sleeps[userID]
	if !ok {
		rows = make(map[string]whoop.Sleep)
		m.sleeps[userID] = rows
	}
	for _, s := range sleeps {
		rows[s.ID] = s
	}
	return nil
}

type memoryWorkouts Memory

var _ WorkoutRepository = (*memoryWorkouts)(nil)

func (m *memoryWorkouts) UpsertBatch(_ context.Context, userID string, workouts []whoop.Workout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.workouts[userID]
	if !ok {
		rows = make(map[string]whoop.Workout)
		m.workouts[userID] = rows
	}
	for _, w := range workouts {
		rows[w.ID] = w
	}
	return nil
}

type memoryRecoveries Memory

var _ RecoveryRepository = (*memoryRecoveries)(nil)

func (m *memoryRecoveries) UpsertBatch(_ context.Context, userID string, recoveries []whoop.Recovery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.recoveries[userID]
	if !ok {
		rows = make(map[string]whoop.Recovery)
		m.recoveries[userID] = rows
	}
	for _, rec := range recoveries {
		rows[rec.SleepID] = rec
	}
	return nil
}

type memoryProfiles Memory

var _ ProfileRepository = (*memoryProfiles)(nil)

func (m *memoryProfiles) Upsert(_ context.Context, userID string, profile *whoop.UserProfile, body *whoop.BodyMeasurement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.profiles[userID]
	if profile != nil {
		existing.profile = profile
	}
	if body != nil {
		existing.body = body
	}
	m.profiles[userID] = existing
	return nil
}
