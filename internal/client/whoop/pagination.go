package whoop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	go_json "github.com/goccy/go-json"
)

type ListParams struct {
	Limit     int
	Start     *time.Time
	End       *time.Time
	NextToken *string
}

func (p *ListParams) values() url.Values {
	if p == nil {
		return nil
	}

	v := make(url.Values)

	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Start != nil {
		v.Set("start", p.Start.Format(time.RFC3339))
	}
	if p.End != nil {
		v.Set("end", p.End.Format(time.RFC3339))
	}
	if p.NextToken != nil {
		v.Set("nextToken", *p.NextToken)
	}

	return v
}

func (p *ListParams) clone() *ListParams {
	if p == nil {
		return &ListParams{}
	}
	clone := *p
	return &clone
}

// Record is a provider collection entry with a natural key.
type Record interface {
	Key() string
}

type rawSetter interface {
	SetRaw(go_json.RawMessage)
}

// page keeps records undecoded so the original payload can be retained on
// each typed record.
type page struct {
	Records   []go_json.RawMessage `json:"records"`
	NextToken *string              `json:"next_token,omitempty"`
}

func (p *page) hasMore() bool {
	return p.NextToken != nil && *p.NextToken != ""
}

// collectAll walks a cursor-paginated collection, following next_token until
// the provider omits it, and deduplicates records by natural key: a key seen
// on an earlier page wins, later duplicates are dropped.
//
// A non-401 API error aborts pagination and returns whatever accumulated so
// far; sync is best effort, not a transactional read. A 401 propagates
// unconsumed so the reauth wrapper can react.
func collectAll[T Record](ctx context.Context, c *Client, route string, params *ListParams) ([]T, error) {
	seen := make(map[string]struct{})
	var records []T

	p := params.clone()
	for {
		var pg page
		if err := c.do(ctx, http.MethodGet, route, p.values(), &pg); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode != http.StatusUnauthorized {
				c.logger.WarnContext(ctx, "pagination aborted, returning partial results",
					slog.String("route", route),
					slog.Int("status", apiErr.StatusCode),
					slog.Int("accumulated", len(records)))
				return records, nil
			}
			return nil, err
		}

		for _, raw := range pg.Records {
			var rec T
			if err := go_json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("decoding record: %w", err)
			}
			if _, dup := seen[rec.Key()]; dup {
				continue
			}
			seen[rec.Key()] = struct{}{}
			if s, ok := any(&rec).(rawSetter); ok {
				s.SetRaw(raw)
			}
			records = append(records, rec)
		}

		if !pg.hasMore() {
			break
		}
		p.NextToken = pg.NextToken
	}

	return records, nil
}
