package checkout

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Resyncer is a Clock whose offset decays and can be re-sampled. The
// sequencer re-syncs a stale one before gating on a scheduled time.
type Resyncer interface {
	Clock
	Stale() bool
	Sync(ctx context.Context) error
}

// TimeSync estimates the offset between the local clock and server time by
// sampling HTTP Date headers, so a scheduled gate fires on the vendor's
// clock rather than a drifted local one. It implements Resyncer.
type TimeSync struct {
	servers      []string
	client       *http.Client
	offset       time.Duration
	lastSyncTime time.Time
	synced       bool
}

var _ Resyncer = (*TimeSync)(nil)

func NewTimeSync(servers []string) *TimeSync {
	return &TimeSync{
		servers: servers,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Sync samples every configured server and averages the offsets. It fails
// only when no server responds; a partial sample is good enough.
func (ts *TimeSync) Sync(ctx context.Context) error {
	var total time.Duration
	successCount := 0

	for _, server := range ts.servers {
		offset, err := ts.sampleOffset(ctx, server)
		if err != nil {
			continue
		}
		total += offset
		successCount++
	}

	if successCount == 0 {
		return fmt.Errorf("time sync failed for all %d servers", len(ts.servers))
	}

	ts.offset = total / time.Duration(successCount)
	ts.lastSyncTime = time.Now()
	ts.synced = true
	return nil
}

func (ts *TimeSync) sampleOffset(ctx context.Context, url string) (time.Duration, error) {
	before := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := ts.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	after := time.Now()

	dateHeader := resp.Header.Get("Date")
	if dateHeader == "" {
		return 0, fmt.Errorf("no Date header from %s", url)
	}

	serverTime, err := http.ParseTime(dateHeader)
	if err != nil {
		return 0, fmt.Errorf("bad Date header from %s: %w", url, err)
	}

	// Assume half the round trip elapsed before the server stamped the date.
	latency := after.Sub(before) / 2
	local := before.Add(latency)

	return serverTime.Sub(local), nil
}

// Now returns the local clock adjusted by the sampled offset, or the plain
// local clock when no sync has succeeded.
func (ts *TimeSync) Now() time.Time {
	if !ts.synced {
		return time.Now()
	}
	return time.Now().Add(ts.offset)
}

func (ts *TimeSync) Offset() time.Duration { return ts.offset }

func (ts *TimeSync) Synced() bool { return ts.synced }

// Stale reports whether the sample is old enough to be worth redoing.
func (ts *TimeSync) Stale() bool {
	if !ts.synced {
		return true
	}
	return time.Since(ts.lastSyncTime) > time.Hour
}
