package poll

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"vaxslot-notifier/internal/domain/entity"
	"vaxslot-notifier/internal/resilience/retry"
	"vaxslot-notifier/internal/usecase/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ───────── test doubles ───────── */

type stubFetcher struct {
	mu       sync.Mutex
	sessions map[string][]entity.Session
	errs     map[string]error
	dates    []string
}

func (f *stubFetcher) Fetch(ctx context.Context, regionID, date string) ([]entity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	if err := f.errs[regionID]; err != nil {
		return nil, err
	}
	return f.sessions[regionID], nil
}

// memStore is an in-memory NotificationRecordRepository with revision checks.
type memStore struct {
	mu        sync.Mutex
	records   map[string]entity.NotificationRecord
	revision  int
	getErr    error
	putErr    error
	puts      int
	conflicts int // forced conflicts before Put starts succeeding
	// lostReplies commits that many writes but answers them with a timeout,
	// keeping timestamps at millisecond precision like the SQL stores.
	lostReplies int
	// onConflict runs when a forced conflict fires, to simulate the
	// concurrent writer that caused it.
	onConflict func(s *memStore, rec *entity.NotificationRecord)
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]entity.NotificationRecord)}
}

func (s *memStore) Get(ctx context.Context, itemID string) (*entity.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[itemID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &rec, nil
}

func (s *memStore) Put(ctx context.Context, rec *entity.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	if s.conflicts > 0 {
		s.conflicts--
		if s.onConflict != nil {
			s.onConflict(s, rec)
		}
		return entity.ErrConflict
	}

	current, exists := s.records[rec.ItemID]
	switch {
	case rec.Revision == "" && exists:
		return entity.ErrConflict
	case rec.Revision != "" && (!exists || current.Revision != rec.Revision):
		return entity.ErrConflict
	}

	s.revision++
	if s.lostReplies > 0 {
		s.lostReplies--
		stored := *rec
		stored.Revision = strconv.Itoa(s.revision)
		if stored.LastNotifiedAt != nil {
			at := stored.LastNotifiedAt.Truncate(time.Millisecond)
			stored.LastNotifiedAt = &at
		}
		s.records[rec.ItemID] = stored
		return lostReply{}
	}
	rec.Revision = strconv.Itoa(s.revision)
	s.records[rec.ItemID] = *rec
	return nil
}

// lostReply is the timeout a client sees when the server committed but the
// response never arrived.
type lostReply struct{}

func (lostReply) Error() string   { return "read tcp: i/o timeout" }
func (lostReply) Timeout() bool   { return true }
func (lostReply) Temporary() bool { return true }

var _ net.Error = lostReply{}

// writeLocked stores rec as a concurrent writer would. Caller holds s.mu.
func (s *memStore) writeLocked(rec entity.NotificationRecord) {
	s.revision++
	rec.Revision = strconv.Itoa(s.revision)
	s.records[rec.ItemID] = rec
}

func (s *memStore) record(itemID string) (entity.NotificationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[itemID]
	return rec, ok
}

type fakeDispatcher struct {
	mu       sync.Mutex
	ready    bool
	special  map[string]bool
	failures map[string]error // channel -> error
	messages []notify.Message
}

func (d *fakeDispatcher) Ready() bool { return d.ready }

func (d *fakeDispatcher) Dispatch(ctx context.Context, msg notify.Message) []notify.DeliveryResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)

	results := []notify.DeliveryResult{{Channel: notify.PrimaryChannel, Err: d.failures[notify.PrimaryChannel]}}
	if d.special[msg.Pincode] {
		results = append(results, notify.DeliveryResult{Channel: notify.SpecialChannel, Err: d.failures[notify.SpecialChannel]})
	}
	return results
}

func (d *fakeDispatcher) sent() []notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Message(nil), d.messages...)
}

// chatChannel is a notify.Channel that spends delay on every message.
type chatChannel struct {
	delay time.Duration

	mu     sync.Mutex
	called map[string]bool
}

func newChatChannel(delay time.Duration) *chatChannel {
	return &chatChannel{delay: delay, called: make(map[string]bool)}
}

func (c *chatChannel) Name() string                { return notify.PrimaryChannel }
func (c *chatChannel) IsEnabled() bool             { return true }
func (c *chatChannel) Accepts(notify.Message) bool { return true }

func (c *chatChannel) Send(ctx context.Context, msg notify.Message) error {
	c.mu.Lock()
	c.called[msg.ItemID] = true
	c.mu.Unlock()

	select {
	case <-time.After(c.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *chatChannel) sentTo(itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.called[itemID]
}

func (c *chatChannel) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.called)
}

func eligibleSession(id, pincode string) entity.Session {
	s := sampleSession()
	s.ID = id
	s.Pincode = pincode
	s.Raw = []byte(`{"session_id":"` + id + `"}`)
	return s
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(f AvailabilityFetcher, st *memStore, d Dispatcher, clk *clock) *Service {
	svc := NewService(f, st, d, Config{
		RegionParallelism: 2,
		ItemParallelism:   4,
		Today:             func() string { return "12-05-2021" },
	})
	svc.now = clk.Now
	svc.gate.Now = clk.Now
	svc.storeRetry = retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return svc
}

var chennai = []entity.Region{{ID: "571", Name: "Chennai"}}

/* ───────── 1. First notification and cooldown ───────── */

func TestRunCycle_FirstSightingNotifiesAndRecords(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Date(2021, 5, 12, 10, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	store := newMemStore()
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, stats.CycleID)
	assert.Equal(t, 1, stats.Regions)
	assert.Equal(t, int64(1), stats.ItemsSeen)
	assert.Equal(t, int64(1), stats.Eligible)
	assert.Equal(t, int64(1), stats.Dispatched)
	assert.Equal(t, int64(0), stats.Suppressed)

	msgs := dispatcher.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "s1", msgs[0].ItemID)
	assert.Equal(t, "600001", msgs[0].Pincode)
	assert.Contains(t, msgs[0].Text, `notification count for this session: 1 \)`)

	rec, ok := store.record("s1")
	require.True(t, ok)
	assert.Equal(t, 1, rec.NotificationCount)
	require.NotNil(t, rec.LastNotifiedAt)
	assert.True(t, rec.LastNotifiedAt.Equal(clk.Now()))
	assert.JSONEq(t, `{"session_id":"s1"}`, string(rec.Snapshot))

	assert.Equal(t, []string{"12-05-2021"}, fetcher.dates)
}

func TestRunCycle_CooldownSuppressesThenReleases(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Date(2021, 5, 12, 10, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	store := newMemStore()
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)
	ctx := context.Background()

	// Act: first cycle notifies
	_, err := svc.RunCycle(ctx, chennai)
	require.NoError(t, err)

	// Act: two minutes later still in cooldown
	clk.Advance(2 * time.Minute)
	stats, err := svc.RunCycle(ctx, chennai)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(1), stats.Suppressed)
	assert.Equal(t, int64(0), stats.Dispatched)
	assert.Len(t, dispatcher.sent(), 1)

	// Act: past the window
	clk.Advance(30 * time.Minute)
	stats, err = svc.RunCycle(ctx, chennai)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(1), stats.Dispatched)
	msgs := dispatcher.sent()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Text, `notification count for this session: 2 \)`)

	rec, _ := store.record("s1")
	assert.Equal(t, 2, rec.NotificationCount)
	assert.True(t, rec.LastNotifiedAt.Equal(clk.Now()))
}

func TestRunCycle_IneligibleSessionsIgnored(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	old := eligibleSession("s-45", "600001")
	old.MinAgeLimit = entity.IntPtr(45)
	empty := eligibleSession("s-empty", "600001")
	empty.AvailableCapacity = entity.IntPtr(0)
	missing := eligibleSession("s-missing", "600001")
	missing.Dose1Capacity = nil

	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {old, empty, missing}}}
	store := newMemStore()
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ItemsSeen)
	assert.Equal(t, int64(0), stats.Eligible)
	assert.Empty(t, dispatcher.sent())
	assert.Equal(t, 0, store.puts)
}

/* ───────── 2. Audience and delivery ───────── */

func TestRunCycle_SpecialPincodeReachesBothChannels(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {
		eligibleSession("s-special", "600095"),
		eligibleSession("s-plain", "600001"),
	}}}
	store := newMemStore()
	dispatcher := &fakeDispatcher{ready: true, special: map[string]bool{"600095": true}}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Dispatched)
	pincodes := map[string]string{}
	for _, m := range dispatcher.sent() {
		pincodes[m.ItemID] = m.Pincode
	}
	assert.Equal(t, map[string]string{"s-special": "600095", "s-plain": "600001"}, pincodes)
}

func TestRunCycle_FailedDeliveryStillRecorded(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600095")}}}
	store := newMemStore()
	dispatcher := &fakeDispatcher{
		ready:    true,
		special:  map[string]bool{"600095": true},
		failures: map[string]error{notify.PrimaryChannel: notify.ErrDispatchFailed},
	}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DeliveryFailures)
	rec, ok := store.record("s1")
	require.True(t, ok, "attempt must be recorded regardless of delivery")
	assert.Equal(t, 1, rec.NotificationCount)
}

func TestRunCycle_NotReadySkipsDispatchAndWrite(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	store := newMemStore()
	dispatcher := &fakeDispatcher{ready: false}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Eligible)
	assert.Equal(t, int64(0), stats.Dispatched)
	assert.Empty(t, dispatcher.sent())
	assert.Equal(t, 0, store.puts)
}

/* ───────── 3. Failure isolation ───────── */

func TestRunCycle_FetchFailureIsolatedToRegion(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	fetcher := &stubFetcher{
		sessions: map[string][]entity.Session{"572": {eligibleSession("s2", "602001")}},
		errs:     map[string]error{"571": ErrFetchFailed},
	}
	store := newMemStore()
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)
	regions := []entity.Region{{ID: "571"}, {ID: "572"}}

	// Act
	stats, err := svc.RunCycle(context.Background(), regions)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Regions)
	assert.Equal(t, int64(1), stats.FetchFailures)
	assert.Equal(t, int64(1), stats.Dispatched)
	_, ok := store.record("s2")
	assert.True(t, ok)
}

func TestRunCycle_StoreReadErrorSkipsSession(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	store := newMemStore()
	store.getErr = errors.New("table unavailable")
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.StoreErrors)
	assert.Empty(t, dispatcher.sent(), "no dispatch without knowing the cooldown state")
}

func TestRunCycle_StoreWriteErrorCounted(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	store := newMemStore()
	store.putErr = errors.New("disk full")
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dispatched)
	assert.Equal(t, int64(1), stats.StoreErrors)
}

/* ───────── 4. Concurrency control ───────── */

func TestRunCycle_ConflictReappliedOnFreshRecord(t *testing.T) {
	// Arrange: another instance notifies s1 between our read and write
	clk := &clock{now: time.Date(2021, 5, 12, 10, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	store := newMemStore()
	store.conflicts = 1
	store.onConflict = func(s *memStore, rec *entity.NotificationRecord) {
		at := clk.now.Add(-time.Second)
		s.writeLocked(entity.NotificationRecord{ItemID: rec.ItemID, LastNotifiedAt: &at, NotificationCount: 3})
	}
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.StoreConflicts)
	assert.Equal(t, int64(0), stats.DroppedUpdates)

	rec, ok := store.record("s1")
	require.True(t, ok)
	assert.Equal(t, 4, rec.NotificationCount, "attempt applied on top of the concurrent write")
	assert.True(t, rec.LastNotifiedAt.Equal(clk.Now()))
}

func TestRunCycle_SecondConflictDropsUpdate(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	store := newMemStore()
	store.conflicts = 2
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.StoreConflicts)
	assert.Equal(t, int64(1), stats.DroppedUpdates)
	assert.Equal(t, 2, store.puts, "exactly one re-apply after the first conflict")
	_, ok := store.record("s1")
	assert.False(t, ok)
}

func TestRunCycle_ManySessionsAcrossRegions(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	sessions := map[string][]entity.Session{}
	for _, region := range []string{"571", "572", "573"} {
		for i := 0; i < 10; i++ {
			id := region + "-" + strconv.Itoa(i)
			sessions[region] = append(sessions[region], eligibleSession(id, "600001"))
		}
	}
	fetcher := &stubFetcher{sessions: sessions}
	store := newMemStore()
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)
	regions := []entity.Region{{ID: "571"}, {ID: "572"}, {ID: "573"}}

	// Act
	stats, err := svc.RunCycle(context.Background(), regions)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(30), stats.ItemsSeen)
	assert.Equal(t, int64(30), stats.Dispatched)
	assert.Len(t, dispatcher.sent(), 30)
	assert.Equal(t, 30, len(store.records))
}

func TestRunCycle_CanceledContext(t *testing.T) {
	clk := &clock{now: time.Now()}
	svc := newTestService(&stubFetcher{}, newMemStore(), &fakeDispatcher{ready: true}, clk)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := svc.RunCycle(ctx, chennai)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, stats)
}

func TestRunCycle_EscapedTextReachesDispatcher(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Now()}
	s := eligibleSession("s1", "600001")
	s.CenterName = "St. Mary's (East)"
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {s}}}
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, newMemStore(), dispatcher, clk)

	// Act
	_, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	msgs := dispatcher.sent()
	require.Len(t, msgs, 1)
	assert.True(t, strings.Contains(msgs[0].Text, `St\. Mary's \(East\)`))
}

/* ───────── 5. Dispatch that never reached a channel ───────── */

func TestRunCycle_DroppedDispatchLeavesSessionDue(t *testing.T) {
	// Arrange
	clk := &clock{now: time.Date(2021, 5, 12, 10, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	store := newMemStore()
	dispatcher := &fakeDispatcher{ready: true, failures: map[string]error{notify.PrimaryChannel: notify.ErrNotificationDropped}}
	svc := newTestService(fetcher, store, dispatcher, clk)
	ctx := context.Background()

	// Act
	stats, err := svc.RunCycle(ctx, chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Deferred)
	assert.Equal(t, int64(0), stats.Dispatched)
	assert.Equal(t, 0, store.puts)

	// Act: next cycle the channel has room again
	dispatcher.mu.Lock()
	dispatcher.failures = nil
	dispatcher.mu.Unlock()
	clk.Advance(time.Minute)
	stats, err = svc.RunCycle(ctx, chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dispatched)
	msgs := dispatcher.sent()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Text, `notification count for this session: 1 \)`)
	rec, ok := store.record("s1")
	require.True(t, ok)
	assert.Equal(t, 1, rec.NotificationCount)
}

func TestRunCycle_BurstQueuesBehindWorkerPool(t *testing.T) {
	// Arrange: 40 eligible sessions, two worker slots
	clk := &clock{now: time.Now()}
	sessions := map[string][]entity.Session{}
	regions := []entity.Region{{ID: "571"}, {ID: "572"}, {ID: "573"}, {ID: "574"}}
	for _, region := range regions {
		for i := 0; i < 10; i++ {
			sessions[region.ID] = append(sessions[region.ID], eligibleSession(region.ID+"-"+strconv.Itoa(i), "600001"))
		}
	}
	channel := newChatChannel(10 * time.Millisecond)
	dispatcher := notify.NewService([]notify.Channel{channel}, notify.Config{MaxConcurrent: 2})
	store := newMemStore()
	svc := NewService(&stubFetcher{sessions: sessions}, store, dispatcher, Config{Today: func() string { return "12-05-2021" }})
	svc.now = clk.Now
	svc.gate.Now = clk.Now

	// Act
	stats, err := svc.RunCycle(context.Background(), regions)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(40), stats.Eligible)
	assert.Equal(t, int64(40), stats.Dispatched)
	assert.Equal(t, int64(0), stats.Deferred)
	assert.Equal(t, int64(0), stats.DeliveryFailures)
	assert.Equal(t, 40, channel.calls())
	assert.Equal(t, 40, len(store.records))
}

func TestRunCycle_DeadlineOnlyRecordsSessionsThatReachedChannel(t *testing.T) {
	// Arrange: one slow worker slot and a cycle deadline that cuts the queue
	clk := &clock{now: time.Now()}
	var list []entity.Session
	for i := 0; i < 6; i++ {
		list = append(list, eligibleSession("s"+strconv.Itoa(i), "600001"))
	}
	channel := newChatChannel(100 * time.Millisecond)
	dispatcher := notify.NewService([]notify.Channel{channel}, notify.Config{MaxConcurrent: 1})
	store := newMemStore()
	svc := newTestService(&stubFetcher{sessions: map[string][]entity.Session{"571": list}}, store, dispatcher, clk)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	// Act
	stats, err := svc.RunCycle(ctx, chennai)

	// Assert
	require.NoError(t, err)
	assert.Greater(t, stats.Deferred, int64(0))
	assert.Equal(t, stats.Eligible, stats.Dispatched+stats.Deferred)
	assert.Equal(t, channel.calls(), len(store.records))
	for _, sess := range list {
		_, recorded := store.record(sess.ID)
		assert.Equal(t, channel.sentTo(sess.ID), recorded, sess.ID)
	}
}

/* ───────── 6. Ambiguous writes ───────── */

func TestRunCycle_LostWriteReplyNotCountedTwice(t *testing.T) {
	// Arrange: the first Put commits but the client only sees a timeout
	clk := &clock{now: time.Date(2021, 5, 12, 10, 0, 0, 123456789, time.UTC)}
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	store := newMemStore()
	store.lostReplies = 1
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Len(t, dispatcher.sent(), 1)
	assert.Equal(t, int64(0), stats.StoreConflicts)
	assert.Equal(t, int64(0), stats.StoreErrors)
	assert.Equal(t, 2, store.puts, "one lost reply, one retry")

	rec, ok := store.record("s1")
	require.True(t, ok)
	assert.Equal(t, 1, rec.NotificationCount)
}

func TestRunCycle_LostWriteReplyOnUpdate(t *testing.T) {
	// Arrange: existing record out of cooldown
	clk := &clock{now: time.Date(2021, 5, 12, 10, 0, 0, 987654321, time.UTC)}
	store := newMemStore()
	last := clk.now.Add(-time.Hour)
	store.records["s1"] = entity.NotificationRecord{ItemID: "s1", LastNotifiedAt: &last, NotificationCount: 2, Revision: "7"}
	store.lostReplies = 1
	fetcher := &stubFetcher{sessions: map[string][]entity.Session{"571": {eligibleSession("s1", "600001")}}}
	dispatcher := &fakeDispatcher{ready: true}
	svc := newTestService(fetcher, store, dispatcher, clk)

	// Act
	stats, err := svc.RunCycle(context.Background(), chennai)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.StoreConflicts)
	rec, _ := store.record("s1")
	assert.Equal(t, 3, rec.NotificationCount)
	assert.True(t, rec.LastNotifiedAt.Equal(clk.Now().Truncate(time.Millisecond)))
}

func TestLanded(t *testing.T) {
	at := time.Date(2021, 5, 12, 10, 0, 0, 123456789, time.UTC)
	atMillis := at.Truncate(time.Millisecond)
	earlier := at.Add(-time.Minute)
	written := &entity.NotificationRecord{ItemID: "s1", LastNotifiedAt: &at, NotificationCount: 4}

	tests := []struct {
		name  string
		fresh *entity.NotificationRecord
		want  bool
	}{
		{"TC-1: no record", nil, false},
		{"TC-2: same write, ms precision", &entity.NotificationRecord{LastNotifiedAt: &atMillis, NotificationCount: 4}, true},
		{"TC-3: same write, full precision", &entity.NotificationRecord{LastNotifiedAt: &at, NotificationCount: 4}, true},
		{"TC-4: concurrent writer, same count", &entity.NotificationRecord{LastNotifiedAt: &earlier, NotificationCount: 4}, false},
		{"TC-5: concurrent writer, same time", &entity.NotificationRecord{LastNotifiedAt: &at, NotificationCount: 5}, false},
		{"TC-6: never notified", &entity.NotificationRecord{NotificationCount: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, landed(tt.fresh, written))
		})
	}
}
