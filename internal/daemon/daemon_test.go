package daemon

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/username/attendance-bot/internal/calendar"
	"github.com/username/attendance-bot/internal/ledger"
	"github.com/username/attendance-bot/internal/timemanager"
	"go.uber.org/zap"
)

type countingResolver struct {
	calls int
}

func (r *countingResolver) ResolveHolidays(ctx context.Context, year int, month time.Month) calendar.HolidaySet {
	r.calls++
	return calendar.HolidaySet{}
}

type fakeExecutor struct {
	checkInFailures  int
	checkOutFailures int
	checkIns         int
	checkOuts        int
}

func (e *fakeExecutor) CheckIn(ctx context.Context) error {
	e.checkIns++
	if e.checkIns <= e.checkInFailures {
		return errors.New("portal unreachable")
	}
	return nil
}

func (e *fakeExecutor) CheckOut(ctx context.Context) error {
	e.checkOuts++
	if e.checkOuts <= e.checkOutFailures {
		return errors.New("portal unreachable")
	}
	return nil
}

type failingRecorder struct {
	calls int
}

func (r *failingRecorder) Record(ctx context.Context, kind ledger.Kind, at time.Time) error {
	r.calls++
	return errors.New("disk full")
}

type failingLedger struct{}

func (failingLedger) TotalHoursSince(ctx context.Context, windowStart time.Time) (int, error) {
	return 0, errors.New("permission denied")
}

func (failingLedger) HoursLoggedToday(ctx context.Context, day time.Time) (int, error) {
	return 0, errors.New("permission denied")
}

// fakeClock advances instantly on every sleep
type fakeClock struct {
	now     time.Time
	slept   []time.Duration
	onSleep func(d time.Duration)
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep(d)
	}
	return ctx.Err()
}

type fixture struct {
	daemon   *Daemon
	clock    *fakeClock
	executor *fakeExecutor
	resolver *countingResolver
	dir      string
}

func newFixture(t *testing.T, now time.Time, records ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	store := ledger.NewFileStore(dir)
	if len(records) > 0 {
		path := store.Path(now.Year(), now.Month())
		if err := os.WriteFile(path, []byte(strings.Join(records, "\n")+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	l := ledger.New(store, time.UTC, zap.NewNop())

	resolver := &countingResolver{}
	manager, err := timemanager.NewManager(timemanager.Settings{
		CheckInHour:          9,
		DailyWorkHours:       8,
		MonthlyRequiredHours: 20,
		MonthlyStartDay:      1,
		Location:             time.UTC,
	}, resolver, l, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	clock := &fakeClock{now: now}
	executor := &fakeExecutor{}
	d := NewDaemon(manager, executor, l, false, zap.NewNop())
	d.now = clock.Now
	d.sleep = clock.Sleep

	return &fixture{daemon: d, clock: clock, executor: executor, resolver: resolver, dir: dir}
}

func (f *fixture) records(t *testing.T, year int, month time.Month) string {
	t.Helper()
	data, err := os.ReadFile(ledger.NewFileStore(f.dir).Path(year, month))
	if err != nil {
		t.Fatalf("failed to read records: %v", err)
	}
	return string(data)
}

func TestDaemon_FullDay(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 18, 7, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.clock.onSleep = func(d time.Duration) {
		if d == dayWait {
			cancel()
		}
	}

	if err := f.daemon.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if f.executor.checkIns != 1 || f.executor.checkOuts != 1 {
		t.Errorf("executor calls = %d check-ins, %d check-outs, want 1 and 1",
			f.executor.checkIns, f.executor.checkOuts)
	}

	want := "2024-03-18 09:00:00 CheckIn\n2024-03-18 17:00:00 CheckOut\n"
	if got := f.records(t, 2024, time.March); got != want {
		t.Errorf("records = %q, want %q", got, want)
	}

	if f.clock.slept[0] != 2*time.Hour {
		t.Errorf("first sleep = %v, want 2h until check-in", f.clock.slept[0])
	}
	last := f.clock.slept[len(f.clock.slept)-1]
	if last != dayWait {
		t.Errorf("last sleep = %v, want %v", last, dayWait)
	}
	for _, d := range f.clock.slept[1 : len(f.clock.slept)-1] {
		if d > checkOutPoll {
			t.Errorf("check-out wait slept %v, want at most %v", d, checkOutPoll)
		}
	}
}

func TestDaemon_CheckInRetry(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))
	f.executor.checkInFailures = 2
	ctx := context.Background()

	state := timemanager.PerformingCheckIn
	for i := 0; i < 2; i++ {
		next, err := f.daemon.step(ctx, state)
		if err != nil {
			t.Fatalf("step() error = %v", err)
		}
		if next != timemanager.PerformingCheckIn {
			t.Fatalf("step() after failure = %v, want %v", next, timemanager.PerformingCheckIn)
		}
	}
	if len(f.clock.slept) != 2 || f.clock.slept[0] != retryWait || f.clock.slept[1] != retryWait {
		t.Errorf("slept = %v, want two %v retries", f.clock.slept, retryWait)
	}

	next, err := f.daemon.step(ctx, state)
	if err != nil || next != timemanager.AwaitingCheckOut {
		t.Fatalf("step() = %v, %v, want %v", next, err, timemanager.AwaitingCheckOut)
	}

	// Deadline follows the actual check-in at 09:02, not 09:00
	f.clock.now = time.Date(2024, 3, 18, 17, 1, 30, 0, time.UTC)
	next, err = f.daemon.step(ctx, timemanager.AwaitingCheckOut)
	if err != nil || next != timemanager.AwaitingCheckOut {
		t.Fatalf("step() at 17:01:30 = %v, %v, want %v", next, err, timemanager.AwaitingCheckOut)
	}
	if got := f.clock.slept[len(f.clock.slept)-1]; got != 30*time.Second {
		t.Errorf("check-out wait = %v, want 30s", got)
	}

	next, err = f.daemon.step(ctx, timemanager.AwaitingCheckOut)
	if err != nil || next != timemanager.PerformingCheckOut {
		t.Fatalf("step() at 17:02 = %v, %v, want %v", next, err, timemanager.PerformingCheckOut)
	}
}

func TestDaemon_CheckOutRetry(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 18, 17, 0, 0, 0, time.UTC))
	f.executor.checkOutFailures = 1
	ctx := context.Background()

	next, err := f.daemon.step(ctx, timemanager.PerformingCheckOut)
	if err != nil || next != timemanager.PerformingCheckOut {
		t.Fatalf("step() after failure = %v, %v, want retry", next, err)
	}

	next, err = f.daemon.step(ctx, timemanager.PerformingCheckOut)
	if err != nil || next != timemanager.CheckingDay {
		t.Fatalf("step() = %v, %v, want %v", next, err, timemanager.CheckingDay)
	}

	want := []time.Duration{retryWait, dayWait}
	if len(f.clock.slept) != 2 || f.clock.slept[0] != want[0] || f.clock.slept[1] != want[1] {
		t.Errorf("slept = %v, want %v", f.clock.slept, want)
	}
}

func TestDaemon_MonthlyQuotaMet(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC),
		"2024-03-04 09:00:00 CheckIn",
		"2024-03-04 17:00:00 CheckOut",
		"2024-03-05 09:00:00 CheckIn",
		"2024-03-05 17:00:00 CheckOut",
		"2024-03-06 09:00:00 CheckIn",
		"2024-03-06 17:00:00 CheckOut",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.clock.onSleep = func(time.Duration) { cancel() }

	if err := f.daemon.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if f.executor.checkIns != 0 {
		t.Errorf("check-ins = %d, want 0 once quota is met", f.executor.checkIns)
	}
	want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC).Sub(time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC))
	if len(f.clock.slept) != 1 || f.clock.slept[0] != want {
		t.Errorf("slept = %v, want [%v] until next window", f.clock.slept, want)
	}
	if state, _ := f.daemon.State(); state != timemanager.MonthlyQuotaMet {
		t.Errorf("State() = %v, want %v", state, timemanager.MonthlyQuotaMet)
	}
}

func TestDaemon_Weekend(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	next, err := f.daemon.step(ctx, timemanager.CheckingDay)
	if err != nil || next != timemanager.NotAWorkday {
		t.Fatalf("step() = %v, %v, want %v", next, err, timemanager.NotAWorkday)
	}
	if f.resolver.calls != 0 {
		t.Errorf("resolver calls = %d, want 0 on a Saturday", f.resolver.calls)
	}

	next, err = f.daemon.step(ctx, next)
	if err != nil || next != timemanager.CheckingDay {
		t.Fatalf("step() = %v, %v, want %v", next, err, timemanager.CheckingDay)
	}
	if len(f.clock.slept) != 1 || f.clock.slept[0] != notWorkdayWait {
		t.Errorf("slept = %v, want [%v]", f.clock.slept, notWorkdayWait)
	}
}

func TestDaemon_RecordFailureContinues(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))
	recorder := &failingRecorder{}
	f.daemon.recorder = recorder

	next, err := f.daemon.step(context.Background(), timemanager.PerformingCheckIn)
	if err != nil || next != timemanager.AwaitingCheckOut {
		t.Fatalf("step() = %v, %v, want %v", next, err, timemanager.AwaitingCheckOut)
	}
	if recorder.calls != 1 || f.executor.checkIns != 1 {
		t.Errorf("recorder calls = %d, check-ins = %d, want 1 and 1", recorder.calls, f.executor.checkIns)
	}
}

func TestDaemon_EvaluateErrorRetries(t *testing.T) {
	manager, err := timemanager.NewManager(timemanager.Settings{
		CheckInHour:          9,
		DailyWorkHours:       8,
		MonthlyRequiredHours: 20,
		MonthlyStartDay:      1,
		Location:             time.UTC,
	}, &countingResolver{}, failingLedger{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	clock := &fakeClock{now: time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC)}
	d := NewDaemon(manager, &fakeExecutor{}, &failingRecorder{}, false, zap.NewNop())
	d.now = clock.Now
	d.sleep = clock.Sleep

	next, err := d.step(context.Background(), timemanager.CheckingDay)
	if err != nil || next != timemanager.CheckingDay {
		t.Fatalf("step() = %v, %v, want %v", next, err, timemanager.CheckingDay)
	}
	if len(clock.slept) != 1 || clock.slept[0] != retryWait {
		t.Errorf("slept = %v, want [%v]", clock.slept, retryWait)
	}
}

func TestDaemon_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC))
	f.daemon.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.daemon.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("sleepContext() ignored cancellation")
	}

	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext() error = %v, want nil", err)
	}
}

func TestClockIcon(t *testing.T) {
	icon := clockIcon()

	if len(icon) != 6+16+40+16*16*4+16*4 {
		t.Fatalf("icon size = %d bytes", len(icon))
	}
	if icon[0] != 0 || icon[1] != 0 || icon[2] != 1 || icon[4] != 1 {
		t.Errorf("ICONDIR header = % x", icon[:6])
	}
	if icon[6] != 16 || icon[7] != 16 {
		t.Errorf("icon dimensions = %dx%d, want 16x16", icon[6], icon[7])
	}
	// Corners are transparent, center is opaque
	if _, _, _, a := clockPixel(0, 0); a != 0 {
		t.Errorf("corner alpha = %d, want 0", a)
	}
	if _, _, _, a := clockPixel(7, 7); a != 0xff {
		t.Errorf("center alpha = %d, want 255", a)
	}
}
