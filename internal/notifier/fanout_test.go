package notifier

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"placement-portal/internal/model"
	"placement-portal/internal/storage"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "placement.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUsers(t *testing.T, store *storage.Store, users ...model.User) {
	t.Helper()
	for i := range users {
		if err := store.UpsertUser(context.Background(), &users[i]); err != nil {
			t.Fatalf("UpsertUser error: %v", err)
		}
	}
}

func quietLogger() *log.Logger {
	return log.New(&strings.Builder{}, "", 0)
}

func TestNotifyNewDriveTargetsApprovedStudentsAndStaff(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	seedUsers(t, store,
		model.User{ID: "s1", Role: model.RoleStudent, Active: true, Approved: true},
		model.User{ID: "s2", Role: model.RoleStudent, Active: true, Approved: true},
		model.User{ID: "s3", Role: model.RoleStudent, Active: true, Approved: false},
		model.User{ID: "s4", Role: model.RoleStudent, Active: false, Approved: true},
		model.User{ID: "tpo1", Role: model.RoleTPO, Active: true},
		model.User{ID: "adm1", Role: model.RoleAdmin, Active: true},
		model.User{ID: "co1", Role: model.RoleCompany, Active: true, Approved: true},
	)

	f := NewFanout(store, Config{}, quietLogger()).WithClock(func() time.Time { return fixedNow })
	drive := &model.Drive{ID: "d1", CompanyName: "Acme", Position: "SDE", Status: model.DriveActive, CreatedBy: "tpo1", Deadline: fixedNow.Add(72 * time.Hour)}

	created := f.Notify(ctx, Event{Type: EventNewDrive, Drive: drive})
	got := map[string]model.Priority{}
	for _, n := range created {
		got[n.UserID] = n.Priority
	}
	want := map[string]model.Priority{"s1": model.PriorityMedium, "s2": model.PriorityMedium, "adm1": model.PriorityLow}
	if len(got) != len(want) {
		t.Fatalf("unexpected recipients: %v", got)
	}
	for id, p := range want {
		if got[id] != p {
			t.Fatalf("recipient %s: expected priority %s, got %q", id, p, got[id])
		}
	}

	stored, err := store.ListNotifications(ctx, "s1", false, fixedNow)
	if err != nil {
		t.Fatalf("ListNotifications error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored notification, got %d", len(stored))
	}
	n := stored[0]
	if !n.ExpiresAt.Equal(fixedNow.Add(model.DefaultNotificationTTL)) {
		t.Fatalf("expected default expiry, got %v", n.ExpiresAt)
	}
	if n.RelatedID != "d1" || n.ActionURL != "/drives/d1" || n.Event != string(EventNewDrive) {
		t.Fatalf("unexpected notification fields: %+v", n)
	}
}

func TestNotifyApplicationEvents(t *testing.T) {
	t.Parallel()

	cases := []struct {
		event    EventType
		priority model.Priority
		title    string
	}{
		{EventApplicationSubmitted, model.PriorityMedium, "Application submitted"},
		{EventShortlisted, model.PriorityHigh, "You have been shortlisted"},
		{EventSelected, model.PriorityHigh, "Congratulations! You have been selected"},
		{EventRejected, model.PriorityMedium, "Application update"},
		{EventInterviewScheduled, model.PriorityHigh, "Interview scheduled"},
	}

	store := &stubStore{}
	f := NewFanout(store, Config{ExpiryDays: 7}, quietLogger()).WithClock(func() time.Time { return fixedNow })
	app := &model.Application{ID: "a1", StudentID: "s1", DriveID: "d1", CompanyName: "Acme"}

	for _, tc := range cases {
		created := f.Notify(context.Background(), Event{Type: tc.event, Application: app, Extra: map[string]any{"note": "x"}})
		if len(created) != 1 {
			t.Fatalf("%s: expected one notification, got %d", tc.event, len(created))
		}
		n := created[0]
		if n.UserID != "s1" || n.Priority != tc.priority || n.Title != tc.title {
			t.Fatalf("%s: unexpected notification %+v", tc.event, n)
		}
		if !n.ExpiresAt.Equal(fixedNow.Add(7 * 24 * time.Hour)) {
			t.Fatalf("%s: expected configured expiry, got %v", tc.event, n.ExpiresAt)
		}
		if n.Data["note"] != "x" {
			t.Fatalf("%s: expected extra data to be copied, got %v", tc.event, n.Data)
		}
	}
	if store.batches != len(cases) {
		t.Fatalf("expected one insert per event, got %d", store.batches)
	}
}

func TestNotifySwallowsStoreFailure(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	store := &stubStore{err: errors.New("disk full")}
	f := NewFanout(store, Config{}, log.New(&buf, "", 0))

	created := f.Notify(context.Background(), Event{Type: EventSelected, Application: &model.Application{ID: "a1", StudentID: "s1"}})
	if created != nil {
		t.Fatalf("expected no notifications on failure, got %v", created)
	}
	if !strings.Contains(buf.String(), "disk full") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}
}

func TestNotifyRejectsUnknownEvent(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	f := NewFanout(&stubStore{}, Config{}, log.New(&buf, "", 0))
	if created := f.Notify(context.Background(), Event{Type: "bogus"}); created != nil {
		t.Fatalf("expected nil for unknown event, got %v", created)
	}
	if !strings.Contains(buf.String(), "unknown event") {
		t.Fatalf("expected unknown event to be logged, got %q", buf.String())
	}
}

func TestCreateBulkSingleBatchAndDelivery(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	delivery := &stubDelivery{}
	f := NewFanout(store, Config{BatchSize: 50}, quietLogger(), delivery)

	items := make([]model.Notification, 120)
	for i := range items {
		items[i] = model.Notification{UserID: "u", Title: "t"}
	}
	created, err := f.CreateBulk(context.Background(), items)
	if err != nil {
		t.Fatalf("CreateBulk error: %v", err)
	}
	if len(created) != 120 || store.batches != 1 || store.lastBatchSize != 50 {
		t.Fatalf("expected one bulk call with batch size 50, got calls=%d size=%d", store.batches, store.lastBatchSize)
	}
	if created[0].ID == "" || created[0].Type != model.NotificationInfo || created[0].Priority != model.PriorityMedium {
		t.Fatalf("expected defaults to be filled, got %+v", created[0])
	}
	if delivery.count != 120 {
		t.Fatalf("expected delivery of 120 notifications, got %d", delivery.count)
	}

	if _, err := f.CreateBulk(context.Background(), []model.Notification{{Title: "orphan"}}); err == nil {
		t.Fatalf("expected error for notification without owner")
	}
}

func TestNotifyApplicationLoadsEntities(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		apps:   map[string]*model.Application{"a1": {ID: "a1", StudentID: "s1", DriveID: "d1", CompanyName: "Acme"}},
		drives: map[string]*model.Drive{"d1": {ID: "d1", CompanyName: "Acme", Position: "SDE"}},
	}
	f := NewFanout(store, Config{}, quietLogger())

	created, err := f.NotifyApplication(context.Background(), "a1", EventShortlisted, nil)
	if err != nil {
		t.Fatalf("NotifyApplication error: %v", err)
	}
	if len(created) != 1 || !strings.Contains(created[0].Message, "SDE at Acme") {
		t.Fatalf("expected message to mention the drive, got %+v", created)
	}

	if _, err := f.NotifyApplication(context.Background(), "missing", EventShortlisted, nil); err == nil {
		t.Fatalf("expected error for missing application")
	}
}

func TestEventForStatus(t *testing.T) {
	t.Parallel()

	if ev, ok := EventForStatus(model.StatusSelected); !ok || ev != EventSelected {
		t.Fatalf("expected selected event, got %s %v", ev, ok)
	}
	if _, ok := EventForStatus(model.StatusWithdrawn); ok {
		t.Fatalf("withdrawn should not map to a notification event")
	}
}

// --- stubs ---

type stubStore struct {
	batches       int
	lastBatchSize int
	err           error
	apps          map[string]*model.Application
	drives        map[string]*model.Drive
}

func (s *stubStore) CreateNotifications(ctx context.Context, items []model.Notification, batchSize int) error {
	if s.err != nil {
		return s.err
	}
	s.batches++
	s.lastBatchSize = batchSize
	return nil
}

func (s *stubStore) ListUsers(ctx context.Context, q storage.UserQuery) ([]model.User, error) {
	return nil, nil
}

func (s *stubStore) GetDrive(ctx context.Context, id string) (*model.Drive, error) {
	if d, ok := s.drives[id]; ok {
		return d, nil
	}
	return nil, errors.New("drive not found")
}

func (s *stubStore) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	if a, ok := s.apps[id]; ok {
		return a, nil
	}
	return nil, errors.New("application not found")
}

type stubDelivery struct {
	count int
}

func (d *stubDelivery) Deliver(ctx context.Context, items []model.Notification) error {
	d.count += len(items)
	return nil
}
