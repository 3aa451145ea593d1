package registry

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"placement-portal/internal/apperr"
	"placement-portal/internal/model"
	"placement-portal/internal/storage"
)

var fixedNow = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) (*Registry, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "placement.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	reg := New(store, log.New(io.Discard, "", 0)).WithClock(func() time.Time { return fixedNow })
	return reg, store
}

var (
	tpo     = model.User{ID: "tpo-1", Role: model.RoleTPO}
	company = model.User{ID: "company-1", Role: model.RoleCompany}
	student = model.User{ID: "student-1", Role: model.RoleStudent}
)

func validRequest(company string) CreateRequest {
	return CreateRequest{
		CompanyName:     company,
		Position:        "Software Engineer",
		Description:     "<p>Build <b>things</b></p>",
		MinCGPA:         7.5,
		AllowedBranches: []string{"Computer Science", "ECE", "CSE"},
		MinYear:         3,
		Deadline:        fixedNow.Add(7 * 24 * time.Hour),
	}
}

func TestCreateNormalizesAndDefaults(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	d, err := reg.Create(context.Background(), validRequest("Acme"), company)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if d.Status != model.DriveActive {
		t.Fatalf("expected default status active, got %s", d.Status)
	}
	if !reflect.DeepEqual([]string(d.Eligibility.AllowedBranches), []string{"CSE", "ECE"}) {
		t.Fatalf("expected normalized branches, got %v", d.Eligibility.AllowedBranches)
	}
	if d.Description != "Build things" {
		t.Fatalf("expected sanitized description, got %q", d.Description)
	}
	if d.CompanyID != company.ID || d.CreatedBy != company.ID {
		t.Fatalf("expected company ownership, got %+v", d)
	}

	req := validRequest("Globex")
	req.AllowedBranches = nil
	req.MinYear = 0
	d2, err := reg.Create(context.Background(), req, tpo)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(d2.Eligibility.AllowedBranches) != 1 || d2.Eligibility.AllowedBranches[0] != model.BranchAll {
		t.Fatalf("expected All sentinel, got %v", d2.Eligibility.AllowedBranches)
	}
	if d2.Eligibility.MinYear != 1 {
		t.Fatalf("expected min year default 1, got %d", d2.Eligibility.MinYear)
	}
}

func TestCreateRejectsSecondActiveDrive(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	first, err := reg.Create(ctx, validRequest("Acme"), tpo)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = reg.Create(ctx, validRequest("Acme"), tpo)
	if !errors.Is(err, apperr.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	draft := validRequest("Acme")
	draft.Status = model.DriveDraft
	pending, err := reg.Create(ctx, draft, tpo)
	if err != nil {
		t.Fatalf("draft Create error: %v", err)
	}
	if _, err := reg.Publish(ctx, pending.ID, tpo); !errors.Is(err, apperr.ErrDuplicate) {
		t.Fatalf("expected duplicate on publish, got %v", err)
	}

	if _, err := reg.Close(ctx, first.ID, tpo); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	published, err := reg.Publish(ctx, pending.ID, tpo)
	if err != nil {
		t.Fatalf("Publish after close error: %v", err)
	}
	if published.Status != model.DriveActive {
		t.Fatalf("expected active, got %s", published.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, validRequest("Acme"), student); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("expected authorization error for student, got %v", err)
	}

	cases := []func(*CreateRequest){
		func(r *CreateRequest) { r.CompanyName = "  " },
		func(r *CreateRequest) { r.Position = "" },
		func(r *CreateRequest) { r.MinCGPA = 11 },
		func(r *CreateRequest) { r.MaxBacklogs = -1 },
		func(r *CreateRequest) { r.MinYear = 5 },
		func(r *CreateRequest) { r.Deadline = time.Time{} },
		func(r *CreateRequest) { r.Deadline = fixedNow.Add(-time.Hour) },
		func(r *CreateRequest) { r.Status = model.DriveClosed },
	}
	for i, mutate := range cases {
		req := validRequest("Acme")
		mutate(&req)
		if _, err := reg.Create(ctx, req, tpo); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestChangeStatusRules(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	d, err := reg.Create(ctx, validRequest("Acme"), company)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	other := model.User{ID: "company-2", Role: model.RoleCompany}
	if _, err := reg.Close(ctx, d.ID, other); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("expected authorization error for foreign company, got %v", err)
	}
	if _, err := reg.Close(ctx, d.ID, company); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := reg.Cancel(ctx, d.ID, company); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected closed drive to reject cancel, got %v", err)
	}
	if _, err := reg.Publish(ctx, d.ID, company); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected closed drive to reject publish, got %v", err)
	}
	if _, err := reg.ChangeStatus(ctx, d.ID, model.DriveDraft, company); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected unsupported target to fail, got %v", err)
	}
	if _, err := reg.Close(ctx, "missing", tpo); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApplicantCountersFollowStatus(t *testing.T) {
	t.Parallel()

	reg, store := newTestRegistry(t)
	ctx := context.Background()
	d, err := reg.Create(ctx, validRequest("Acme"), tpo)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	for _, id := range []string{"s1", "s2", "s3"} {
		if _, err := reg.AddApplicant(ctx, d.ID, id, fixedNow); err != nil {
			t.Fatalf("AddApplicant error: %v", err)
		}
	}
	if _, err := reg.AddApplicant(ctx, d.ID, "s1", fixedNow); !errors.Is(err, apperr.ErrDuplicate) {
		t.Fatalf("expected duplicate applicant, got %v", err)
	}

	steps := []struct {
		student         string
		to              model.ApplicantStatus
		wantShortlisted int
		wantSelected    int
	}{
		{"s1", model.ApplicantShortlisted, 1, 0},
		{"s2", model.ApplicantShortlisted, 2, 0},
		{"s1", model.ApplicantSelected, 1, 1},
		{"s2", model.ApplicantRejected, 0, 1},
		{"s3", model.ApplicantRejected, 0, 1},
		{"s3", model.ApplicantRejected, 0, 1},
	}
	for i, step := range steps {
		if _, err := reg.UpdateApplicantStatus(ctx, d.ID, step.student, step.to); err != nil {
			t.Fatalf("step %d UpdateApplicantStatus error: %v", i, err)
		}
		got, err := store.GetDrive(ctx, d.ID)
		if err != nil {
			t.Fatalf("GetDrive error: %v", err)
		}
		if got.ShortlistedCount != step.wantShortlisted || got.SelectedCount != step.wantSelected {
			t.Fatalf("step %d expected %d/%d, got %d/%d", i, step.wantShortlisted, step.wantSelected, got.ShortlistedCount, got.SelectedCount)
		}
		counts, err := reg.Recount(ctx, d.ID)
		if err != nil {
			t.Fatalf("Recount error: %v", err)
		}
		if counts.Shortlisted != got.ShortlistedCount || counts.Selected != got.SelectedCount {
			t.Fatalf("step %d recount %+v disagrees with counters %d/%d", i, counts, got.ShortlistedCount, got.SelectedCount)
		}
	}
}

func TestCounterDelta(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to model.ApplicantStatus
		want     storage.CounterDelta
	}{
		{model.ApplicantPending, model.ApplicantShortlisted, storage.CounterDelta{Shortlisted: 1}},
		{model.ApplicantShortlisted, model.ApplicantSelected, storage.CounterDelta{Shortlisted: -1, Selected: 1}},
		{model.ApplicantShortlisted, model.ApplicantRejected, storage.CounterDelta{Shortlisted: -1}},
		{model.ApplicantPending, model.ApplicantRejected, storage.CounterDelta{}},
		{model.ApplicantSelected, model.ApplicantRejected, storage.CounterDelta{Selected: -1}},
	}
	for _, tc := range cases {
		if got := CounterDelta(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s->%s expected %+v, got %+v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	d, err := reg.Create(ctx, validRequest("Acme"), company)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := reg.Delete(ctx, d.ID, student); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := reg.Delete(ctx, d.ID, company); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := reg.Get(ctx, d.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
