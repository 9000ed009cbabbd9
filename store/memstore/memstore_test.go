package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shahriar-hub/shelfauth"
)

func TestAccountViewsFilterByRole(t *testing.T) {
	ctx := context.Background()
	s := New()

	studentID := s.SeedAccount(shelfauth.Account{
		Role:   shelfauth.RoleStudent,
		Roll:   "12345",
		Email:  "student@x.com",
		Status: shelfauth.AccountActive,
	})
	adminID := s.SeedAccount(shelfauth.Account{
		Role:   shelfauth.RoleAdmin,
		Email:  "admin@x.com",
		Status: shelfauth.AccountActive,
	})

	accounts := s.Accounts()

	student, err := accounts.FindStudent(ctx, "12345")
	if err != nil || student == nil || student.ID != studentID {
		t.Fatalf("FindStudent = %v, %v", student, err)
	}

	// A student email never resolves through the management lookup.
	none, err := accounts.FindManagement(ctx, "student@x.com")
	if err != nil || none != nil {
		t.Fatalf("FindManagement(student) = %v, %v", none, err)
	}
	admin, err := accounts.FindManagement(ctx, "admin@x.com")
	if err != nil || admin == nil || admin.ID != adminID {
		t.Fatalf("FindManagement = %v, %v", admin, err)
	}

	missing, err := accounts.FindByRoll(ctx, "99999")
	if err != nil || missing != nil {
		t.Fatalf("FindByRoll(absent) = %v, %v", missing, err)
	}
}

func TestRecordsAreCopiedAtTheBoundary(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := s.SeedAccount(shelfauth.Account{
		Role:  shelfauth.RoleStudent,
		Roll:  "12345",
		Email: "a@x.com",
	})

	got, err := s.Accounts().FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	got.Email = "mutated@x.com"

	again, err := s.Accounts().FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if again.Email != "a@x.com" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestMarkVerifiedIsIdempotentlyZero(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Verifications().Create(ctx, &shelfauth.OtpChallenge{
		Email:  "a@x.com",
		Status: shelfauth.ChallengePending,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if n, _ := s.Verifications().MarkVerified(ctx, id); n != 1 {
		t.Fatalf("first MarkVerified = %d, want 1", n)
	}
	if n, _ := s.Verifications().MarkVerified(ctx, id); n != 0 {
		t.Fatalf("second MarkVerified = %d, want 0", n)
	}
	if n, _ := s.Verifications().MarkVerified(ctx, "missing"); n != 0 {
		t.Fatalf("absent MarkVerified = %d, want 0", n)
	}
}

func TestReplaceOTPBumpsResendCount(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Verifications().Create(ctx, &shelfauth.OtpChallenge{
		Email:   "a@x.com",
		OTPHash: "hash-1",
		Status:  shelfauth.ChallengePending,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	later := time.Now().Add(10 * time.Minute)
	if n, _ := s.Verifications().ReplaceOTP(ctx, id, "hash-2", later); n != 1 {
		t.Fatalf("ReplaceOTP = %d, want 1", n)
	}

	ch := s.Challenge(id)
	if ch.OTPHash != "hash-2" || ch.ResendCount != 1 {
		t.Fatalf("challenge = %+v", ch)
	}
	if !ch.ExpireAt.Equal(later) {
		t.Fatalf("ExpireAt = %v, want %v", ch.ExpireAt, later)
	}
}

func TestRunRollsBackEveryCollection(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.Run(ctx, func(ctx context.Context) error {
		if _, err := s.Registrations().Create(ctx, &shelfauth.PendingRegistration{Roll: "12345"}); err != nil {
			return err
		}
		if _, err := s.Verifications().Create(ctx, &shelfauth.OtpChallenge{Email: "a@x.com"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want boom", err)
	}

	registrations, challenges := s.Counts()
	if registrations != 0 || challenges != 0 {
		t.Fatalf("rollback left %d registrations and %d challenges", registrations, challenges)
	}
}

func TestRunCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := New()

	var regID string
	err := s.Run(ctx, func(ctx context.Context) error {
		var err error
		regID, err = s.Registrations().Create(ctx, &shelfauth.PendingRegistration{Roll: "12345"})
		return err
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if s.Registration(regID) == nil {
		t.Fatal("committed registration missing")
	}
}
