// README: Dispute resolution tests; every action lands a terminal outcome exactly once.
package dispute

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"freightly/internal/modules/booking"
	"freightly/internal/types"

	"github.com/jackc/pgx/v5/pgxpool"
)

var adminActor = types.Actor{ID: "admin1", Role: types.RoleAdmin}

func TestResolveRequiresAdmin(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	for _, role := range []types.Role{types.RoleCompany, types.RoleDriver, types.RoleSystem} {
		_, err := svc.Resolve(context.Background(), ResolveCommand{
			BookingID: "bk_x",
			Actor:     types.Actor{ID: "someone", Role: role},
			Action:    ActionValidate,
		})
		if err != ErrForbidden {
			t.Fatalf("role %s: expected ErrForbidden, got %v", role, err)
		}
	}
}

func TestResolveValidate(t *testing.T) {
	db, bookings, svc := setupTestService(t)
	ctx := context.Background()

	b := seedDisputedBooking(t, db, bookings, "bk_validate")
	got, err := svc.Resolve(ctx, ResolveCommand{
		BookingID: b.ID,
		Actor:     adminActor,
		Action:    ActionValidate,
		Notes:     "delivery confirmed by photos",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Status != booking.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Settlement != booking.SettlementTransferPending {
		t.Fatalf("expected transfer_pending, got %s", got.Settlement)
	}
	if got.ResolutionNote == nil || !strings.Contains(*got.ResolutionNote, "delivery confirmed") {
		t.Fatal("expected resolution note to be recorded")
	}
}

func TestResolveCancel(t *testing.T) {
	db, bookings, svc := setupTestService(t)
	ctx := context.Background()

	b := seedDisputedBooking(t, db, bookings, "bk_cancel")
	got, err := svc.Resolve(ctx, ResolveCommand{
		BookingID: b.ID,
		Actor:     adminActor,
		Action:    ActionCancel,
		Notes:     "goods never arrived",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Status != booking.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if got.Settlement != booking.SettlementRefundPending {
		t.Fatalf("expected refund_pending, got %s", got.Settlement)
	}
}

func TestResolvePartialRefund(t *testing.T) {
	db, bookings, svc := setupTestService(t)
	ctx := context.Background()

	b := seedDisputedBooking(t, db, bookings, "bk_partial")

	// The partial amount must be positive and below the agreed price.
	for _, amount := range []int64{0, -100, b.AgreedPrice.Amount, b.AgreedPrice.Amount + 1} {
		if _, err := svc.Resolve(ctx, ResolveCommand{
			BookingID:    b.ID,
			Actor:        adminActor,
			Action:       ActionPartialRefund,
			RefundAmount: amount,
		}); err != booking.ErrBadRequest {
			t.Fatalf("amount %d: expected ErrBadRequest, got %v", amount, err)
		}
	}

	got, err := svc.Resolve(ctx, ResolveCommand{
		BookingID:    b.ID,
		Actor:        adminActor,
		Action:       ActionPartialRefund,
		RefundAmount: b.AgreedPrice.Amount / 2,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Status != booking.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Settlement != booking.SettlementPartiallyRefunded {
		t.Fatalf("expected partially_refunded, got %s", got.Settlement)
	}
}

func TestResolveTwice(t *testing.T) {
	db, bookings, svc := setupTestService(t)
	ctx := context.Background()

	b := seedDisputedBooking(t, db, bookings, "bk_twice")
	if _, err := svc.Resolve(ctx, ResolveCommand{
		BookingID: b.ID,
		Actor:     adminActor,
		Action:    ActionValidate,
	}); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	// The first outcome stands; a second attempt conflicts.
	if _, err := svc.Resolve(ctx, ResolveCommand{
		BookingID: b.ID,
		Actor:     adminActor,
		Action:    ActionCancel,
	}); err != ErrResolved {
		t.Fatalf("second resolve: expected ErrResolved, got %v", err)
	}

	got, err := bookings.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != booking.StatusCompleted {
		t.Fatalf("first outcome overwritten: got %s", got.Status)
	}
}

func TestResolveNotDisputed(t *testing.T) {
	db, bookings, svc := setupTestService(t)
	ctx := context.Background()

	b := seedDisputedBooking(t, db, bookings, "bk_plain")
	// Clear the dispute: a delivered, paid booking is not resolvable.
	if _, err := db.Exec(ctx, `UPDATE bookings SET settlement = 'paid' WHERE id = $1`, string(b.ID)); err != nil {
		t.Fatalf("reset settlement: %v", err)
	}

	if _, err := svc.Resolve(ctx, ResolveCommand{
		BookingID: b.ID,
		Actor:     adminActor,
		Action:    ActionValidate,
	}); err != ErrNotDisputed {
		t.Fatalf("expected ErrNotDisputed, got %v", err)
	}
}

func TestResolveUnknownAction(t *testing.T) {
	db, bookings, svc := setupTestService(t)

	b := seedDisputedBooking(t, db, bookings, "bk_action")
	if _, err := svc.Resolve(context.Background(), ResolveCommand{
		BookingID: b.ID,
		Actor:     adminActor,
		Action:    Action("escalate"),
	}); err != ErrBadAction {
		t.Fatalf("expected ErrBadAction, got %v", err)
	}
}

// seedDisputedBooking creates a delivered booking with a disputed settlement,
// the only state Resolve accepts.
func seedDisputedBooking(t *testing.T, db *pgxpool.Pool, bookings *booking.Store, id types.ID) *booking.Booking {
	t.Helper()
	ctx := context.Background()

	jobID := types.ID("job_" + string(id))
	if err := bookings.CreateJob(ctx, &booking.Job{
		ID:        jobID,
		CompanyID: "c_test",
		Status:    booking.JobDelivered,
		DayRate:   types.Money{Amount: 30000, Currency: "EUR"},
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if err := bookings.CreateBooking(ctx, &booking.Booking{
		ID:          id,
		JobID:       jobID,
		CompanyID:   "c_test",
		DriverID:    types.ID("d_" + string(id)),
		Status:      booking.StatusPending,
		Settlement:  booking.SettlementUnpaid,
		AgreedPrice: types.Money{Amount: 30000, Currency: "EUR"},
		CreatedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	if _, err := db.Exec(ctx, `
		UPDATE bookings SET status = 'delivered', settlement = 'disputed',
			dispute_reason = 'damaged goods', delivered_at = NOW()
		WHERE id = $1`, string(id)); err != nil {
		t.Fatalf("seed dispute state: %v", err)
	}

	b, err := bookings.Get(ctx, id)
	if err != nil {
		t.Fatalf("get seeded booking: %v", err)
	}
	return b
}

func setupTestService(t *testing.T) (*pgxpool.Pool, *booking.Store, *Service) {
	t.Helper()

	dsn := os.Getenv("FREIGHTLY_TEST_DSN")
	if dsn == "" {
		t.Skip("FREIGHTLY_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	if _, err := db.Exec(ctx, "TRUNCATE TABLE booking_state_events, bookings, jobs"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	bookings := booking.NewStore(db)
	return db, bookings, NewService(bookings, nil, nil, nil, nil)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	path := filepath.Join(root, "migrations", "0001_init.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
