package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velafit/velafit-backend/pkg/db/models"
	"github.com/velafit/velafit-backend/pkg/enums"
	pkgerrors "github.com/velafit/velafit-backend/pkg/errors"
)

type stubPlansRepo struct {
	plans    map[uuid.UUID]*models.CreditPlan
	writeErr error
}

func newStubPlansRepo() *stubPlansRepo {
	return &stubPlansRepo{plans: map[uuid.UUID]*models.CreditPlan{}}
}

func (s *stubPlansRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPlansRepo) Create(ctx context.Context, plan *models.CreditPlan) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	copied := *plan
	s.plans[plan.ID] = &copied
	return nil
}

func (s *stubPlansRepo) Update(ctx context.Context, plan *models.CreditPlan) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	copied := *plan
	s.plans[plan.ID] = &copied
	return nil
}

func (s *stubPlansRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.CreditPlan, error) {
	plan, ok := s.plans[id]
	if !ok {
		return nil, nil
	}
	copied := *plan
	return &copied, nil
}

func (s *stubPlansRepo) ListByBrand(ctx context.Context, brandID uuid.UUID, includeRetired bool) ([]models.CreditPlan, error) {
	var out []models.CreditPlan
	for _, plan := range s.plans {
		if plan.BrandID != brandID {
			continue
		}
		if !includeRetired && plan.Status != enums.PlanStatusActive {
			continue
		}
		out = append(out, *plan)
	}
	return out, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestCreateValidatesAmounts(t *testing.T) {
	svc := newTestService(t, newStubPlansRepo())
	brandID := uuid.New()

	cases := []struct {
		name  string
		input CreatePlanInput
	}{
		{"zero base", CreatePlanInput{BrandID: brandID, Name: "p", BaseCredits: 0, ValidityDays: 30}},
		{"bonus above base", CreatePlanInput{BrandID: brandID, Name: "p", BaseCredits: 5, BonusCredits: 6, ValidityDays: 30}},
		{"zero validity", CreatePlanInput{BrandID: brandID, Name: "p", BaseCredits: 5, ValidityDays: 0}},
		{"negative price", CreatePlanInput{BrandID: brandID, Name: "p", BaseCredits: 5, ValidityDays: 30, PriceCents: -1}},
		{"missing name", CreatePlanInput{BrandID: brandID, BaseCredits: 5, ValidityDays: 30}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestCreateAndGetPlan(t *testing.T) {
	svc := newTestService(t, newStubPlansRepo())
	brandID := uuid.New()

	plan, err := svc.Create(context.Background(), CreatePlanInput{
		BrandID:      brandID,
		Name:         "10-pack",
		PriceCents:   9900,
		BaseCredits:  10,
		BonusCredits: 2,
		ValidityDays: 90,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if plan.Status != enums.PlanStatusActive {
		t.Fatalf("new plans should start active, got %s", plan.Status)
	}
	if plan.TotalCredits() != 12 {
		t.Fatalf("expected 12 total credits, got %d", plan.TotalCredits())
	}

	got, err := svc.Get(context.Background(), brandID, plan.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "10-pack" {
		t.Fatalf("unexpected plan %+v", got)
	}
}

func TestGetEnforcesBrandOwnership(t *testing.T) {
	svc := newTestService(t, newStubPlansRepo())
	plan, err := svc.Create(context.Background(), CreatePlanInput{
		BrandID:      uuid.New(),
		Name:         "10-pack",
		BaseCredits:  10,
		ValidityDays: 90,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.Get(context.Background(), uuid.New(), plan.ID); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("another brand's plan must read as NOT_FOUND, got %v", err)
	}
}

func TestUpdateAppliesPartialEdits(t *testing.T) {
	svc := newTestService(t, newStubPlansRepo())
	brandID := uuid.New()
	plan, err := svc.Create(context.Background(), CreatePlanInput{
		BrandID:      brandID,
		Name:         "10-pack",
		PriceCents:   9900,
		BaseCredits:  10,
		ValidityDays: 90,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	name := "10-pack (summer)"
	price := int64(7900)
	updated, err := svc.Update(context.Background(), UpdatePlanInput{
		BrandID:    brandID,
		PlanID:     plan.ID,
		Name:       &name,
		PriceCents: &price,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != name || updated.PriceCents != price {
		t.Fatalf("edits not applied: %+v", updated)
	}
	if updated.BaseCredits != 10 || updated.ValidityDays != 90 {
		t.Fatalf("untouched fields must keep their values")
	}

	badBonus := 20
	if _, err := svc.Update(context.Background(), UpdatePlanInput{
		BrandID:      brandID,
		PlanID:       plan.ID,
		BonusCredits: &badBonus,
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for bonus above base, got %v", err)
	}
}

func TestRetireHidesPlanFromDefaultListing(t *testing.T) {
	repo := newStubPlansRepo()
	svc := newTestService(t, repo)
	brandID := uuid.New()
	plan, err := svc.Create(context.Background(), CreatePlanInput{
		BrandID:      brandID,
		Name:         "10-pack",
		BaseCredits:  10,
		ValidityDays: 90,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	retired, err := svc.Retire(context.Background(), brandID, plan.ID)
	if err != nil {
		t.Fatalf("retire failed: %v", err)
	}
	if retired.Status != enums.PlanStatusInactive {
		t.Fatalf("expected inactive status, got %s", retired.Status)
	}

	visible, err := svc.List(context.Background(), brandID, false)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("retired plans must not appear in the default listing")
	}
	all, err := svc.List(context.Background(), brandID, true)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("retired plans stay readable, got %d", len(all))
	}

	// Retiring twice is safe.
	if _, err := svc.Retire(context.Background(), brandID, plan.ID); err != nil {
		t.Fatalf("second retire failed: %v", err)
	}
}

func TestCreateDuplicateActiveNameConflicts(t *testing.T) {
	repo := newStubPlansRepo()
	svc := newTestService(t, repo)
	brandID := uuid.New()

	repo.writeErr = errors.New(`ERROR: duplicate key value violates unique constraint "idx_credit_plans_brand_name_active" (SQLSTATE 23505)`)
	_, err := svc.Create(context.Background(), CreatePlanInput{
		BrandID:      brandID,
		Name:         "Starter 10",
		BaseCredits:  10,
		ValidityDays: 30,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT for duplicate active name, got %v", err)
	}
}

func TestUpdateDuplicateActiveNameConflicts(t *testing.T) {
	repo := newStubPlansRepo()
	svc := newTestService(t, repo)
	brandID := uuid.New()

	plan, err := svc.Create(context.Background(), CreatePlanInput{
		BrandID:      brandID,
		Name:         "Starter 10",
		BaseCredits:  10,
		ValidityDays: 30,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	repo.writeErr = errors.New(`ERROR: duplicate key value violates unique constraint "idx_credit_plans_brand_name_active" (SQLSTATE 23505)`)
	taken := "Monthly 20"
	if _, err := svc.Update(context.Background(), UpdatePlanInput{
		BrandID: brandID,
		PlanID:  plan.ID,
		Name:    &taken,
	}); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT for duplicate active name, got %v", err)
	}
}
