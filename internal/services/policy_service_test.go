package services

import (
	"testing"

	"daswos/internal/models"
	"daswos/internal/testutil"
)

func TestPolicyGet(t *testing.T) {
	t.Run("creates_default_on_first_read", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPolicyService(db)
		user := testutil.CreateTestUser(t, db)

		policy, err := svc.Get(user.ID)
		testutil.AssertNoError(t, err)

		if policy.Enabled {
			t.Error("default policy should be disabled")
		}
		if policy.ConfidenceThreshold != 0.75 {
			t.Errorf("expected default threshold 0.75, got %f", policy.ConfidenceThreshold)
		}
		if policy.Sphere != models.SphereSafe {
			t.Errorf("expected safesphere default, got %s", policy.Sphere)
		}
		if policy.PaymentMethod != models.PaymentMethodCoins {
			t.Errorf("expected coins default, got %s", policy.PaymentMethod)
		}

		// A second read returns the same row.
		again, err := svc.Get(user.ID)
		testutil.AssertNoError(t, err)
		if again.ID != policy.ID {
			t.Error("expected the same policy row on repeated reads")
		}
	})
}

func TestPolicyUpdate(t *testing.T) {
	t.Run("updates_only_provided_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPolicyService(db)
		user := testutil.CreateTestUser(t, db)

		enabled := true
		threshold := 0.9
		updated, err := svc.Update(user.ID, PolicyUpdateFields{
			Enabled:             &enabled,
			ConfidenceThreshold: &threshold,
		})
		testutil.AssertNoError(t, err)

		if !updated.Enabled {
			t.Error("expected enabled to be set")
		}
		if updated.ConfidenceThreshold != 0.9 {
			t.Errorf("expected threshold 0.9, got %f", updated.ConfidenceThreshold)
		}
		if updated.PaymentMethod != models.PaymentMethodCoins {
			t.Errorf("unrelated field changed: %s", updated.PaymentMethod)
		}
	})

	t.Run("rejects_out_of_range_threshold", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPolicyService(db)
		user := testutil.CreateTestUser(t, db)

		threshold := 1.5
		_, err := svc.Update(user.ID, PolicyUpdateFields{ConfidenceThreshold: &threshold})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects_out_of_range_trust_score", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPolicyService(db)
		user := testutil.CreateTestUser(t, db)

		trust := 101
		_, err := svc.Update(user.ID, PolicyUpdateFields{MinimumTrustScore: &trust})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("empty_update_is_noop", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPolicyService(db)
		user := testutil.CreateTestUser(t, db)

		before, err := svc.Get(user.ID)
		testutil.AssertNoError(t, err)

		after, err := svc.Update(user.ID, PolicyUpdateFields{})
		testutil.AssertNoError(t, err)
		if after.ID != before.ID || after.ConfidenceThreshold != before.ConfidenceThreshold {
			t.Error("empty update should not change the policy")
		}
	})
}
