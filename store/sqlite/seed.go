package sqlite

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tally/kpitrack/kpi"
)

// SeedDemo loads a small demo team and KPI catalog so the dashboard has
// something to show on a fresh database. Idempotent: rows are upserts.
func (s *Store) SeedDemo(ctx context.Context) error {
	managerID := kpi.UserID("user-ava")

	users := []kpi.User{
		{ID: "user-ava", Name: "Ava Lindqvist", Email: "ava@example.com", Role: kpi.RoleManager, Active: true},
		{ID: "user-ben", Name: "Ben Okafor", Email: "ben@example.com", Role: kpi.RoleEmployee, Active: true, ManagerID: &managerID},
		{ID: "user-cleo", Name: "Cleo Marsh", Email: "cleo@example.com", Role: kpi.RoleEmployee, Active: true, ManagerID: &managerID},
		{ID: "user-dmitri", Name: "Dmitri Volkov", Email: "dmitri@example.com", Role: kpi.RoleAdmin, Active: true},
	}
	for _, u := range users {
		if err := s.SaveUser(ctx, u); err != nil {
			return err
		}
	}

	kpis := []kpi.Kpi{
		{ID: "kpi-demo", Name: "Product demo delivered", Weight: decimal.NewFromInt(5), Active: true, Category: "sales"},
		{ID: "kpi-call", Name: "Customer call logged", Weight: decimal.NewFromInt(2), Active: true, Category: "sales"},
		{ID: "kpi-doc", Name: "Runbook updated", Weight: decimal.NewFromInt(3), Active: true, Category: "ops"},
	}
	for _, k := range kpis {
		if err := s.SaveKpi(ctx, k); err != nil {
			return err
		}
	}

	return s.SetSetting(ctx, kpi.SettingRepeatPolicy, string(kpi.RepeatPerWeek))
}
