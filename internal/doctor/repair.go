package doctor

import (
	"context"
	"fmt"
)

// Fix is one repair action Repair tried
type Fix struct {
	Check string `json:"check"`
	Err   error  `json:"-"`
}

// RepairReport describes what Repair tried and what it achieved
type RepairReport struct {
	Before *Report `json:"before"`
	After  *Report `json:"after"`
	Fixes  []Fix   `json:"fixes"`
	// Resolved lists checks that failed before and pass after
	Resolved []string `json:"resolved"`
}

// Unresolved returns the checks still failing after repair
func (r *RepairReport) Unresolved() []CheckResult {
	return r.After.Failed()
}

// Repair runs the checks, applies the fixes for fixable failures, and checks
// again. Branch divergence and uncommitted dolt changes are never touched.
// Running Repair on a healthy repository changes nothing.
func (d *Doctor) Repair(ctx context.Context) *RepairReport {
	report := &RepairReport{Before: d.Check(ctx)}

	// dolt init must precede the server start
	for _, name := range []string{CheckHooksInstalled, CheckDoltInitialized, CheckSQLServer, CheckNoStaleLocks} {
		res, ok := report.Before.Get(name)
		if name == CheckSQLServer {
			// only fixable once the database exists, which an earlier fix may have changed
			res, ok = d.checkSQLServer(ctx), true
		}
		if !ok || res.Status != StatusFail || !res.Fixable {
			continue
		}
		report.Fixes = append(report.Fixes, Fix{Check: name, Err: d.fix(ctx, name)})
	}

	report.After = d.Check(ctx)
	for _, before := range report.Before.Failed() {
		if after, ok := report.After.Get(before.Name); ok && after.Status != StatusFail {
			report.Resolved = append(report.Resolved, before.Name)
		}
	}
	return report
}

func (d *Doctor) fix(ctx context.Context, check string) error {
	switch check {
	case CheckHooksInstalled:
		_, err := d.deps.Hooks.Install()
		return err
	case CheckDoltInitialized:
		return d.deps.Dolt.Init(ctx)
	case CheckSQLServer:
		if !d.deps.Server.Config().IsLocal() || !d.doltReady() {
			return fmt.Errorf("sql-server can only be started for a local, initialized database")
		}
		return d.deps.Server.Ensure(ctx)
	case CheckNoStaleLocks:
		_, err := d.deps.Lock.ClearStale()
		return err
	}
	return fmt.Errorf("no repair for %s", check)
}
