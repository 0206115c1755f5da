package extension

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/permission"
	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/store/memory"
)

func noStore() (store.Store, error) { return nil, errors.New("not registered") }

func TestBuildEngine_RequiresStore(t *testing.T) {
	e := New()
	if _, err := e.buildEngine(noStore); !errors.Is(err, keeper.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestBuildEngine_InjectedStore(t *testing.T) {
	s := memory.New()
	e := New(WithConfig(Config{DisableMetrics: true}))
	eng, err := e.buildEngine(func() (store.Store, error) { return s, nil })
	if err != nil {
		t.Fatal(err)
	}
	if eng.Store() != store.Store(s) {
		t.Fatal("engine should use the injected store")
	}
}

func TestBuildEngine_CachesSnapshots(t *testing.T) {
	e := New(WithStore(memory.New()))
	eng, err := e.buildEngine(noStore)
	if err != nil {
		t.Fatal(err)
	}
	ctx := keeper.WithTenant(context.Background(), "app1", "t1")
	req := &keeper.SnapshotRequest{
		SpaceID: "!s:x",
		UserID:  "@u:x",
		State:   &keeper.RoomState{Membership: permission.MembershipJoin, PowerLevels: permission.DefaultPowerLevels()},
	}
	if _, err := eng.Snapshot(ctx, req); err != nil {
		t.Fatal(err)
	}
	res, err := eng.Snapshot(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached {
		t.Fatal("default extension engine should cache snapshots")
	}
}

func TestStartPurge(t *testing.T) {
	e := New(WithStore(memory.New()), WithConfig(Config{PurgeSchedule: "not a schedule", DisableMetrics: true}))
	eng, err := e.buildEngine(noStore)
	if err != nil {
		t.Fatal(err)
	}
	e.eng = eng
	if err := e.Start(context.Background()); err == nil {
		t.Fatal("expected an invalid schedule error")
	}

	e.config.PurgeSchedule = "@every 1h"
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.scheduler == nil || len(e.scheduler.Entries()) != 1 {
		t.Fatal("purge job not scheduled")
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.config.PurgeSchedule = "-"
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.scheduler != nil {
		t.Fatal("purge job scheduled while disabled")
	}
}

func TestHealth(t *testing.T) {
	e := New()
	if err := e.Health(context.Background()); err == nil {
		t.Fatal("uninitialized extension should be unhealthy")
	}
	eng, err := New(WithStore(memory.New())).buildEngine(noStore)
	if err != nil {
		t.Fatal(err)
	}
	e.eng = eng
	if err := e.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestMetricsRoute(t *testing.T) {
	if _, ok := DefaultConfig().metricsRoute(); ok {
		t.Fatal("metrics route mounted by default")
	}

	e := New(WithMetricsPath("/metrics"))
	path, ok := e.config.metricsRoute()
	if !ok || path != "/metrics" {
		t.Fatalf("metrics route = %q, %v", path, ok)
	}

	e.config.DisableMetrics = true
	if _, ok := e.config.metricsRoute(); ok {
		t.Fatal("metrics route mounted while metrics are disabled")
	}
}
