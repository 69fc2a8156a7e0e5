package health

import (
	"context"
	"testing"
)

func TestCheckAllEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Error("an empty registry is healthy")
	}
	if len(statuses) != 0 {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestCheckAllAggregates(t *testing.T) {
	r := NewRegistry()
	r.Register("store", func(ctx context.Context) Status {
		return Status{Name: "store", Healthy: true}
	})
	r.Register("identity", func(ctx context.Context) Status {
		return Status{Name: "identity", Healthy: false, Detail: "circuit open"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Error("one unhealthy subsystem must fail the aggregate")
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	if statuses[0].Name != "store" || !statuses[0].Healthy {
		t.Errorf("statuses[0] = %+v", statuses[0])
	}
	if statuses[1].Detail != "circuit open" {
		t.Errorf("statuses[1] = %+v", statuses[1])
	}
}

func TestCheckAllAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("a", func(ctx context.Context) Status { return Status{Name: "a", Healthy: true} })
	r.Register("b", func(ctx context.Context) Status { return Status{Name: "b", Healthy: true} })

	healthy, _ := r.CheckAll(context.Background())
	if !healthy {
		t.Error("all-healthy registry reported unhealthy")
	}
}
