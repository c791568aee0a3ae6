package spinshell_test

import (
	"context"
	"testing"

	"github.com/hupe1980/spinshell"
	"github.com/hupe1980/spinshell/subspace"
)

func TestBuilder_Square_Basic(t *testing.T) {
	full, err := subspace.NewFull(4)
	if err != nil {
		t.Fatalf("NewFull failed: %v", err)
	}

	op, err := spinshell.FromTerms(chainTerms()).
		Subspace(full).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer op.Close()

	x := make([]complex128, 16)
	x[0] = 1
	y, err := op.Multiply(context.Background(), x)
	if err != nil {
		t.Fatalf("Multiply failed: %v", err)
	}
	if real(y[0]) != 3 {
		t.Errorf("expected y[0] = 3, got %v", y[0])
	}
}

func TestBuilder_FullOptions(t *testing.T) {
	full, err := subspace.NewFull(6)
	if err != nil {
		t.Fatalf("NewFull failed: %v", err)
	}

	op, err := spinshell.FromTerms(heisenbergTerms(6)).
		Subspace(full).
		Processes(3).
		Device(spinshell.DevicePool).
		DeviceUnits(2).
		MemoryLimit(1 << 20).
		IORateLimit(1 << 30).
		Logger(spinshell.NoopLogger()).
		Metrics(&spinshell.BasicMetricsCollector{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer op.Close()

	stats := op.Stats()
	if stats.Ranks != 3 {
		t.Errorf("expected 3 ranks, got %d", stats.Ranks)
	}
	if stats.Device != "pool" {
		t.Errorf("expected pool device, got %q", stats.Device)
	}

	_, err = op.Multiply(context.Background(), make([]complex128, 64))
	if err != nil {
		t.Fatalf("Multiply failed: %v", err)
	}
}

func TestBuilder_Immutable(t *testing.T) {
	full, err := subspace.NewFull(4)
	if err != nil {
		t.Fatalf("NewFull failed: %v", err)
	}

	base := spinshell.FromTerms(chainTerms()).Subspace(full)

	// Deriving configured builders must not touch the base.
	wide := base.Processes(4)
	narrow := base.Processes(2)

	for _, tt := range []struct {
		name    string
		builder spinshell.OperatorBuilder
		ranks   int
	}{
		{"wide", wide, 4},
		{"narrow", narrow, 2},
		{"base", base, 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			op, err := tt.builder.Build()
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			defer op.Close()

			if got := op.Stats().Ranks; got != tt.ranks {
				t.Errorf("expected %d ranks, got %d", tt.ranks, got)
			}
		})
	}
}

func TestBuilder_SubspaceSetsBothSides(t *testing.T) {
	sc, err := subspace.NewSpinConserve(4, 2)
	if err != nil {
		t.Fatalf("NewSpinConserve failed: %v", err)
	}

	op, err := spinshell.FromTerms(heisenbergTerms(4)).
		Subspace(sc).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer op.Close()

	rows, cols := op.Dims()
	if rows != 6 || cols != 6 {
		t.Errorf("expected 6x6 operator, got %dx%d", rows, cols)
	}

	left, right := op.Subspaces()
	if left != subspace.Subspace(sc) || left != right {
		t.Error("expected both sides to share the configured subspace")
	}
}

func TestBuilder_InvalidDevice(t *testing.T) {
	full, err := subspace.NewFull(4)
	if err != nil {
		t.Fatalf("NewFull failed: %v", err)
	}

	_, err = spinshell.FromTerms(chainTerms()).
		Subspace(full).
		Device(spinshell.DeviceKind(99)).
		Build()
	if err == nil {
		t.Fatal("expected Build to reject an unknown device kind")
	}
}

func TestBuilder_FromEncoding(t *testing.T) {
	full, err := subspace.NewFull(4)
	if err != nil {
		t.Fatalf("NewFull failed: %v", err)
	}

	first, err := spinshell.FromTerms(chainTerms()).
		Subspace(full).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer first.Close()

	// Rebuilding from the first operator's encoding must describe the
	// same matrix.
	second, err := spinshell.FromEncoding(first.Encoding()).
		Subspace(full).
		Build()
	if err != nil {
		t.Fatalf("Build from encoding failed: %v", err)
	}
	defer second.Close()

	if first.Stats().Terms != second.Stats().Terms {
		t.Errorf("term count mismatch: %d vs %d",
			first.Stats().Terms, second.Stats().Terms)
	}

	x := make([]complex128, 16)
	x[5] = 1
	ctx := context.Background()

	y1, err := first.Multiply(ctx, x)
	if err != nil {
		t.Fatalf("Multiply failed: %v", err)
	}
	y2, err := second.Multiply(ctx, x)
	if err != nil {
		t.Fatalf("Multiply failed: %v", err)
	}
	for i := range y1 {
		if y1[i] != y2[i] {
			t.Fatalf("row %d differs: %v vs %v", i, y1[i], y2[i])
		}
	}
}
