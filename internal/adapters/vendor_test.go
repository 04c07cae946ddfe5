package adapters

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/theirongolddev/planhaus/internal/model"
)

func TestToFunnel(t *testing.T) {
	vendors := []model.Vendor{
		{Status: model.VendorBooked},
		{Status: "Researching"},
		{Status: "researching "},
		{Status: "contract sent"},
		{Status: model.VendorCancelled},
		{Status: "ghosted"},
	}
	got := ToFunnel(vendors)

	counts := []int{}
	for _, s := range got.Stages {
		counts = append(counts, s.Count)
	}
	if diff := cmp.Diff([]int{2, 0, 0, 1, 1}, counts); diff != "" {
		t.Fatalf("stage counts (-want +got):\n%s", diff)
	}
	if got.Cancelled != 1 || got.Unknown != 1 || got.Total != 6 {
		t.Fatalf("cancelled=%d unknown=%d total=%d", got.Cancelled, got.Unknown, got.Total)
	}

	order := []model.VendorStatus{}
	for _, s := range got.Stages {
		order = append(order, s.Stage)
	}
	if diff := cmp.Diff(model.VendorPipeline, order); diff != "" {
		t.Fatalf("stage order (-want +got):\n%s", diff)
	}
}

func TestToFunnelEmpty(t *testing.T) {
	got := ToFunnel(nil)
	if len(got.Stages) != len(model.VendorPipeline) {
		t.Fatalf("stages = %d, want %d", len(got.Stages), len(model.VendorPipeline))
	}
	for _, s := range got.Stages {
		if s.Percentage != 0 {
			t.Fatalf("stage %s percentage = %v, want 0", s.Stage, s.Percentage)
		}
	}
}
