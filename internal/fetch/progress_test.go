package fetch

import "testing"

func TestProgressLimitReached(t *testing.T) {
	cases := []struct {
		limit     int
		processed int
		want      bool
	}{
		{0, 0, false},
		{0, 1000, false}, // no limit configured
		{2, 1, false},
		{2, 2, false}, // the limit itself is still processed
		{2, 3, true},
		{1, 2, true},
	}
	for _, tc := range cases {
		p := newProgress(itemTypeThread, tc.limit)
		for i := 0; i < tc.processed; i++ {
			p.IncrProcessed()
		}
		if got := p.LimitReached(); got != tc.want {
			t.Errorf("limit %d, processed %d: LimitReached() = %v, want %v",
				tc.limit, tc.processed, got, tc.want)
		}
	}
}

func TestProgressCounters(t *testing.T) {
	p := newProgress(itemTypeThread, 0)
	p.IncrRequests()
	p.RegisterNewItems(3, false)
	p.IncrRequests()
	p.RegisterNewItems(2, false)
	p.IncrProcessed()

	if p.Requests != 2 {
		t.Errorf("Requests = %d, want 2", p.Requests)
	}
	if p.Total != 5 {
		t.Errorf("Total = %d, want 5", p.Total)
	}
	if p.LastBatch != 2 {
		t.Errorf("LastBatch = %d, want 2", p.LastBatch)
	}
	if p.Processed != 1 {
		t.Errorf("Processed = %d, want 1", p.Processed)
	}
}
