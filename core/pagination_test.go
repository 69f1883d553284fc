package core

import (
	"math"
	"testing"
)

func TestPageQuery_Bounds(t *testing.T) {
	tests := []struct {
		name       string
		pq         PageQuery
		total      int
		wantOffset int64
		wantStart  int
		wantEnd    int
	}{
		{name: "first page", pq: PageQuery{Page: 1, Limit: 2}, total: 5, wantStart: 0, wantEnd: 2},
		{name: "last partial page", pq: PageQuery{Page: 3, Limit: 2}, total: 5, wantOffset: 4, wantStart: 4, wantEnd: 5},
		{name: "past the end", pq: PageQuery{Page: 4, Limit: 2}, total: 5, wantOffset: 6, wantStart: 5, wantEnd: 5},
		{name: "empty collection", pq: PageQuery{Page: 1, Limit: 10}, wantStart: 0, wantEnd: 0},
		{name: "zero limit", pq: PageQuery{Page: 2}, total: 5, wantStart: 0, wantEnd: 0},
		{
			name:       "huge page",
			pq:         PageQuery{Page: math.MaxInt64, Limit: 10},
			total:      5,
			wantOffset: math.MaxInt64,
			wantStart:  5,
			wantEnd:    5,
		},
		{
			name:       "huge page one item per page",
			pq:         PageQuery{Page: math.MaxInt64, Limit: 1},
			total:      5,
			wantOffset: math.MaxInt64 - 1,
			wantStart:  5,
			wantEnd:    5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pq.Offset(); got != tt.wantOffset {
				t.Errorf("Offset() = %d, want %d", got, tt.wantOffset)
			}
			start, end := tt.pq.Bounds(tt.total)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Bounds() = [%d, %d), want [%d, %d)", start, end, tt.wantStart, tt.wantEnd)
			}
			items := make([]int, tt.total)
			_ = items[start:end]
		})
	}
}
