package models

import "testing"

func TestTaskStatusValid(t *testing.T) {
	valid := []TaskStatus{
		StatusNotStarted, StatusInProgress, StatusChangesRequested,
		StatusReadyToReview, StatusReviewInProgress, StatusReadyToQA,
		StatusCompleted, StatusCancelled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("Valid() = false for %q, want true", s)
		}
	}
	if TaskStatus("on_hold").Valid() {
		t.Error("Valid() = true for unknown status, want false")
	}
}

func TestLaneForStatus(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   Lane
	}{
		{StatusNotStarted, LaneImplementation},
		{StatusInProgress, LaneImplementation},
		{StatusChangesRequested, LaneReview},
		{StatusReadyToReview, LaneReview},
		{StatusReviewInProgress, LaneReview},
		{StatusReadyToQA, LaneQA},
		{StatusCompleted, LaneDone},
		{StatusCancelled, LaneDone},
		{TaskStatus("weird"), LaneImplementation},
	}
	for _, tt := range tests {
		if got := LaneForStatus(tt.status); got != tt.want {
			t.Errorf("LaneForStatus(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusRankOrder(t *testing.T) {
	// Active work sorts before untouched, which sorts before the review
	// pipeline, which sorts before terminal states.
	if !(StatusInProgress.Rank() < StatusNotStarted.Rank()) {
		t.Error("in_progress should rank before not_started")
	}
	if !(StatusNotStarted.Rank() < StatusReadyToReview.Rank()) {
		t.Error("not_started should rank before ready_to_review")
	}
	if !(StatusReadyToReview.Rank() < StatusReadyToQA.Rank()) {
		t.Error("ready_to_review should rank before ready_to_qa")
	}
	if !(StatusReadyToQA.Rank() < StatusCompleted.Rank()) {
		t.Error("ready_to_qa should rank before completed")
	}
	if StatusChangesRequested.Rank() != StatusInProgress.Rank() {
		t.Error("changes_requested should rank with in_progress")
	}
}

func TestBandForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  ComplexityBand
	}{
		{1, BandLow},
		{11.99, BandLow},
		{12, BandMedium},
		{23.99, BandMedium},
		{24, BandHigh},
		{39.99, BandHigh},
		{40, BandVeryHigh},
		{120, BandVeryHigh},
	}
	for _, tt := range tests {
		if got := BandForScore(tt.score); got != tt.want {
			t.Errorf("BandForScore(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
