package model

import "testing"

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    TaskStatus
		wantErr bool
	}{
		{"Created", TaskStatusCreated, false},
		{"inprogress", TaskStatusInProgress, false},
		{"COMPLETED", TaskStatusCompleted, false},
		{"Cancelled", TaskStatusCancelled, false},
		{"Done", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTaskStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTaskStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTaskStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Valid(t *testing.T) {
	for _, s := range TaskStatuses {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if TaskStatus("created").Valid() {
		t.Error("Valid must be case-sensitive")
	}
}
