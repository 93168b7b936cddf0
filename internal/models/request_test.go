package models

import (
	"encoding/json"
	"testing"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *QueryRequest
		wantErr bool
		wantK   int
	}{
		{"empty text", &QueryRequest{Text: ""}, true, 0},
		{"blank text", &QueryRequest{Text: "   "}, true, 0},
		{"sets default k", &QueryRequest{Text: "x"}, false, 5},
		{"keeps k", &QueryRequest{Text: "x", K: 7}, false, 7},
		{"caps k at 100", &QueryRequest{Text: "x", K: 200}, false, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.K != tt.wantK {
				t.Errorf("K = %d, want %d", tt.query.K, tt.wantK)
			}
		})
	}
}

func TestBatchRequest_Validate(t *testing.T) {
	if err := (&BatchRequest{}).Validate(); err == nil {
		t.Error("expected error for empty batch")
	}
	if err := (&BatchRequest{Files: []string{"a", " "}}).Validate(); err == nil {
		t.Error("expected error for blank file")
	}
	if err := (&BatchRequest{Files: []string{"a", "b"}}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProcessResponse_NullSummary(t *testing.T) {
	data, err := json.Marshal(ProcessResponse{Message: "Processing complete", File: "r1"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"message":"Processing complete","file":"r1","gemini_summary":null}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
