package metrics

import (
	"strings"
	"testing"
)

func TestParseGaugesBasic(t *testing.T) {
	body := `# HELP index_bytes Approximate byte size of the current in-memory index.
# TYPE index_bytes gauge
index_bytes 1024
# HELP index_docs Number of documents in the current in-memory index.
# TYPE index_docs gauge
index_docs 17
`
	got, err := ParseGauges(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseGauges: %v", err)
	}
	if got["index_bytes"] != 1024 {
		t.Fatalf("index_bytes = %d, want 1024", got["index_bytes"])
	}
	if got["index_docs"] != 17 {
		t.Fatalf("index_docs = %d, want 17", got["index_docs"])
	}
}

func TestParseGaugesIgnoresLabelsAndTimestamp(t *testing.T) {
	body := `index_bytes{job="orkad"} 2048 1700000000000`
	got, err := ParseGauges(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseGauges: %v", err)
	}
	if got["index_bytes"] != 2048 {
		t.Fatalf("index_bytes = %d, want 2048", got["index_bytes"])
	}
}

func TestParseGaugesRejectsMalformedValue(t *testing.T) {
	_, err := ParseGauges(strings.NewReader("index_bytes not-a-number"))
	if err == nil {
		t.Fatal("expected an error for a malformed gauge value")
	}
}
