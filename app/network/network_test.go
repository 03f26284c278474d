package network

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestJoinedPropertyParameters(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{name: "nil", values: nil, want: ""},
		{name: "empty", values: []string{}, want: ""},
		{name: "single", values: []string{"a"}, want: "a"},
		{name: "multiple", values: []string{"a", "b", "c"}, want: "a|b|c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinedPropertyParameters(tt.values); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestErrorForAPIErrorObject(t *testing.T) {
	err := ErrorForAPIErrorObject(map[string]any{"code": "permissiondenied", "info": "blocked"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if apiErr.Kind != KindAPIError || apiErr.Code != "permissiondenied" || apiErr.Info != "blocked" {
		t.Errorf("Unexpected error fields: %+v", apiErr)
	}
	if !errors.Is(err, ErrAPI) {
		t.Error("Expected errors.Is(err, ErrAPI)")
	}
	if errors.Is(err, ErrInvalidParameters) {
		t.Error("Did not expect errors.Is(err, ErrInvalidParameters)")
	}

	wrapped := fmt.Errorf("failed to search: %w", err)
	if !errors.Is(wrapped, ErrAPI) {
		t.Error("Expected wrapped error to match ErrAPI")
	}
}

func TestErrorForAPIErrorObjectMalformed(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]any
	}{
		{name: "nil", obj: nil},
		{name: "empty", obj: map[string]any{}},
		{name: "missing info", obj: map[string]any{"code": "x"}},
		{name: "missing code", obj: map[string]any{"info": "x"}},
		{name: "non-string code", obj: map[string]any{"code": 42, "info": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ErrorForAPIErrorObject(tt.obj); err != nil {
				t.Errorf("Expected nil, got %v", err)
			}
		})
	}
}

func TestErrorForAPIErrorJSON(t *testing.T) {
	err := ErrorForAPIErrorJSON([]byte(`{"code":"badvalue","info":"Unrecognized value","docref":"See docs"}`))
	if !errors.Is(err, ErrAPI) {
		t.Errorf("Expected API error, got %v", err)
	}
	if err := ErrorForAPIErrorJSON([]byte(`not json`)); err != nil {
		t.Errorf("Expected nil for invalid JSON, got %v", err)
	}
	if err := ErrorForAPIErrorJSON([]byte(`["code","info"]`)); err != nil {
		t.Errorf("Expected nil for array, got %v", err)
	}
}

func TestInvalidParametersError(t *testing.T) {
	err := InvalidParametersError("empty query")
	if !errors.Is(err, ErrInvalidParameters) {
		t.Error("Expected errors.Is(err, ErrInvalidParameters)")
	}
	if errors.Is(err, ErrAPI) {
		t.Error("Did not expect errors.Is(err, ErrAPI)")
	}
	if err.Error() != "invalid parameters: empty query" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

type recordingPublisher struct {
	names    []string
	payloads []map[string]any
}

func (p *recordingPublisher) Publish(name string, payload map[string]any) {
	p.names = append(p.names, name)
	p.payloads = append(p.payloads, payload)
}

func TestPostNetworkRequestBeganNotification(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://en.wikipedia.org/w/api.php", nil)
	if err != nil {
		t.Fatal(err)
	}

	publisher := &recordingPublisher{}
	PostNetworkRequestBeganNotification(publisher, req)

	if len(publisher.names) != 1 || publisher.names[0] != NetworkRequestBegan {
		t.Fatalf("Expected one %s event, got %v", NetworkRequestBegan, publisher.names)
	}
	if publisher.payloads[0][RequestPayloadKey] != req {
		t.Error("Expected request in payload")
	}

	// No publisher must not panic.
	PostNetworkRequestBeganNotification(nil, req)
}
