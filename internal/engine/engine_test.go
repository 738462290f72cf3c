package engine

import (
	"context"
	"testing"
)

func TestFromStoreName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		wantID ID
		wantOK bool
	}{
		{"history", History, true},
		{"Bookmarks", Bookmarks, true},
		{"passwords", Logins, true},
		{"logins", Logins, true},
		{"TABS", Tabs, true},
		{"cards", CreditCards, true},
		{"holograms", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		id, ok := FromStoreName(tc.name)
		if id != tc.wantID || ok != tc.wantOK {
			t.Errorf("FromStoreName(%q) = (%q, %v), want (%q, %v)", tc.name, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	cases := map[Status]string{
		StatusOK:           "ok",
		StatusNetworkError: "network_error",
		StatusBackedOff:    "backed_off",
		StatusAuthError:    "auth_error",
		StatusServiceError: "service_error",
		StatusOtherError:   "other_error",
		Status(99):         "unknown",
	}

	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestStaticProvider_ResolvesOnlyReadyStores(t *testing.T) {
	t.Parallel()

	p := StaticProvider{Ready: map[string]any{
		"history": struct{}{},
		"tabs":    struct{}{},
	}}

	handles, err := p.Handles(context.Background(), []string{"history", "bookmarks", "tabs"})
	if err != nil {
		t.Fatalf("Handles: %v", err)
	}

	if len(handles) != 2 {
		t.Fatalf("handles = %v, want history and tabs only", handles)
	}
}

func TestNoopEngine_EchoesStateAndSucceeds(t *testing.T) {
	t.Parallel()

	result, err := NoopEngine{}.Sync(context.Background(), Request{
		Stores:         []StoreHandle{{Name: "history"}, {Name: "tabs"}},
		PersistedState: "carried",
	})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if result.Status != StatusOK {
		t.Fatalf("status = %v, want ok", result.Status)
	}

	if len(result.Successful) != 2 {
		t.Fatalf("successful = %v", result.Successful)
	}

	if result.PersistedState != "carried" {
		t.Fatalf("persisted state = %q, want carried", result.PersistedState)
	}
}
