package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient wires a Client to a test server whose token endpoint is
// served alongside the workspace routes.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tokens := NewTokenSource(srv.URL+"/oauth2/token", "c", "s", srv.Client())
	client := NewClient(srv.URL, "org-1", tokens)
	client.client = srv.Client()
	return client, srv
}

func TestClientCreate(t *testing.T) {
	t.Run("posts to the org workspaces collection", func(t *testing.T) {
		var gotMethod, gotPath, gotAuth string
		var gotBody map[string]any
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath = r.Method, r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"ws-1","display_name":"Test","org_id":"org-1"}`)
		})

		ws, err := client.Create(context.Background(), "test-nb-20240101", "ephemeral")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotMethod != http.MethodPost || gotPath != "/workspace/orgs/org-1/workspaces" {
			t.Errorf("request: %s %s", gotMethod, gotPath)
		}
		if gotAuth != "Bearer tok" {
			t.Errorf("authorization: %q", gotAuth)
		}
		if gotBody["name"] != "test-nb-20240101" {
			t.Errorf("body: %v", gotBody)
		}
		if _, ok := gotBody["bounding_box"]; !ok {
			t.Errorf("body missing bounding_box: %v", gotBody)
		}
		if ws.ID != "ws-1" {
			t.Errorf("workspace: %+v", ws)
		}
	})

	t.Run("name conflict deletes the stale workspace and retries", func(t *testing.T) {
		origDelay := conflictRetryDelay
		conflictRetryDelay = 0
		t.Cleanup(func() { conflictRetryDelay = origDelay })

		posts := 0
		var deletedPath string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodPost:
				posts++
				if posts == 1 {
					http.Error(w, "name already in use", http.StatusConflict)
					return
				}
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"id":"ws-2","display_name":"test-nb"}`)
			case r.Method == http.MethodGet:
				fmt.Fprint(w, `{"workspaces":[{"id":"ws-stale","name":"test-nb"},{"id":"ws-other","name":"other"}]}`)
			case r.Method == http.MethodDelete:
				deletedPath = r.URL.Path
				w.WriteHeader(http.StatusNoContent)
			}
		})

		ws, err := client.Create(context.Background(), "test-nb", "ephemeral")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ws.ID != "ws-2" {
			t.Errorf("workspace: %+v", ws)
		}
		if posts != 2 {
			t.Errorf("expected 2 create attempts, got %d", posts)
		}
		if deletedPath != "/workspace/orgs/org-1/workspaces/ws-stale" {
			t.Errorf("deleted: %q", deletedPath)
		}
	})

	t.Run("repeated conflict surfaces as CreateError", func(t *testing.T) {
		origDelay := conflictRetryDelay
		conflictRetryDelay = 0
		t.Cleanup(func() { conflictRetryDelay = origDelay })

		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				fmt.Fprint(w, `{"workspaces":[]}`)
			default:
				http.Error(w, "name already in use", http.StatusConflict)
			}
		})

		_, err := client.Create(context.Background(), "test-nb", "ephemeral")
		var ce *CreateError
		if !errors.As(err, &ce) {
			t.Fatalf("expected CreateError, got %v", err)
		}
		if ce.Status != http.StatusConflict {
			t.Errorf("status: %d", ce.Status)
		}
	})

	t.Run("failure surfaces as CreateError", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusForbidden)
		})

		_, err := client.Create(context.Background(), "n", "d")
		var ce *CreateError
		if !errors.As(err, &ce) {
			t.Fatalf("expected CreateError, got %v", err)
		}
		if ce.Status != http.StatusForbidden {
			t.Errorf("status: %d", ce.Status)
		}
	})
}

func TestClientDelete(t *testing.T) {
	t.Run("deletes by id", func(t *testing.T) {
		var gotMethod, gotPath string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath = r.Method, r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		})

		if err := client.Delete(context.Background(), "ws-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotMethod != http.MethodDelete || gotPath != "/workspace/orgs/org-1/workspaces/ws-1" {
			t.Errorf("request: %s %s", gotMethod, gotPath)
		}
	})

	t.Run("failure is an error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone wrong", http.StatusInternalServerError)
		})
		if err := client.Delete(context.Background(), "ws-1"); err == nil {
			t.Error("expected error")
		}
	})
}
