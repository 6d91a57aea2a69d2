package calibration_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/pkg/pagination"
)

type mockSystem struct {
	listFn      func(ctx context.Context, page pagination.PageRequest, filters calibration.Filters) (*pagination.PageResult[calibration.Aggregate], error)
	snapshotsFn func(ctx context.Context, documentID uuid.UUID) ([]calibration.Snapshot, error)
}

func (m *mockSystem) Handler() *calibration.Handler {
	return newTestHandler(m)
}

func (m *mockSystem) Policy() calibration.Policy {
	return calibration.Policy{Version: "v1", LowBandCutoff: 0.5, MidBandCutoff: 0.75, NeutralConfidence: 0.5}
}

func (m *mockSystem) Lookup(context.Context, string, string) (calibration.Table, error) {
	return calibration.Table{}, nil
}

func (m *mockSystem) Apply(context.Context, *sql.Tx, calibration.SnapshotCommand) (*calibration.Snapshot, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) Revert(context.Context, *sql.Tx, uuid.UUID) ([]calibration.Snapshot, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters calibration.Filters) (*pagination.PageResult[calibration.Aggregate], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Snapshots(ctx context.Context, documentID uuid.UUID) ([]calibration.Snapshot, error) {
	return m.snapshotsFn(ctx, documentID)
}

func newTestHandler(sys calibration.System) *calibration.Handler {
	return calibration.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *calibration.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func TestHandlerList(t *testing.T) {
	var captured calibration.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f calibration.Filters) (*pagination.PageResult[calibration.Aggregate], error) {
			captured = f
			result := pagination.NewPageResult([]calibration.Aggregate{
				{FieldKey: "species", AcceptCount: 9, EditCount: 1, Adjustment: 10},
			}, 1, 1, 20)
			return &result, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/calibration?field_key=species&policy_version=v1", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.FieldKey == nil || *captured.FieldKey != "species" {
		t.Errorf("field_key filter = %v, want species", captured.FieldKey)
	}
	if captured.PolicyVersion == nil || *captured.PolicyVersion != "v1" {
		t.Errorf("policy_version filter = %v, want v1", captured.PolicyVersion)
	}

	var result pagination.PageResult[calibration.Aggregate]
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Data) != 1 || result.Data[0].Adjustment != 10 {
		t.Errorf("data = %+v, want one aggregate with adjustment 10", result.Data)
	}
}

func TestHandlerSnapshots(t *testing.T) {
	docID := uuid.New()

	t.Run("returns snapshots", func(t *testing.T) {
		sys := &mockSystem{
			snapshotsFn: func(_ context.Context, id uuid.UUID) ([]calibration.Snapshot, error) {
				if id != docID {
					t.Errorf("document id = %v, want %v", id, docID)
				}
				return []calibration.Snapshot{{DocumentID: id, Status: calibration.StatusApplied}}, nil
			},
		}
		mux := setupMux(newTestHandler(sys))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/calibration/snapshots/"+docID.String(), nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var got []calibration.Snapshot
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 1 || got[0].Status != calibration.StatusApplied {
			t.Errorf("snapshots = %+v, want one applied", got)
		}
	})

	t.Run("invalid uuid returns 400", func(t *testing.T) {
		mux := setupMux(newTestHandler(&mockSystem{}))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/calibration/snapshots/nope", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerPolicy(t *testing.T) {
	mux := setupMux(newTestHandler(&mockSystem{}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/calibration/policy", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["policy_version"] != "v1" {
		t.Errorf("policy_version = %v, want v1", got["policy_version"])
	}
	if got["max_adjustment"] != 15.0 {
		t.Errorf("max_adjustment = %v, want 15", got["max_adjustment"])
	}
}
