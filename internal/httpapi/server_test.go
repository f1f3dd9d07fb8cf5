package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/httpapi"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/opcal"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/service"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store/memory"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/types"
)

// newTestServer wires up the full dependency graph using in-memory stores and
// returns an httptest.Server whose URL can be hit with a plain http.Client.
// m1 is qualified to hold lockup and checked in; m2 is checked in but
// unqualified.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	cal := opcal.MustNew(opcal.DefaultTimezone, opcal.DefaultRolloverHour)
	clk := clock.NewFake(time.Date(2026, time.January, 6, 19, 0, 0, 0, cal.Location()))

	members := memory.NewMemberStore(
		store.Member{ID: "m1", FirstName: "Avery", LastName: "Caldwell", Rank: "PO1", RankTier: 6, Status: "active"},
		store.Member{ID: "m2", FirstName: "Sam", LastName: "Okafor", Rank: "S1", RankTier: 3, Status: "active"},
	)
	qualTypes := []store.QualificationType{
		{ID: "qt-swk", Code: "SWK", Name: "Senior Watchkeeper", CanReceiveLockup: true, IsAutomatic: false},
		{ID: "qt-dswk", Code: "DSWK", Name: "Deputy Senior Watchkeeper", CanReceiveLockup: true, IsAutomatic: true},
		{ID: "qt-qm", Code: "QM", Name: "Quartermaster", CanReceiveLockup: false, IsAutomatic: true},
	}
	quals := memory.NewQualificationStore(qualTypes, members)
	if err := quals.Grant(t.Context(), store.QualificationGrant{MemberID: "m1", Code: "SWK", GrantedAt: clk.Now()}); err != nil {
		t.Fatalf("grant SWK: %v", err)
	}

	presence := memory.NewPresenceStore()
	presence.CheckInMember(store.PresenceMember{ID: "m1", Name: "m1", LastCheckinAt: clk.Now()})
	presence.CheckInMember(store.PresenceMember{ID: "m2", Name: "m2", LastCheckinAt: clk.Now()})

	lockups := memory.NewLockupStore()
	lockupSvc := service.NewLockupService(service.LockupDeps{
		Lockups:  lockups,
		Members:  members,
		Quals:    quals,
		Presence: presence,
		Calendar: cal,
		Clock:    clk,
		Logger:   logger,
	})
	engine := service.NewQualificationEngine(members, quals, nil, clk, logger)
	alertSvc := service.NewAlertService(memory.NewAlertStore(), nil, clk, logger)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger: logger,
		Addr:   ":0",
		Lockup: lockupSvc,
		Quals:  engine,
		Alerts: alertSvc,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ── Lockup ───────────────────────────────────────────────────────────────────

func TestStatus_FreshDay_200(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/v1/lockup/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var st types.LockupStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Date != "2026-01-06" {
		t.Errorf("expected date 2026-01-06, got %s", st.Date)
	}
	if st.BuildingStatus != types.StatusOpen {
		t.Errorf("expected open, got %s", st.BuildingStatus)
	}
	if st.CurrentHolderID != nil {
		t.Errorf("expected no holder, got %v", *st.CurrentHolderID)
	}
}

func TestAcquire_Qualified_200(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/lockup/acquire", `{"member_id":"m1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var st types.LockupStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.CurrentHolderID == nil || *st.CurrentHolderID != "m1" {
		t.Fatalf("expected holder m1, got %v", st.CurrentHolderID)
	}
}

func TestAcquire_Unqualified_403(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/lockup/acquire", `{"member_id":"m2"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAcquire_AlreadyHeld_409(t *testing.T) {
	ts := newTestServer(t)

	if resp := postJSON(t, ts.URL+"/v1/lockup/acquire", `{"member_id":"m1"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("setup acquire: %d", resp.StatusCode)
	}
	resp := postJSON(t, ts.URL+"/v1/lockup/acquire", `{"member_id":"m1"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestAcquire_UnknownMember_404(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/lockup/acquire", `{"member_id":"ghost"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAcquire_InvalidJSON_400(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/lockup/acquire", `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestTransfer_NoHolder_400(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/lockup/transfer", `{"to_member_id":"m1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestExecute_Holder_200(t *testing.T) {
	ts := newTestServer(t)

	if resp := postJSON(t, ts.URL+"/v1/lockup/acquire", `{"member_id":"m1"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("setup acquire: %d", resp.StatusCode)
	}
	resp := postJSON(t, ts.URL+"/v1/lockup/execute", `{"member_id":"m1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res types.ExecuteResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.MembersOut != 2 {
		t.Errorf("expected 2 members out, got %d", res.MembersOut)
	}
}

func TestCheckoutOptions_MissingMemberID_400(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/v1/lockup/checkout_options")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckoutOptions_Holder_Blocked(t *testing.T) {
	ts := newTestServer(t)

	if resp := postJSON(t, ts.URL+"/v1/lockup/acquire", `{"member_id":"m1"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("setup acquire: %d", resp.StatusCode)
	}
	resp := getJSON(t, ts.URL+"/v1/lockup/checkout_options?member_id=m1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var opts types.CheckoutOptions
	if err := json.NewDecoder(resp.Body).Decode(&opts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opts.CanCheckout {
		t.Error("holder must be blocked from normal checkout")
	}
}

func TestHistory_200(t *testing.T) {
	ts := newTestServer(t)

	if resp := postJSON(t, ts.URL+"/v1/lockup/acquire", `{"member_id":"m1"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("setup acquire: %d", resp.StatusCode)
	}
	resp := getJSON(t, ts.URL+"/v1/lockup/history")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var page types.HistoryPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected 1 history item, got total=%d items=%d", page.Total, len(page.Items))
	}
	if page.Items[0].Type != "transfer" {
		t.Errorf("expected transfer item, got %s", page.Items[0].Type)
	}
}

func TestPresent_200(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/v1/lockup/present")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snap types.PresentSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Members) != 2 {
		t.Errorf("expected 2 present members, got %d", len(snap.Members))
	}
}

// ── Qualifications ───────────────────────────────────────────────────────────

func TestSyncMember_200(t *testing.T) {
	ts := newTestServer(t)

	// m2 is tier 3, so the sync grants QM.
	resp := postJSON(t, ts.URL+"/v1/qualifications/sync/m2", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res types.MemberSyncResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Granted) != 1 || res.Granted[0] != "QM" {
		t.Errorf("expected QM granted, got %v", res.Granted)
	}
}

func TestSyncMember_Unknown_404(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/qualifications/sync/ghost", `{}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSyncAll_200(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/qualifications/sync", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res types.SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Errorf("expected no per-member errors, got %v", res.Errors)
	}
}

// ── Alerts ───────────────────────────────────────────────────────────────────

func TestListAlerts_Empty_200(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/v1/alerts")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAcknowledgeAlert_Unknown_404(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/alerts/nope/acknowledge", `{"acknowledged_by":"m1"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
