package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrierbot/registrar/pkg/catalog"
	"github.com/terrierbot/registrar/pkg/entitlement"
	"github.com/terrierbot/registrar/pkg/observability"
	"github.com/terrierbot/registrar/pkg/purchases"
	"github.com/terrierbot/registrar/pkg/sessions"
	"github.com/terrierbot/registrar/pkg/users"
)

// fakeUsers implements users.Service backed by a map. License keys map
// "key-<username>" to their owner.
type fakeUsers struct {
	users    map[string]*users.User
	resetErr error
}

func (f *fakeUsers) GetUser(username string) (*users.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) LookupByLicenseKey(key string) (string, error) {
	for username, u := range f.users {
		if u.LicenseKey == key {
			return username, nil
		}
	}
	return "", users.ErrNotFound
}

func (f *fakeUsers) CreateOrUpdate(profile users.IdentityProfile) (*users.User, bool, error) {
	u, ok := f.users[profile.Username]
	if ok {
		return u, false, nil
	}
	u = &users.User{Username: profile.Username, LicenseKey: "key-" + profile.Username}
	f.users[profile.Username] = u
	return u, true, nil
}

func (f *fakeUsers) ResetLicenseKey(username string) (string, error) {
	if f.resetErr != nil {
		return "", f.resetErr
	}
	u, ok := f.users[username]
	if !ok {
		return "", users.ErrNotFound
	}
	u.LicenseKey = "rotated-" + username
	return u.LicenseKey, nil
}

// fakeRegistry implements sessions.Registry with scripted outcomes.
type fakeRegistry struct {
	activeDevice  *sessions.DeviceMeta
	createErr     error
	createdID     int64
	createdGrant  entitlement.GrantLevel
	createdTarget []sessions.CourseTarget
	heartbeatErr  error
	heartbeats    []int64
	terminateErr  error
	terminated    []sessions.TerminationRecord
	markErr       error
	markStamped   bool
	markDebited   bool
	staleIDs      []int64
}

func (f *fakeRegistry) HasActiveSession(username string) (*sessions.DeviceMeta, error) {
	return f.activeDevice, nil
}

func (f *fakeRegistry) Create(username string, grant entitlement.GrantLevel, device sessions.DeviceMeta, isPlanner bool, targets []sessions.CourseTarget) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.createdGrant = grant
	f.createdTarget = targets
	return f.createdID, nil
}

func (f *fakeRegistry) Heartbeat(sessionID, timestamp int64) error {
	if f.heartbeatErr != nil {
		return f.heartbeatErr
	}
	f.heartbeats = append(f.heartbeats, sessionID)
	return nil
}

func (f *fakeRegistry) Terminate(sessionID int64, rec sessions.TerminationRecord) error {
	if f.terminateErr != nil {
		return f.terminateErr
	}
	f.terminated = append(f.terminated, rec)
	return nil
}

func (f *fakeRegistry) MarkRegistered(username string, sessionID, timestamp int64, courseID int64, section string) (bool, bool, error) {
	if f.markErr != nil {
		return false, false, f.markErr
	}
	return f.markStamped, f.markDebited, nil
}

func (f *fakeRegistry) ListStale(olderThan int64) ([]int64, error) {
	return f.staleIDs, nil
}

// fakeCatalogService implements catalog.Service in memory.
type fakeCatalogService struct {
	departments []string
	courses     []catalog.CourseSection
	selections  map[string][]catalog.Selection
	err         error
}

func (f *fakeCatalogService) Departments() ([]string, error) {
	return f.departments, f.err
}

func (f *fakeCatalogService) ListCourses(season string, year int16) ([]catalog.CourseSection, error) {
	return f.courses, f.err
}

func (f *fakeCatalogService) AddSelection(username string, courseID int64, section string) error {
	if f.err != nil {
		return f.err
	}
	if f.selections == nil {
		f.selections = make(map[string][]catalog.Selection)
	}
	f.selections[username] = append(f.selections[username], catalog.Selection{CourseID: courseID, Section: section})
	return nil
}

func (f *fakeCatalogService) RemoveSelection(username string, courseID int64, section string) error {
	if f.err != nil {
		return f.err
	}
	kept := f.selections[username][:0]
	for _, sel := range f.selections[username] {
		if sel.CourseID != courseID || sel.Section != section {
			kept = append(kept, sel)
		}
	}
	f.selections[username] = kept
	return nil
}

func (f *fakeCatalogService) ListSelections(username string) ([]catalog.Selection, error) {
	return f.selections[username], f.err
}

// fakePurchaseLedger implements purchases.Ledger.
type fakePurchaseLedger struct {
	opened    []string
	closed    map[string]bool
	quantity  int64
	closeErr  error
	openErr   error
	expireN   int64
	expireErr error
}

func (f *fakePurchaseLedger) Open(username string, quantity int64, subtotal float64, checkoutID string) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, checkoutID)
	return nil
}

func (f *fakePurchaseLedger) Close(checkoutID string, succeeded bool, total *float64, coupon *string) (bool, int64, error) {
	if f.closeErr != nil {
		return false, 0, f.closeErr
	}
	if f.closed == nil {
		f.closed = make(map[string]bool)
	}
	if f.closed[checkoutID] {
		return false, 0, nil
	}
	f.closed[checkoutID] = succeeded
	if !succeeded {
		return true, 0, nil
	}
	return true, f.quantity, nil
}

func (f *fakePurchaseLedger) ExpireAbandoned(openedBefore int64) (int64, error) {
	return f.expireN, f.expireErr
}

type testServer struct {
	*Server
	users    *fakeUsers
	registry *fakeRegistry
	catalog  *fakeCatalogService
	ledger   *fakePurchaseLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	demoOver := int64(1700000000)
	fu := &fakeUsers{users: map[string]*users.User{
		"jdoe": {
			Username:       "jdoe",
			LicenseKey:     "key-jdoe",
			CustomerRef:    "cus_123",
			CurrentCredits: 3,
		},
		"asmith": {
			Username:      "asmith",
			LicenseKey:    "key-asmith",
			DemoExpiredAt: &demoOver,
		},
	}}
	fr := &fakeRegistry{createdID: 42, markStamped: true, markDebited: true}
	fc := &fakeCatalogService{
		departments: []string{"CAS CS", "ENG EC"},
		selections:  map[string][]catalog.Selection{},
	}
	fl := &fakePurchaseLedger{}

	checkout := purchases.NewCheckoutService(
		purchases.NewPricer([]purchases.TieredPrice{
			{RequiredQuantity: 1, UnitPrice: 24.99},
			{RequiredQuantity: 5, UnitPrice: 14.99},
		}),
		purchases.NewStripeClient("https://checkout.example.com"),
		fl,
	)

	srv := NewServer(Config{
		Users:     fu,
		Registry:  fr,
		Catalog:   fc,
		Checkout:  checkout,
		Purchases: fl,
	})

	return &testServer{Server: srv, users: fu, registry: fr, catalog: fc, ledger: fl}
}

// withMetrics attaches a fresh metrics set to the test server so tests
// can assert on counter movement.
func withMetrics(srv *testServer) *observability.Metrics {
	m := observability.NewMetrics(prometheus.NewRegistry())
	srv.metrics = m
	return m
}

func doJSON(t *testing.T, srv http.Handler, method, path, licenseKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if licenseKey != "" {
		req.Header.Set("Authorization", "Bearer "+licenseKey)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func rawRequest(method, path, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	return req, httptest.NewRecorder()
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pong!")
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t)

	t.Run("rejects requests without a license key", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/v1/entitlement", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects unknown license keys", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/v1/entitlement", "bogus", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("webhook route is reachable without a key", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/v1/billing/webhook", "", map[string]string{"type": "unrelated.event"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
