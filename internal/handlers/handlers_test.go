package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"agenda-backend/internal/auth"
	"agenda-backend/internal/booking"
	"agenda-backend/internal/cache"
	"agenda-backend/internal/config"
	"agenda-backend/internal/middleware"
	"agenda-backend/internal/models"
	"agenda-backend/internal/transport"
	"agenda-backend/internal/validation"
)

const (
	testZone     = "Africa/Kinshasa"
	testAdminKey = "test-admin-key"
)

type testEnv struct {
	t      *testing.T
	repo   *booking.MemoryRepository
	server *Server
	h      http.Handler
}

func testSettings() models.Settings {
	return models.Settings{
		BufferTimeMinutes:   0,
		MinAdvanceHours:     1,
		MaxAdvanceDays:      30,
		SlotDurationMinutes: 30,
		Timezone:            testZone,
	}
}

// newTestEnv serves a weekday split shift (09-12, 14-17) and a one-hour "consult" service,
// with the clock fixed on Monday 2026-02-02 08:00.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation(testZone)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	fixed := time.Date(2026, 2, 2, 8, 0, 0, 0, loc)
	now := func() time.Time { return fixed }

	ctx := context.Background()
	repo := booking.NewMemoryRepository()
	if err := repo.SaveSettings(ctx, testSettings()); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	for day := 1; day <= 5; day++ {
		for i, w := range [][2]string{{"09:00", "12:00"}, {"14:00", "17:00"}} {
			err := repo.CreateAvailabilityRule(ctx, models.AvailabilityRule{
				ID:        time.Weekday(day).String() + string(rune('a'+i)),
				DayOfWeek: day,
				StartTime: w[0],
				EndTime:   w[1],
				Active:    true,
			})
			if err != nil {
				t.Fatalf("create rule: %v", err)
			}
		}
	}
	err = repo.CreateService(ctx, models.Service{ID: "consult", Name: "Consultation", Slug: "consultation", DurationMinutes: 60, Active: true})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	cfg := &config.Config{
		AdminAPIKey:   testAdminKey,
		AdminUser:     "admin",
		AdminPassword: "env-password",
		AdminSetupKey: "setup-key",
		ReadTimeout:   time.Second,
		WriteTimeout:  time.Second,
	}
	slots := booking.NewSlotService(repo, testSettings(), now)
	s := &Server{
		Cfg:    cfg,
		Store:  repo,
		Slots:  slots,
		Booker: booking.NewBooker(repo, slots, now, time.Second),
		Val:    validation.New(),
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cache:  cache.NewNoop(),
		Auth: &auth.Manager{
			Secret:     []byte("test-secret"),
			AccessTTL:  15 * time.Minute,
			RefreshTTL: time.Hour,
			Issuer:     "agenda-test",
		},
		Now: now,
	}
	return &testEnv{t: t, repo: repo, server: s, h: s.Routes(nil, nil)}
}

func (e *testEnv) do(method, path string, body interface{}, admin bool, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("X-Admin-Key", testAdminKey)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

// recordingCache never hits and remembers the TTL of every write.
type recordingCache struct {
	cache.NoopCache
	mu   sync.Mutex
	ttls map[string]time.Duration
}

func (c *recordingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttls == nil {
		c.ttls = make(map[string]time.Duration)
	}
	c.ttls[key] = ttl
	return nil
}

func (c *recordingCache) ttl(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ttl, ok := c.ttls[key]
	return ttl, ok
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func meetingBody(date, clock string) map[string]string {
	return map[string]string{
		"serviceId": "consult",
		"date":      date,
		"time":      clock,
		"name":      "Amani Kabila",
		"email":     "amani@example.com",
		"phone":     "+243 810 000 000",
		"channel":   models.ChannelOnline,
	}
}

func TestServiceAvailability(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/services/consult/availability?date=2026-02-03", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got booking.Availability
	decode(t, rec, &got)
	if len(got.Slots) != 6 || got.Slots[0] != "09:00" {
		t.Fatalf("slots = %v", got.Slots)
	}

	rec = env.do(http.MethodGet, "/api/v1/services/consult/availability?date=03-02-2026", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/api/services/missing/availability?date=2026-02-03", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing service status = %d", rec.Code)
	}
}

func TestNextAvailability(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/availability/next?serviceId=consult&from=2026-02-07", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got booking.Availability
	decode(t, rec, &got)
	if got.Date != "2026-02-09" {
		t.Fatalf("next date = %s, want 2026-02-09", got.Date)
	}
}

func TestCreateMeeting(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/meetings", meetingBody("2026-02-03", "10:00"), false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.Meeting
	decode(t, rec, &created)
	if created.Status != models.MeetingPending || created.ClientPhone != "+243810000000" {
		t.Fatalf("created = %+v", created)
	}

	rec = env.do(http.MethodPost, "/api/meetings", meetingBody("2026-02-03", "10:00"), false)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double booking status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/meetings/"+created.ID, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestCreateMeetingRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	bad := meetingBody("2026-02-03", "10:00")
	bad["email"] = "not-an-email"
	rec := env.do(http.MethodPost, "/api/meetings", bad, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad email status = %d", rec.Code)
	}
	var body transport.ErrorResponse
	decode(t, rec, &body)
	if body.Details["email"] != "email" {
		t.Fatalf("details = %v", body.Details)
	}

	rec = env.do(http.MethodPost, "/api/meetings", meetingBody("2026-02-03", "10:30"), false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unoffered slot status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/api/meetings", map[string]string{"unexpected": "field"}, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}
}

func TestGetMeetingNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/v1/meetings/nope", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/admin/settings", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAvailabilityCacheStopsAtCutoff(t *testing.T) {
	env := newTestEnv(t)
	rc := &recordingCache{}
	env.server.Cache = rc
	env.server.Cfg.CacheTTLSeconds = 60

	// 09:00 today is exactly on the one-hour cutoff and drops out next minute
	rec := env.do(http.MethodGet, "/api/services/consult/availability?date=2026-02-02", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("today status = %d", rec.Code)
	}
	if ttl, ok := rc.ttl(cache.AvailabilityKey("2026-02-02", "consult")); ok {
		t.Fatalf("today cached for %v", ttl)
	}

	env.do(http.MethodGet, "/api/services/consult/availability?date=2026-02-03", nil, false)
	if ttl, _ := rc.ttl(cache.AvailabilityKey("2026-02-03", "consult")); ttl != time.Minute {
		t.Fatalf("tomorrow ttl = %v, want the configured minute", ttl)
	}

	env.server.Cfg.CacheTTLSeconds = 0
	env.do(http.MethodGet, "/api/services/consult/availability?date=2026-02-04", nil, false)
	if ttl, _ := rc.ttl(cache.AvailabilityKey("2026-02-04", "consult")); ttl != 16*time.Hour {
		t.Fatalf("unbounded ttl = %v, want 16h until midnight", ttl)
	}
}

func TestAdminMeetingStatus(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/meetings", meetingBody("2026-02-03", "14:00"), false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var m models.Meeting
	decode(t, rec, &m)

	path := "/api/admin/meetings/" + m.ID + "/status"
	rec = env.do(http.MethodPatch, path, map[string]string{"status": "confirmed"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body.String())
	}
	var confirmed adminMeeting
	decode(t, rec, &confirmed)
	want := []models.MeetingStatus{models.MeetingCancelled, models.MeetingCompleted, models.MeetingNoShow}
	if confirmed.Status != models.MeetingConfirmed || !reflect.DeepEqual(confirmed.AllowedTransitions, want) {
		t.Fatalf("confirmed meeting = %+v", confirmed)
	}

	rec = env.do(http.MethodPatch, path, map[string]string{"status": "pending"}, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("confirmed -> pending status = %d", rec.Code)
	}

	rec = env.do(http.MethodPatch, path, map[string]string{"status": "archived"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status code = %d", rec.Code)
	}

	rec = env.do(http.MethodPatch, path, map[string]string{"status": "cancelled"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	rec = env.do(http.MethodPost, "/api/meetings", meetingBody("2026-02-03", "14:00"), false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("rebook after cancel status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/admin/meetings?date=2026-02-03&status=pending", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Meetings []adminMeeting `json:"meetings"`
		Total    int64          `json:"total"`
	}
	decode(t, rec, &list)
	if list.Total != 1 || len(list.Meetings) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if got := list.Meetings[0].AllowedTransitions; len(got) != 3 || got[0] != models.MeetingCancelled {
		t.Fatalf("pending transitions = %v", got)
	}

	rec = env.do(http.MethodGet, "/api/admin/meetings?status=cancelled", nil, true)
	var cancelled struct {
		Meetings []adminMeeting `json:"meetings"`
	}
	decode(t, rec, &cancelled)
	if len(cancelled.Meetings) != 1 || cancelled.Meetings[0].AllowedTransitions == nil || len(cancelled.Meetings[0].AllowedTransitions) != 0 {
		t.Fatalf("cancelled transitions = %+v", cancelled.Meetings)
	}
}

func TestAdminSettingsValidation(t *testing.T) {
	env := newTestEnv(t)

	invalid := testSettings()
	invalid.BufferTimeMinutes = 500
	rec := env.do(http.MethodPut, "/api/admin/settings", invalid, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body transport.ErrorResponse
	decode(t, rec, &body)
	if _, ok := body.Details["bufferTimeMinutes"]; !ok {
		t.Fatalf("details = %v", body.Details)
	}

	valid := testSettings()
	valid.BufferTimeMinutes = 15
	rec = env.do(http.MethodPut, "/api/admin/settings", valid, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid update status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodGet, "/api/services/consult/availability?date=2026-02-03", nil, false)
	var got booking.Availability
	decode(t, rec, &got)
	if len(got.Slots) != 4 {
		t.Fatalf("slots after buffer change = %v", got.Slots)
	}
}

func TestAdminSettingsNotifiesHook(t *testing.T) {
	env := newTestEnv(t)
	var saved []models.Settings
	env.server.SettingsSaved = func(s models.Settings) { saved = append(saved, s) }

	invalid := testSettings()
	invalid.Timezone = "Mars/Olympus"
	env.do(http.MethodPut, "/api/admin/settings", invalid, true)
	if len(saved) != 0 {
		t.Fatalf("hook ran for rejected settings: %+v", saved)
	}

	valid := testSettings()
	valid.Timezone = "Europe/Paris"
	rec := env.do(http.MethodPut, "/api/admin/settings", valid, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(saved) != 1 || saved[0].Timezone != "Europe/Paris" {
		t.Fatalf("hook calls = %+v", saved)
	}
}

func TestAdminBlockedDateRange(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{"from": "2026-02-03", "to": "2026-02-05", "reason": "retreat"}

	rec := env.do(http.MethodPost, "/api/admin/blocked-dates", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
	}
	decode(t, rec, &res)
	if res.Inserted != 3 {
		t.Fatalf("inserted = %d", res.Inserted)
	}

	rec = env.do(http.MethodPost, "/api/admin/blocked-dates", body, true)
	decode(t, rec, &res)
	if res.Inserted != 0 || res.Skipped != 3 {
		t.Fatalf("second insert = %+v", res)
	}

	rec = env.do(http.MethodGet, "/api/services/consult/availability?date=2026-02-04", nil, false)
	var got booking.Availability
	decode(t, rec, &got)
	if len(got.Slots) != 0 {
		t.Fatalf("blocked day slots = %v", got.Slots)
	}

	rec = env.do(http.MethodPost, "/api/admin/blocked-dates", map[string]string{"from": "2026-01-01", "to": "2027-06-01"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized range status = %d", rec.Code)
	}
}

func TestAdminBlockedDatesRejectsPast(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/admin/blocked-dates", map[string]string{"date": "2026-02-01"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("past date status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodPost, "/api/admin/blocked-dates", map[string]string{"from": "2026-01-30", "to": "2026-02-03"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("past range status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodPost, "/api/admin/blocked-dates", map[string]string{"date": "2026-02-02"}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("today status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAdminAvailabilityRuleRejectsInvertedWindow(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/admin/availability", map[string]interface{}{
		"dayOfWeek": 6, "startTime": "13:00", "endTime": "09:00",
	}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/api/admin/availability", map[string]interface{}{
		"dayOfWeek": 6, "startTime": "09:00", "endTime": "13:00",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodGet, "/api/availability/next?serviceId=consult&from=2026-02-07", nil, false)
	var got booking.Availability
	decode(t, rec, &got)
	if got.Date != "2026-02-07" {
		t.Fatalf("next date = %s, want the new Saturday window", got.Date)
	}
}

func TestAdminCreateServiceSlug(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/admin/services", map[string]interface{}{
		"name": "Séance de suivi", "durationMinutes": 45,
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var svc models.Service
	decode(t, rec, &svc)
	if svc.Slug != "seance-de-suivi" || !svc.Active {
		t.Fatalf("service = %+v", svc)
	}

	rec = env.do(http.MethodPost, "/api/admin/services", map[string]interface{}{
		"name": "Marathon", "durationMinutes": 600,
	}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("long duration status = %d", rec.Code)
	}
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAdminLoginWithEnvCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/admin/login", map[string]string{"username": "admin", "password": "wrong"}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/admin/login", map[string]string{"username": "Admin", "password": "env-password"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	access := cookieNamed(rec, middleware.AccessCookie)
	refresh := cookieNamed(rec, refreshCookie)
	if access == nil || refresh == nil {
		t.Fatal("auth cookies not set")
	}

	rec = env.do(http.MethodGet, "/api/admin/settings", nil, false, access)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie auth status = %d", rec.Code)
	}

	// a refresh token is not accepted as an access token
	rec = env.do(http.MethodGet, "/api/admin/settings", nil, false, &http.Cookie{Name: middleware.AccessCookie, Value: refresh.Value})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh-as-access status = %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/admin/refresh", nil, false, refresh)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}
}

func TestAdminRegisterThenLogin(t *testing.T) {
	env := newTestEnv(t)
	auth.PasswordCost = 4

	reg := map[string]string{"username": "Nadia", "password": "long-enough", "setupKey": "wrong"}
	rec := env.do(http.MethodPost, "/api/admin/register", reg, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad setup key status = %d", rec.Code)
	}

	reg["setupKey"] = "setup-key"
	rec = env.do(http.MethodPost, "/api/admin/register", reg, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodPost, "/api/admin/register", reg, false)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/admin/login", map[string]string{"username": "nadia", "password": "long-enough"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("stored user login status = %d", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/health", nil, false); rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	env.server.Ready = func(ctx context.Context) error { return context.DeadlineExceeded }
	env.h = env.server.Routes(nil, nil)
	if rec := env.do(http.MethodGet, "/ready", nil, false); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready = %d", rec.Code)
	}
}
