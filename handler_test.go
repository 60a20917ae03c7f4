package mapty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t       *testing.T
	engine  *echo.Echo
	app     *App
	page    *Page
	cookies []*http.Cookie
}

func newHarness(t *testing.T, geo Geolocator) *harness {
	t.Helper()
	return newStorageHarness(t, NewMemoryStorage(), geo)
}

func newStorageHarness(t *testing.T, store Storage, geo Geolocator) *harness {
	t.Helper()
	page := NewPage(time.Millisecond)
	app := NewApp(Options{
		Storage:     store,
		Geolocator:  geo,
		MapProvider: page,
		View:        page,
		Alerter:     page,
	})
	app.Start(context.Background())
	app.Wait()

	h := &harness{t: t, app: app, page: page}
	h.rekey("0123456789abcdef")
	return h
}

// rekey rebuilds the engine around the same app and page with a new cookie
// store key, keeping the cookies already issued
func (h *harness) rekey(key string) {
	h.t.Helper()
	tmpl, err := NewTemplate()
	require.NoError(h.t, err)

	engine := echo.New()
	engine.Renderer = tmpl
	engine.Use(session.Middleware(sessions.NewCookieStore([]byte(key))))
	Routes(engine.Group(""), "", h.app, h.page)
	h.engine = engine
}

func (h *harness) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range h.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		h.cookies = cookies
	}
	return rec
}

func TestHandlerWorkflow(t *testing.T) {
	a := assert.New(t)
	h := newHarness(t, &StaticGeolocator{Position: LatLng{39, -12}})

	rec := h.do(http.MethodGet, "/", nil)
	a.Equal(http.StatusOK, rec.Code)
	a.Contains(rec.Body.String(), `L.map('map')`)

	rec = h.do(http.MethodPost, "/map/click", url.Values{"lat": {"39.25"}, "lng": {"-12.5"}})
	a.Equal(http.StatusSeeOther, rec.Code)
	a.Equal("/", rec.Header().Get(echo.HeaderLocation))
	a.Equal(StateAwaitingInput, h.app.State())

	rec = h.do(http.MethodPost, "/workouts", url.Values{
		"type": {"running"}, "distance": {"5.2"}, "duration": {"24"}, "cadence": {"178"},
	})
	a.Equal(http.StatusSeeOther, rec.Code)
	workouts := h.app.Workouts()
	require.Len(t, workouts, 1)
	a.Equal(LatLng{39.25, -12.5}, workouts[0].Coords)

	rec = h.do(http.MethodGet, "/", nil)
	a.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	a.Contains(body, workouts[0].Description)
	a.Contains(body, "4.6")
	a.Contains(body, `data-id="`+workouts[0].ID+`"`)

	rec = h.do(http.MethodGet, "/api/workouts", nil)
	a.Equal(http.StatusOK, rec.Code)
	var res []*Workout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	a.Len(res, 1)

	rec = h.do(http.MethodPost, "/workouts/"+workouts[0].ID+"/move", url.Values{})
	a.Equal(http.StatusSeeOther, rec.Code)

	rec = h.do(http.MethodPost, "/reset", url.Values{})
	a.Equal(http.StatusSeeOther, rec.Code)
	h.app.Wait()
	a.Empty(h.app.Workouts())
}

func TestHandlerInvalidInputAlert(t *testing.T) {
	a := assert.New(t)
	h := newHarness(t, &StaticGeolocator{Position: LatLng{39, -12}})

	h.do(http.MethodPost, "/map/click", url.Values{"lat": {"39"}, "lng": {"-12"}})
	rec := h.do(http.MethodPost, "/workouts", url.Values{
		"type": {"running"}, "distance": {"-1"}, "duration": {"24"}, "cadence": {"178"},
	})
	a.Equal(http.StatusSeeOther, rec.Code)
	a.Empty(h.app.Workouts())

	rec = h.do(http.MethodGet, "/", nil)
	body := rec.Body.String()
	a.Contains(body, "Inputs have to be positive numbers!")
	a.Contains(body, `value="-1"`)

	rec = h.do(http.MethodGet, "/", nil)
	a.NotContains(rec.Body.String(), "Inputs have to be positive numbers!")
}

func TestHandlerRotatedSessionKey(t *testing.T) {
	a := assert.New(t)
	h := newHarness(t, &StaticGeolocator{Position: LatLng{39, -12}})

	h.do(http.MethodPost, "/map/click", url.Values{"lat": {"39"}, "lng": {"-12"}})
	rec := h.do(http.MethodPost, "/workouts", url.Values{"type": {"running"}, "distance": {"x"}})
	a.Equal(http.StatusSeeOther, rec.Code)
	require.NotEmpty(t, h.cookies)
	stale := h.cookies[0].Value

	h.rekey("fedcba9876543210")
	rec = h.do(http.MethodGet, "/", nil)
	a.Equal(http.StatusOK, rec.Code)
	a.NotContains(rec.Body.String(), "Inputs have to be positive numbers!")
	require.NotEmpty(t, h.cookies)
	a.NotEqual(stale, h.cookies[0].Value)

	rec = h.do(http.MethodGet, "/", nil)
	a.Equal(http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/workouts", url.Values{"type": {"running"}, "distance": {"x"}})
	a.Equal(http.StatusSeeOther, rec.Code)
	rec = h.do(http.MethodGet, "/", nil)
	a.Equal(http.StatusOK, rec.Code)
	a.Contains(rec.Body.String(), "Inputs have to be positive numbers!")
}

func TestHandlerResetFailure(t *testing.T) {
	a := assert.New(t)
	h := newStorageHarness(t, failingRemoveStorage{NewMemoryStorage()}, &StaticGeolocator{Position: LatLng{39, -12}})

	h.do(http.MethodPost, "/map/click", url.Values{"lat": {"39"}, "lng": {"-12"}})
	h.do(http.MethodPost, "/workouts", url.Values{
		"type": {"running"}, "distance": {"5"}, "duration": {"25"}, "cadence": {"170"},
	})
	require.Len(t, h.app.Workouts(), 1)

	rec := h.do(http.MethodPost, "/reset", url.Values{})
	a.Equal(http.StatusSeeOther, rec.Code)
	a.Len(h.app.Workouts(), 1)

	rec = h.do(http.MethodGet, "/", nil)
	a.Equal(http.StatusOK, rec.Code)
	a.Contains(rec.Body.String(), "Could not reset workouts")
}

func TestHandlerPositionAlert(t *testing.T) {
	h := newHarness(t, &fakeGeolocator{err: ErrPositionUnavailable})

	rec := h.do(http.MethodGet, "/", nil)
	assert.Contains(t, rec.Body.String(), "Could not get position")
	assert.NotContains(t, rec.Body.String(), `L.map('map')`)

	rec = h.do(http.MethodPost, "/map/click", url.Values{"lat": {"1"}, "lng": {"2"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, StateIdle, h.app.State())
}

func TestHandlerTypeAndCancel(t *testing.T) {
	a := assert.New(t)
	h := newHarness(t, &StaticGeolocator{Position: LatLng{39, -12}})

	h.do(http.MethodPost, "/map/click", url.Values{"lat": {"39"}, "lng": {"-12"}})
	h.do(http.MethodPost, "/form/type", url.Values{"type": {"cycling"}, "distance": {"12"}})
	form := h.page.Snapshot().Form
	a.False(form.ElevationHidden)
	a.True(form.CadenceHidden)
	a.Equal("12", form.Input.Distance)

	h.do(http.MethodPost, "/form/cancel", url.Values{})
	a.Equal(StateIdle, h.app.State())
	a.True(h.page.Snapshot().Form.Hidden)
}

func TestHandlerBadClick(t *testing.T) {
	h := newHarness(t, &StaticGeolocator{Position: LatLng{39, -12}})
	rec := h.do(http.MethodPost, "/map/click", url.Values{"lat": {"north"}, "lng": {"2"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, &StaticGeolocator{Position: LatLng{39, -12}})
	rec := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
