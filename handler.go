package mapty

import (
	"html/template"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

const sessionName = "mapty"

// Template renders html templates for echo
type Template struct {
	t *template.Template
}

// NewTemplate parses the embedded page template
func NewTemplate() (*Template, error) {
	t, err := template.ParseFS(Content, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Template{t: t}, nil
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.t.ExecuteTemplate(w, name, data)
}

// RequestLogger logs each request with zerolog
func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("elapsed", v.Latency).
				Msg("request")
			return nil
		},
	})
}

// Routes registers the page and api endpoints; base is the path prefix of g
func Routes(g *echo.Group, base string, app *App, page *Page) {
	g.GET("/", IndexHandler(base, page))
	g.POST("/map/click", ClickHandler(base, page))
	g.POST("/workouts", SubmitHandler(base, app, page))
	g.POST("/workouts/:id/move", MoveHandler(base, app, page))
	g.POST("/form/type", TypeHandler(base, app, page))
	g.POST("/form/cancel", CancelHandler(base, app, page))
	g.POST("/reset", ResetHandler(base, app, page))
	g.GET("/api/workouts", WorkoutsHandler(app))
	g.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

type index struct {
	Base     string
	Alerts   []string
	Snapshot Snapshot
}

// IndexHandler renders the page along with any pending alerts
func IndexHandler(base string, page *Page) echo.HandlerFunc {
	return func(c echo.Context) error {
		var alerts []string
		sess, err := getSession(c)
		if err != nil {
			return err
		}
		for _, f := range sess.Flashes() {
			if s, ok := f.(string); ok {
				alerts = append(alerts, s)
			}
		}
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			return err
		}
		alerts = append(alerts, page.Drain()...)
		return c.Render(http.StatusOK, "index.html", index{
			Base:     base,
			Alerts:   alerts,
			Snapshot: page.Snapshot(),
		})
	}
}

// ClickHandler receives a click on the map
func ClickHandler(base string, page *Page) echo.HandlerFunc {
	return func(c echo.Context) error {
		lat, err := strconv.ParseFloat(c.FormValue("lat"), 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lat")
		}
		lng, err := strconv.ParseFloat(c.FormValue("lng"), 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lng")
		}
		page.Click(LatLng{lat, lng})
		return redirect(c, base, page)
	}
}

// SubmitHandler receives the workout form
func SubmitHandler(base string, app *App, page *Page) echo.HandlerFunc {
	return func(c echo.Context) error {
		in := formInput(c)
		page.Fill(in)
		if _, err := app.NewWorkout(c.Request().Context(), in); err != nil {
			log.Warn().Err(err).Msg("submit")
		}
		return redirect(c, base, page)
	}
}

// TypeHandler receives a change of the activity type
func TypeHandler(base string, app *App, page *Page) echo.HandlerFunc {
	return func(c echo.Context) error {
		if page.Fill(formInput(c)) {
			app.ToggleElevationField()
		}
		return redirect(c, base, page)
	}
}

func CancelHandler(base string, app *App, page *Page) echo.HandlerFunc {
	return func(c echo.Context) error {
		app.CancelForm()
		return redirect(c, base, page)
	}
}

// MoveHandler re-centers the map on a workout from the list
func MoveHandler(base string, app *App, page *Page) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !app.MoveToWorkout(c.Param("id")) {
			log.Debug().Str("id", c.Param("id")).Msg("move ignored")
		}
		return redirect(c, base, page)
	}
}

func ResetHandler(base string, app *App, page *Page) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := app.Reset(c.Request().Context()); err != nil {
			log.Warn().Err(err).Msg("reset")
		}
		return redirect(c, base, page)
	}
}

// WorkoutsHandler returns the workouts as json
func WorkoutsHandler(app *App) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, app.Workouts())
	}
}

func formInput(c echo.Context) FormInput {
	return FormInput{
		Type:      c.FormValue("type"),
		Distance:  c.FormValue("distance"),
		Duration:  c.FormValue("duration"),
		Cadence:   c.FormValue("cadence"),
		Elevation: c.FormValue("elevation"),
	}
}

// getSession returns the session, replacing one whose cookie cannot be decoded
// (for example after the session key changed); saving it overwrites the cookie
func getSession(c echo.Context) (*sessions.Session, error) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		if sess == nil {
			return nil, err
		}
		log.Debug().Err(err).Msg("session")
	}
	return sess, nil
}

// redirect moves queued alerts into the session and sends the browser home
func redirect(c echo.Context, base string, page *Page) error {
	if alerts := page.Drain(); len(alerts) > 0 {
		sess, err := getSession(c)
		if err != nil {
			return err
		}
		for _, a := range alerts {
			sess.AddFlash(a)
		}
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			return err
		}
	}
	return c.Redirect(http.StatusSeeOther, base+"/")
}
