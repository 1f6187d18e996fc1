package http

import (
	"bytes"
	"net/http"
	"time"

	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/ical"
	"budgetcal/internal/log"
)

// ensureLoaded fetches the visible month once per session.
func (s *Server) ensureLoaded(r *http.Request, sess *calendar.Session) error {
	if sess.Loaded() {
		return nil
	}
	if err := s.calendar.Load(r.Context(), sess); err != nil {
		return err
	}
	s.appMetrics.monthLoads.Add(1)
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	var loadErr string
	if err := s.ensureLoaded(r, sess); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentCalendar).ErrorContext(r.Context(), "Initial month load failed",
			log.FieldMonth, sess.Month.String(), log.FieldError, err)
		loadErr = "Failed to load events."
	}
	v := s.buildView(sess, time.Now())
	v.Error = loadErr
	s.render(w, r, "index.html", v, NewHTMXResponse())
}

// handleCalendar re-renders the calendar partial, optionally jumping to the
// month given as ?month=YYYY-MM.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	resp := NewHTMXResponse()
	if err := s.ensureLoaded(r, sess); err != nil {
		s.writeError(w, r, log.OpLoad, err)
		return
	}
	if m := r.URL.Query().Get("month"); m != "" {
		ym, err := core.ParseYearMonth(m)
		if err != nil {
			UnprocessableEntityError("Invalid month").Write(w)
			return
		}
		moved, err := s.calendar.Goto(r.Context(), sess, ym)
		if err != nil {
			s.writeError(w, r, log.OpLoad, err)
			return
		}
		if moved {
			s.appMetrics.monthLoads.Add(1)
			resp.TriggerMonthChanged(sess.Month.String())
		}
	}
	s.renderCalendar(w, r, sess, resp)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	delta, ok := ParseMonthDirection(r.PathValue("dir"))
	if !ok {
		BadRequestError("Unknown direction").Write(w)
		return
	}
	if err := s.ensureLoaded(r, sess); err != nil {
		s.writeError(w, r, log.OpLoad, err)
		return
	}
	moved, err := s.calendar.Navigate(r.Context(), sess, delta)
	if err != nil {
		s.writeError(w, r, log.OpLoad, err)
		return
	}
	resp := NewHTMXResponse()
	if moved {
		s.appMetrics.monthLoads.Add(1)
		resp.TriggerMonthChanged(sess.Month.String())
	}
	s.renderCalendar(w, r, sess, resp)
}

func (s *Server) handleSelectDay(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := s.ensureLoaded(r, sess); err != nil {
		s.writeError(w, r, log.OpLoad, err)
		return
	}
	d, err := ParseDayParam(r.Form.Get("date"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	if err := sess.SelectDay(d); err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	s.renderCalendar(w, r, sess, NewHTMXResponse())
}

// handleExport serves the visible month as an iCalendar file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	if err := s.ensureLoaded(r, sess); err != nil {
		s.writeError(w, r, log.OpLoad, err)
		return
	}
	colorFor := func(e core.Event) string { return sess.Colors.ColorFor(e.Name, e.Color) }
	body := ical.ExportMonth("budgetcal "+sess.Month.String(), sess.Cache.Events(), colorFor, time.Now())
	NewHTMXResponse().
		Header("Content-Type", "text/calendar; charset=utf-8").
		Header("Content-Disposition", `attachment; filename="budgetcal-`+sess.Month.String()+`.ics"`).
		Header("Cache-Control", "no-store").
		Body([]byte(body)).
		Write(w)
}

func (s *Server) renderCalendar(w http.ResponseWriter, r *http.Request, sess *calendar.Session, resp *HTMXResponseBuilder) {
	s.render(w, r, "calendar", s.buildView(sess, time.Now()), resp)
}

// render executes name into a buffer so a template failure never leaves a
// half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, resp *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			"template", name, log.FieldOperation, log.OpRender, log.FieldError, err)
		InternalServerError("Error rendering page").Write(w)
		return
	}
	resp.Header("Content-Type", "text/html; charset=utf-8").
		Header("Cache-Control", "no-store").
		Body(buf.Bytes()).
		Write(w)
}
