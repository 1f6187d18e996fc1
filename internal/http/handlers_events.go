package http

import (
	"net/http"

	"budgetcal/internal/calendar"
	"budgetcal/internal/log"
)

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	form, err := ParseEventForm(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	if err := s.ensureLoaded(r, sess); err != nil {
		s.writeError(w, r, log.OpLoad, err)
		return
	}
	ev, err := s.calendar.Create(r.Context(), sess, form.createInput())
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.appMetrics.eventsCreated.Add(1)
	s.renderCalendar(w, r, sess, NewHTMXResponse().
		TriggerEventChanged("created", ev.Date.Key()).
		TriggerFormReset().
		TriggerSuccessNotification("Event added"))
}

func (s *Server) handleToggleDone(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	if err := s.ensureLoaded(r, sess); err != nil {
		s.writeError(w, r, log.OpLoad, err)
		return
	}
	ev, err := s.calendar.ToggleDone(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.appMetrics.toggles.Add(1)
	s.renderCalendar(w, r, sess, NewHTMXResponse().TriggerEventChanged("updated", ev.Date.Key()))
}

func (s *Server) handleEditEvent(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	form, err := ParseEventForm(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	if err := s.ensureLoaded(r, sess); err != nil {
		s.writeError(w, r, log.OpLoad, err)
		return
	}
	ev, err := s.calendar.Edit(r.Context(), sess, r.PathValue("id"), form.editInput())
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.appMetrics.eventsEdited.Add(1)
	s.renderCalendar(w, r, sess, NewHTMXResponse().
		TriggerEventChanged("updated", ev.Date.Key()).
		TriggerSuccessNotification("Event updated"))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	if err := s.ensureLoaded(r, sess); err != nil {
		s.writeError(w, r, log.OpLoad, err)
		return
	}
	id := r.PathValue("id")
	if err := s.calendar.Delete(r.Context(), sess, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.appMetrics.eventsDeleted.Add(1)
	s.renderCalendar(w, r, sess, NewHTMXResponse().
		TriggerEventChanged("deleted", sess.Selected.Key()).
		TriggerSuccessNotification("Event deleted"))
}
