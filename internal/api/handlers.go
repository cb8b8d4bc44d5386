package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Saadia-Asghar/callpilot-control/internal/booking"
	"github.com/Saadia-Asghar/callpilot-control/internal/schedule"
)

// BookingService is the slice of the booking write path the handlers use.
type BookingService interface {
	Book(ctx context.Context, userID uuid.UUID, start time.Time, reason *string) (*booking.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time) (*booking.Booking, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]booking.Booking, error)
}

func availabilityHandler(sched *schedule.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal := sched.Calendar()

		start, err := cal.ParseInstant(r.URL.Query().Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
			return
		}

		end := start.Add(cal.SlotDuration())
		if raw := r.URL.Query().Get("end"); raw != "" {
			end, err = cal.ParseInstant(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
				return
			}
		}

		available, err := sched.IsAvailableRange(r.Context(), start, end)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Start:     start,
			End:       end,
			Available: available,
		})
	}
}

func freeSlotsHandler(sched *schedule.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := sched.Calendar().ParseDay(r.URL.Query().Get("day"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day", err.Error())
			return
		}

		slots, err := sched.FreeSlots(r.Context(), day)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, FreeSlotsResponse{
			Day:   day.Format("2006-01-02"),
			Slots: slots,
		})
	}
}

func alternativesHandler(sched *schedule.Scheduler, defaultHorizonDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requested, err := sched.Calendar().ParseInstant(r.URL.Query().Get("requested"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_requested", err.Error())
			return
		}

		horizon := defaultHorizonDays
		if raw := r.URL.Query().Get("horizon_days"); raw != "" {
			horizon, err = strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_horizon_days", "horizon_days must be an integer")
				return
			}
		}

		alternatives, err := sched.SuggestAlternatives(r.Context(), requested, horizon)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AlternativesResponse{
			Requested:    requested,
			Alternatives: alternatives,
		})
	}
}

func suggestionsHandler(opt *schedule.Optimizer, cal *schedule.Calendar, defaultHorizonDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := time.Now().In(cal.Location())
		if raw := r.URL.Query().Get("from"); raw != "" {
			var err error
			from, err = cal.ParseDay(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
				return
			}
		}

		to := cal.At(from, defaultHorizonDays)
		if raw := r.URL.Query().Get("to"); raw != "" {
			var err error
			to, err = cal.ParseDay(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
				return
			}
		}

		var userID *uuid.UUID
		if raw := r.URL.Query().Get("user_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
				return
			}
			userID = &id
		}

		ranked, err := opt.SuggestOptimalSlots(r.Context(), from, to, userID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := SuggestionsResponse{Suggestions: make([]SuggestionResponse, len(ranked))}
		for i, s := range ranked {
			resp.Suggestions[i] = SuggestionResponse{
				Start:     s.Start,
				Score:     s.Score,
				Rationale: s.Rationale,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createBookingHandler(svc BookingService, cal *schedule.Calendar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		start, err := cal.ParseInstant(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
			return
		}

		b, err := svc.Book(r.Context(), userID, start, req.Reason)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, bookingResponse(b))
	}
}

func getBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, bookingResponse(b))
	}
}

func listBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		bookings, err := svc.ListBookingsByUser(r.Context(), userID, limit, offset)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]BookingResponse, len(bookings))
		for i := range bookings {
			resp[i] = bookingResponse(&bookings[i])
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelBookingHandler(svc BookingService) http.HandlerFunc {
	return bookingTransitionHandler(svc.Cancel)
}

func noShowBookingHandler(svc BookingService) http.HandlerFunc {
	return bookingTransitionHandler(svc.MarkNoShow)
}

func bookingTransitionHandler(transition func(ctx context.Context, id uuid.UUID) (*booking.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := transition(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, bookingResponse(b))
	}
}

func rescheduleBookingHandler(svc BookingService, cal *schedule.Calendar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req RescheduleBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newStart, err := cal.ParseInstant(req.NewStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_new_start", err.Error())
			return
		}

		b, err := svc.Reschedule(r.Context(), id, newStart)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, bookingResponse(b))
	}
}

func bookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		StartTime: b.StartTime,
		Reason:    b.Reason,
		Status:    string(b.Status),
	}
}

// handleScheduleError keeps the three outcome classes apart: bad input maps
// to 400, everything else from the scheduling core is a ledger failure and
// maps to 500. "No availability" never reaches here; it is an ordinary
// result.
func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrMalformedInstant):
		writeError(w, http.StatusBadRequest, "malformed_datetime", err.Error())
	case errors.Is(err, schedule.ErrEmptyInterval):
		writeError(w, http.StatusBadRequest, "empty_interval", err.Error())
	case errors.Is(err, schedule.ErrInvalidHorizon):
		writeError(w, http.StatusBadRequest, "invalid_horizon", err.Error())
	case errors.Is(err, schedule.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "ledger_unavailable", err.Error())
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrMalformedInstant), errors.Is(err, schedule.ErrEmptyInterval):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
