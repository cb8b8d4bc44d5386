package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saadia-Asghar/callpilot-control/internal/booking"
	"github.com/Saadia-Asghar/callpilot-control/internal/schedule"
)

type fakeLedger struct {
	occupancies []schedule.Occupancy
	err         error
}

func (f *fakeLedger) ConfirmedInRange(_ context.Context, start, end time.Time) ([]schedule.Occupancy, error) {
	if f.err != nil {
		return nil, f.err
	}
	var result []schedule.Occupancy
	for _, o := range f.occupancies {
		if !o.Start.Before(start) && o.Start.Before(end) {
			result = append(result, o)
		}
	}
	return result, nil
}

type fakeHistory struct{}

func (f *fakeHistory) BookingStats(context.Context, *uuid.UUID) (schedule.BookingStats, error) {
	return schedule.BookingStats{HourCounts: map[int]int{}}, nil
}

func (f *fakeHistory) PreferredHours(context.Context, uuid.UUID) ([]int, error) {
	return nil, nil
}

func (f *fakeHistory) RecoverySuccessRate(context.Context) (float64, error) {
	return 0, nil
}

// stubBookings returns canned results per method. Unset methods fail the
// request so a test cannot silently exercise the wrong path.
type stubBookings struct {
	bookFn       func(ctx context.Context, userID uuid.UUID, start time.Time, reason *string) (*booking.Booking, error)
	cancelFn     func(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	rescheduleFn func(ctx context.Context, id uuid.UUID, newStart time.Time) (*booking.Booking, error)
	noShowFn     func(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	listFn       func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]booking.Booking, error)
}

var errStubNotConfigured = errors.New("stub method not configured")

func (s *stubBookings) Book(ctx context.Context, userID uuid.UUID, start time.Time, reason *string) (*booking.Booking, error) {
	if s.bookFn == nil {
		return nil, errStubNotConfigured
	}
	return s.bookFn(ctx, userID, start, reason)
}

func (s *stubBookings) Cancel(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	if s.cancelFn == nil {
		return nil, errStubNotConfigured
	}
	return s.cancelFn(ctx, id)
}

func (s *stubBookings) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time) (*booking.Booking, error) {
	if s.rescheduleFn == nil {
		return nil, errStubNotConfigured
	}
	return s.rescheduleFn(ctx, id, newStart)
}

func (s *stubBookings) MarkNoShow(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	if s.noShowFn == nil {
		return nil, errStubNotConfigured
	}
	return s.noShowFn(ctx, id)
}

func (s *stubBookings) GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	if s.getFn == nil {
		return nil, errStubNotConfigured
	}
	return s.getFn(ctx, id)
}

func (s *stubBookings) ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]booking.Booking, error) {
	if s.listFn == nil {
		return nil, errStubNotConfigured
	}
	return s.listFn(ctx, userID, limit, offset)
}

func testCalendar(t *testing.T) *schedule.Calendar {
	t.Helper()
	cal, err := schedule.NewCalendar("UTC", "09:00", "17:00", 30*time.Minute)
	require.NoError(t, err)
	return cal
}

func testScheduler(t *testing.T, ledger schedule.Ledger) *schedule.Scheduler {
	t.Helper()
	return schedule.NewScheduler(testCalendar(t), ledger)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAvailabilityHandlerFreeSlot(t *testing.T) {
	h := availabilityHandler(testScheduler(t, &fakeLedger{}))

	req := httptest.NewRequest(http.MethodGet, "/availability?start=2024-02-14T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Available)
	assert.Equal(t, 30*time.Minute, resp.End.Sub(resp.Start))
}

func TestAvailabilityHandlerBookedSlot(t *testing.T) {
	ledger := &fakeLedger{occupancies: []schedule.Occupancy{
		{Start: time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC), UserID: uuid.New()},
	}}
	h := availabilityHandler(testScheduler(t, ledger))

	req := httptest.NewRequest(http.MethodGet, "/availability?start=2024-02-14T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Available)
}

func TestAvailabilityHandlerMalformedStart(t *testing.T) {
	h := availabilityHandler(testScheduler(t, &fakeLedger{}))

	req := httptest.NewRequest(http.MethodGet, "/availability?start=next+tuesday", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_start", decodeError(t, rec).Error)
}

func TestAvailabilityHandlerEmptyInterval(t *testing.T) {
	h := availabilityHandler(testScheduler(t, &fakeLedger{}))

	req := httptest.NewRequest(http.MethodGet,
		"/availability?start=2024-02-14T10:00:00Z&end=2024-02-14T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_interval", decodeError(t, rec).Error)
}

func TestAvailabilityHandlerLedgerFailure(t *testing.T) {
	h := availabilityHandler(testScheduler(t, &fakeLedger{err: errors.New("db down")}))

	req := httptest.NewRequest(http.MethodGet, "/availability?start=2024-02-14T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ledger_unavailable", decodeError(t, rec).Error)
}

func TestFreeSlotsHandler(t *testing.T) {
	h := freeSlotsHandler(testScheduler(t, &fakeLedger{}))

	req := httptest.NewRequest(http.MethodGet, "/slots?day=2024-02-14", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp FreeSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-02-14", resp.Day)
	assert.Len(t, resp.Slots, 16)
}

func TestFreeSlotsHandlerWeekendIsEmptyNotError(t *testing.T) {
	h := freeSlotsHandler(testScheduler(t, &fakeLedger{}))

	req := httptest.NewRequest(http.MethodGet, "/slots?day=2024-02-17", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slots":[]`)
}

func TestFreeSlotsHandlerMalformedDay(t *testing.T) {
	h := freeSlotsHandler(testScheduler(t, &fakeLedger{}))

	req := httptest.NewRequest(http.MethodGet, "/slots?day=14-02-2024", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlternativesHandlerCapsAtFive(t *testing.T) {
	h := alternativesHandler(testScheduler(t, &fakeLedger{}), 7)

	req := httptest.NewRequest(http.MethodGet, "/alternatives?requested=2024-02-14T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AlternativesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.LessOrEqual(t, len(resp.Alternatives), 5)
	require.NotEmpty(t, resp.Alternatives)
	assert.Equal(t, resp.Requested, resp.Alternatives[0])
}

func TestAlternativesHandlerInvalidHorizon(t *testing.T) {
	h := alternativesHandler(testScheduler(t, &fakeLedger{}), 7)

	req := httptest.NewRequest(http.MethodGet,
		"/alternatives?requested=2024-02-14T10:00:00Z&horizon_days=0", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_horizon", decodeError(t, rec).Error)
}

func TestAlternativesHandlerNonNumericHorizon(t *testing.T) {
	h := alternativesHandler(testScheduler(t, &fakeLedger{}), 7)

	req := httptest.NewRequest(http.MethodGet,
		"/alternatives?requested=2024-02-14T10:00:00Z&horizon_days=soon", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_horizon_days", decodeError(t, rec).Error)
}

func TestSuggestionsHandler(t *testing.T) {
	sched := testScheduler(t, &fakeLedger{})
	opt := schedule.NewOptimizer(sched, &fakeHistory{})
	h := suggestionsHandler(opt, sched.Calendar(), 7)

	req := httptest.NewRequest(http.MethodGet,
		"/suggestions?from=2024-02-14&to=2024-02-14", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SuggestionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Suggestions, 5)
	for _, s := range resp.Suggestions {
		assert.NotEmpty(t, s.Rationale)
		assert.Positive(t, s.Score)
	}
	// Uniform scores keep the earliest slot first.
	assert.Equal(t, time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC), resp.Suggestions[0].Start)
}

func TestSuggestionsHandlerInvalidRange(t *testing.T) {
	sched := testScheduler(t, &fakeLedger{})
	opt := schedule.NewOptimizer(sched, &fakeHistory{})
	h := suggestionsHandler(opt, sched.Calendar(), 7)

	req := httptest.NewRequest(http.MethodGet,
		"/suggestions?from=2024-02-14&to=2024-02-10", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_range", decodeError(t, rec).Error)
}

func TestSuggestionsHandlerBadUserID(t *testing.T) {
	sched := testScheduler(t, &fakeLedger{})
	opt := schedule.NewOptimizer(sched, &fakeHistory{})
	h := suggestionsHandler(opt, sched.Calendar(), 7)

	req := httptest.NewRequest(http.MethodGet,
		"/suggestions?from=2024-02-14&user_id=not-a-uuid", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingHandler(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC)

	svc := &stubBookings{
		bookFn: func(_ context.Context, gotUser uuid.UUID, gotStart time.Time, reason *string) (*booking.Booking, error) {
			assert.Equal(t, userID, gotUser)
			assert.True(t, gotStart.Equal(start))
			require.NotNil(t, reason)
			return &booking.Booking{
				ID:        uuid.New(),
				UserID:    gotUser,
				StartTime: gotStart,
				Reason:    reason,
				Status:    booking.StatusConfirmed,
			}, nil
		},
	}
	h := createBookingHandler(svc, testCalendar(t))

	body := `{"user_id":"` + userID.String() + `","start":"2024-02-14T10:00:00Z","reason":"checkup"}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, userID, resp.UserID)
	assert.Equal(t, "confirmed", resp.Status)
}

func TestCreateBookingHandlerBadBody(t *testing.T) {
	h := createBookingHandler(&stubBookings{}, testCalendar(t))

	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingHandlerMalformedStart(t *testing.T) {
	h := createBookingHandler(&stubBookings{}, testCalendar(t))

	body := `{"user_id":"` + uuid.NewString() + `","start":"tomorrow at ten"}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_start", decodeError(t, rec).Error)
}

func TestCreateBookingHandlerConflict(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"slot occupied", booking.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
		{"lock contention", booking.ErrSlotBeingBooked, http.StatusConflict, "slot_being_booked"},
		{"unknown user", booking.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
		{"ledger failure", errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBookings{
				bookFn: func(context.Context, uuid.UUID, time.Time, *string) (*booking.Booking, error) {
					return nil, tt.err
				},
			}
			h := createBookingHandler(svc, testCalendar(t))

			body := `{"user_id":"` + uuid.NewString() + `","start":"2024-02-14T10:00:00Z"}`
			req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h(rec, req)

			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func newBookingRouter(svc BookingService, cal *schedule.Calendar) http.Handler {
	r := chi.NewRouter()
	r.Get("/bookings/{id}", getBookingHandler(svc))
	r.Post("/bookings/{id}/cancel", cancelBookingHandler(svc))
	r.Post("/bookings/{id}/no-show", noShowBookingHandler(svc))
	r.Post("/bookings/{id}/reschedule", rescheduleBookingHandler(svc, cal))
	return r
}

func TestGetBookingHandler(t *testing.T) {
	id := uuid.New()
	svc := &stubBookings{
		getFn: func(_ context.Context, gotID uuid.UUID) (*booking.Booking, error) {
			assert.Equal(t, id, gotID)
			return &booking.Booking{ID: gotID, Status: booking.StatusConfirmed}, nil
		},
	}
	router := newBookingRouter(svc, testCalendar(t))

	req := httptest.NewRequest(http.MethodGet, "/bookings/"+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetBookingHandlerNotFound(t *testing.T) {
	svc := &stubBookings{
		getFn: func(context.Context, uuid.UUID) (*booking.Booking, error) {
			return nil, booking.ErrBookingNotFound
		},
	}
	router := newBookingRouter(svc, testCalendar(t))

	req := httptest.NewRequest(http.MethodGet, "/bookings/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "booking_not_found", decodeError(t, rec).Error)
}

func TestGetBookingHandlerBadID(t *testing.T) {
	router := newBookingRouter(&stubBookings{}, testCalendar(t))

	req := httptest.NewRequest(http.MethodGet, "/bookings/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelBookingHandler(t *testing.T) {
	svc := &stubBookings{
		cancelFn: func(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
			return &booking.Booking{ID: id, Status: booking.StatusCancelled}, nil
		},
	}
	router := newBookingRouter(svc, testCalendar(t))

	req := httptest.NewRequest(http.MethodPost, "/bookings/"+uuid.NewString()+"/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Status)
}

func TestCancelBookingHandlerAlreadyCancelled(t *testing.T) {
	svc := &stubBookings{
		cancelFn: func(context.Context, uuid.UUID) (*booking.Booking, error) {
			return nil, booking.ErrInvalidStatusTransition
		},
	}
	router := newBookingRouter(svc, testCalendar(t))

	req := httptest.NewRequest(http.MethodPost, "/bookings/"+uuid.NewString()+"/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decodeError(t, rec).Error)
}

func TestRescheduleBookingHandler(t *testing.T) {
	newStart := time.Date(2024, 2, 15, 11, 0, 0, 0, time.UTC)
	svc := &stubBookings{
		rescheduleFn: func(_ context.Context, id uuid.UUID, gotStart time.Time) (*booking.Booking, error) {
			assert.True(t, gotStart.Equal(newStart))
			return &booking.Booking{ID: uuid.New(), StartTime: gotStart, Status: booking.StatusConfirmed}, nil
		},
	}
	router := newBookingRouter(svc, testCalendar(t))

	body := `{"new_start":"2024-02-15T11:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost,
		"/bookings/"+uuid.NewString()+"/reschedule", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRescheduleBookingHandlerMalformedNewStart(t *testing.T) {
	router := newBookingRouter(&stubBookings{}, testCalendar(t))

	body := `{"new_start":"sometime later"}`
	req := httptest.NewRequest(http.MethodPost,
		"/bookings/"+uuid.NewString()+"/reschedule", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_new_start", decodeError(t, rec).Error)
}

func TestListBookingsHandler(t *testing.T) {
	userID := uuid.New()
	svc := &stubBookings{
		listFn: func(_ context.Context, gotUser uuid.UUID, limit, offset int) ([]booking.Booking, error) {
			assert.Equal(t, userID, gotUser)
			return []booking.Booking{
				{ID: uuid.New(), UserID: gotUser, Status: booking.StatusConfirmed},
				{ID: uuid.New(), UserID: gotUser, Status: booking.StatusCancelled},
			}, nil
		},
	}
	h := listBookingsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/bookings?user_id="+userID.String(), nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestNoShowBookingHandler(t *testing.T) {
	svc := &stubBookings{
		noShowFn: func(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
			return &booking.Booking{ID: id, Status: booking.StatusNoShow}, nil
		},
	}
	router := newBookingRouter(svc, testCalendar(t))

	req := httptest.NewRequest(http.MethodPost, "/bookings/"+uuid.NewString()+"/no-show", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no_show", resp.Status)
}
