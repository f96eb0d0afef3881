// Package metrics exposes prometheus metrics for the API and the attendance workflow.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
)

const namespace = "senbet"

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latencies by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Attendance sessions started.",
	})

	sessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_expired_total",
		Help:      "Idle attendance sessions evicted.",
	})

	toggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "toggles_total",
		Help:      "Attendance toggles by kind and outcome.",
	}, []string{"kind", "outcome"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Attendance sheet submissions by outcome.",
	}, []string{"outcome"})

	marked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "students_marked_total",
		Help:      "Students in submitted sheets by status.",
	}, []string{"status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EchoMiddleware records request durations. Routes are labeled by their pattern, not their path.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			code := ctx.Response().Status
			if err != nil {
				if herr, ok := err.(*echo.HTTPError); ok {
					code = herr.Code
				} else if !ctx.Response().Committed {
					code = http.StatusInternalServerError
				}
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			requestDuration.
				WithLabelValues(ctx.Request().Method, route, strconv.Itoa(code)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type attendanceService struct {
	attendance.Service
}

// InstrumentAttendance counts attendance operations going through svc.
func InstrumentAttendance(svc attendance.Service) attendance.Service {
	return &attendanceService{Service: svc}
}

func (s *attendanceService) StartSession(ctx context.Context, owner core.Person) (attendance.Session, error) {
	sess, err := s.Service.StartSession(ctx, owner)
	if err == nil {
		sessionsStarted.Inc()
	}
	return sess, err
}

func (s *attendanceService) TogglePresent(ctx context.Context, id, studentID string) (attendance.Session, error) {
	sess, err := s.Service.TogglePresent(ctx, id, studentID)
	toggles.WithLabelValues("present", outcome(err)).Inc()
	return sess, err
}

func (s *attendanceService) TogglePermission(ctx context.Context, id, studentID string) (attendance.Session, error) {
	sess, err := s.Service.TogglePermission(ctx, id, studentID)
	toggles.WithLabelValues("permission", outcome(err)).Inc()
	return sess, err
}

func (s *attendanceService) Submit(ctx context.Context, id string, by core.Person) (attendance.File, attendance.Sheet, error) {
	file, sheet, err := s.Service.Submit(ctx, id, by)
	submissions.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		sum := sheet.Summary()
		marked.WithLabelValues(attendance.Present.String()).Add(float64(sum.Present))
		marked.WithLabelValues(attendance.Permission.String()).Add(float64(sum.Permission))
		marked.WithLabelValues(attendance.Absent.String()).Add(float64(sum.Absent))
	}
	return file, sheet, err
}

func (s *attendanceService) ExpireIdleSessions(ctx context.Context, ttl time.Duration) (int, error) {
	n, err := s.Service.ExpireIdleSessions(ctx, ttl)
	sessionsExpired.Add(float64(n))
	return n, err
}
