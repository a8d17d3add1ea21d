package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studentattendance/internal/apperr"
	"studentattendance/internal/attendance"
	"studentattendance/internal/auth"
)

const (
	dateLayout = "2006-01-02"
	xlsxType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type sessionRequest struct {
	CourseID               string    `json:"course_id" binding:"required"`
	Title                  string    `json:"title" binding:"required,notblank"`
	SessionType            string    `json:"session_type"`
	Description            *string   `json:"description"`
	LocationName           *string   `json:"location_name"`
	Latitude               *float64  `json:"latitude"`
	Longitude              *float64  `json:"longitude"`
	ScheduledStart         time.Time `json:"scheduled_start" binding:"required"`
	DurationMinutes        int       `json:"duration_minutes" binding:"required"`
	GracePeriodMinutes     *int      `json:"grace_period_minutes"`
	RequireGeofence        bool      `json:"require_geofence"`
	RequireFaceRecognition bool      `json:"require_face_recognition"`
}

type sessionQuery struct {
	CourseID string `form:"course_id"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
}

type checkInRequest struct {
	SessionID string   `json:"session_id" binding:"required"`
	StudentID string   `json:"student_id"`
	Method    string   `json:"method" binding:"omitempty,oneof=manual face_recognition qr_code geolocation"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	ImageURL  *string  `json:"image_url" binding:"omitempty,url"`
	Notes     *string  `json:"notes"`
}

type imageRequest struct {
	Image string `json:"image" binding:"required,max=10485760"`
}

type recordQuery struct {
	SessionID string `form:"session_id"`
	StudentID string `form:"student_id"`
}

// parseDay accepts YYYY-MM-DD or RFC3339. With endOfDay a bare date
// covers the whole day, so it returns the following midnight.
func parseDay(name, v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperr.Newf(apperr.Validation, "%s must be a date (YYYY-MM-DD)", name)
	}
	return &t, nil
}

func (a *api) createSession(c *gin.Context) {
	var req sessionRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := a.Attendance.CreateSession(c.Request.Context(), auth.CallerFrom(c), attendance.Draft{
		CourseID:               req.CourseID,
		Title:                  req.Title,
		SessionType:            req.SessionType,
		Description:            req.Description,
		LocationName:           req.LocationName,
		Latitude:               req.Latitude,
		Longitude:              req.Longitude,
		ScheduledStart:         req.ScheduledStart,
		DurationMinutes:        req.DurationMinutes,
		GracePeriodMinutes:     req.GracePeriodMinutes,
		RequireGeofence:        req.RequireGeofence,
		RequireFaceRecognition: req.RequireFaceRecognition,
	})
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (a *api) listSessions(c *gin.Context) {
	var q sessionQuery
	if !bindQuery(c, &q) {
		return
	}
	from, err := parseDay("date_from", q.DateFrom, false)
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	to, err := parseDay("date_to", q.DateTo, true)
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	sessions, err := a.Attendance.ListSessions(c.Request.Context(), auth.CallerFrom(c), attendance.SessionQuery{
		CourseID: q.CourseID,
		From:     from,
		To:       to,
	})
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (a *api) getSession(c *gin.Context) {
	sess, err := a.Attendance.GetSession(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (a *api) deleteSession(c *gin.Context) {
	if err := a.Attendance.DeleteSession(c.Request.Context(), auth.CallerFrom(c), c.Param("id")); err != nil {
		fail(c, a.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) startSession(c *gin.Context) {
	sess, err := a.Attendance.Start(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	a.sessionResult(c, sess, err)
}

func (a *api) completeSession(c *gin.Context) {
	sess, err := a.Attendance.Complete(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	a.sessionResult(c, sess, err)
}

func (a *api) cancelSession(c *gin.Context) {
	sess, err := a.Attendance.Cancel(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	a.sessionResult(c, sess, err)
}

func (a *api) sessionResult(c *gin.Context, sess attendance.Session, err error) {
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (a *api) sessionStats(c *gin.Context) {
	st, err := a.Attendance.Stats(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *api) exportSession(c *gin.Context) {
	body, filename, err := a.Attendance.Export(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxType, body)
}

func (a *api) checkIn(c *gin.Context) {
	var req checkInRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := a.Attendance.CheckIn(c.Request.Context(), auth.CallerFrom(c), attendance.CheckInRequest{
		SessionID: req.SessionID,
		StudentID: req.StudentID,
		Method:    attendance.Method(req.Method),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		ImageURL:  req.ImageURL,
		Notes:     req.Notes,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// uploadImage stores a check-in photo and returns the URL to submit as
// image_url.
func (a *api) uploadImage(c *gin.Context) {
	var req imageRequest
	if !bindJSON(c, &req) {
		return
	}
	url, err := a.Images.Upload(c.Request.Context(), req.Image)
	if err != nil {
		a.Log.WithError(err).WithField("user_id", auth.CallerFrom(c).ID).Error("image upload failed")
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"image_url": url})
}

func (a *api) listRecords(c *gin.Context) {
	var q recordQuery
	if !bindQuery(c, &q) {
		return
	}
	records, err := a.Attendance.ListRecords(c.Request.Context(), auth.CallerFrom(c), attendance.RecordQuery{
		SessionID: q.SessionID,
		StudentID: q.StudentID,
	})
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (a *api) dashboardStats(c *gin.Context) {
	st, err := a.Dashboard.Stats(c.Request.Context(), auth.CallerFrom(c))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
