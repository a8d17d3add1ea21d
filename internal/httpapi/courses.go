package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studentattendance/internal/auth"
	"studentattendance/internal/course"
)

type courseRequest struct {
	Code              string   `json:"course_code" binding:"required"`
	Name              string   `json:"course_name" binding:"required,notblank"`
	Description       *string  `json:"description"`
	Credits           int      `json:"credits" binding:"omitempty,min=1,max=10"`
	Semester          *string  `json:"semester"`
	AcademicYear      *string  `json:"academic_year"`
	MaxStudents       *int     `json:"max_students" binding:"omitempty,min=1"`
	GeofenceEnabled   bool     `json:"geofence_enabled"`
	GeofenceLatitude  *float64 `json:"geofence_latitude"`
	GeofenceLongitude *float64 `json:"geofence_longitude"`
	GeofenceRadius    int      `json:"geofence_radius" binding:"omitempty,min=1"`
}

type courseChanges struct {
	Name              *string  `json:"course_name" binding:"omitempty,notblank"`
	Description       *string  `json:"description"`
	Credits           *int     `json:"credits" binding:"omitempty,min=1,max=10"`
	Semester          *string  `json:"semester"`
	AcademicYear      *string  `json:"academic_year"`
	MaxStudents       *int     `json:"max_students" binding:"omitempty,min=1"`
	Status            *string  `json:"status" binding:"omitempty,oneof=active inactive archived"`
	GeofenceEnabled   *bool    `json:"geofence_enabled"`
	GeofenceLatitude  *float64 `json:"geofence_latitude"`
	GeofenceLongitude *float64 `json:"geofence_longitude"`
	GeofenceRadius    *int     `json:"geofence_radius" binding:"omitempty,min=1"`
}

func (a *api) createCourse(c *gin.Context) {
	var req courseRequest
	if !bindJSON(c, &req) {
		return
	}
	created, err := a.Courses.Create(c.Request.Context(), auth.CallerFrom(c), course.Draft{
		Code:              req.Code,
		Name:              req.Name,
		Description:       req.Description,
		Credits:           req.Credits,
		Semester:          req.Semester,
		AcademicYear:      req.AcademicYear,
		MaxStudents:       req.MaxStudents,
		GeofenceEnabled:   req.GeofenceEnabled,
		GeofenceLatitude:  req.GeofenceLatitude,
		GeofenceLongitude: req.GeofenceLongitude,
		GeofenceRadius:    req.GeofenceRadius,
	})
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (a *api) listCourses(c *gin.Context) {
	courses, err := a.Courses.List(c.Request.Context(), auth.CallerFrom(c))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	if courses == nil {
		courses = []course.Course{}
	}
	c.JSON(http.StatusOK, courses)
}

func (a *api) getCourse(c *gin.Context) {
	found, err := a.Courses.Get(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (a *api) updateCourse(c *gin.Context) {
	var req courseChanges
	if !bindJSON(c, &req) {
		return
	}
	ch := course.Changes{
		Name:              req.Name,
		Description:       req.Description,
		Credits:           req.Credits,
		Semester:          req.Semester,
		AcademicYear:      req.AcademicYear,
		MaxStudents:       req.MaxStudents,
		GeofenceEnabled:   req.GeofenceEnabled,
		GeofenceLatitude:  req.GeofenceLatitude,
		GeofenceLongitude: req.GeofenceLongitude,
		GeofenceRadius:    req.GeofenceRadius,
	}
	if req.Status != nil {
		st := course.Status(*req.Status)
		ch.Status = &st
	}
	updated, err := a.Courses.Update(c.Request.Context(), auth.CallerFrom(c), c.Param("id"), ch)
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (a *api) enroll(c *gin.Context) {
	e, err := a.Courses.Enroll(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (a *api) courseStudents(c *gin.Context) {
	list, err := a.Courses.Students(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	if list == nil {
		list = []course.Enrollment{}
	}
	c.JSON(http.StatusOK, list)
}
