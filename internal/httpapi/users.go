package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studentattendance/internal/access"
	"studentattendance/internal/auth"
	"studentattendance/internal/identity"
)

type userQuery struct {
	Role   string `form:"role" binding:"omitempty,oneof=student lecturer admin"`
	Status string `form:"status" binding:"omitempty,oneof=pending active suspended inactive"`
}

type profileRequest struct {
	FullName       *string `json:"full_name" binding:"omitempty,notblank"`
	PhoneNumber    *string `json:"phone_number"`
	ProfileImage   *string `json:"profile_image" binding:"omitempty,url"`
	Department     *string `json:"department"`
	YearOfStudy    *int    `json:"year_of_study" binding:"omitempty,min=1,max=10"`
	Specialization *string `json:"specialization"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending active suspended inactive"`
}

func (a *api) listUsers(c *gin.Context) {
	var q userQuery
	if !bindQuery(c, &q) {
		return
	}
	users, err := a.Identity.List(c.Request.Context(), auth.CallerFrom(c), identity.Filter{
		Role:   access.Role(q.Role),
		Status: identity.Status(q.Status),
	})
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	if users == nil {
		users = []identity.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (a *api) getUser(c *gin.Context) {
	u, err := a.Identity.Get(c.Request.Context(), auth.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (a *api) updateUser(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := a.Identity.UpdateProfile(c.Request.Context(), auth.CallerFrom(c), c.Param("id"), identity.Profile{
		FullName:       req.FullName,
		PhoneNumber:    req.PhoneNumber,
		ProfileImage:   req.ProfileImage,
		Department:     req.Department,
		YearOfStudy:    req.YearOfStudy,
		Specialization: req.Specialization,
	})
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (a *api) setUserStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := a.Identity.SetStatus(c.Request.Context(), auth.CallerFrom(c), c.Param("id"), identity.Status(req.Status))
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
