package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/middleware"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/service"
)

// Handlers groups every HTTP handler mounted by the API.
type Handlers struct {
	Auth          *AuthHandler
	Calendars     *CalendarHandler
	Slots         *SlotHandler
	Appointments  *AppointmentHandler
	Fragments     *FragmentHandler
	Volunteers    *VolunteerHandler
	Beneficiaries *BeneficiaryHandler
	Audit         *AuditHandler
	Metrics       *MetricsHandler
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// RouteDeps carries the middleware dependencies of the route table.
type RouteDeps struct {
	Auth    *service.AuthService
	Metrics *service.MetricsService
	Audit   auditWriter
	Logger  *zap.Logger
}

// Register mounts probes at the root and the API under prefix.
func Register(router *gin.Engine, prefix string, h Handlers, deps RouteDeps) {
	router.Use(middleware.Metrics(deps.Metrics))

	router.GET("/health", h.Metrics.Health)
	router.GET("/ready", h.Metrics.Ready)
	router.GET("/metrics", h.Metrics.Prometheus)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee)
	staffOrSelf := middleware.RBAC(string(models.RoleAdmin), string(models.RoleEmployee), middleware.SelfAccess)

	api := router.Group(prefix)
	api.Use(middleware.JWT(deps.Auth))

	api.GET("/auth/me", h.Auth.Me)

	calendars := api.Group("/calendars")
	calendars.Use(middleware.Audit(deps.Audit, models.AuditResourceCalendar, deps.Logger))
	calendars.GET("/me", h.Calendars.Me)
	calendars.GET("/:id", h.Calendars.Get)
	calendars.PUT("/:id/settings", h.Calendars.UpdateSettings)
	calendars.GET("/:id/data", h.Calendars.Data)
	calendars.GET("/:id/ics", h.Calendars.ICS)
	calendars.GET("/:id/slots", h.Slots.List)
	calendars.POST("/:id/slots", h.Slots.Create)

	slots := api.Group("/slots")
	slots.Use(middleware.Audit(deps.Audit, models.AuditResourceSlot, deps.Logger))
	slots.GET("/:id", h.Slots.Get)
	slots.PUT("/:id", h.Slots.Update)
	slots.DELETE("/:id", h.Slots.Delete)
	slots.GET("/:id/occurrences", h.Slots.Occurrences)
	slots.GET("/:id/exceptions", h.Slots.ListExceptions)
	slots.POST("/:id/exceptions", h.Slots.CreateException)
	slots.DELETE("/:id/exceptions/:exceptionId", h.Slots.DeleteException)

	appointments := api.Group("/appointments")
	appointments.Use(middleware.Audit(deps.Audit, models.AuditResourceAppointment, deps.Logger))
	appointments.GET("", h.Appointments.List)
	appointments.POST("", h.Appointments.Create)
	appointments.GET("/:id", h.Appointments.Get)
	appointments.PUT("/:id", h.Appointments.Update)
	appointments.PATCH("/:id/status", h.Appointments.UpdateStatus)
	appointments.DELETE("/:id", h.Appointments.Delete)
	appointments.GET("/:id/history", staff, h.Audit.History(models.AuditResourceAppointment))

	fragments := api.Group("/fragments")
	fragments.GET("/free-slots", h.Fragments.FreeSlots)
	fragments.GET("/appointments", h.Fragments.Appointments)
	fragments.GET("/available-volunteers", h.Fragments.AvailableVolunteers)
	fragments.GET("/week", h.Fragments.Week)

	volunteers := api.Group("/volunteers")
	volunteers.Use(middleware.Audit(deps.Audit, models.AuditResourceVolunteer, deps.Logger))
	volunteers.GET("", h.Volunteers.List)
	volunteers.POST("", staff, h.Volunteers.Create)
	volunteers.GET("/:id", h.Volunteers.Get)
	volunteers.PATCH("/:id/role", staff, h.Volunteers.ChangeRole)
	volunteers.GET("/:id/history", staffOrSelf, h.Audit.History(models.AuditResourceVolunteer))

	beneficiaries := api.Group("/beneficiaries")
	beneficiaries.Use(middleware.Audit(deps.Audit, models.AuditResourceBeneficiary, deps.Logger))
	beneficiaries.POST("", h.Beneficiaries.Create)
	beneficiaries.GET("/:id", h.Beneficiaries.Get)
}
