package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gakuen-dev/biz-ops-api/internal/middleware"
)

// RouterDeps collects everything SetupRoutes needs to assemble the API
// surface.
type RouterDeps struct {
	APIPrefix string

	Auth        *AuthHandler
	Achievement *AchievementHandler
	Members     *MemberHandler
	Groups      *GroupHandler
	Tasks       *TaskHandler
	Surveys     *SurveyHandler
	Health      *HealthHandler

	AuthMW    gin.HandlerFunc
	Scope     *middleware.ScopeResolver
	MetricsMW gin.HandlerFunc
	Metrics   http.Handler
}

// SetupRoutes registers the full route surface. Achievement, task and
// survey routes resolve a contract scope from the URL; member and group
// routes resolve an org scope from the caller's claims.
func SetupRoutes(r *gin.Engine, deps RouterDeps) {
	r.GET("/health", deps.Health.Health)
	r.GET("/ready", deps.Health.Ready)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group(deps.APIPrefix)
	if deps.MetricsMW != nil {
		api.Use(deps.MetricsMW)
	}

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
		auth.POST("/logout", deps.AuthMW, deps.Auth.Logout)
	}

	protected := api.Group("", deps.AuthMW)

	members := protected.Group("/members", deps.Scope.OrgScope())
	{
		members.GET("", deps.Members.List)
		members.GET("/download", deps.Members.Download)
		members.POST("/register", deps.Members.Register)
		members.GET("/tasks", deps.Members.Tasks)
	}

	groups := protected.Group("/groups", deps.Scope.OrgScope())
	{
		groups.GET("", deps.Groups.List)
		groups.PUT("/rights", deps.Groups.SetRight)
		groups.GET("/rights/:group", deps.Groups.Rights)
	}

	achievement := protected.Group("/achievement/:contract/:course/:target", deps.Scope.ContractScope())
	{
		achievement.GET("", deps.Achievement.Grid)
		achievement.POST("/search", deps.Achievement.Search)
		achievement.POST("/download", deps.Achievement.Download)
		achievement.GET("/report/:username", deps.Achievement.Report)
	}

	contracts := protected.Group("/contracts/:contract", deps.Scope.ContractScope())
	{
		contracts.POST("/tasks", deps.Tasks.Submit)
		contracts.POST("/tasks/reminder", deps.Tasks.Reminder)
		contracts.GET("/tasks", deps.Tasks.History)
	}

	surveys := protected.Group("/surveys/:contract/:course", deps.Scope.ContractScope())
	{
		surveys.POST("/search", deps.Surveys.Search)
		surveys.POST("/download", deps.Surveys.Download)
	}
}
