package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/fkhayef/teamtasks/docs"
	"github.com/fkhayef/teamtasks/internal/activity"
	"github.com/fkhayef/teamtasks/internal/analytics"
	"github.com/fkhayef/teamtasks/internal/config"
	"github.com/fkhayef/teamtasks/internal/group"
	"github.com/fkhayef/teamtasks/internal/notification"
	"github.com/fkhayef/teamtasks/internal/realtime"
	"github.com/fkhayef/teamtasks/internal/task"
	"github.com/fkhayef/teamtasks/internal/user"
	mw "github.com/fkhayef/teamtasks/pkg/middleware"
)

// newRouter wires every feature onto one router. drain waits for background
// work started by requests, such as assignment emails.
func newRouter(cfg *config.Config, db *sql.DB, broker realtime.Broker, logger *zap.Logger) (handler http.Handler, drain func()) {
	// Activity feature
	activityService := activity.NewService(activity.NewRepository(db), logger)
	activityHandler := activity.NewHandler(activityService)

	// User feature
	userService := user.NewService(user.NewRepository(db), activityService)
	userHandler := user.NewHandler(userService)

	// Group feature
	groupService := group.NewService(group.NewRepository(db), userService, activityService)
	groupHandler := group.NewHandler(groupService)
	userService.SetGroupChecker(groupService)

	// Notification feature
	mailer := notification.NewMailer(cfg.NotifyEndpoint)
	notificationService := notification.NewService(notification.NewRepository(db), mailer, logger)
	notificationHandler := notification.NewHandler(notificationService)

	// Task feature
	taskService := task.NewService(task.NewRepository(db), userService, task.Collaborators{
		Groups:   groupService,
		Activity: activityService,
		Notifier: notificationService,
		Broker:   broker,
		Logger:   logger,
	})
	taskHandler := task.NewHandler(taskService)

	// Analytics feature
	analyticsHandler := analytics.NewHandler(analytics.NewService(taskService, userService))

	auth := mw.NewAuthenticator(cfg.JWTSecret, cfg.DevAuth, userService)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/register", userHandler.CompleteRegistration)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Mount("/users", userHandler.Routes())
			r.Mount("/groups", groupHandler.Routes())
			r.Mount("/tasks", taskHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
			r.Mount("/activity", activityHandler.Routes())
			r.Mount("/analytics", analyticsHandler.Routes())
		})
	})

	return r, notificationService.Wait
}
