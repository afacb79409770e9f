package internal

import (
	"net/http"

	"juju/internal/controllers"
	"juju/internal/providers"
)

func InitRoutes(apiController *controllers.ApiController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/sessions", http.HandlerFunc(apiController.ListSessions))
	routers.Post("/sessions", http.HandlerFunc(apiController.CreateSession))
	routers.Get("/sessions/project", http.HandlerFunc(apiController.SessionsByProject))
	routers.Get("/sessions/active", http.HandlerFunc(apiController.ActiveSession))
	routers.Post("/sessions/start", http.HandlerFunc(apiController.StartSession))
	routers.Post("/sessions/end", http.HandlerFunc(apiController.EndSession))
	routers.Post("/sessions/cancel", http.HandlerFunc(apiController.CancelSession))
	routers.Post("/sessions/update", http.HandlerFunc(apiController.UpdateSession))
	routers.Post("/sessions/delete", http.HandlerFunc(apiController.DeleteSession))
	routers.Get("/aggregate", http.HandlerFunc(apiController.Aggregate))

	routers.Get("/projects", http.HandlerFunc(apiController.ListProjects))
	routers.Post("/projects", http.HandlerFunc(apiController.SaveProject))
	routers.Post("/projects/delete", http.HandlerFunc(apiController.DeleteProject))
	routers.Get("/activity-types", http.HandlerFunc(apiController.ListActivityTypes))
	routers.Post("/activity-types", http.HandlerFunc(apiController.SaveActivityType))
	routers.Post("/activity-types/delete", http.HandlerFunc(apiController.DeleteActivityType))

	routers.Get("/orphans", http.HandlerFunc(apiController.Orphans))
	routers.Post("/orphans/repair", http.HandlerFunc(apiController.RepairOrphans))
	return routers
}
