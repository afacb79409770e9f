//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"juju/internal"
	"juju/internal/catalog"
	"juju/internal/controllers"
	"juju/internal/migration"
	"juju/internal/providers"
	"juju/internal/records"
	"juju/internal/services"
	"juju/internal/statistic"
	"juju/internal/storage"
	"juju/internal/structures"
	"juju/internal/timecalc"
	"juju/internal/validation"
)

var sessionSet = wire.NewSet(
	providers.NewConfigProvider,
	providers.NewLogProvider,
	providers.NewMetricsProvider,
	providers.NewInstrumentedCacheProvider,

	timecalc.NewCalculatorFromConfig,
	records.NewCodec,
	storage.NewZstdCompressor,
	storage.NewYearStore,
	catalog.NewCatalog,
	validation.NewValidator,
	statistic.NewStatisticsCache,
	migration.NewMigrator,
	services.NewSessionService,

	wire.Bind(new(statistic.SessionSource), new(*storage.YearStore)),
	wire.Bind(new(migration.ProjectResolver), new(*catalog.Catalog)),
	wire.Bind(new(validation.ProjectCreator), new(*catalog.Catalog)),
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		sessionSet,
		wire.Bind(new(statistic.OrphanSweeper), new(*services.SessionService)),
		wire.Bind(new(services.SessionServiceInterface), new(*services.SessionService)),

		statistic.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewHandler,
		internal.NewApp,
	)

	return nil, nil
}

// InitSessionService builds the service without the HTTP layer, for one-shot commands.
func InitSessionService(cfg *structures.CliFlags) (*services.SessionService, error) {

	wire.Build(sessionSet)

	return nil, nil
}
