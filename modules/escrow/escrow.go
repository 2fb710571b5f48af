package escrow

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/core/indexer"
	"github.com/mutual-network/escrow-indexer/internal/config"
	"github.com/mutual-network/escrow-indexer/internal/postgres"
	"github.com/mutual-network/escrow-indexer/modules/escrow/api/httphandler"
	"github.com/mutual-network/escrow-indexer/modules/escrow/datagateway"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/pricefeed"
	"github.com/mutual-network/escrow-indexer/modules/escrow/repository/memory"
	escrowpostgres "github.com/mutual-network/escrow-indexer/modules/escrow/repository/postgres"
	"github.com/mutual-network/escrow-indexer/modules/escrow/scheduler"
	"github.com/mutual-network/escrow-indexer/modules/escrow/settlement"
	"github.com/mutual-network/escrow-indexer/modules/escrow/usecase"
	"github.com/mutual-network/escrow-indexer/modules/escrow/vesting"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const Version = "v0.1.0"

func New(injector do.Injector) (indexer.IndexerWorker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)
	escrowConf := conf.Modules.Escrow

	chainID := common.ParseChainID(string(escrowConf.ChainID))
	if !chainID.IsSupported() {
		return nil, errors.Wrapf(errs.Unsupported, "%q chain is not supported", chainID)
	}
	if escrowConf.ProgramID == "" {
		return nil, errors.Wrap(errs.ArgumentRequired, "escrow program id is required")
	}

	var (
		escrowDg     datagateway.EscrowDataGateway
		pool         *pgxpool.Pool
		cleanupFuncs []func(context.Context) error
		err          error
	)
	switch strings.ToLower(escrowConf.Database) {
	case "postgresql", "postgres", "pg":
		pool, err = postgres.NewPool(ctx, escrowConf.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return nil, errors.Wrap(err, "Invalid Postgres configuration for indexer")
			}
			return nil, errors.Wrap(err, "can't create Postgres connection pool")
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		escrowDg = escrowpostgres.NewRepository(pool)
	case "memory":
		logger.WarnContext(ctx, "Escrow projection is kept in memory, it is lost on restart")
		escrowDg = memory.NewRepository()
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q database for indexer is not supported", escrowConf.Database)
	}

	var dealLocker locker.Locker
	switch strings.ToLower(escrowConf.Locker) {
	case "", "memory":
		dealLocker = locker.NewMemory()
	case "postgresql", "postgres", "pg":
		if pool == nil {
			return nil, errors.Wrap(errs.ConflictSetting, "postgres deal locker requires the postgres database")
		}
		dealLocker = locker.NewPostgres(pool)
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q deal locker is not supported", escrowConf.Locker)
	}

	client, err := ledger.NewRPCClient(escrowConf.Ledger, escrowConf.ProgramID)
	if err != nil {
		return nil, errors.Wrap(err, "can't create ledger client")
	}
	datasource := ledger.NewDatasource(client, escrowConf.Ingestion)

	processor := NewProcessor(escrowDg, dealLocker, chainID, escrowConf.ProgramID)
	if err := processor.VerifyStates(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	rules, err := vesting.NewRules(escrowConf.Vesting)
	if err != nil {
		return nil, errors.Wrap(err, "invalid vesting configuration")
	}
	dexscreener, err := pricefeed.NewDexscreenerClient(escrowConf.PriceFeed)
	if err != nil {
		return nil, errors.Wrap(err, "can't create price feed client")
	}
	feed := pricefeed.NewCachedFeed(dexscreener, escrowConf.PriceFeed.CacheTTL)
	settler := settlement.New(escrowDg, client, feed, rules, dealLocker, chainID, escrowConf.Admin)

	ingestion := indexer.New[ledger.RawEvent](processor, datasource, indexer.Config{
		StartSlot:        escrowConf.Ingestion.StartSlot,
		PollingInterval:  escrowConf.Ingestion.PollingInterval,
		MaxRetryInterval: escrowConf.Ingestion.MaxRetryInterval,
		DegradedAfter:    escrowConf.Ingestion.DegradedAfter,
	})

	// Mount API
	apiHandlers := lo.Uniq(escrowConf.APIHandlers)
	for _, handler := range apiHandlers {
		switch handler {
		case "http":
			httpServer := do.MustInvoke[*fiber.App](injector)
			escrowUsecase := usecase.New(escrowDg, client, settler, dealLocker, ingestion, chainID, escrowConf.ProgramID, escrowConf.Admin)
			if err := httphandler.New(escrowUsecase).Mount(httpServer); err != nil {
				return nil, errors.Wrap(err, "can't mount Escrow API")
			}
			logger.InfoContext(ctx, "Mounted HTTP handler")
		default:
			return nil, errors.Wrapf(errs.Unsupported, "%q API handler is not supported", handler)
		}
	}

	var sweeper *scheduler.Scheduler
	if escrowConf.Scheduler.Disabled {
		logger.InfoContext(ctx, "Escrow scheduler is disabled")
	} else {
		if escrowConf.Admin == "" {
			return nil, errors.Wrap(errs.ArgumentRequired, "escrow admin is required to run the scheduler")
		}
		sweeper = scheduler.New(escrowDg, client, settler, dealLocker, chainID, escrowConf.Admin, escrowConf.Scheduler)
	}

	return &worker{
		ingestion:    ingestion,
		scheduler:    sweeper,
		cleanupFuncs: cleanupFuncs,
	}, nil
}

const shutdownTimeout = 180 * time.Second

// worker runs the ingestion loop and the scheduler side by side.
type worker struct {
	ingestion    *indexer.Indexer[ledger.RawEvent]
	scheduler    *scheduler.Scheduler
	cleanupFuncs []func(context.Context) error
}

func (w *worker) Run(ctx context.Context) error {
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return errors.Wrap(w.ingestion.Run(ectx), "ingestion stopped")
	})
	if w.scheduler != nil {
		eg.Go(func() error {
			return errors.Wrap(w.scheduler.Run(ectx), "scheduler stopped")
		})
	}
	return errors.WithStack(eg.Wait())
}

func (w *worker) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errList []error
	if w.scheduler != nil {
		if err := w.scheduler.Shutdown(ctx); err != nil {
			errList = append(errList, errors.Wrap(err, "failed to shutdown scheduler"))
		}
	}
	if err := w.ingestion.ShutdownWithContext(ctx); err != nil {
		errList = append(errList, errors.Wrap(err, "failed to shutdown ingestion"))
	}
	for _, cleanup := range w.cleanupFuncs {
		if err := cleanup(ctx); err != nil {
			logger.WarnContext(ctx, "Failed to release escrow resources", slogx.Error(err))
		}
	}
	return errors.Join(errList...)
}
