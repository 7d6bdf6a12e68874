package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/RenukaPawar658/marketplace/internal/config"
	"github.com/RenukaPawar658/marketplace/internal/ledger"
	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/store"
)

// TaskType defines the type of a background task.
const (
	TypeCustodyAudit = "listing:custody:audit"
	TypeCustodySweep = "listing:custody:sweep"
)

// ErrCustodyDrift is reported when the asset ledger disagrees with a listing's custody.
var ErrCustodyDrift = errors.New("custody drift")

// --- Task Client (Enqueuing tasks) ---

// RedisOpt derives the asynq connection options from an existing Redis client.
func RedisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(RedisOpt(rdb))
}

// IAsynqClient is the enqueue side of *asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CustodyAuditPayload is the payload of TypeCustodyAudit.
type CustodyAuditPayload struct {
	ListingID uint64 `json:"listing_id"`
}

// AuditEnqueuer schedules custody audits after registry mutations.
type AuditEnqueuer struct {
	client IAsynqClient
}

func NewAuditEnqueuer(client IAsynqClient) *AuditEnqueuer {
	return &AuditEnqueuer{client: client}
}

// EnqueueAudit queues a TypeCustodyAudit task for listingID.
func (e *AuditEnqueuer) EnqueueAudit(ctx context.Context, listingID uint64) error {
	payload, err := json.Marshal(CustodyAuditPayload{ListingID: listingID})
	if err != nil {
		return fmt.Errorf("failed to marshal custody audit payload: %w", err)
	}
	task := asynq.NewTask(TypeCustodyAudit, payload)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.TaskID(uuid.NewString()),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue custody audit for listing %d: %w", listingID, err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	cfg      *config.Config
	store    store.ListingStore
	assets   ledger.AssetLedger
	registry models.Address
}

func NewTaskProcessor(cfg *config.Config, listingStore store.ListingStore, assets ledger.AssetLedger) *TaskProcessor {
	return &TaskProcessor{
		cfg:      cfg,
		store:    listingStore,
		assets:   assets,
		registry: models.NewAddress(cfg.RegistryAddress),
	}
}

// SetupServer configures an Asynq server and the mux with all task handlers.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		RedisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCustodyAudit, processor.HandleCustodyAuditTask)
	mux.HandleFunc(TypeCustodySweep, processor.HandleCustodySweepTask)
	fmt.Println("Registered custody audit task handlers.")

	return srv, mux
}

// SetupScheduler registers the periodic custody sweep.
func SetupScheduler(rdb *redis.Client, interval time.Duration) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(RedisOpt(rdb), nil)
	spec := "@every " + strconv.Itoa(int(interval/time.Second)) + "s"
	if _, err := scheduler.Register(spec, asynq.NewTask(TypeCustodySweep, nil), asynq.Queue("low")); err != nil {
		return nil, fmt.Errorf("failed to register custody sweep (%s): %w", spec, err)
	}
	return scheduler, nil
}

// --- Task Handlers ---

// HandleCustodyAuditTask checks one listing against the asset ledger.
func (p *TaskProcessor) HandleCustodyAuditTask(ctx context.Context, t *asynq.Task) error {
	var payload CustodyAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal custody audit payload: %v: %w", err, asynq.SkipRetry)
	}

	listing, err := p.store.FindByID(ctx, payload.ListingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("listing %d does not exist: %w", payload.ListingID, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load listing %d: %w", payload.ListingID, err)
	}
	if !listing.IsActive() {
		// cleared records carry no asset to check
		return nil
	}
	return p.auditListing(ctx, listing)
}

// HandleCustodySweepTask audits every active listing.
func (p *TaskProcessor) HandleCustodySweepTask(ctx context.Context, t *asynq.Task) error {
	listings, err := p.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active listings: %w", err)
	}

	var drifted []uint64
	for _, l := range listings {
		if err := p.auditListing(ctx, l); err != nil {
			if !errors.Is(err, ErrCustodyDrift) {
				return err
			}
			drifted = append(drifted, l.ID)
		}
	}
	fmt.Printf("Custody sweep checked %d active listings, %d drifted.\n", len(listings), len(drifted))
	if len(drifted) > 0 {
		return fmt.Errorf("%w: listings %v: %w", ErrCustodyDrift, drifted, asynq.SkipRetry)
	}
	return nil
}

func (p *TaskProcessor) auditListing(ctx context.Context, listing *models.Listing) error {
	owner, err := p.assets.OwnerOf(ctx, listing.AssetContract, listing.AssetID)
	if err != nil {
		return fmt.Errorf("failed to look up owner of %s: %w", listing.Asset(), err)
	}
	if owner != p.registry {
		log.Printf("CUSTODY DRIFT: listing %d (%s) is active but owned by %s", listing.ID, listing.Asset(), owner)
		return fmt.Errorf("%w: listing %d held by %s: %w", ErrCustodyDrift, listing.ID, owner, asynq.SkipRetry)
	}
	return nil
}
