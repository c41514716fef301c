// Package api implements the Submission API (§4.1) and the two HTTP
// collaborators named in §6: the provider-A snapshot debug passthrough
// and the provider-B callback webhook. Grounded on the teacher's
// main.go's plain net/http.ServeMux + mux.HandleFunc wiring — this
// pipeline has no REST surface of its own in the teacher, so the
// handler shape follows the teacher's own minimal health/root endpoints
// generalized to JSON request/response bodies.
package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/batch"
	"github.com/aivisible/prompt-pipeline/internal/cache"
	"github.com/aivisible/prompt-pipeline/internal/enrichment"
	"github.com/aivisible/prompt-pipeline/internal/llm"
	"github.com/aivisible/prompt-pipeline/internal/notify"
	"github.com/aivisible/prompt-pipeline/internal/providerhealth"
	"github.com/aivisible/prompt-pipeline/internal/queue"
	"github.com/aivisible/prompt-pipeline/internal/scrape/providera"
	"github.com/aivisible/prompt-pipeline/internal/store"
)

// KeyValidator validates an OpenAI/Anthropic key+model pair (§4.1 step 2).
type KeyValidator func(ctx context.Context, apiKey, model string) error

// ActiveProviderResolver resolves the currently active scraping provider
// (§4.3), shared with internal/scheduler's identical seam.
type ActiveProviderResolver interface {
	GetActive(ctx context.Context) (providerhealth.ProviderName, bool)
}

// Publisher fans a shard message out onto the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic queue.Topic, msg queue.ShardMessage) error
}

// Server wires the submission API and its HTTP collaborators together.
type Server struct {
	logger *zap.Logger

	projects        store.ProjectRepository
	tags            store.TagRepository
	prompts         store.PromptRepository
	userKeys        store.UserKeyRepository
	submissions     store.SubmissionRepository
	jobBatches      store.JobBatchRepository
	trackingResults store.TrackingResultRepository

	validateKey KeyValidator
	providers   ActiveProviderResolver
	publisher   Publisher
	notifier    *notify.Notifier
	batches     *batch.StateMachine
	engine      *enrichment.Engine
	cost        llm.CostService
	hostnames   *cache.HostnameCache

	snapshots *providera.Client
}

// Deps bundles Server's collaborators so New's signature stays short.
type Deps struct {
	Logger          *zap.Logger
	Projects        store.ProjectRepository
	Tags            store.TagRepository
	Prompts         store.PromptRepository
	UserKeys        store.UserKeyRepository
	Submissions     store.SubmissionRepository
	JobBatches      store.JobBatchRepository
	TrackingResults store.TrackingResultRepository
	ValidateKey     KeyValidator
	Providers       ActiveProviderResolver
	Publisher       Publisher
	Notifier        *notify.Notifier
	Batches         *batch.StateMachine
	Engine          *enrichment.Engine
	Cost            llm.CostService
	Hostnames       *cache.HostnameCache
	ProviderA       *providera.Client
}

func New(deps Deps) *Server {
	validate := deps.ValidateKey
	if validate == nil {
		validate = llm.ValidateKey
	}
	cost := deps.Cost
	if cost == nil {
		cost = llm.NewCostService()
	}
	return &Server{
		logger:          deps.Logger,
		projects:        deps.Projects,
		tags:            deps.Tags,
		prompts:         deps.Prompts,
		userKeys:        deps.UserKeys,
		submissions:     deps.Submissions,
		jobBatches:      deps.JobBatches,
		trackingResults: deps.TrackingResults,
		validateKey:     validate,
		providers:       deps.Providers,
		publisher:       deps.Publisher,
		notifier:        deps.Notifier,
		batches:         deps.Batches,
		engine:          deps.Engine,
		cost:            cost,
		hostnames:       deps.Hostnames,
		snapshots:       deps.ProviderA,
	}
}

// Routes mounts the submission API and its HTTP collaborators onto mux,
// mirroring the teacher's main.go mux.Handle("/api/inngest", ...) pattern.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/enqueue", s.handleEnqueue)
	mux.HandleFunc("/snapshot-data/", s.handleSnapshot)
	mux.HandleFunc("/api/dataforseo/callback", s.handleCallback)
}

// statusForKind maps an apierr.Kind to its §6/§7 HTTP status.
func statusForKind(kind apierr.Kind) int {
	switch kind {
	case apierr.InvalidRequest, apierr.AuthFailed, apierr.QuotaExceeded,
		apierr.ModelForbidden, apierr.ModelNotFound:
		return http.StatusBadRequest
	case apierr.AllProvidersDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
