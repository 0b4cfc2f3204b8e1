package crawlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/constants"
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/logger"
	"github.com/Glyph8/navermapCrawling/common/messaging"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/Glyph8/navermapCrawling/common/pagination"
	"github.com/Glyph8/navermapCrawling/common/report"
	"github.com/Glyph8/navermapCrawling/common/services"
	"github.com/Glyph8/navermapCrawling/common/sink"
	"github.com/Glyph8/navermapCrawling/common/storage"
	"github.com/Glyph8/navermapCrawling/common/work"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	ErrNoSearches  = errors.New("run has no searches")
	ErrAllAborted  = errors.New("every search aborted")
	ErrNoOpener    = errors.New("runner has no browser opener")
	ErrNoWorkState = errors.New("runner has no work manager")
)

// BrowserSession is a browser.Session that must be released after its search
type BrowserSession interface {
	browser.Session
	Close() error
}

// Opener opens an isolated browser session for one search
type Opener func(ctx context.Context) (BrowserSession, error)

// Deps are the collaborators of a Runner. Only Open and Work are required.
type Deps struct {
	Open      Opener
	Work      *work.WorkManager
	Places    services.PlaceService
	Runs      services.RunService
	Logs      services.LogStore
	Publisher messaging.Publisher
	Claimer   sink.Claimer
	Storage   storage.StorageService
}

// Request is one crawl run
type Request struct {
	RunID    string
	Site     string
	Schema   string
	Searches []crawler.Search
}

// Result is the outcome of a run
type Result struct {
	RunID     string
	Status    models.RunStatus
	Summaries []crawler.Summary
	Collected int
	Files     []string
	Report    string
	Uploaded  []string
}

// Searches builds the regions x categories product, regions outermost
func Searches(regions, categories []string) []crawler.Search {
	return lo.FlatMap(regions, func(region string, _ int) []crawler.Search {
		return lo.Map(categories, func(category string, _ int) crawler.Search {
			return crawler.Search{Region: region, Category: category}
		})
	})
}

// RequestFromMessage fills the gaps of a crawl request from the crawl configuration
func RequestFromMessage(msg messaging.CrawlRequest, cfg config.Config) Request {
	req := Request{
		RunID:    msg.RunID,
		Site:     lo.CoalesceOrEmpty(msg.Site, cfg.Crawl.Site),
		Schema:   lo.CoalesceOrEmpty(msg.Schema, cfg.Crawl.Schema),
		Searches: msg.Searches,
	}
	if len(req.Searches) == 0 {
		regions := lo.Ternary(len(msg.Regions) > 0, msg.Regions, cfg.Crawl.Regions)
		categories := lo.Ternary(len(msg.Categories) > 0, msg.Categories, cfg.Crawl.Categories)
		req.Searches = Searches(regions, categories)
	}
	return req
}

// Runner fans a run out into one crawl session per search
type Runner struct {
	cfg        config.Config
	deps       Deps
	logService *logger.LogService
	now        func() time.Time
}

func NewRunner(cfg config.Config, deps Deps) (*Runner, error) {
	if deps.Open == nil {
		return nil, ErrNoOpener
	}
	if deps.Work == nil {
		return nil, ErrNoWorkState
	}
	return &Runner{
		cfg:        cfg,
		deps:       deps,
		logService: logger.NewLogService(deps.Logs),
		now:        time.Now,
	}, nil
}

// site resolves the registered site and applies the configured paging limits
func (r *Runner) site(req Request) (crawler.Site, error) {
	site, err := crawler.GetSite(req.Site, req.Schema)
	if err != nil {
		return crawler.Site{}, err
	}
	c := r.cfg.Crawl
	if site.Scroll != nil {
		site.Scroll = &pagination.ScrollPolicy{MaxScrolls: c.MaxScrolls, StallLimit: c.StallLimit, Settle: c.ScrollSettle}
	}
	if site.Page != nil {
		site.Page = &pagination.PagePolicy{MaxPages: c.MaxPages, Settle: c.PageSettle}
	}
	return site, nil
}

func (r *Runner) options(l *zerolog.Logger) crawler.Options {
	c := r.cfg.Crawl
	opts := crawler.DefaultOptions()
	opts.SearchTimeout = c.SearchTimeout
	opts.LocatorTimeout = c.LocatorTimeout
	opts.FrameTimeout = c.FrameTimeout
	opts.DetailTimeout = c.DetailTimeout
	opts.RegionTokens = c.RegionTokens
	opts.Retries = c.Retries
	opts.MaxItems = c.MaxItems
	opts.Logger = l
	return opts
}

// run is the state shared by the searches of one run
type run struct {
	id        string
	site      crawler.Site
	opts      crawler.Options
	timestamp string
	files     chan string
}

// Run crawls every search of req and blocks until the run ends. Searches that
// abort are reported in the result; the run fails only when all of them abort.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Searches) == 0 {
		return Result{}, ErrNoSearches
	}
	site, err := r.site(req)
	if err != nil {
		return Result{}, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	var hook *logger.CrawlerLogHook
	runLogger := log.Logger.With().Str("run", req.RunID).Logger()
	if r.deps.Logs != nil {
		hook = logger.NewCrawlerLogHook(r.deps.Logs, req.RunID)
		runLogger = runLogger.Hook(hook)
		defer hook.Wait()
	}
	ctx = runLogger.WithContext(ctx)

	if err := r.createRun(ctx, req, site); err != nil {
		runLogger.Warn().Err(err).Msg("Failed to record run")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := r.deps.Work.Start(ctx, req.RunID, cancel); err != nil {
		return Result{RunID: req.RunID}, err
	}
	if err := r.logService.RunStarted(ctx, req.RunID, len(req.Searches)); err != nil {
		runLogger.Debug().Err(err).Msg("Failed to store run start event")
	}

	state := &run{
		id:        req.RunID,
		site:      site,
		opts:      r.options(&runLogger),
		timestamp: sink.Timestamp(r.now()),
		files:     make(chan string, len(req.Searches)),
	}

	var rep *report.Report
	if r.cfg.Output.Summary {
		rep, err = report.New(r.cfg.Output.Dir, state.timestamp, r.deps.Storage)
		if err != nil {
			runLogger.Warn().Err(err).Msg("Summary report disabled")
		}
	}

	summaries, err := r.fanOut(runCtx, state, req.Searches, func(summary crawler.Summary) {
		r.record(ctx, state.id, summary, rep)
		r.heartbeat(ctx, state.id, cancel)
	})
	close(state.files)
	files := lo.ChannelToSlice(state.files)

	result := Result{
		RunID:     req.RunID,
		Summaries: summaries,
		Collected: lo.SumBy(summaries, func(s crawler.Summary) int { return s.Counters.Collected }),
		Files:     files,
	}
	if rep != nil {
		result.Report = rep.Path()
	}

	// completion bookkeeping must outlive a cancelled run
	done := context.WithoutCancel(ctx)
	result.Uploaded = r.upload(done, rep, files)

	runErr := err
	switch {
	case runErr != nil:
		result.Status = models.RunStatusFailed
	case runCtx.Err() != nil:
		result.Status = models.RunStatusCancelled
		runErr = runCtx.Err()
	case lo.EveryBy(summaries, func(s crawler.Summary) bool { return s.State == crawler.StateAborted }):
		result.Status = models.RunStatusFailed
		runErr = ErrAllAborted
	default:
		result.Status = models.RunStatusCompleted
	}

	r.finish(done, result, runErr)
	if result.Status == models.RunStatusCompleted {
		return result, nil
	}
	return result, runErr
}

// fanOut runs one task per search on the worker pool and reports every
// summary to onSummary as it arrives. Summaries are returned in search order.
func (r *Runner) fanOut(ctx context.Context, state *run, searches []crawler.Search, onSummary func(crawler.Summary)) ([]crawler.Summary, error) {
	poolConfig := work.DefaultPoolConfig()
	poolConfig.NumWorkers = max(r.cfg.Crawl.Workers, 1)
	poolConfig.TaskChannelSize = len(searches)
	poolConfig.ResultChanSize = len(searches)
	if r.cfg.Crawl.UnitTimeout > 0 {
		poolConfig.TaskTimeout = r.cfg.Crawl.UnitTimeout
	}

	pool, err := work.NewWorkerPoolWithConfig[crawler.Summary](poolConfig)
	if err != nil {
		return nil, err
	}
	// workers outlive cancellation so every queued search reports back
	pool.Start(context.WithoutCancel(ctx), state.id)
	defer pool.Stop()

	logger := zerolog.Ctx(ctx)
	order := make(map[string]int, len(searches))
	for i, search := range searches {
		taskID := fmt.Sprintf("%s/%d", state.id, i)
		order[taskID] = i
		task, err := work.NewTask(func(taskCtx context.Context) (crawler.Summary, error) {
			if err := ctx.Err(); err != nil {
				return aborted(state.site.Name, search, err), err
			}
			taskCtx, stop := context.WithCancel(taskCtx)
			defer stop()
			release := context.AfterFunc(ctx, stop)
			defer release()
			return r.crawl(taskCtx, state, search)
		},
			work.WithID[crawler.Summary](taskID),
			work.WithErrorHandler[crawler.Summary](func(err error) {
				logger.Warn().Err(err).Str("search", search.String()).Msg("Search did not finish cleanly")
			}),
		)
		if err != nil {
			return nil, err
		}
		// the queue holds every search, so queueing never waits
		if err := pool.AddTask(context.WithoutCancel(ctx), task); err != nil {
			return nil, err
		}
	}

	summaries := make([]crawler.Summary, len(searches))
	for range searches {
		res := <-pool.Results()
		i := order[res.TaskID]
		summary := res.Result
		if summary.ID == "" {
			summary = aborted(state.site.Name, searches[i], res.Error)
		}
		summaries[i] = summary
		onSummary(summary)

		stats := pool.Stats()
		logger.Info().
			Str("search", summary.Search.String()).
			Int64("searchesDone", stats.TasksCompleted).
			Int("searches", len(searches)).
			Int64("searchesWaiting", stats.TasksInQueue).
			Int64("workers", stats.ActiveWorkers).
			Msg("Run progress")
	}
	return summaries, nil
}

// crawl runs one search in its own browser session
func (r *Runner) crawl(ctx context.Context, state *run, search crawler.Search) (crawler.Summary, error) {
	if err := ctx.Err(); err != nil {
		return aborted(state.site.Name, search, err), err
	}

	session, err := r.deps.Open(ctx)
	if err != nil {
		err = fmt.Errorf("open browser session: %w", err)
		return aborted(state.site.Name, search, err), err
	}
	defer session.Close()

	out, closeSinks, err := r.sinks(state, search)
	if err != nil {
		return aborted(state.site.Name, search, err), err
	}
	defer closeSinks()

	s, err := crawler.NewSession(search, state.site, session, out, state.opts)
	if err != nil {
		return aborted(state.site.Name, search, err), err
	}
	return s.Run(ctx)
}

// sinks builds the destinations of one search. The CSV file keeps every
// record of its search; the shared destinations see each place once per
// dedup window.
func (r *Runner) sinks(state *run, search crawler.Search) (crawler.Sink, func(), error) {
	var local []crawler.Sink
	closeFn := func() {}

	if r.cfg.Output.CSV {
		csv, err := sink.NewCSVSink(r.cfg.Output.Dir, search, state.site.Schema.Fields(), state.timestamp)
		if err != nil {
			return nil, closeFn, err
		}
		local = append(local, csv)
		closeFn = func() {
			if err := csv.Close(); err != nil {
				log.Warn().Err(err).Str("file", csv.Path()).Msg("Failed to close result file")
			}
			state.files <- csv.Path()
		}
	}

	var shared []crawler.Sink
	if r.deps.Places != nil {
		shared = append(shared, sink.NewPostgresSink(r.deps.Places, state.id))
	}
	if r.deps.Publisher != nil {
		shared = append(shared, sink.NewNatsSink(r.deps.Publisher, constants.PlaceCollectedSubject, state.id))
	}
	if len(shared) > 0 {
		var next crawler.Sink = sink.Multi(shared...)
		if r.deps.Claimer != nil {
			next = sink.NewDedupSink(r.deps.Claimer, next, r.cfg.Redis.DedupTTL)
		}
		// a row already in the result file counts as collected
		if len(local) > 0 {
			next = sink.BestEffort(next)
		}
		local = append(local, next)
	}

	return sink.Multi(local...), closeFn, nil
}

// record stores the summary of one finished search
func (r *Runner) record(ctx context.Context, runID string, summary crawler.Summary, rep *report.Report) {
	logger := zerolog.Ctx(ctx)
	if rep != nil {
		if err := rep.Add(summary); err != nil {
			logger.Warn().Err(err).Msg("Failed to update summary report")
		}
	}
	if r.deps.Runs != nil {
		if err := r.deps.Runs.AppendSummary(ctx, runID, summary); err != nil {
			logger.Warn().Err(err).Msg("Failed to store search summary")
		}
	}
	if err := r.logService.SearchFinished(ctx, runID, summary.Search.Region, summary.Search.Category,
		summary.State.String(), summary.Counters.Collected); err != nil {
		logger.Debug().Err(err).Msg("Failed to store search event")
	}
}

// heartbeat extends the running mark; a cleared mark means the run was cancelled elsewhere
func (r *Runner) heartbeat(ctx context.Context, runID string, cancel context.CancelFunc) {
	alive, err := r.deps.Work.Resume(ctx, runID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to extend run")
		return
	}
	if !alive {
		zerolog.Ctx(ctx).Info().Msg("Run cancelled externally")
		cancel()
	}
}

func (r *Runner) createRun(ctx context.Context, req Request, site crawler.Site) error {
	if r.deps.Runs == nil {
		return nil
	}
	_, err := r.deps.Runs.GetByID(ctx, req.RunID)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	now := r.now().UTC()
	return r.deps.Runs.Create(ctx, models.CrawlRun{
		ID:        req.RunID,
		Site:      site.Name,
		Schema:    site.Schema.Name,
		Searches:  req.Searches,
		Status:    models.RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (r *Runner) upload(ctx context.Context, rep *report.Report, files []string) []string {
	if r.deps.Storage == nil {
		return nil
	}
	if rep != nil {
		return rep.Upload(ctx, files...)
	}
	var uploaded []string
	for _, file := range files {
		name, err := storage.UploadFile(ctx, r.deps.Storage, file, "", "text/csv; charset=utf-8")
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", file).Msg("Failed to upload result file")
			continue
		}
		uploaded = append(uploaded, name)
	}
	return uploaded
}

func (r *Runner) finish(ctx context.Context, result Result, runErr error) {
	logger := zerolog.Ctx(ctx)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}

	if err := r.deps.Work.Complete(ctx, result.RunID, result.Status, errMsg); err != nil {
		logger.Warn().Err(err).Msg("Failed to complete run")
	}
	if err := r.logService.RunCompleted(ctx, result.RunID, string(result.Status), result.Collected); err != nil {
		logger.Debug().Err(err).Msg("Failed to store run completion event")
	}

	if r.deps.Publisher == nil {
		return
	}
	data, err := json.Marshal(messaging.RunFinishedMessage{
		RunID:     result.RunID,
		Status:    result.Status,
		Collected: result.Collected,
		Summaries: result.Summaries,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode run finished message")
		return
	}
	if err := r.deps.Publisher.PublishSync(ctx, constants.RunFinishedSubject, data); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish run finished message")
	}
}

// aborted is the summary of a search that never got a session
func aborted(site string, search crawler.Search, err error) crawler.Summary {
	now := time.Now()
	summary := crawler.Summary{
		ID:         uuid.NewString(),
		Site:       site,
		Search:     search,
		State:      crawler.StateAborted,
		StartedAt:  now,
		FinishedAt: now,
	}
	if err != nil {
		summary.Error = err.Error()
	}
	return summary
}
