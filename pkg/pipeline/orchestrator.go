package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/logsleuth/sleuth/pkg/agent"
	"github.com/logsleuth/sleuth/pkg/config"
	"github.com/logsleuth/sleuth/pkg/llmcache"
	"github.com/logsleuth/sleuth/pkg/logfile"
	"github.com/logsleuth/sleuth/pkg/loki"
	"github.com/logsleuth/sleuth/pkg/models"
	"github.com/logsleuth/sleuth/pkg/report"
	"github.com/logsleuth/sleuth/pkg/trace"
)

// logFileExtensions are the filename suffixes the file scanner considers.
var logFileExtensions = []string{".log", ".txt", ".xz", ".lzma", ".gz", ".zip"}

// Request is one analysis run.
type Request struct {
	Prompt  string
	Project string
	Env     string

	// Domain is an optional caller-supplied business domain. It takes
	// precedence over the domain extracted from the prompt.
	Domain string

	// Policy is the per-request cache-control policy for all LLM calls.
	Policy *llmcache.Policy

	// ForceRefresh bypasses the remote log result cache.
	ForceRefresh bool
}

// Orchestrator drives the pipeline for one request at a time. Construct once,
// share across requests; all dependencies are safe for concurrent use.
type Orchestrator struct {
	cfg        *config.Config
	paramAgent *agent.ParameterAgent
	analyzer   *agent.Analyzer
	relevance  *agent.RelevanceAnalyzer
	lokiClient *loki.Client
	writer     *report.Writer
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(cfg *config.Config, paramAgent *agent.ParameterAgent,
	analyzer *agent.Analyzer, relevance *agent.RelevanceAnalyzer,
	lokiClient *loki.Client, writer *report.Writer) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		paramAgent: paramAgent,
		analyzer:   analyzer,
		relevance:  relevance,
		lokiClient: lokiClient,
		writer:     writer,
	}
}

// Run executes the pipeline and streams progress events. The returned channel
// is closed after the terminal done event. Steps advance strictly forward; a
// step that yields nothing produces an early "nothing to do" outcome but
// still emits done.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		o.run(ctx, req, events)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- Event) {
	emit := func(step Step, payload any) {
		select {
		case events <- Event{Step: step, Payload: payload}:
		case <-ctx.Done():
		}
	}
	fail := func(kind ErrorKind, err error) {
		slog.Error("Pipeline failed", "project", req.Project, "env", req.Env,
			"kind", string(kind), "error", err)
		emit(StepError, ErrorPayload{Kind: kind, Message: err.Error()})
		emit(StepDone, DonePayload{Status: StatusError})
	}
	finishEarly := func(outcome string) {
		emit(StepDone, DonePayload{Status: StatusComplete, Outcome: outcome})
	}

	project, ok := o.cfg.Project(req.Project)
	if !ok {
		fail(ErrorKindInput, fmt.Errorf("unknown project %q", req.Project))
		return
	}
	env, ok := project.Environment(req.Env)
	if !ok {
		fail(ErrorKindInput, fmt.Errorf("unknown environment %q for project %q", req.Env, req.Project))
		return
	}

	// S0 → S1: parameter extraction.
	params, diag, err := o.paramAgent.Extract(ctx, req.Prompt, req.Policy)
	if err != nil {
		fail(ErrorKindLLM, err)
		return
	}
	agent.ApplyDomainHint(params, req.Domain)
	emit(StepExtractedParameters, map[string]any{"parameters": params, "cache": diag})

	plan := agent.BuildPlan(params, project, req.Env, req.Prompt)
	if !plan.CanProceed {
		emit(StepWarning, map[string]any{
			"kind":               string(ErrorKindInput),
			"blocking_questions": plan.BlockingQuestions,
		})
		finishEarly("cannot_proceed")
		return
	}

	// S1 → S2: acquisition.
	var sources []trace.Source
	var traceIDs []string
	var acquiredFiles []string

	if project.LogSourceKind == models.LogSourceRemote {
		acquiredFiles, sources, traceIDs = o.fetchRemote(ctx, req, env, params, emit)
	} else {
		acquiredFiles, sources, traceIDs = o.searchFiles(env, params, emit)
	}
	emit(StepFoundRelevantFiles, map[string]any{"files": acquiredFiles, "count": len(acquiredFiles)})
	if len(acquiredFiles) == 0 {
		finishEarly("no_relevant_files")
		return
	}

	// S2 → S3: trace discovery.
	traceIDs = trace.UniqueIDs(traceIDs)
	emit(StepFoundTraceIDs, map[string]any{"trace_ids": traceIDs, "count": len(traceIDs)})
	if len(traceIDs) == 0 {
		finishEarly("no_trace_ids")
		return
	}

	// S3 → S4: bundle compilation.
	bundles := trace.Compile(traceIDs, sources)
	compiled := make([]string, 0, len(bundles))
	for _, b := range bundles {
		compiled = append(compiled, b.TraceID)
	}
	emit(StepCompiledTraces, map[string]any{"trace_ids": compiled, "count": len(bundles)})
	if len(bundles) == 0 {
		finishEarly("no_bundles")
		return
	}

	// S4 → S5: per-trace analysis and report writing.
	fromEntries := project.LogSourceKind == models.LogSourceRemote
	analyses, reportFiles, err := o.analyzeAndWrite(ctx, req, params, bundles, fromEntries)
	if err != nil {
		fail(ErrorKindIO, err)
		return
	}

	quality, _ := o.analyzer.AssessQuality(ctx, analyses, req.Prompt, params, req.Policy)
	master, _ := o.analyzer.Summarize(ctx, analyses, req.Prompt, req.Policy)
	emit(StepCompiledSummary, map[string]any{"summary": master, "quality": quality})

	// S5 → S6: relevance scoring and the master report.
	relSummary, err := o.relevance.ScoreReports(ctx, reportFiles, req.Prompt, params, req.Policy)
	if err != nil {
		fail(ErrorKindLLM, err)
		return
	}
	masterPath, err := o.writer.WriteMasterReport(report.MasterInput{
		UserPrompt: req.Prompt,
		Params:     params,
		Relevance:  relSummary,
		Quality:    quality,
		Summary:    master,
		TraceFiles: reportFiles,
	})
	if err != nil {
		fail(ErrorKindIO, err)
		return
	}
	emit(StepVerification, map[string]any{
		"summary":     relSummary,
		"description": agent.Describe(relSummary),
		"report":      masterPath,
	})

	emit(StepDone, DonePayload{Status: StatusComplete})
}

// searchFiles scans the environment's log root for files matching any query
// key. Unreadable files are reported as warnings and treated as zero sources.
func (o *Orchestrator) searchFiles(env models.EnvDescriptor, params *models.SearchParameters,
	emit func(Step, any)) (files []string, sources []trace.Source, traceIDs []string) {

	candidates := discoverLogFiles(env.LogRoot)
	for _, path := range candidates {
		matches, err := logfile.SearchWithTraceIDs(path, params.QueryKeys)
		if err != nil {
			emit(StepWarning, ErrorPayload{Kind: ErrorKindAcquisition,
				Message: fmt.Sprintf("failed to search %s: %v", path, err)})
			continue
		}
		if len(matches) == 0 {
			continue
		}
		files = append(files, path)
		for _, m := range matches {
			if m.TraceID != "" {
				traceIDs = append(traceIDs, m.TraceID)
			}
		}

		content, err := logfile.ReadFullContent(path)
		if err != nil {
			emit(StepWarning, ErrorPayload{Kind: ErrorKindAcquisition,
				Message: fmt.Sprintf("failed to read %s: %v", path, err)})
			continue
		}
		sources = append(sources, trace.Source{
			Name:    path,
			Entries: trace.ParseXMLRecords(content, path),
		})
	}
	return files, sources, traceIDs
}

// fetchRemote queries the remote log store over the extracted time window.
// A fetch failure is a warning; the step then produced zero sources.
func (o *Orchestrator) fetchRemote(ctx context.Context, req Request, env models.EnvDescriptor,
	params *models.SearchParameters, emit func(Step, any)) (files []string, sources []trace.Source, traceIDs []string) {

	q := &loki.Query{
		Filters: map[string]string{"service_namespace": strings.ToLower(env.Namespace)},
		Search:  params.QueryKeys,
		Date:    params.TimeFrame,
	}
	path, err := o.lokiClient.FetchLogs(ctx, q, req.ForceRefresh)
	if err != nil {
		emit(StepWarning, ErrorPayload{Kind: ErrorKindAcquisition,
			Message: fmt.Sprintf("remote log fetch failed: %v", err)})
		return nil, nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		emit(StepWarning, ErrorPayload{Kind: ErrorKindAcquisition,
			Message: fmt.Sprintf("failed to read result file %s: %v", path, err)})
		return nil, nil, nil
	}
	resp, err := trace.ParseLokiResponse(data)
	if err != nil {
		emit(StepWarning, ErrorPayload{Kind: ErrorKindFraming,
			Message: fmt.Sprintf("malformed log store response: %v", err)})
		return nil, nil, nil
	}
	if resp.IsEmpty() {
		return nil, nil, nil
	}

	return []string{path},
		[]trace.Source{{Name: path, Entries: resp.Entries(path)}},
		resp.TraceIDs()
}

// analyzeAndWrite runs per-trace analysis over a bounded worker pool and
// writes one report per bundle. Report I/O failures abort the request.
func (o *Orchestrator) analyzeAndWrite(ctx context.Context, req Request,
	params *models.SearchParameters, bundles []*models.TraceBundle,
	fromEntries bool) (map[string]*models.TraceAnalysis, []string, error) {

	workers := 1
	if o.cfg.Analysis != nil && o.cfg.Analysis.Workers > 0 {
		workers = o.cfg.Analysis.Workers
	}

	analyses := make(map[string]*models.TraceAnalysis, len(bundles))
	reportFiles := make([]string, 0, len(bundles))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, bundle := range bundles {
		g.Go(func() error {
			analysis, _ := o.analyzer.AnalyzeBundle(gctx, bundle, req.Prompt, params, fromEntries, req.Policy)
			path, err := o.writer.WriteTraceReport(bundle, analysis, params, req.Prompt)
			if err != nil {
				return err
			}
			mu.Lock()
			analyses[bundle.TraceID] = analysis
			reportFiles = append(reportFiles, path)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return analyses, reportFiles, nil
}

// discoverLogFiles walks root collecting files with a known log extension.
func discoverLogFiles(root string) []string {
	var out []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, known := range logFileExtensions {
			if ext == known {
				out = append(out, path)
				break
			}
		}
		return nil
	})
	return out
}
