// Package fakecp is an in-memory stand-in for the workspace control plane:
// pipelines with an event feed, jobs with scripted run states and a workspace
// file tree. Tests and the fake-control-plane test app serve it over HTTP.
package fakecp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Epoch is the timestamp of the first generated event.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type Call struct {
	Method string
	Path   string
}

type storedEvent struct {
	ts  time.Time
	raw map[string]any
}

type Server struct {
	// Token, when set, is required as bearer token.
	Token string
	// PageSize caps events per page regardless of max_results.
	PageSize int
	// EventsAsJSONStrings serves pages in the events_json form.
	EventsAsJSONStrings bool
	// RunScript is the sequence of run states a new run walks through; the
	// last state repeats.
	RunScript []api.LifeCycleState
	// UpdateScript is the update_progress states appended when an update
	// starts. Continuous pipelines never get past RUNNING.
	UpdateScript []string
	UserName     string

	mu         sync.Mutex
	router     *chi.Mux
	seq        int
	clock      time.Time
	pipelines  map[string]*api.Pipeline
	events     map[string][]storedEvent
	jobs       map[string]api.JobSettings
	runs       map[int64][]api.LifeCycleState
	files      map[string][]byte
	dirs       map[string]bool
	warehouses []api.Warehouse
	calls      []Call
}

func New() *Server {
	s := &Server{
		PageSize:     0,
		RunScript:    []api.LifeCycleState{api.StatePending, api.StateRunning, api.StateRunning},
		UpdateScript: []string{"INITIALIZING", "RUNNING", "COMPLETED"},
		UserName:     "dev@example.com",
		router:       chi.NewRouter(),
		clock:        Epoch,
		pipelines:    map[string]*api.Pipeline{},
		events:       map[string][]storedEvent{},
		jobs:         map[string]api.JobSettings{},
		runs:         map[int64][]api.LifeCycleState{},
		files:        map[string][]byte{},
		dirs:         map[string]bool{},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.record)
	s.router.Use(s.auth)

	s.router.Route("/api/2.0/pipelines", func(r chi.Router) {
		r.Get("/", s.handleListPipelines)
		r.Post("/", s.handleCreatePipeline)
		r.Get("/{id}", s.handleGetPipeline)
		r.Put("/{id}", s.handleEditPipeline)
		r.Delete("/{id}", s.handleDeletePipeline)
		r.Post("/{id}/updates", s.handleStartUpdate)
		r.Post("/{id}/stop", s.handleStop)
		r.Get("/{id}/events", s.handleEvents)
	})
	s.router.Post("/api/2.1/jobs/create", s.handleCreateJob)
	s.router.Post("/api/2.1/jobs/run-now", s.handleRunNow)
	s.router.Post("/api/2.1/jobs/delete", s.handleDeleteJob)
	s.router.Get("/api/2.1/jobs/runs/get", s.handleGetRun)
	s.router.Post("/api/2.0/workspace/mkdirs", s.handleMkdirs)
	s.router.Post("/api/2.0/workspace/import", s.handleImport)
	s.router.Get("/api/2.0/preview/scim/v2/Me", s.handleMe)
	s.router.Get("/api/2.0/sql/warehouses", s.handleListWarehouses)
	s.router.Get("/api/2.0/sql/warehouses/{id}", s.handleGetWarehouse)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid access token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Calls returns every request seen so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CountCalls counts requests matching method and path prefix.
func (s *Server) CountCalls(method, pathPrefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// AddPipeline registers a pipeline directly and returns its id.
func (s *Server) AddPipeline(spec api.PipelineSpec) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPipelineLocked(spec)
}

func (s *Server) addPipelineLocked(spec api.PipelineSpec) string {
	id := uuid.NewString()
	spec.ID = id
	s.pipelines[id] = &api.Pipeline{PipelineID: id, Name: spec.Name, State: "IDLE", Spec: spec}
	return id
}

func (s *Server) Pipeline(id string) (api.Pipeline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[id]
	if !ok {
		return api.Pipeline{}, false
	}
	return *p, true
}

// AppendEvent adds an event to a pipeline feed; a missing timestamp is
// filled from the server clock.
func (s *Server) AppendEvent(pipelineID string, ev map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEventLocked(pipelineID, ev)
}

func (s *Server) appendEventLocked(pipelineID string, ev map[string]any) {
	var ts time.Time
	if raw, ok := ev["timestamp"].(string); ok {
		ts = events.ParseTimestamp(raw)
	} else {
		s.clock = s.clock.Add(time.Second)
		ts = s.clock
		ev["timestamp"] = events.FormatTimestamp(ts)
	}
	if _, ok := ev["id"]; !ok {
		ev["id"] = uuid.NewString()
	}
	origin, _ := ev["origin"].(map[string]any)
	if origin == nil {
		origin = map[string]any{}
		ev["origin"] = origin
	}
	origin["pipeline_id"] = pipelineID
	s.events[pipelineID] = append(s.events[pipelineID], storedEvent{ts: ts, raw: ev})
}

// AddWarehouse registers a SQL warehouse; list order follows insertion.
func (s *Server) AddWarehouse(w api.Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warehouses = append(s.warehouses, w)
}

// DeleteJob removes a job behind the client's back.
func (s *Server) DeleteJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// AddJob registers a job under a fixed id.
func (s *Server) AddJob(id string, js api.JobSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = js
}

func (s *Server) JobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) File(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	return b, ok
}

func (s *Server) nextID() int {
	s.seq++
	return 1000 + s.seq
}

// startUpdateLocked appends the scripted update events and returns the
// update id.
func (s *Server) startUpdateLocked(p *api.Pipeline, cause string, fullRefresh bool) string {
	updateID := uuid.NewString()
	p.State = "RUNNING"
	p.LatestUpdates = append([]api.UpdateInfo{{UpdateID: updateID, State: "CREATED"}}, p.LatestUpdates...)
	s.appendEventLocked(p.PipelineID, map[string]any{
		"event_type": "create_update",
		"level":      "INFO",
		"message":    fmt.Sprintf("Update %s started by %s.", short(updateID), cause),
		"origin":     map[string]any{"update_id": updateID, "pipeline_name": p.Name},
		"details":    map[string]any{"create_update": map[string]any{"cause": cause, "full_refresh": fullRefresh}},
	})
	for _, st := range s.UpdateScript {
		if p.Spec.Continuous && st != "INITIALIZING" && st != "SETTING_UP_TABLES" && st != "RUNNING" {
			break
		}
		s.appendUpdateStateLocked(p, updateID, st)
	}
	return updateID
}

func (s *Server) appendUpdateStateLocked(p *api.Pipeline, updateID, state string) {
	ev := map[string]any{
		"event_type": "update_progress",
		"level":      "INFO",
		"message":    fmt.Sprintf("Update %s is %s.", short(updateID), state),
		"origin":     map[string]any{"update_id": updateID, "pipeline_name": p.Name},
		"details":    map[string]any{"update_progress": map[string]any{"state": state}},
	}
	if state == "FAILED" {
		ev["level"] = "ERROR"
		ev["error"] = map[string]any{"exceptions": []any{map[string]any{"message": "scripted failure"}}}
	}
	s.appendEventLocked(p.PipelineID, ev)
	if len(p.LatestUpdates) > 0 && p.LatestUpdates[0].UpdateID == updateID {
		p.LatestUpdates[0].State = state
	}
	switch state {
	case "COMPLETED", "FAILED", "CANCELED":
		p.State = "IDLE"
	}
}

func short(id string) string {
	if len(id) > 6 {
		return id[:6]
	}
	return id
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error_code": code, "message": msg})
}

func decode(r *http.Request, into any) error {
	return json.NewDecoder(r.Body).Decode(into)
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	name := ""
	if i := strings.Index(filter, "'"); i >= 0 && strings.HasSuffix(filter, "'") {
		name = strings.ReplaceAll(filter[i+1:len(filter)-1], "''", "'")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := []api.PipelineStatus{}
	for _, p := range s.pipelines {
		if name == "" || p.Name == name {
			statuses = append(statuses, api.PipelineStatus{PipelineID: p.PipelineID, Name: p.Name, State: p.State})
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].PipelineID < statuses[j].PipelineID })
	writeJSON(w, map[string]any{"statuses": statuses})
}

func (s *Server) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	var spec api.PipelineSpec
	if err := decode(r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !spec.AllowDuplicateNames {
		for _, p := range s.pipelines {
			if p.Name == spec.Name {
				writeError(w, http.StatusConflict, api.CodeResourceAlreadyExists,
					fmt.Sprintf("Pipeline with name '%s' already exists.", spec.Name))
				return
			}
		}
	}
	id := s.addPipelineLocked(spec)
	writeJSON(w, map[string]any{"pipeline_id": id})
}

func (s *Server) pipelineOr404(w http.ResponseWriter, r *http.Request) *api.Pipeline {
	id := chi.URLParam(r, "id")
	p, ok := s.pipelines[id]
	if !ok {
		writeError(w, http.StatusNotFound, api.CodeResourceDoesNotExist, fmt.Sprintf("Pipeline %s does not exist.", id))
		return nil
	}
	return p
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.pipelineOr404(w, r); p != nil {
		writeJSON(w, p)
	}
}

func (s *Server) handleEditPipeline(w http.ResponseWriter, r *http.Request) {
	var spec api.PipelineSpec
	if err := decode(r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pipelineOr404(w, r)
	if p == nil {
		return
	}
	spec.ID = p.PipelineID
	p.Spec = spec
	p.Name = spec.Name
	writeJSON(w, map[string]any{})
}

func (s *Server) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pipelineOr404(w, r)
	if p == nil {
		return
	}
	delete(s.pipelines, p.PipelineID)
	delete(s.events, p.PipelineID)
	writeJSON(w, map[string]any{})
}

func (s *Server) handleStartUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullRefresh bool `json:"full_refresh"`
	}
	_ = decode(r, &body)
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pipelineOr404(w, r)
	if p == nil {
		return
	}
	updateID := s.startUpdateLocked(p, "API_CALL", body.FullRefresh)
	writeJSON(w, map[string]any{"update_id": updateID})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pipelineOr404(w, r)
	if p == nil {
		return
	}
	if upd, ok := p.LatestUpdate(); ok && p.State == "RUNNING" {
		s.appendUpdateStateLocked(p, upd.UpdateID, "STOPPING")
		s.appendUpdateStateLocked(p, upd.UpdateID, "CANCELED")
	}
	p.State = "IDLE"
	writeJSON(w, map[string]any{})
}

type cursor struct {
	since  time.Time
	offset int
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pipelineOr404(w, r)
	if p == nil {
		return
	}

	c := cursor{}
	if tok := q.Get("page_token"); tok != "" {
		parsed, err := parseToken(tok)
		if err != nil {
			writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, "bad page token")
			return
		}
		c = parsed
	} else if f := q.Get("filter"); f != "" {
		start := strings.Index(f, "'")
		if start < 0 || !strings.HasSuffix(f, "'") {
			writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, "bad filter")
			return
		}
		c.since = events.ParseTimestamp(f[start+1 : len(f)-1])
	}

	var matching []storedEvent
	for _, ev := range s.events[p.PipelineID] {
		if !ev.ts.Before(c.since) {
			matching = append(matching, ev)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool { return matching[i].ts.Before(matching[j].ts) })
	if q.Get("order_by") == "timestamp desc" {
		for i, j := 0, len(matching)-1; i < j; i, j = i+1, j-1 {
			matching[i], matching[j] = matching[j], matching[i]
		}
	}

	limit := len(matching)
	if n, err := strconv.Atoi(q.Get("max_results")); err == nil && n > 0 && n < limit {
		limit = n
	}
	if s.PageSize > 0 && s.PageSize < limit {
		limit = s.PageSize
	}
	end := c.offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	start := c.offset
	if start > end {
		start = end
	}

	resp := map[string]any{}
	page := matching[start:end]
	if s.EventsAsJSONStrings {
		strs := make([]string, 0, len(page))
		for _, ev := range page {
			b, _ := json.Marshal(ev.raw)
			strs = append(strs, string(b))
		}
		resp["events_json"] = strs
	} else {
		objs := make([]map[string]any, 0, len(page))
		for _, ev := range page {
			objs = append(objs, ev.raw)
		}
		resp["events"] = objs
	}
	if end < len(matching) {
		resp["next_page_token"] = formatToken(cursor{since: c.since, offset: end})
	}
	if start > 0 {
		resp["prev_page_token"] = formatToken(cursor{since: c.since, offset: start - limit})
	}
	writeJSON(w, resp)
}

func formatToken(c cursor) string {
	if c.offset < 0 {
		c.offset = 0
	}
	since := ""
	if !c.since.IsZero() {
		since = c.since.Format(time.RFC3339Nano)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%s|%d", since, c.offset)))
}

func parseToken(tok string) (cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return cursor{}, err
	}
	parts := strings.SplitN(string(b), "|", 2)
	if len(parts) != 2 {
		return cursor{}, errors.New("malformed page token")
	}
	off, err := strconv.Atoi(parts[1])
	if err != nil {
		return cursor{}, err
	}
	c := cursor{offset: off}
	if parts[0] != "" {
		c.since, err = time.Parse(time.RFC3339Nano, parts[0])
		if err != nil {
			return cursor{}, err
		}
	}
	return c, nil
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var js api.JobSettings
	if err := decode(r, &js); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	s.jobs[strconv.Itoa(id)] = js
	writeJSON(w, map[string]any{"job_id": id})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobID json.Number `json:"job_id"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[body.JobID.String()]; !ok {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, fmt.Sprintf("Job %s does not exist.", body.JobID))
		return
	}
	delete(s.jobs, body.JobID.String())
	writeJSON(w, map[string]any{})
}

func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobID          json.RawMessage `json:"job_id"`
		PipelineParams struct {
			FullRefresh bool `json:"full_refresh"`
		} `json:"pipeline_params"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, err.Error())
		return
	}
	jobID := strings.Trim(string(body.JobID), `"`)
	s.mu.Lock()
	defer s.mu.Unlock()
	js, ok := s.jobs[jobID]
	if !ok {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, fmt.Sprintf("Job %s does not exist.", jobID))
		return
	}
	runID := int64(s.nextID())
	s.runs[runID] = append([]api.LifeCycleState(nil), s.RunScript...)
	for _, t := range js.Tasks {
		if t.PipelineTask == nil {
			continue
		}
		if p, ok := s.pipelines[t.PipelineTask.PipelineID]; ok {
			s.startUpdateLocked(p, "JOB_TASK", body.PipelineParams.FullRefresh || t.PipelineTask.FullRefresh)
		}
	}
	writeJSON(w, map[string]any{"run_id": runID, "number_in_job": runID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(r.URL.Query().Get("run_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, "run_id must be a number")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	script, ok := s.runs[runID]
	if !ok {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, fmt.Sprintf("Run %d does not exist.", runID))
		return
	}
	state := api.StateRunning
	if len(script) > 0 {
		state = script[0]
		if len(script) > 1 {
			s.runs[runID] = script[1:]
		}
	}
	writeJSON(w, map[string]any{"run_id": runID, "state": api.RunState{LifeCycleState: state, StateMessage: "scripted"}})
}

func (s *Server) handleMkdirs(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[body.Path] = true
	writeJSON(w, map[string]any{})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, err.Error())
		return
	}
	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.CodeInvalidParameterValue, "content is not base64")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[body.Path] = content
	writeJSON(w, map[string]any{})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"userName": s.UserName})
}

func (s *Server) handleListWarehouses(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([]api.Warehouse{}, s.warehouses...)
	writeJSON(w, map[string]any{"warehouses": list})
}

func (s *Server) handleGetWarehouse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, wh := range s.warehouses {
		if wh.ID == id {
			writeJSON(w, wh)
			return
		}
	}
	writeError(w, http.StatusNotFound, api.CodeResourceDoesNotExist, fmt.Sprintf("Warehouse %s does not exist.", id))
}
