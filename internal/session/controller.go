// Package session owns the per-user document, submission and displayed result.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docscope/internal/analysis"
	"github.com/dgallion1/docscope/internal/document"
	"github.com/dgallion1/docscope/internal/gate"
	"github.com/dgallion1/docscope/internal/progress"
	"github.com/dgallion1/docscope/internal/render"
)

// Phase is the controller state shown to the user.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseReady     Phase = "ready"
	PhaseAnalyzing Phase = "analyzing"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

var (
	ErrNoDocument = errors.New("no document selected")
	ErrNoResult   = errors.New("no result to report")
)

// Submitter sends a document for analysis.
type Submitter interface {
	Submit(ctx context.Context, doc *document.Document) analysis.Outcome
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Gate     *gate.Gate
	Analyzer Submitter
	Progress *progress.Simulator
	Renderer *render.Renderer

	// OnStep, if set, is called for every progress step of the current
	// submission, outside the controller lock.
	OnStep func(progress.Step)
}

// Controller handles file selection, submission and clearing for one session.
// It exclusively owns the current document and the displayed result.
type Controller struct {
	ID string

	deps Deps
	log  *slog.Logger
	wg   sync.WaitGroup

	mu         sync.Mutex
	doc        *document.Document
	info       *document.Info
	busy       bool
	generation uint64
	cancel     context.CancelFunc
	submission string
	phase      Phase
	step       progress.Step
	result     *analysis.Result
	path       analysis.DecodePath
	sections   []render.Section
	failure    *analysis.Error
	updatedAt  time.Time
}

func NewController(id string, deps Deps, log *slog.Logger) *Controller {
	return &Controller{
		ID:        id,
		deps:      deps,
		log:       log.With("session_id", id),
		phase:     PhaseIdle,
		updatedAt: time.Now(),
	}
}

// OnFileSelected validates the candidate and, if admitted, makes it the
// current document. Any in-flight submission is canceled and the displayed
// result is cleared. A rejected candidate leaves the current state untouched.
func (c *Controller) OnFileSelected(cand gate.Candidate) (document.Info, error) {
	doc, err := c.deps.Gate.Validate(cand)
	if err != nil {
		c.log.Info("file rejected", "file", cand.Name, "size", cand.Size, "media_type", cand.MediaType, "error", err)
		return document.Info{}, err
	}
	info := doc.Info()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortLocked()
	c.doc, c.info = doc, &info
	c.phase = PhaseReady
	c.clearOutcomeLocked()
	c.log.Info("file selected", "file", info.Name, "size", info.Size, "pages", info.Pages)
	return info, nil
}

// OnClear drops the current document and result, canceling any submission.
func (c *Controller) OnClear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortLocked()
	c.doc, c.info = nil, nil
	c.phase = PhaseIdle
	c.clearOutcomeLocked()
}

// Start submits the current document in the background. ctx bounds the
// submission; it is not tied to the caller's request.
func (c *Controller) Start(ctx context.Context) error {
	a, err := c.begin(ctx)
	if err != nil {
		return err
	}
	go c.run(a)
	return nil
}

// OnSubmit submits the current document and waits for the outcome. The
// returned outcome may already be superseded by a later file selection, in
// which case it is not displayed.
func (c *Controller) OnSubmit(ctx context.Context) (analysis.Outcome, error) {
	a, err := c.begin(ctx)
	if err != nil {
		return analysis.Outcome{}, err
	}
	return c.run(a), nil
}

type attempt struct {
	ctx context.Context
	gen uint64
	id  string
	doc *document.Document
}

func (c *Controller) begin(ctx context.Context) (attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return attempt{}, ErrNoDocument
	}
	c.abortLocked()
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.busy = true
	c.submission = uuid.NewString()
	c.phase = PhaseAnalyzing
	c.clearOutcomeLocked()
	c.wg.Add(1)
	return attempt{ctx: runCtx, gen: c.generation, id: c.submission, doc: c.doc}, nil
}

// run drives one submission: the request and the progress sequence run
// concurrently and the request finishing stops the progress sequence.
func (c *Controller) run(a attempt) (out analysis.Outcome) {
	log := c.log.With("submission_id", a.id, "file", a.doc.Name)
	defer c.wg.Done()
	defer c.release(a.gen)
	defer func() {
		if p := recover(); p != nil {
			log.Error("submission panicked", "panic", p)
			out = analysis.Failure(analysis.NewError(analysis.KindInternal).Wrap(fmt.Errorf("panic: %v", p)))
			c.commit(a.gen, out, nil)
		}
	}()

	progressCtx, stopProgress := context.WithCancel(a.ctx)
	defer stopProgress()

	var g errgroup.Group
	g.Go(func() error {
		defer stopProgress()
		out = c.submit(a.ctx, a.doc)
		return nil
	})
	g.Go(func() error {
		err := c.deps.Progress.Run(progressCtx, func(s progress.Step) { c.setStep(a.gen, s) })
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		log.Warn("progress stopped", "error", err)
	}

	if out.Err == nil && out.Result == nil {
		out = analysis.Failure(analysis.NewError(analysis.KindEmptyResult))
	}

	var sections []render.Section
	if out.OK() {
		sections = c.deps.Renderer.Render(out.Result)
	}
	if !c.commit(a.gen, out, sections) {
		log.Info("discarding superseded outcome", "ok", out.OK())
		return out
	}
	if out.OK() {
		log.Info("analysis displayed", "decode_path", out.Path, "duration_ms", out.Duration.Milliseconds())
	} else {
		log.Warn("analysis failed", "kind", out.Err.Kind, "message", out.Err.UserMessage())
	}
	return out
}

func (c *Controller) submit(ctx context.Context, doc *document.Document) (out analysis.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			c.log.Error("submitter panicked", "panic", p)
			out = analysis.Failure(analysis.NewError(analysis.KindInternal).Wrap(fmt.Errorf("submit panicked: %v", p)))
		}
	}()
	return c.deps.Analyzer.Submit(ctx, doc)
}

func (c *Controller) setStep(gen uint64, s progress.Step) {
	c.mu.Lock()
	current := gen == c.generation
	if current {
		c.step = s
		c.updatedAt = time.Now()
	}
	c.mu.Unlock()
	if current && c.deps.OnStep != nil {
		c.deps.OnStep(s)
	}
}

// commit stores the outcome if gen is still the current submission.
func (c *Controller) commit(gen uint64, out analysis.Outcome, sections []render.Section) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.updatedAt = time.Now()
	c.path = out.Path
	if out.OK() {
		c.phase = PhaseCompleted
		c.result, c.sections, c.failure = out.Result, sections, nil
		return true
	}
	c.phase = PhaseFailed
	c.result, c.sections, c.failure = nil, nil, out.Err
	return true
}

// release clears the busy flag unless a newer submission has taken over.
func (c *Controller) release(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.busy = false
	if c.phase == PhaseAnalyzing {
		c.phase = PhaseReady
	}
}

// abortLocked cancels the in-flight submission, if any, and invalidates
// its outcome.
func (c *Controller) abortLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.log.Info("submission canceled", "submission_id", c.submission)
	}
	c.generation++
	c.busy = false
}

func (c *Controller) clearOutcomeLocked() {
	c.step = progress.Step{}
	c.result, c.sections, c.failure = nil, nil, nil
	c.path = analysis.PathNone
	c.updatedAt = time.Now()
}

// ErrorView is the user-facing part of a classified failure.
type ErrorView struct {
	Kind    analysis.Kind `json:"kind"`
	Message string        `json:"message"`
}

// Snapshot is a read-only, JSON-safe copy of controller state.
type Snapshot struct {
	SessionID      string              `json:"session_id"`
	Phase          Phase               `json:"phase"`
	Busy           bool                `json:"busy"`
	Document       *document.Info      `json:"document,omitempty"`
	SubmissionID   string              `json:"submission_id,omitempty"`
	Progress       progress.Step       `json:"progress"`
	DecodePath     analysis.DecodePath `json:"decode_path,omitempty"`
	ProcessingTime string              `json:"processing_time,omitempty"`
	Error          *ErrorView          `json:"error,omitempty"`
	Sections       []render.Section    `json:"sections"`
	UpdatedAt      time.Time           `json:"updated_at"`

	// Upload policy, for client-side pre-checks. The gate stays authoritative.
	AcceptedType   string `json:"accepted_type,omitempty"`
	MaxUploadBytes int64  `json:"max_upload_bytes,omitempty"`
	MaxUploadLabel string `json:"max_upload_label,omitempty"`
}

// IdleSnapshot is the state of a session with nothing selected.
func IdleSnapshot(g *gate.Gate) Snapshot {
	snap := Snapshot{Phase: PhaseIdle, Sections: []render.Section{}}
	snap.setPolicy(g)
	return snap
}

func (s *Snapshot) setPolicy(g *gate.Gate) {
	if g == nil {
		return
	}
	s.AcceptedType = g.AcceptedType
	s.MaxUploadBytes = g.MaxBytes
	s.MaxUploadLabel = document.FormatSize(g.MaxBytes)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		SessionID:    c.ID,
		Phase:        c.phase,
		Busy:         c.busy,
		SubmissionID: c.submission,
		Progress:     c.step,
		DecodePath:   c.path,
		Sections:     append([]render.Section{}, c.sections...),
		UpdatedAt:    c.updatedAt,
	}
	if c.info != nil {
		info := *c.info
		snap.Document = &info
	}
	if c.result != nil {
		snap.ProcessingTime = c.result.ProcessingTime
	}
	if c.failure != nil {
		snap.Error = &ErrorView{Kind: c.failure.Kind, Message: c.failure.UserMessage()}
	}
	snap.setPolicy(c.deps.Gate)
	return snap
}

// Report returns the displayed result as Markdown.
func (c *Controller) Report() (string, error) {
	c.mu.Lock()
	sections := append([]render.Section{}, c.sections...)
	var title string
	if c.info != nil {
		title = c.info.Name
	}
	c.mu.Unlock()

	if len(sections) == 0 {
		return "", ErrNoResult
	}
	return c.deps.Renderer.Markdown(title, sections)
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// LastActive returns when the controller state last changed.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt
}

// Close cancels any in-flight submission and waits for it to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	c.abortLocked()
	c.mu.Unlock()
	c.wg.Wait()
}
