package relations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/links"
	"github.com/marcopeg/mondo-sub000/internal/merge"
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/parser"
	"github.com/marcopeg/mondo-sub000/internal/paths"
	"github.com/marcopeg/mondo-sub000/internal/template"
)

// State is a step of the pick-or-create flow.
type State int

const (
	Idle State = iota
	Searching
	Selecting
	Creating
	Linking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case Selecting:
		return "selecting"
	case Creating:
		return "creating"
	case Linking:
		return "linking"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is the outcome of a completed selection or creation.
type Result struct {
	Note            model.Note `json:"note"`
	Created         bool       `json:"created"`
	OpenAfterCreate bool       `json:"open_after_create"`
}

// Session runs one pick-or-create flow for a Plan:
//
//	Idle → Searching → (Selecting | Creating) → Linking → Idle
//
// Abandon may be called from another goroutine. Once abandoned, a session
// performs no further writes unless Linking has already begun.
type Session struct {
	plan  Plan
	store Store
	log   *zap.Logger

	// Now is the clock templates are rendered with.
	Now func() time.Time

	mu        sync.Mutex
	state     State
	abandoned bool
}

// NewSession starts an idle session. A nil logger discards output.
func NewSession(store Store, plan Plan, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		plan:  plan,
		store: store,
		log:   log.Named("relations"),
		Now:   time.Now,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Plan returns the plan the session was started with.
func (s *Session) Plan() Plan { return s.plan }

// Search narrows the candidates to those whose display title contains text,
// case-insensitively. Empty text returns every candidate.
func (s *Session) Search(text string) []model.Note {
	s.mu.Lock()
	if s.state == Idle && !s.abandoned {
		s.state = Searching
	}
	s.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return s.plan.Candidates
	}
	var out []model.Note
	for _, n := range s.plan.Candidates {
		if strings.Contains(strings.ToLower(n.Title()), needle) {
			out = append(out, n)
		}
	}
	return out
}

// Abandon cancels the flow. It has no effect once Linking has begun.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = true
	if s.state != Linking {
		s.state = Idle
	}
}

// Select links an existing note. The plan's attribute templates are merged
// into it; its type is never touched.
func (s *Session) Select(ctx context.Context, id string) (Result, error) {
	if err := s.begin(Selecting); err != nil {
		return Result{}, err
	}
	if id == s.plan.Host.ID {
		s.transition(Idle)
		return Result{}, ErrSelfLink
	}

	metadata, err := s.store.ReadMetadata(ctx, id)
	if err != nil {
		s.transition(Idle)
		return Result{}, fmt.Errorf("failed to read %s: %w", id, err)
	}
	note := model.New(id, metadata)

	if err := s.enterLinking(ctx); err != nil {
		return Result{}, err
	}
	defer s.transition(Idle)
	if err := s.link(ctx, note, true); err != nil {
		return Result{}, &LinkingError{Note: note, Err: err}
	}
	return Result{Note: note}, nil
}

// Create creates a new note and links it. The title is taken from the
// argument, then the recipe's title template, then "Untitled <label>".
//
// A *CreationError means nothing was written. A *LinkingError means the
// note exists but is not fully linked.
func (s *Session) Create(ctx context.Context, title string) (Result, error) {
	if err := s.begin(Creating); err != nil {
		return Result{}, err
	}

	tctx := template.Context{Host: s.plan.Host, Now: s.Now()}
	title = s.title(title, tctx)
	metadata := map[string]any{
		model.TypeKey: s.plan.TargetType,
		model.ShowKey: title,
	}
	merge.MergeAttributes(metadata, template.RenderAttributes(s.plan.Attributes, tctx))

	path := paths.NoteID(s.plan.Folder, title, model.DefaultExtension)
	content, err := parser.RenderNote(metadata, "# "+title+"\n")
	if err != nil {
		s.transition(Idle)
		return Result{}, &CreationError{Path: path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		s.transition(Idle)
		return Result{}, err
	}

	note, err := s.store.CreateNote(ctx, path, content)
	if err != nil {
		s.transition(Idle)
		return Result{}, &CreationError{Path: path, Err: err}
	}
	s.log.Debug("note created", zap.String("id", note.ID), zap.String("host", s.plan.Host.ID))

	if err := s.enterLinking(ctx); err != nil {
		return Result{}, &LinkingError{Note: note, Created: true, Err: err}
	}
	defer s.transition(Idle)
	if err := s.link(ctx, note, false); err != nil {
		return Result{}, &LinkingError{Note: note, Created: true, Err: err}
	}
	return Result{Note: note, Created: true, OpenAfterCreate: s.plan.OpenAfterCreate}, nil
}

// RetryLink re-runs Linking for the note a failed Select or Create left
// behind. Attribute templates are applied again only to a selected note;
// a created note already holds them.
func (s *Session) RetryLink(ctx context.Context, failed *LinkingError) (Result, error) {
	if failed == nil {
		return Result{}, errors.New("nothing to retry")
	}
	note := failed.Note
	s.mu.Lock()
	if s.abandoned {
		s.mu.Unlock()
		return Result{}, ErrAbandoned
	}
	if s.state != Idle {
		s.mu.Unlock()
		return Result{}, ErrBusy
	}
	s.state = Linking
	s.mu.Unlock()
	defer s.transition(Idle)

	if err := s.link(ctx, note, !failed.Created); err != nil {
		return Result{}, &LinkingError{Note: note, Created: failed.Created, Err: err}
	}
	return Result{Note: note, Created: failed.Created, OpenAfterCreate: failed.Created && s.plan.OpenAfterCreate}, nil
}

func (s *Session) title(given string, tctx template.Context) string {
	if t := strings.TrimSpace(given); t != "" {
		return t
	}
	if s.plan.Title != "" {
		if t := strings.TrimSpace(template.RenderTitle(s.plan.Title, tctx)); t != "" {
			return t
		}
	}
	label := s.plan.Label
	if label == "" {
		label = "note"
	}
	return "Untitled " + label
}

// link writes the host side and then the chosen note's side. Each is one
// atomic write; the pair is not.
func (s *Session) link(ctx context.Context, note model.Note, applyAttributes bool) error {
	target := links.Link(note.ID)
	if s.plan.Property != "" {
		if err := ctx.Err(); err != nil {
			return err
		}
		host, prop := s.plan.Host.ID, s.plan.Property
		err := s.store.WriteMetadataAtomic(ctx, host, func(m map[string]any) error {
			switch {
			case s.plan.Multiple:
				if !s.plan.canon.Refers(m[prop], host, note.ID) {
					merge.AddLink(m, prop, target)
				}
			case !s.plan.canon.RefersOnly(m[prop], host, note.ID):
				merge.SetLink(m, prop, target)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to link %s.%s: %w", s.plan.Host.ID, s.plan.Property, err)
		}
	}

	var attrs map[string]any
	if applyAttributes && len(s.plan.Attributes) > 0 {
		attrs = template.RenderAttributes(s.plan.Attributes, template.Context{Host: s.plan.Host, Now: s.Now()})
	}
	if len(attrs) == 0 && len(s.plan.LinkProperties) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	back := links.Link(s.plan.Host.ID)
	err := s.store.WriteMetadataAtomic(ctx, note.ID, func(m map[string]any) error {
		merge.MergeAttributes(m, attrs)
		for _, p := range s.plan.LinkProperties {
			if !s.plan.canon.Refers(m[p], note.ID, s.plan.Host.ID) {
				merge.AddLink(m, p, back)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to link back from %s: %w", note.ID, err)
	}
	return nil
}

func (s *Session) begin(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		return ErrAbandoned
	}
	if s.state != Idle && s.state != Searching {
		return ErrBusy
	}
	s.state = next
	return nil
}

// enterLinking is the last point the flow can be abandoned.
func (s *Session) enterLinking(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		s.state = Idle
		return ErrAbandoned
	}
	if err := ctx.Err(); err != nil {
		s.state = Idle
		return err
	}
	s.state = Linking
	return nil
}

func (s *Session) transition(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}
