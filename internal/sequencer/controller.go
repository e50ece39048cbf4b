package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gesture-sequencer/internal/platform/logger"
	"gesture-sequencer/internal/platform/metrics"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

const (
	// DefaultBlendWindow is the crossfade length between consecutive clips.
	DefaultBlendWindow = 250 * time.Millisecond

	// DefaultFadeOutWindow is the fade back to rest pose after the last clip.
	DefaultFadeOutWindow = 500 * time.Millisecond
)

// Player issues animation commands to the rendering subsystem. Calls must
// not block; they are made with the controller's lock held.
type Player interface {
	// Start plays clip from its beginning with nothing to blend from.
	Start(clip *Clip)
	// CrossfadeTo starts to from its beginning while from fades out over window.
	CrossfadeTo(from, to *Clip, window time.Duration)
	// FadeOut blends clip back to the rest pose over window.
	FadeOut(clip *Clip, window time.Duration)
}

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	BlendWindow   time.Duration
	FadeOutWindow time.Duration
	Clock         clock.Clock
	Reporter      StatusReporter
	Metrics       *metrics.Metrics
	Logger        *slog.Logger

	// MaxAvatars bounds how many controllers a Registry creates. Zero means
	// no limit. NewController ignores it.
	MaxAvatars int
}

func (o Options) withDefaults() Options {
	if o.BlendWindow <= 0 {
		o.BlendWindow = DefaultBlendWindow
	}
	if o.FadeOutWindow <= 0 {
		o.FadeOutWindow = DefaultFadeOutWindow
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Reporter == nil {
		o.Reporter = MultiReporter(nil)
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	return o
}

// Playback is a handle on one accepted sequence.
type Playback struct {
	ID       string
	Avatar   AvatarID
	Entries  []Entry
	Timeline Timeline

	done chan struct{}
	err  error
}

// Done is closed once the sequence has finished or been canceled.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Err returns nil for a sequence that finished, ErrSequenceCanceled for one
// that was canceled. It is only meaningful after Done is closed.
func (p *Playback) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the sequence ends or ctx is done.
func (p *Playback) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the mutable state of the sequence in flight.
type run struct {
	id       string
	total    int
	step     int
	queue    []Entry
	current  *Clip
	timer    *clock.Timer
	playback *Playback
	fading   bool
}

// Controller plays gesture sequences on one avatar. At most one sequence is
// in flight; it moves Idle → Resolving → Playing → Draining → Idle, and
// advancement is driven by each clip's declared duration on the clock, never
// by completion events from the player.
type Controller struct {
	avatar   AvatarID
	resolver Resolver
	player   Player
	opts     Options
	log      *slog.Logger

	mu    sync.Mutex
	state State
	run   *run
}

// NewController returns an idle controller for avatar.
func NewController(avatar AvatarID, resolver Resolver, player Player, opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		avatar:   avatar,
		resolver: resolver,
		player:   player,
		opts:     opts,
		log:      opts.Logger.With(slog.String("component", "controller"), slog.String("avatar_id", string(avatar))),
	}
}

// Avatar returns the avatar this controller drives.
func (c *Controller) Avatar() AvatarID {
	return c.avatar
}

// Play resolves gestures and, if at least one is playable, starts playing
// them. It returns once resolution is done; playback continues on the clock
// and the returned Playback reports completion. A request made while another
// sequence is active fails with ErrSequenceActive and leaves that sequence
// untouched.
func (c *Controller) Play(ctx context.Context, gestures []string) (*Playback, error) {
	ids := NormalizeSequence(gestures)

	c.mu.Lock()
	if c.state != StateIdle {
		active := c.run
		c.mu.Unlock()
		c.reportRejected(active)
		return nil, ErrSequenceActive
	}
	if len(ids) == 0 {
		c.mu.Unlock()
		return nil, ErrEmptySequence
	}
	r := &run{id: uuid.NewString(), total: len(ids)}
	c.state = StateResolving
	c.run = r
	c.mu.Unlock()

	c.log.Debug("resolving sequence", slog.String("sequence_id", r.id), slog.Int("gestures", len(ids)))

	entries := ResolveAll(ctx, c.resolver, ids)

	c.mu.Lock()
	defer c.mu.Unlock()

	if CountPlayable(entries) == 0 {
		c.state = StateIdle
		c.run = nil
		if c.opts.Metrics != nil {
			c.opts.Metrics.IncSequencesUnplayable()
		}
		c.reportLocked(r, Status{
			Kind:  StatusUnplayable,
			Total: r.total,
			Text:  "Could not find animations for: " + joinIDs(ids) + ".",
		})
		return nil, fmt.Errorf("%w: %s", ErrSequenceUnplayable, joinIDs(ids))
	}

	pb := &Playback{
		ID:       r.id,
		Avatar:   c.avatar,
		Entries:  entries,
		Timeline: BuildTimeline(entries, c.opts.BlendWindow, c.opts.FadeOutWindow),
		done:     make(chan struct{}),
	}
	r.queue = entries
	r.playback = pb
	c.state = StatePlaying

	if c.opts.Metrics != nil {
		c.opts.Metrics.IncSequencesStarted()
	}
	c.reportLocked(r, Status{
		Kind:  StatusStarted,
		Total: r.total,
		Text:  "Playing sequence: " + joinIDs(ids),
	})

	c.advanceLocked(r)
	return pb, nil
}

// advanceLocked pops the run queue up to and including the next playable
// entry, skipping unavailable ones without delay, and plays it. The timer
// for the following step is armed before the player is told to start so
// that both share one start instant.
func (c *Controller) advanceLocked(r *run) {
	for len(r.queue) > 0 {
		e := r.queue[0]
		r.queue = r.queue[1:]
		r.step = e.Step

		if !e.Playable() {
			c.skipLocked(r, e)
			continue
		}

		last := CountPlayable(r.queue) == 0
		if last {
			r.timer = c.opts.Clock.AfterFunc(fadeOutDelay(e.Clip.Duration, c.opts.FadeOutWindow), func() { c.fadeOut(r) })
		} else {
			r.timer = c.opts.Clock.AfterFunc(e.Clip.Duration, func() { c.advance(r) })
		}

		if r.current == nil {
			c.player.Start(e.Clip)
		} else {
			c.player.CrossfadeTo(r.current, e.Clip, c.opts.BlendWindow)
		}
		r.current = e.Clip

		c.reportLocked(r, Status{
			Kind:    StatusSigning,
			Step:    e.Step,
			Total:   r.total,
			Gesture: e.ID,
			Text:    fmt.Sprintf("Signing %s (%d/%d)", e.ID, e.Step, r.total),
		})

		if last {
			for _, rest := range r.queue {
				r.step = rest.Step
				c.skipLocked(r, rest)
			}
			r.queue = nil
			c.state = StateDraining
		}
		return
	}
}

func (c *Controller) skipLocked(r *run, e Entry) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.IncGesturesSkipped()
	}
	c.log.Warn("skipping unavailable gesture",
		slog.String("sequence_id", r.id),
		slog.String("gesture", string(e.ID)),
		slog.Int("step", e.Step),
		slog.Any("error", e.Err))
	c.reportLocked(r, Status{
		Kind:    StatusSkipped,
		Step:    e.Step,
		Total:   r.total,
		Gesture: e.ID,
		Text:    fmt.Sprintf("Skipping %s: animation not found", e.ID),
	})
}

// advance is the timer callback that moves to the next step.
func (c *Controller) advance(r *run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != r {
		return
	}
	r.timer = nil
	c.advanceLocked(r)
}

// fadeOut is the timer callback that returns the avatar to rest after the
// last clip.
func (c *Controller) fadeOut(r *run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != r {
		return
	}
	r.fading = true
	r.timer = c.opts.Clock.AfterFunc(c.opts.FadeOutWindow, func() { c.finish(r) })
	c.player.FadeOut(r.current, c.opts.FadeOutWindow)
}

// finish is the timer callback fired once the fade-out window has elapsed.
func (c *Controller) finish(r *run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != r {
		return
	}
	c.endLocked(r, nil)
	if c.opts.Metrics != nil {
		c.opts.Metrics.IncSequencesCompleted()
	}
	c.reportLocked(r, Status{Kind: StatusFinished, Step: r.total, Total: r.total, Text: "Sequence finished."})
}

// Cancel stops the sequence in flight: pending timers are dropped, the
// current clip fades back to rest and the controller returns to Idle. Only a
// playing or draining sequence can be canceled; otherwise ErrNotPlaying.
// Once the final fade-out has started the sequence is left to finish and
// Cancel returns ErrSequenceFinishing.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil || (c.state != StatePlaying && c.state != StateDraining) {
		return ErrNotPlaying
	}
	r := c.run
	if r.fading {
		return ErrSequenceFinishing
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.current != nil {
		c.player.FadeOut(r.current, c.opts.FadeOutWindow)
	}
	c.endLocked(r, ErrSequenceCanceled)
	if c.opts.Metrics != nil {
		c.opts.Metrics.IncSequencesCanceled()
	}
	c.reportLocked(r, Status{Kind: StatusCanceled, Step: r.step, Total: r.total, Text: "Sequence canceled."})
	return nil
}

func (c *Controller) endLocked(r *run, err error) {
	c.state = StateIdle
	c.run = nil
	r.playback.err = err
	close(r.playback.done)
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the controller's progress.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{Avatar: c.avatar, State: c.state}
	if r := c.run; r != nil {
		s.SequenceID = r.id
		s.Step = r.step
		s.Total = r.total
		if r.current != nil {
			s.Current = r.current.ID
		}
	}
	return s
}

func (c *Controller) reportRejected(active *run) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.IncRequestsRejected()
	}
	s := Status{Kind: StatusRejected, Text: "A sequence is already playing, please wait."}
	if active != nil {
		s.SequenceID = active.id
	}
	c.report(s)
}

func (c *Controller) reportLocked(r *run, s Status) {
	s.SequenceID = r.id
	c.report(s)
}

func (c *Controller) report(s Status) {
	s.Avatar = c.avatar
	s.At = c.opts.Clock.Now()
	c.opts.Reporter.Report(s)
}

func joinIDs(ids []GestureID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " ")
}
