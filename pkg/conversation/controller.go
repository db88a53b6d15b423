// Package conversation owns the question/answer state of one embedded widget and drives the
// history-fetch, submit and reset calls against the AI backend.
package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/genai"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/visualization"
)

// subscriberBuffer is the number of snapshots a slow subscriber may fall behind before
// further snapshots are dropped for it
const subscriberBuffer = 16

// Controller is the single writer of a conversation's State. The lock is held only while
// state changes; backend calls run unlocked, so a late response still applies when it lands.
type Controller struct {
	client      genai.Client
	workspaceID string
	threadID    string
	logger      log.Logger

	mu          sync.Mutex
	state       State
	last        operation
	subscribers map[int]chan State
	nextID      int
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger replaces the default plugin logger
func WithLogger(logger log.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New creates a controller for one thread. The controller starts in the initial loading phase;
// call Mount to fetch the thread history.
func New(client genai.Client, workspaceID, threadID string, opts ...Option) *Controller {
	c := &Controller{
		client:      client,
		workspaceID: workspaceID,
		threadID:    threadID,
		logger:      log.DefaultLogger,
		state:       State{IsInitialLoading: true},
		subscribers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("workspace", workspaceID, "thread", threadID)
	c.state.Phase = phase(c.state, c.last)
	return c
}

// ThreadID returns the thread suffix scoping this conversation
func (c *Controller) ThreadID() string {
	return c.threadID
}

// State returns a snapshot of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetQuestion replaces the question text
func (c *Controller) SetQuestion(question string) {
	c.update(func(s *State) {
		s.Question = question
	})
}

// Mount loads the most recent visualization of the thread. Missing history is not an error;
// a failed call sets the initial error and is returned.
func (c *Controller) Mount(ctx context.Context) error {
	c.update(func(s *State) {
		s.IsInitialLoading = true
		s.InitialError = ""
	})

	resp, err := c.client.ChatHistory(ctx, c.workspaceID, genai.ChatHistoryRequest{ThreadIDSuffix: c.threadID})
	if err != nil {
		c.logger.Error("Failed to load previous visualizations", "error", err)
		c.update(func(s *State) {
			s.InitialError = MsgInitialLoadFailed
			s.IsInitialLoading = false
		})
		return err
	}

	var vis *visualization.Description
	if resp.OK() {
		vis = resp.Data.LastVisualization()
	}

	c.update(func(s *State) {
		if vis != nil {
			s.Visualization = vis
		}
		s.IsInitialLoading = false
	})
	return nil
}

// Submit sends the current question. Blank questions are ignored. A non-200 answer or one
// without visualizations clears the result and sets the generic error; a failed call sets the
// fault message and is returned.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	question := c.state.Question
	if strings.TrimSpace(question) == "" {
		c.mu.Unlock()
		return nil
	}
	c.last = opSubmit
	c.state.IsLoading = true
	c.state.Error = ""
	c.publishLocked()
	c.mu.Unlock()

	resp, err := c.client.Chat(ctx, c.workspaceID, genai.ChatRequest{
		Question:       question,
		ThreadIDSuffix: c.threadID,
	})
	if err != nil {
		c.logger.Error("Failed to generate visualization", "error", err)
		c.update(func(s *State) {
			s.Error = MsgGenerateFault
			s.IsLoading = false
		})
		return err
	}

	var vis *visualization.Description
	if resp.OK() {
		vis = resp.Data.CreatedVisualizations.First()
	}

	c.update(func(s *State) {
		if vis == nil {
			s.Error = MsgGenerateFailed
		}
		s.Visualization = vis
		s.Question = ""
		s.IsLoading = false
	})

	if vis == nil {
		c.logger.Warn("No visualization generated", "status", resp.Status)
	}
	return nil
}

// Reset clears the conversation locally, then asks the backend to drop the thread history.
// It does nothing while another call is in flight. A failed backend call sets the reset error
// and is returned; the local state stays cleared.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.state.IsLoading || c.state.IsInitialLoading {
		c.mu.Unlock()
		return nil
	}
	c.last = opReset
	c.state.IsLoading = true
	c.state.Error = ""
	c.state.Question = ""
	c.state.Visualization = nil
	c.state.InitialError = ""
	c.publishLocked()
	c.mu.Unlock()

	_, err := c.client.ChatHistory(ctx, c.workspaceID, genai.ChatHistoryRequest{
		ThreadIDSuffix: c.threadID,
		Reset:          true,
	})
	if err != nil {
		c.logger.Error("Failed to reset visualization", "error", err)
	}

	c.update(func(s *State) {
		if err != nil {
			s.Error = MsgResetFailed
		}
		s.IsLoading = false
	})
	return err
}

// Subscribe returns a channel receiving a snapshot after every state change and a func that
// ends the subscription and closes the channel.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan State, subscriberBuffer)
	c.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers, id)
			close(ch)
		})
	}
}

func (c *Controller) update(fn func(s *State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.publishLocked()
}

// publishLocked must be called with mu held
func (c *Controller) publishLocked() {
	c.state.Phase = phase(c.state, c.last)
	for _, ch := range c.subscribers {
		select {
		case ch <- c.state:
		default:
		}
	}
}
