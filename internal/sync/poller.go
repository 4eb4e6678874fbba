package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

// State represents the current state of the background mailbox sync.
type State int

const (
	Idle State = iota
	Running
	Error
)

// Status holds the sync state of the active account.
type Status struct {
	State    State
	LastSync time.Time
	Err      error
}

// ResultMsg is a tea.Msg sent when a background folder poll completes.
type ResultMsg struct {
	Folders []model.Folder
	Unread  int
	Err     error
	// AuthExpired is set when the backend rejected our credentials
	// mid-session; the UI prompts for reconfiguration.
	AuthExpired bool
}

// fetchTimeout is the maximum time allowed for a single poll.
const fetchTimeout = 30 * time.Second

// Poller periodically refreshes the active provider's folder counts so
// the UI can surface new mail without a manual refresh.
type Poller struct {
	interval time.Duration

	resultCh  chan ResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu       gosync.Mutex
	provider provider.Provider
	status   Status
	running  bool
}

// New creates a Poller with the given poll interval.
func New(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Poller{
		interval:  interval,
		resultCh:  make(chan ResultMsg, 16),
		triggerCh: make(chan struct{}, 16),
		stopCh:    make(chan struct{}),
	}
}

// SetProvider switches the provider being polled. Passing nil pauses
// polling until the next account switch.
func (p *Poller) SetProvider(prov provider.Provider) {
	p.mu.Lock()
	p.provider = prov
	p.mu.Unlock()
	p.Refresh()
}

// Start returns a tea.Cmd that starts the polling goroutine and
// subscribes to results. The returned command waits on the result
// channel and returns ResultMsg messages to the Bubble Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return p.waitForResult()
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate poll.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// Channel full; a poll is already queued
	}
}

// GetStatus returns the current sync status.
func (p *Poller) GetStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// loop runs the polling loop until Stop is called.
func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll()
		case <-p.triggerCh:
			p.poll()
		}
	}
}

// poll fetches the folder list once and publishes the result.
func (p *Poller) poll() {
	p.mu.Lock()
	prov := p.provider
	p.mu.Unlock()

	if prov == nil {
		return
	}

	p.setStatus(Running, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	folders, err := prov.Folders(ctx)
	if err != nil {
		p.setStatus(Error, err)
		p.sendResult(ResultMsg{
			Err:         err,
			AuthExpired: provider.IsConnectError(err),
		})
		return
	}

	unread := 0
	for _, f := range folders {
		if f.Name == model.DefaultFolder {
			unread = f.UnreadCount
		}
	}

	p.setStatus(Idle, nil)
	p.sendResult(ResultMsg{Folders: folders, Unread: unread})
}

// setStatus updates the sync status.
func (p *Poller) setStatus(state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Err = err
	if state == Idle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a ResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg ResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next poll
// result. Call it after processing a ResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
