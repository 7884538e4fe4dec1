package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/stemsync/karaoke/internal/model"
)

const (
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

// Client is one websocket subscriber of a job.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte

	// pong is never closed; the writer drains it.
	pong chan struct{}
}

func newClient(jobID string, conn *websocket.Conn) *Client {
	return &Client{
		JobID: jobID,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
		pong:  make(chan struct{}, 1),
	}
}

// requestPong asks the writer to answer a ping. Pending requests coalesce.
func (c *Client) requestPong() {
	select {
	case c.pong <- struct{}{}:
	default:
	}
}

// Hub fans job events out to the websocket clients subscribed to each job.
type Hub struct {
	subscribers map[string]map[*Client]struct{}
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	events     chan jobFrame

	// quit is closed when Run returns; later calls become no-ops.
	quit chan struct{}

	log *slog.Logger
}

type jobFrame struct {
	jobID string
	data  []byte
}

// NewHub creates a Hub. Call Run to start delivering events.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		events:      make(chan jobFrame, sendBuffer),
		quit:        make(chan struct{}),
		log:         log,
	}
}

// Run delivers events until done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	defer close(h.quit)
	for {
		select {
		case <-done:
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case f := <-h.events:
			h.deliver(f)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[c.JobID]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.subscribers[c.JobID] = subs
	}
	subs[c] = struct{}{}
	h.log.Debug("websocket client registered", slog.String("job_id", c.JobID))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[c.JobID][c]; !ok {
		return
	}
	h.evict(c)
	h.log.Debug("websocket client unregistered", slog.String("job_id", c.JobID))
}

// deliver hands f to every subscriber of its job, evicting clients whose
// buffer is full.
func (h *Hub) deliver(f jobFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subscribers[f.jobID] {
		select {
		case c.Send <- f.data:
		default:
			h.log.Warn("dropping slow websocket client", slog.String("job_id", f.jobID))
			h.evict(c)
		}
	}
}

// evict closes c.Send and forgets c. Callers hold h.mu.
func (h *Hub) evict(c *Client) {
	close(c.Send)
	subs := h.subscribers[c.JobID]
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.subscribers, c.JobID)
	}
}

// Subscribers returns the number of clients listening for jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[jobID])
}

// Register subscribes c to its job.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

// Unregister drops c and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// BroadcastProgress pushes a progress event for jobID.
func (h *Hub) BroadcastProgress(jobID string, progress int, status model.JobStatus, step string) {
	h.publish(model.JobEvent{
		Event: model.EventProgress,
		StatusResponse: model.StatusResponse{
			JobID:    jobID,
			Status:   status,
			Step:     step,
			Progress: progress,
		},
	})
}

// BroadcastComplete pushes the finished media of jobID.
func (h *Hub) BroadcastComplete(jobID string, result *model.MediaURLs) {
	h.publish(model.JobEvent{
		Event: model.EventComplete,
		StatusResponse: model.StatusResponse{
			JobID:    jobID,
			Status:   model.JobStatusComplete,
			Progress: 100,
			Data:     result,
		},
	})
}

// BroadcastError pushes the failure of jobID. message is the text a client
// shows; code classifies it.
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.publish(model.JobEvent{
		Event: model.EventError,
		StatusResponse: model.StatusResponse{
			JobID:  jobID,
			Status: model.JobStatusError,
			Error:  message,
		},
		Code: code,
	})
}

func (h *Hub) publish(ev model.JobEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to marshal job event", slog.String("job_id", ev.JobID), slog.Any("error", err))
		return
	}

	select {
	case h.events <- jobFrame{jobID: ev.JobID, data: data}:
	case <-h.quit:
	}
}

// HandleConnection serves one websocket subscriber of jobID until the peer
// goes away.
func (h *Hub) HandleConnection(conn *websocket.Conn, jobID string) {
	c := newClient(jobID, conn)

	h.Register(c)
	defer h.Unregister(c)

	stop := make(chan struct{})
	defer close(stop)
	go h.writeLoop(c, stop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", slog.String("job_id", jobID), slog.Any("error", err))
			}
			return
		}
		h.handleFrame(c, data)
	}
}

// handleFrame reacts to a frame sent by the client. Only pings are
// meaningful; anything else is ignored.
func (h *Hub) handleFrame(c *Client, data []byte) {
	var frame model.ControlFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	if frame.Event == model.EventPing {
		c.requestPong()
	}
}

// writeLoop is the only writer on c.Conn.
func (h *Hub) writeLoop(c *Client, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	pong, _ := json.Marshal(model.ControlFrame{Event: model.EventPong})
	for {
		select {
		case <-stop:
			return

		case data, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.pong:
			if err := c.Conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
