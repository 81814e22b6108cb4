package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foomo/sitemap-mcp/reconcile"
	"github.com/foomo/sitemap-mcp/service"
)

const (
	EventConnected     = "connected"
	EventKeepalive     = "keepalive"
	EventCrawlStart    = "crawl_start"
	EventCrawlProgress = "crawl_progress"
	EventCrawlResult   = "crawl_result"
	EventCrawlError    = "crawl_error"
	EventCrawlComplete = "crawl_complete"
	EventSiteUpdated   = "site_updated"
)

var errClientGone = errors.New("client disconnected")

// SSEEvent represents an SSE event structure
type SSEEvent struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func newEvent(name string, data interface{}) SSEEvent {
	now := time.Now()
	return SSEEvent{
		ID:        fmt.Sprintf("%s_%d", name, now.UnixNano()),
		Event:     name,
		Data:      data,
		Timestamp: now,
	}
}

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID       string
	Writer   http.ResponseWriter
	Flusher  http.Flusher
	Done     chan struct{}
	LastSeen time.Time
	mu       sync.Mutex
	gone     bool
}

// close marks the client gone so no frame is written after its handler
// returned.
func (c *SSEClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gone {
		c.gone = true
		close(c.Done)
	}
}

// MCPSSEServer streams crawl progress and broadcasts site map updates to
// subscribed clients.
type MCPSSEServer struct {
	logger       *zap.Logger
	service      service.Service
	config       *SSEServerConfig
	clients      map[string]*SSEClient
	clientsMutex sync.RWMutex
	broadcast    chan SSEEvent
	done         chan struct{}
	closeOnce    sync.Once
}

// SSEServerConfig holds configuration for the SSE server
type SSEServerConfig struct {
	KeepaliveInterval time.Duration
	BufferSize        int
	ClientTimeout     time.Duration
}

// DefaultSSEServerConfig returns the default configuration for SSE server
func DefaultSSEServerConfig() *SSEServerConfig {
	return &SSEServerConfig{
		KeepaliveInterval: 30 * time.Second,
		BufferSize:        100,
		ClientTimeout:     60 * time.Second,
	}
}

// NewMCPSSEServer creates a new MCP SSE server
func NewMCPSSEServer(logger *zap.Logger, svc service.Service, config *SSEServerConfig) *MCPSSEServer {
	if config == nil {
		config = DefaultSSEServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sseServer := &MCPSSEServer{
		logger:    logger,
		service:   svc,
		config:    config,
		clients:   make(map[string]*SSEClient),
		broadcast: make(chan SSEEvent, config.BufferSize),
		done:      make(chan struct{}),
	}

	go sseServer.broadcastLoop()

	return sseServer
}

// Close stops the broadcast loop and disconnects every client.
func (s *MCPSSEServer) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	for id, client := range s.clients {
		client.close()
		delete(s.clients, id)
	}
}

func (s *MCPSSEServer) broadcastLoop() {
	for {
		var event SSEEvent
		select {
		case <-s.done:
			return
		case event = <-s.broadcast:
		}

		s.clientsMutex.RLock()
		clients := make([]*SSEClient, 0, len(s.clients))
		for _, client := range s.clients {
			clients = append(clients, client)
		}
		s.clientsMutex.RUnlock()

		for _, client := range clients {
			if err := sendEventToClient(client, event); err != nil {
				s.logger.Error("failed to send event to client", zap.String("clientID", client.ID), zap.Error(err))
				s.removeClient(client.ID)
			}
		}
	}
}

// sendEventToClient writes one SSE frame and flushes it.
func sendEventToClient(client *SSEClient, event SSEEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.gone {
		return errClientGone
	}
	if _, err := fmt.Fprintf(client.Writer, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Event, string(eventJSON)); err != nil {
		return err
	}
	client.Flusher.Flush()
	client.LastSeen = time.Now()
	return nil
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")
}

func (s *MCPSSEServer) addClient(w http.ResponseWriter) *SSEClient {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return nil
	}

	client := &SSEClient{
		ID:       uuid.NewString(),
		Writer:   w,
		Flusher:  flusher,
		Done:     make(chan struct{}),
		LastSeen: time.Now(),
	}

	connectEvent := newEvent(EventConnected, map[string]string{"clientID": client.ID, "message": "Connected to sitemap SSE server"})
	if err := sendEventToClient(client, connectEvent); err != nil {
		s.logger.Error("failed to send connection event", zap.String("clientID", client.ID), zap.Error(err))
		return nil
	}

	s.clientsMutex.Lock()
	s.clients[client.ID] = client
	s.clientsMutex.Unlock()

	s.logger.Info("SSE client connected", zap.String("clientID", client.ID))
	return client
}

func (s *MCPSSEServer) removeClient(clientID string) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	if client, exists := s.clients[clientID]; exists {
		client.close()
		delete(s.clients, clientID)
		s.logger.Info("SSE client disconnected", zap.String("clientID", clientID))
	}
}

// Broadcast queues event for every connected client. Events are dropped when
// the buffer is full.
func (s *MCPSSEServer) Broadcast(event SSEEvent) {
	select {
	case <-s.done:
	case s.broadcast <- event:
	default:
		s.logger.Warn("broadcast channel full, dropping event", zap.String("eventID", event.ID))
	}
}

// HandleSSE subscribes the caller to broadcast events until it disconnects.
func (s *MCPSSEServer) HandleSSE(w http.ResponseWriter, r *http.Request) {
	setSSEHeaders(w)

	client := s.addClient(w)
	if client == nil {
		return
	}

	ticker := time.NewTicker(s.config.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.removeClient(client.ID)
			return
		case <-client.Done:
			return
		case <-ticker.C:
			keepalive := newEvent(EventKeepalive, map[string]interface{}{"timestamp": time.Now()})
			if err := sendEventToClient(client, keepalive); err != nil {
				s.removeClient(client.ID)
				return
			}
		}
	}
}

// CrawlRequest is the body of HandleCrawlSSE.
type CrawlRequest = CrawlSiteRequest

// HandleCrawlSSE runs a crawl and streams its progress to the caller. On
// success every subscribed client receives a site_updated event.
func (s *MCPSSEServer) HandleCrawlSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request CrawlRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&request); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if request.Project == "" || request.URL == "" {
		http.Error(w, "project and url are required", http.StatusBadRequest)
		return
	}
	cfg := request.CrawlConfig
	if !cfg.IncludePosts {
		cfg.IncludePages = true
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	setSSEHeaders(w)
	client := &SSEClient{ID: uuid.NewString(), Writer: w, Flusher: flusher, Done: make(chan struct{})}

	send := func(event SSEEvent) {
		if err := sendEventToClient(client, event); err != nil {
			s.logger.Debug("crawl stream write failed", zap.String("clientID", client.ID), zap.Error(err))
		}
	}

	send(newEvent(EventCrawlStart, map[string]string{"project": request.Project, "url": cfg.BaseURL()}))

	pages, err := s.service.Crawl(r.Context(), request.Project, cfg, reconcile.WithProgress(func(p reconcile.Progress) {
		send(newEvent(EventCrawlProgress, p))
	}))
	if err != nil {
		send(newEvent(EventCrawlError, map[string]string{
			"error":   err.Error(),
			"message": service.UserMessage(err),
		}))
		return
	}

	send(newEvent(EventCrawlResult, map[string]interface{}{"project": request.Project, "count": len(pages)}))
	send(newEvent(EventCrawlComplete, map[string]string{"status": "completed"}))
	s.Broadcast(newEvent(EventSiteUpdated, map[string]interface{}{"project": request.Project, "count": len(pages)}))
}

// GetConnectedClients returns information about connected clients
func (s *MCPSSEServer) GetConnectedClients() []map[string]interface{} {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	clients := make([]map[string]interface{}, 0, len(s.clients))
	for _, client := range s.clients {
		client.mu.Lock()
		lastSeen := client.LastSeen
		client.mu.Unlock()
		clients = append(clients, map[string]interface{}{
			"id":        client.ID,
			"lastSeen":  lastSeen,
			"connected": time.Since(lastSeen) < s.config.ClientTimeout,
		})
	}
	return clients
}

// GetStats returns server statistics
func (s *MCPSSEServer) GetStats() map[string]interface{} {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	return map[string]interface{}{
		"connectedClients": len(s.clients),
		"bufferSize":       len(s.broadcast),
		"serverVersion":    Version,
	}
}
