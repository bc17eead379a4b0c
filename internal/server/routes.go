package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Scraper configs
	mux.HandleFunc("/api/configs", s.handleConfigsRoute)                            // GET (list), POST (create)
	mux.HandleFunc("/api/configs/import", s.app.ConfigHandler.ImportConfigsHandler) // POST - bulk YAML import
	mux.HandleFunc("/api/configs/", s.handleConfigRoutes)                           // GET/PUT/DELETE /{id}, POST /{id}/trigger

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)  // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // GET /{id}, POST /{id}/cancel, GET /{id}/pages

	// API routes - Pages
	mux.HandleFunc("/api/pages/", s.handlePageRoutes) // GET /{id} and /{id}/html|markdown|preview

	// API routes - Webhooks
	mux.HandleFunc("/api/webhooks", s.handleWebhooksRoute)  // GET (list by config), POST (create)
	mux.HandleFunc("/api/webhooks/", s.handleWebhookRoutes) // GET/PUT/DELETE /{id}

	// API routes - System
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not found", http.StatusNotFound)
}

// handleConfigsRoute routes /api/configs requests (list and create)
func (s *Server) handleConfigsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.ConfigHandler.ListConfigsHandler(w, r)
	case "POST":
		s.app.ConfigHandler.CreateConfigHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleConfigRoutes routes /api/configs/{id} requests and subpaths
func (s *Server) handleConfigRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	// POST /api/configs/{id}/trigger
	if len(parts) == 4 && parts[3] == "trigger" {
		if r.Method == "POST" {
			s.app.ConfigHandler.TriggerJobHandler(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(parts) != 3 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case "GET":
		s.app.ConfigHandler.GetConfigHandler(w, r)
	case "PUT":
		s.app.ConfigHandler.UpdateConfigHandler(w, r)
	case "DELETE":
		s.app.ConfigHandler.DeleteConfigHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsRoute routes /api/jobs requests (list and create)
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.JobHandler.ListJobsHandler(w, r)
	case "POST":
		s.app.JobHandler.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes /api/jobs/{id} requests and subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	if len(parts) == 4 {
		switch parts[3] {
		case "cancel":
			// POST /api/jobs/{id}/cancel
			if r.Method == "POST" {
				s.app.JobHandler.CancelJobHandler(w, r)
				return
			}
		case "pages":
			// GET /api/jobs/{id}/pages
			if r.Method == "GET" {
				s.app.JobHandler.ListJobPagesHandler(w, r)
				return
			}
		default:
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(parts) != 3 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// GET /api/jobs/{id}
	if r.Method == "GET" {
		s.app.JobHandler.GetJobHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// handlePageRoutes routes /api/pages/{id} requests and artifact subpaths
func (s *Server) handlePageRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	if len(parts) == 4 {
		switch parts[3] {
		case "html":
			s.app.PageHandler.GetPageHTMLHandler(w, r)
		case "markdown":
			s.app.PageHandler.GetPageMarkdownHandler(w, r)
		case "preview":
			s.app.PageHandler.PreviewPageHandler(w, r)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
		return
	}

	if len(parts) != 3 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// GET /api/pages/{id}
	s.app.PageHandler.GetPageHandler(w, r)
}

// handleWebhooksRoute routes /api/webhooks requests (list and create)
func (s *Server) handleWebhooksRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.WebhookHandler.ListWebhooksHandler(w, r)
	case "POST":
		s.app.WebhookHandler.CreateWebhookHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWebhookRoutes routes /api/webhooks/{id} requests
func (s *Server) handleWebhookRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case "GET":
		s.app.WebhookHandler.GetWebhookHandler(w, r)
	case "PUT":
		s.app.WebhookHandler.UpdateWebhookHandler(w, r)
	case "DELETE":
		s.app.WebhookHandler.DeleteWebhookHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
