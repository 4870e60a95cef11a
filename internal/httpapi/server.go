package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/journal"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/model"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/utils"
)

// --- Local Status API ---
//
// Small diagnostics surface for on-site technicians: current control
// channel state, current screen, terminal availability and the recent
// transaction journal. Read-only.

type ConnectionInfo interface {
	State() model.ConnectionState
}

type FlowInfo interface {
	Screen() model.Screen
	TransactionID() string
}

type TerminalInfo interface {
	Available() bool
	ConnCreations() int64
}

type JournalReader interface {
	Recent(limit int) ([]journal.Entry, error)
}

type Server struct {
	conn ConnectionInfo
	flow FlowInfo
	term TerminalInfo
	jrnl JournalReader
}

func NewServer(conn ConnectionInfo, flow FlowInfo, term TerminalInfo, jrnl JournalReader) *Server {
	return &Server{conn: conn, flow: flow, term: term, jrnl: jrnl}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/journal", s.handleJournal).Methods(http.MethodGet)
	return r
}

type statusResponse struct {
	ConnectionState   string       `json:"connectionState"`
	Screen            model.Screen `json:"screen"`
	TransactionID     string       `json:"transactionId,omitempty"`
	TerminalAvailable bool         `json:"terminalAvailable"`
	ConnCreations     int64        `json:"terminalConnCreations"`
	LocalIP           string       `json:"localIp,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	localIP, _ := utils.DetectLocalIP()
	writeJSON(w, http.StatusOK, statusResponse{
		ConnectionState:   s.conn.State().String(),
		Screen:            s.flow.Screen(),
		TransactionID:     s.flow.TransactionID(),
		TerminalAvailable: s.term.Available(),
		ConnCreations:     s.term.ConnCreations(),
		LocalIP:           localIP,
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := s.jrnl.Recent(limit)
	if err != nil {
		log.Printf("[HTTP] Journal read failed: %v", err)
		http.Error(w, "journal unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Encode failed: %v", err)
	}
}
