package identityregistry

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
)

// Server exposes the registry's HTTP API: register a node's long-term
// K1 public key, look one up, and list the full roster so a leader
// can bootstrap a round's participant list out of band.
type Server struct {
	storage *Storage
	cfg     *Config
}

func NewServer(storage *Storage, cfg *Config) *Server {
	return &Server{storage: storage, cfg: cfg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/identities/register", s.handleRegister)
	mux.HandleFunc("/identities/get", s.handleGet)
	mux.HandleFunc("/identities/list", s.handleList)
	return AuthMiddleware(s.cfg.AuthTokens, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "identity-registry"})
}

// POST /identities/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, RegisterResponse{Status: "error", Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.NodeID == "" || req.K1PubB64 == "" {
		writeJSON(w, http.StatusBadRequest, RegisterResponse{Status: "error", Error: "missing required fields: node_id, k1_pub_b64"})
		return
	}
	der, err := base64.StdEncoding.DecodeString(req.K1PubB64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, RegisterResponse{Status: "error", Error: "k1_pub_b64: " + err.Error()})
		return
	}
	if err := s.storage.Register(req.NodeID, der, req.Fingerprint); err != nil {
		if err == ErrFingerprintMismatch {
			writeJSON(w, http.StatusConflict, RegisterResponse{Status: "error", NodeID: req.NodeID, Error: err.Error()})
			return
		}
		log.Printf("[register] error: %v", err)
		writeJSON(w, http.StatusInternalServerError, RegisterResponse{Status: "error", Error: "failed to register"})
		return
	}
	log.Printf("[register] node=%s", req.NodeID)
	writeJSON(w, http.StatusOK, RegisterResponse{Status: "ok", NodeID: req.NodeID})
}

// GET /identities/get?node_id=<id>
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	nodeID := r.URL.Query().Get("node_id")
	if nodeID == "" {
		writeJSON(w, http.StatusBadRequest, GetIdentityResponse{Status: "error", Error: "missing ?node_id parameter"})
		return
	}
	rec, err := s.storage.Get(nodeID)
	if err != nil {
		log.Printf("[get] error: %v", err)
		writeJSON(w, http.StatusInternalServerError, GetIdentityResponse{Status: "error", Error: "failed to retrieve identity"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, GetIdentityResponse{Status: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, GetIdentityResponse{Status: "ok", Record: rec})
}

// GET /identities/list
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	records, err := s.storage.List()
	if err != nil {
		log.Printf("[list] error: %v", err)
		writeJSON(w, http.StatusInternalServerError, ListIdentitiesResponse{Status: "error"})
		return
	}
	if records == nil {
		records = []IdentityRecord{}
	}
	writeJSON(w, http.StatusOK, ListIdentitiesResponse{Status: "ok", Records: records})
}
