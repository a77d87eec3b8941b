package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"

	"ConstructaSaas/api/auth"
	"ConstructaSaas/internal/logger"
	"ConstructaSaas/pkg/loadbalancer"

	"github.com/gorilla/mux"
)

// Global reference to AuthService (set from the app manager).
var (
	authService     *auth.AuthService
	authServiceOnce sync.Once
)

// SetAuthService wires the AuthService once during startup.
func SetAuthService(svc *auth.AuthService) {
	authServiceOnce.Do(func() {
		authService = svc
	})
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}

// LoginHandler handles POST /auth/login.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if authService == nil {
		http.Error(w, "Auth service unavailable", http.StatusInternalServerError)
		return
	}
	session, err := authService.Login(req.Username, req.Password, extractClientIP(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// LogoutHandler handles POST /auth/logout.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if authService == nil {
		http.Error(w, "Auth service unavailable", http.StatusInternalServerError)
		return
	}
	if err := authService.Logout(req.SessionID); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	RespondWithResult(w, true, "")
}

// GetSessionsHandler lists active sessions, for the admin screen.
func GetSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if authService == nil {
		http.Error(w, "Auth service unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authService.GetActiveSessions())
}

// responseWriter wraps http.ResponseWriter to capture status code and body
// for the gateway's audit trail.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

func gatewayLog(msg string) {
	if logr := logger.GlobalLogger; logr != nil {
		logr.LogAudit(msg)
	} else {
		log.Println(msg)
	}
}

// createReverseProxy proxies to the balancer's next upstream, logging the
// caller, user and outcome of every request.
func createReverseProxy(lb *loadbalancer.LoadBalancer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)

		var userID string
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			if bodyBytes, err := io.ReadAll(r.Body); err == nil {
				var bodyMap map[string]interface{}
				if json.Unmarshal(bodyBytes, &bodyMap) == nil {
					if uid, ok := bodyMap["user_id"]; ok {
						userID, _ = uid.(string)
					}
				}
				r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			}
		}

		gatewayLog(fmt.Sprintf("[Gateway] Incoming request: %s %s from %s userId=%s", r.Method, r.URL.Path, clientIP, userID))

		target := lb.NextServer()
		u, err := url.Parse(target)
		if err != nil || target == "" {
			gatewayLog(fmt.Sprintf("[Gateway][ERROR] bad target URL %q for %s", target, r.URL.Path))
			http.Error(w, "Bad target URL", http.StatusInternalServerError)
			return
		}
		proxy := httputil.NewSingleHostReverseProxy(u)

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}
		proxy.ServeHTTP(rw, r)
		if rw.statusCode >= 400 {
			gatewayLog(fmt.Sprintf("[Gateway][ERROR] Proxied to %s for %s, status %d, error: %s", target, r.URL.Path, rw.statusCode, rw.body.String()))
		} else {
			gatewayLog(fmt.Sprintf("[Gateway] Proxied to %s for %s, status %d", target, r.URL.Path, rw.statusCode))
		}
	}
}

// StartGateway starts the API gateway. ledgerTargets are the upstream base
// URLs of the ledger service replicas.
func StartGateway(port string, ledgerTargets []string) {
	if port == "" {
		port = "8081"
	}
	if len(ledgerTargets) == 0 {
		ledgerTargets = []string{"http://localhost:6243"}
	}
	ledgerLB := loadbalancer.NewLoadBalancer(ledgerTargets)

	router := mux.NewRouter()
	router.HandleFunc("/auth/login", LoginHandler).Methods("POST")
	router.HandleFunc("/auth/logout", LogoutHandler).Methods("POST")
	router.HandleFunc("/get-sessions", GetSessionsHandler).Methods("GET")
	router.PathPrefix("/ledger/").Handler(createReverseProxy(ledgerLB))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("API Gateway is healthy"))
	}).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatewayLog("[Gateway] [Error] " + r.URL.Path + " from " + r.RemoteAddr + " (route not found)")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("404 - Route not found"))
	})

	log.Println("API Gateway started on :" + port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Gateway server failed: %v", err)
	}
}
