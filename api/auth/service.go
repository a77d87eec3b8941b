package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"ConstructaSaas/internal/logger"
	"ConstructaSaas/internal/serviceiface"

	"github.com/google/uuid"
)

// UserSession is the in-memory record of one logged-in back-office user.
// CompanyID rides on the session so that handlers always receive the acting
// company explicitly instead of looking it up ambiently.
type UserSession struct {
	SessionID     string
	UserID        string
	CompanyID     string
	Name          string
	Email         string
	Role          string
	RoleCode      string
	LastLoginTime string
	LastSeen      time.Time
	ClientIP      string
	IsLoggedIn    bool
}

type AuthService struct {
	db             *sql.DB
	maxUsers       int
	sessionTimeout time.Duration
	users          map[string]*UserSession
	userPointers   map[string]*UserSession
	mu             sync.Mutex
	stopCh         chan struct{}
}

func NewAuthService(db *sql.DB, maxUsers, sessionTimeoutMinutes int) serviceiface.Service {
	if maxUsers <= 0 {
		maxUsers = 100
	}
	if sessionTimeoutMinutes <= 0 {
		sessionTimeoutMinutes = 480
	}
	return &AuthService{
		db:             db,
		maxUsers:       maxUsers,
		sessionTimeout: time.Duration(sessionTimeoutMinutes) * time.Minute,
		users:          make(map[string]*UserSession),
		userPointers:   make(map[string]*UserSession),
		stopCh:         make(chan struct{}),
	}
}

func (a *AuthService) Name() string { return "auth" }

func (a *AuthService) Start() error {
	go a.sessionCleaner()
	return nil
}

func (a *AuthService) Stop() error {
	close(a.stopCh)
	return nil
}

func (a *AuthService) Login(username, password, clientIP string) (*UserSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, session := range a.users {
		if session.Email == username && session.IsLoggedIn {
			session.LastLoginTime = time.Now().Format(time.RFC3339)
			session.LastSeen = time.Now()
			session.ClientIP = clientIP
			if logger.GlobalLogger != nil {
				logger.GlobalLogger.LogAudit(fmt.Sprintf("User %s re-logged in, returning existing session", username))
			}
			return session, nil
		}
	}

	if len(a.users) >= a.maxUsers {
		return nil, errors.New("maximum concurrent users reached")
	}

	var (
		userID, name, email, companyID string
		roleName, roleCode             sql.NullString
	)
	const query = `
    SELECT
        u.id AS user_id,
        u.employee_name,
        u.email,
        u.company_id,
        r.name AS role_name,
        r.rolecode
    FROM users u
    LEFT JOIN user_roles ur ON u.id = ur.user_id
    LEFT JOIN roles r ON ur.role_id = r.id
    WHERE u.email = $1 AND u.password = crypt($2, u.password) AND u.status = 'active'
    `
	err := a.db.QueryRow(query, username, password).Scan(
		&userID, &name, &email, &companyID, &roleName, &roleCode,
	)
	if err != nil {
		return nil, errors.New("invalid credentials or user not found")
	}

	session := &UserSession{
		SessionID:     uuid.New().String(),
		UserID:        userID,
		CompanyID:     companyID,
		Name:          name,
		Email:         email,
		Role:          roleName.String,
		RoleCode:      roleCode.String,
		LastLoginTime: time.Now().Format(time.RFC3339),
		LastSeen:      time.Now(),
		ClientIP:      clientIP,
		IsLoggedIn:    true,
	}
	a.users[session.SessionID] = session
	a.userPointers[userID] = session

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("User logged in: " + username)
	}
	return session, nil
}

func (a *AuthService) Logout(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, exists := a.users[sessionID]
	if !exists {
		return errors.New("session not found")
	}
	delete(a.users, sessionID)
	delete(a.userPointers, session.UserID)

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("User logged out: " + session.UserID)
	}
	return nil
}

// Touch refreshes a session's last-seen time. Middleware calls this on every
// validated request so active users are not expired mid-session.
func (a *AuthService) Touch(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.userPointers[userID]; ok {
		s.LastSeen = time.Now()
	}
}

// TouchSession refreshes the last-seen time through the global service.
func TouchSession(userID string) {
	if globalAuthService != nil {
		globalAuthService.Touch(userID)
	}
}

var globalAuthService *AuthService

// SetGlobalAuthService wires the running AuthService for package-level lookups.
func SetGlobalAuthService(svc *AuthService) {
	globalAuthService = svc
}

// GetActiveSessions returns active sessions from the global AuthService.
func GetActiveSessions() []*UserSession {
	if globalAuthService == nil {
		return nil
	}
	return globalAuthService.GetActiveSessions()
}

func (a *AuthService) GetActiveSessions() []*UserSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	sessions := make([]*UserSession, 0, len(a.users))
	for _, s := range a.users {
		sessions = append(sessions, s)
	}
	return sessions
}

func (a *AuthService) sessionCleaner() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.expireIdleSessions()
		}
	}
}

func (a *AuthService) expireIdleSessions() {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := time.Now().Add(-a.sessionTimeout)
	for id, s := range a.users {
		if s.LastSeen.Before(cutoff) {
			delete(a.users, id)
			delete(a.userPointers, s.UserID)
			if logger.GlobalLogger != nil {
				logger.GlobalLogger.LogAudit("Session expired for user: " + s.UserID)
			}
		}
	}
}
