package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"webtestflow/recorder/internal/config"
)

const (
	PurposeOperator = "operator"
	PurposeReview   = "review"
	issuer          = "step-recorder"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTicketUsed   = errors.New("review ticket already used")
)

type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Manager issues operator tokens and single-use review tickets.
type Manager struct {
	secret       []byte
	expire       time.Duration
	ticketTTL    time.Duration
	username     string
	passwordHash string

	mu       sync.Mutex
	redeemed map[string]time.Time
	now      func() time.Time
}

func NewManager(cfg config.JWTConfig) *Manager {
	ticketTTL := cfg.TicketTTL
	if ticketTTL <= 0 {
		ticketTTL = 10 * time.Minute
	}
	return &Manager{
		secret:       []byte(cfg.Secret),
		expire:       time.Duration(cfg.ExpireTime) * time.Second,
		ticketTTL:    ticketTTL,
		username:     cfg.Username,
		passwordHash: cfg.PasswordHash,
		redeemed:     make(map[string]time.Time),
		now:          time.Now,
	}
}

// Enabled reports whether operator endpoints require a token.
func (m *Manager) Enabled() bool {
	return m.passwordHash != ""
}

// CheckCredentials reports whether username and password are the operator's. An empty
// configured username accepts any name.
func (m *Manager) CheckCredentials(username, password string) bool {
	if m.passwordHash == "" {
		return false
	}
	nameOK := m.username == "" || subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(m.passwordHash), []byte(password)) == nil
	return nameOK && passOK
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (m *Manager) GenerateToken(username string) (string, error) {
	return m.sign(PurposeOperator, username, m.expire)
}

// ParseToken validates an operator token.
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeOperator {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueTicket signs a short-lived ticket naming the session to review.
func (m *Manager) IssueTicket(sessionID string) (string, error) {
	return m.sign(PurposeReview, sessionID, m.ticketTTL)
}

// RedeemTicket validates a review ticket and returns its session id. Each ticket is
// accepted once.
func (m *Manager) RedeemTicket(ticket string) (string, error) {
	claims, err := m.parse(ticket)
	if err != nil {
		return "", err
	}
	if claims.Purpose != PurposeReview || claims.ID == "" {
		return "", ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, expires := range m.redeemed {
		if now.After(expires) {
			delete(m.redeemed, id)
		}
	}
	if _, used := m.redeemed[claims.ID]; used {
		return "", ErrTicketUsed
	}
	m.redeemed[claims.ID] = claims.ExpiresAt.Time
	return claims.Subject, nil
}

func (m *Manager) sign(purpose, subject string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
