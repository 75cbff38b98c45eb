package state

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"time"
)

// Pairing code properties: ambiguous characters (0/O, 1/I) are excluded so
// codes survive being read aloud or retyped from a phone screen.
const (
	pairingCharset   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	pairingCodeLen   = 6
	pairingTTL       = 300 * time.Second
	maxPerTerminal   = 3
	pairingsFileName = "pairings.json"
)

var (
	// ErrPairingExpired covers unknown, expired, and already-consumed codes.
	ErrPairingExpired = errors.New("pairing code expired or unknown")
	// ErrTooManyPairings is returned when a terminal session already has the
	// maximum number of outstanding codes.
	ErrTooManyPairings = errors.New("too many outstanding pairing codes")
)

// Pairing is a short-lived single-use token binding a chat to a terminal
// session and project.
type Pairing struct {
	Code         string    `json:"code"`
	TerminalName string    `json:"terminal_name"`
	ProjectName  string    `json:"project_name"`
	CreatedAt    time.Time `json:"created_at"`
}

func (p Pairing) expired(now time.Time) bool {
	return now.Sub(p.CreatedAt) > pairingTTL
}

// PairingStore persists outstanding pairing codes.
type PairingStore struct {
	mu       sync.Mutex
	pairings []Pairing
	filePath string
	now      func() time.Time
}

// NewPairingStore creates a store backed by pairings.json in dir, loading
// any outstanding codes from disk.
func NewPairingStore(dir string) *PairingStore {
	s := &PairingStore{
		filePath: filepath.Join(dir, pairingsFileName),
		now:      time.Now,
	}
	ReadJSON(s.filePath, &s.pairings)
	return s
}

// Create mints a new code for the given terminal session. At most three
// codes may be outstanding per terminal.
func (s *PairingStore) Create(terminalName, projectName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.dropExpired(now)

	outstanding := 0
	for _, p := range s.pairings {
		if p.TerminalName == terminalName {
			outstanding++
		}
	}
	if outstanding >= maxPerTerminal {
		return "", ErrTooManyPairings
	}

	code, err := s.mintCode()
	if err != nil {
		return "", err
	}

	s.pairings = append(s.pairings, Pairing{
		Code:         code,
		TerminalName: terminalName,
		ProjectName:  projectName,
		CreatedAt:    now,
	})
	if err := s.save(); err != nil {
		return "", err
	}
	return code, nil
}

// Consume looks up a code, deletes it, and returns its binding. Unknown and
// expired codes both return ErrPairingExpired; a consumed code can never be
// consumed again.
func (s *PairingStore) Consume(code string) (terminalName, projectName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.dropExpired(now)

	for i, p := range s.pairings {
		if p.Code == code {
			s.pairings = append(s.pairings[:i], s.pairings[i+1:]...)
			if saveErr := s.save(); saveErr != nil {
				// The in-memory consume already happened; a save failure
				// must not resurrect the code.
				return p.TerminalName, p.ProjectName, nil
			}
			return p.TerminalName, p.ProjectName, nil
		}
	}
	return "", "", ErrPairingExpired
}

// Outstanding returns the number of unexpired codes.
func (s *PairingStore) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(s.now())
	return len(s.pairings)
}

func (s *PairingStore) dropExpired(now time.Time) {
	kept := s.pairings[:0]
	for _, p := range s.pairings {
		if !p.expired(now) {
			kept = append(kept, p)
		}
	}
	s.pairings = kept
}

func (s *PairingStore) mintCode() (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, pairingCodeLen)
		for i := range buf {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pairingCharset))))
			if err != nil {
				return "", fmt.Errorf("generating pairing code: %w", err)
			}
			buf[i] = pairingCharset[n.Int64()]
		}
		code := string(buf)
		if !s.codeExists(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not mint a unique pairing code")
}

func (s *PairingStore) codeExists(code string) bool {
	for _, p := range s.pairings {
		if p.Code == code {
			return true
		}
	}
	return false
}

func (s *PairingStore) save() error {
	return WriteJSONAtomic(s.filePath, s.pairings)
}
