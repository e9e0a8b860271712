package cart

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/models"
)

// sessionVersion is bumped whenever the serialized shape of Session changes.
const sessionVersion = 1

// Session is one shopper's cart. It is the only cart state; callers load it,
// mutate it and save it back through Service.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id,omitempty"`
	Lines     []models.CartLine `json:"lines"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewSession(id, userID string) *Session {
	return &Session{ID: id, UserID: userID, Lines: []models.CartLine{}}
}

func (s *Session) index(productID string, size models.Size) int {
	for i, l := range s.Lines {
		if l.ProductID == productID && l.Size == size {
			return i
		}
	}
	return -1
}

// Line returns the line for a product+size pair.
func (s *Session) Line(productID string, size models.Size) (models.CartLine, bool) {
	if i := s.index(productID, size); i >= 0 {
		return s.Lines[i], true
	}
	return models.CartLine{}, false
}

// Put replaces the line with the same product+size or appends it.
func (s *Session) Put(line models.CartLine) {
	if i := s.index(line.ProductID, line.Size); i >= 0 {
		s.Lines[i] = line
		return
	}
	s.Lines = append(s.Lines, line)
}

func (s *Session) Remove(productID string, size models.Size) bool {
	i := s.index(productID, size)
	if i < 0 {
		return false
	}
	s.Lines = append(s.Lines[:i], s.Lines[i+1:]...)
	return true
}

func (s *Session) Clear() {
	s.Lines = []models.CartLine{}
}

func (s *Session) Subtotal() int64 {
	return models.Subtotal(s.Lines)
}

func (s *Session) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

type envelope struct {
	Version int      `json:"v"`
	Session *Session `json:"session"`
}

// MarshalSession is the persistence format of a session.
func MarshalSession(s *Session) ([]byte, error) {
	return json.Marshal(envelope{Version: sessionVersion, Session: s})
}

func UnmarshalSession(data []byte) (*Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode cart session: %w", err)
	}
	if env.Version != sessionVersion {
		return nil, fmt.Errorf("unsupported cart session version %d", env.Version)
	}
	if env.Session == nil {
		return nil, fmt.Errorf("cart session payload is empty")
	}
	if env.Session.Lines == nil {
		env.Session.Lines = []models.CartLine{}
	}
	return env.Session, nil
}
