package relay

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/voicetyped/profilebot/pkg/directline"
)

// maxTranscript bounds the activities kept per conversation.
const maxTranscript = 1000

type conversation struct {
	id string

	mu         sync.Mutex
	activities []directline.Activity
	lastActive time.Time
}

// append stamps and stores an activity and returns it.
func (c *conversation) append(a directline.Activity, at time.Time) (directline.Activity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.activities) >= maxTranscript {
		return directline.Activity{}, fmt.Errorf("conversation %s transcript is full", c.id)
	}
	ts := at.UTC()
	a.ID = fmt.Sprintf("%s|%07d", c.id, len(c.activities))
	a.Timestamp = &ts
	a.Conversation = &directline.ConversationAccount{ID: c.id}
	c.activities = append(c.activities, a)
	c.lastActive = at
	return a, nil
}

// since returns the activities after watermark and the new watermark.
func (c *conversation) since(watermark int, at time.Time) ([]directline.Activity, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = at
	n := len(c.activities)
	if watermark > n {
		watermark = n
	}
	out := make([]directline.Activity, n-watermark)
	copy(out, c.activities[watermark:])
	return out, strconv.Itoa(n)
}

func (c *conversation) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// conversationStore holds the transcripts of live conversations.
type conversationStore struct {
	mu    sync.RWMutex
	convs map[string]*conversation
}

func newConversationStore() *conversationStore {
	return &conversationStore{convs: make(map[string]*conversation)}
}

// create registers id. It returns the existing conversation when id is known.
func (s *conversationStore) create(id string, at time.Time) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[id]; ok {
		return c
	}
	c := &conversation{id: id, lastActive: at}
	s.convs[id] = c
	return c
}

func (s *conversationStore) get(id string) (*conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	return c, ok
}

// reap removes conversations idle since before cutoff and returns their ids.
func (s *conversationStore) reap(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, c := range s.convs {
		if c.idleSince().Before(cutoff) {
			delete(s.convs, id)
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *conversationStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// parseWatermark accepts an empty string or a non-negative decimal index.
func parseWatermark(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid watermark %q", raw)
	}
	return n, nil
}
