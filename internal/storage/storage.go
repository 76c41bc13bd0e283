package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuygur/llm-council/internal/council"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a conversation id does not exist.
var ErrNotFound = errors.New("storage: conversation not found")

// Message is one stored conversation turn. User turns carry Content;
// assistant turns carry the full council output for that round.
type Message struct {
	Role     string                   `json:"role"`
	Content  string                   `json:"content,omitempty"`
	Stage1   []council.ModelAnswer    `json:"stage1,omitempty"`
	Stage2   []council.RankingVerdict `json:"stage2,omitempty"`
	Stage3   *council.ChairmanResult  `json:"stage3,omitempty"`
	Metadata *council.RunMetadata     `json:"metadata,omitempty"`
}

// Conversation is the full persisted record.
type Conversation struct {
	ID            string            `json:"id"`
	CreatedAt     string            `json:"created_at"`
	Title         string            `json:"title"`
	Messages      []Message         `json:"messages"`
	CouncilModels []string          `json:"council_models,omitempty"`
	ChairmanModel string            `json:"chairman_model,omitempty"`
	Personas      map[string]string `json:"model_personas,omitempty"`
	Mode          string            `json:"mode,omitempty"`
}

// Metadata is the list-view projection of a conversation.
type Metadata struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
}

// Options configures a new conversation.
type Options struct {
	CouncilModels []string
	ChairmanModel string
	Personas      map[string]string
	Mode          string
}

// Store persists conversations as one JSON file each under dir.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) (string, error) {
	// ids are uuids; reject anything that could escape the data dir
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Create initializes a new conversation with a fresh uuid and default title.
func (s *Store) Create(opts Options) (*Conversation, error) {
	conv := &Conversation{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Title:         "New Conversation",
		Messages:      []Message{},
		CouncilModels: opts.CouncilModels,
		ChairmanModel: opts.ChairmanModel,
		Personas:      opts.Personas,
		Mode:          opts.Mode,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get loads a conversation by id.
func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// List returns metadata for all conversations, newest first.
func (s *Store) List() ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	var metas []Metadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		conv, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue // skip unreadable files rather than failing the listing
		}
		metas = append(metas, Metadata{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].CreatedAt > metas[j].CreatedAt })
	return metas, nil
}

// Delete removes a conversation. Returns ErrNotFound if it did not exist.
func (s *Store) Delete(id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// AppendUserMessage adds a user turn to the conversation.
func (s *Store) AppendUserMessage(id, content string) error {
	return s.update(id, func(conv *Conversation) {
		conv.Messages = append(conv.Messages, Message{Role: "user", Content: content})
	})
}

// AppendAssistantMessage adds a full council round to the conversation.
func (s *Store) AppendAssistantMessage(id string, result *council.RunResult) error {
	return s.update(id, func(conv *Conversation) {
		conv.Messages = append(conv.Messages, Message{
			Role:     "assistant",
			Stage1:   result.Answers,
			Stage2:   result.Verdicts,
			Stage3:   &result.Chairman,
			Metadata: &result.Metadata,
		})
	})
}

// SetTitle replaces the conversation title.
func (s *Store) SetTitle(id, title string) error {
	return s.update(id, func(conv *Conversation) { conv.Title = title })
}

func (s *Store) update(id string, mutate func(*Conversation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.read(id)
	if err != nil {
		return err
	}
	mutate(conv)
	return s.write(conv)
}

func (s *Store) read(id string) (*Conversation, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &conv, nil
}

func (s *Store) write(conv *Conversation) error {
	p, err := s.path(conv.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}
