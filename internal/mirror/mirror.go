// Package mirror holds the locally cached copy of a project: its files,
// title and chat log. The mirror is the one piece of shared mutable
// state in the client; it is written only by the reconcile, mutate and
// persist packages. Everything else reads it through the Reader
// interface.
package mirror

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrFileExists is returned when an add or rename would collide
	// with an existing file name.
	ErrFileExists = errors.New("file already exists")
	// ErrNoSuchFile is returned when an operation names a file the
	// mirror does not hold.
	ErrNoSuchFile = errors.New("no such file")
)

// File is a single project file. Names are case-sensitive, path-like
// and unique within a project.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Message is one chat log entry
type Message struct {
	ID       int    `json:"id"`
	Content  string `json:"content"`
	FromUser bool   `json:"fromUser"`
}

// Reader is the read-only view handed to presentation-level consumers.
// Holding a Reader grants no way to mutate the mirror.
type Reader interface {
	ID() string
	Title() string
	Files() []File
	File(name string) (File, bool)
	ActiveFile() string
	Messages() []Message
	Ready() bool
	Pending() bool
}

// Mirror is the local cache of one project
type Mirror struct {
	mu         sync.RWMutex
	id         string
	title      string
	files      []File
	activeFile string
	messages   []Message
	ready      bool
	pending    bool
}

// New creates an empty, not-ready mirror
func New() *Mirror {
	return &Mirror{}
}

// ID returns the project identifier
func (m *Mirror) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// Title returns the project title
func (m *Mirror) Title() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.title
}

// Files returns a copy of the file collection in order
func (m *Mirror) Files() []File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]File, len(m.files))
	copy(out, m.files)
	return out
}

// File returns the named file, if present
func (m *Mirror) File(name string) (File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(name); i >= 0 {
		return m.files[i], true
	}
	return File{}, false
}

// ActiveFile returns the currently selected file name, or "" if none
func (m *Mirror) ActiveFile() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeFile
}

// Messages returns a copy of the chat log in order
func (m *Mirror) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Ready reports whether the mirror reflects a complete authoritative
// project snapshot.
func (m *Mirror) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Pending reports whether a remote operation affecting the mirror is in
// flight.
func (m *Mirror) Pending() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending
}

// Replace swaps in a full authoritative snapshot in one step. The
// current selection is kept when the named file survives the swap,
// otherwise it falls back to the first file.
func (m *Mirror) Replace(id, title string, files []File, messages []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.id = id
	m.title = title
	m.files = make([]File, len(files))
	copy(m.files, files)
	m.messages = make([]Message, len(messages))
	copy(m.messages, messages)
	if m.indexOf(m.activeFile) < 0 {
		m.activeFile = m.firstFileName()
	}
}

// SetTitle updates the project title
func (m *Mirror) SetTitle(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.title = title
}

// SetReady sets the ready flag
func (m *Mirror) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

// SetPending sets the pending flag
func (m *Mirror) SetPending(pending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = pending
}

// SetActiveFile selects a file. An empty name clears the selection; a
// name that does not exist is an error so the selection invariant can
// never break.
func (m *Mirror) SetActiveFile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		m.activeFile = ""
		return nil
	}
	if m.indexOf(name) < 0 {
		return fmt.Errorf("select %s: %w", name, ErrNoSuchFile)
	}
	m.activeFile = name
	return nil
}

// AppendMessage appends a chat log entry with the next sequential id.
// Snapshot messages keep the ids the server gave them, so the next id
// comes from the current maximum rather than the message count.
func (m *Mirror) AppendMessage(content string, fromUser bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nextID := 0
	for _, msg := range m.messages {
		if msg.ID >= nextID {
			nextID = msg.ID + 1
		}
	}

	m.messages = append(m.messages, Message{
		ID:       nextID,
		Content:  content,
		FromUser: fromUser,
	})
}

// InsertFile appends a new file. Fails without touching state if the
// name is already taken.
func (m *Mirror) InsertFile(f File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(f.Name) >= 0 {
		return fmt.Errorf("add %s: %w", f.Name, ErrFileExists)
	}
	m.files = append(m.files, f)
	if m.activeFile == "" {
		m.activeFile = f.Name
	}
	return nil
}

// RemoveFile deletes a file. If it was the active selection, the
// selection falls back to the first remaining file, or to none.
func (m *Mirror) RemoveFile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(name)
	if i < 0 {
		return fmt.Errorf("remove %s: %w", name, ErrNoSuchFile)
	}
	m.files = append(m.files[:i], m.files[i+1:]...)
	if m.activeFile == name {
		m.activeFile = m.firstFileName()
	}
	return nil
}

// RenameFile renames a file in place. Fails without touching state when
// the source is missing or the destination is taken. The selection
// follows a renamed active file.
func (m *Mirror) RenameFile(oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(oldName)
	if i < 0 {
		return fmt.Errorf("rename %s: %w", oldName, ErrNoSuchFile)
	}
	if m.indexOf(newName) >= 0 {
		return fmt.Errorf("rename %s to %s: %w", oldName, newName, ErrFileExists)
	}
	m.files[i].Name = newName
	if m.activeFile == oldName {
		m.activeFile = newName
	}
	return nil
}

// SetFileContent replaces the content of an existing file
func (m *Mirror) SetFileContent(name, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(name)
	if i < 0 {
		return fmt.Errorf("update %s: %w", name, ErrNoSuchFile)
	}
	m.files[i].Content = content
	return nil
}

// Reset clears all state, returning the mirror to not-ready
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = ""
	m.title = ""
	m.files = nil
	m.activeFile = ""
	m.messages = nil
	m.ready = false
	m.pending = false
}

// FileState is a snapshot of the file collection plus the active
// selection, captured before an optimistic mutation so a remote failure
// can restore both together.
type FileState struct {
	Files      []File
	ActiveFile string
}

// CaptureFileState copies the current files and selection
func (m *Mirror) CaptureFileState() FileState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]File, len(m.files))
	copy(files, m.files)
	return FileState{Files: files, ActiveFile: m.activeFile}
}

// RestoreFileState replays a captured snapshot verbatim. Collection and
// selection are restored in one step so the mirror is never partially
// rolled back.
func (m *Mirror) RestoreFileState(state FileState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make([]File, len(state.Files))
	copy(m.files, state.Files)
	m.activeFile = state.ActiveFile
}

// indexOf returns the position of name in files, or -1. Callers hold
// the lock.
func (m *Mirror) indexOf(name string) int {
	if name == "" {
		return -1
	}
	for i := range m.files {
		if m.files[i].Name == name {
			return i
		}
	}
	return -1
}

func (m *Mirror) firstFileName() string {
	if len(m.files) == 0 {
		return ""
	}
	return m.files[0].Name
}

// compile-time check that Mirror satisfies its read-only view
var _ Reader = (*Mirror)(nil)
