package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session 一個操作端（平板/手機）的選取狀態
// 換品番時 UploadNonce 遞增，舊照片上傳表單隨之作廢
type Session struct {
	ID          string    `json:"id"`
	Model       string    `json:"model"`
	PartNo      string    `json:"part_no"`
	UploadNonce int       `json:"upload_nonce"`
	CreatedAt   time.Time `json:"created_at"`
	TouchedAt   time.Time `json:"touched_at"`
}

// SessionManager 記憶體內 session 表；閒置逾時由 Get 時惰性回收
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
}

func NewSessionManager(idleTTL time.Duration) *SessionManager {
	if idleTTL <= 0 {
		idleTTL = 8 * time.Hour
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Start 建立新 session
func (m *SessionManager) Start() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := &Session{ID: uuid.NewString(), CreatedAt: now, TouchedAt: now}
	m.sessions[s.ID] = s
	return *s
}

// Get 取 session；不存在或閒置逾時回 false
func (m *SessionManager) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	if m.now().Sub(s.TouchedAt) > m.idleTTL {
		delete(m.sessions, id)
		return Session{}, false
	}
	s.TouchedAt = m.now()
	return *s, true
}

// Select 更新選取的車型/品番；品番變更時遞增 UploadNonce
func (m *SessionManager) Select(id, model, partNo string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	if s.PartNo != partNo {
		s.UploadNonce++
	}
	s.Model = model
	s.PartNo = partNo
	s.TouchedAt = m.now()
	return *s, true
}

// End 顯式結束 session
func (m *SessionManager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
