package consumer

import (
	"sync"
	"time"

	"vitalwatch/internal/models"
)

// PatientSession 患者监测会话（进程内状态）
type PatientSession struct {
	PatientID      string             `json:"patient_id"`
	TenantID       string             `json:"tenant_id"`
	LastAssessment *models.Assessment `json:"last_assessment,omitempty"`
	LastReadingAt  time.Time          `json:"last_reading_at"`
	ReadingCount   int64              `json:"reading_count"`
}

// SessionRegistry 并发安全的患者会话注册表
//
// 每个患者一个会话，随进程生命周期存在，长时间无读数的会话
// 由定期清理回收。
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*PatientSession
}

// NewSessionRegistry 创建会话注册表
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*PatientSession),
	}
}

// Touch 记录一次读数到达，必要时创建会话，返回会话快照
func (r *SessionRegistry) Touch(tenantID, patientID string, assessment *models.Assessment) PatientSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[patientID]
	if !ok {
		session = &PatientSession{
			PatientID: patientID,
			TenantID:  tenantID,
		}
		r.sessions[patientID] = session
	}

	session.LastReadingAt = time.Now()
	session.ReadingCount++
	if assessment != nil {
		session.LastAssessment = assessment
	}

	return *session
}

// Get 获取会话快照，不存在时返回 (PatientSession{}, false)
func (r *SessionRegistry) Get(patientID string) (PatientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[patientID]
	if !ok {
		return PatientSession{}, false
	}
	return *session, true
}

// Count 当前会话数
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Active 最近 within 时间内有读数的患者 ID 列表
func (r *SessionRegistry) Active(within time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	var active []string
	for id, session := range r.sessions {
		if session.LastReadingAt.After(cutoff) {
			active = append(active, id)
		}
	}
	return active
}

// Prune 清理超过 idle 时间无读数的会话，返回清理数量
func (r *SessionRegistry) Prune(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	removed := 0
	for id, session := range r.sessions {
		if session.LastReadingAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
