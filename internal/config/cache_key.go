package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserLoginKey returns the cache key for a candidate's single-device login session.
func (r *CacheKeyStruct) UserLoginKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// ExamPaperKey returns the cache key for a course's sanitized exam paper.
func (r *CacheKeyStruct) ExamPaperKey(courseID string) string {
	return fmt.Sprintf("course:%s:paper", courseID)
}

// AnswerKeyKey returns the cache key for a course's answer key hash.
func (r *CacheKeyStruct) AnswerKeyKey(courseID string) string {
	return fmt.Sprintf("course:%s:key", courseID)
}

// SessionDeadlineKey returns the cache key for a session's hard deadline.
func (r *CacheKeyStruct) SessionDeadlineKey(sessionID string) string {
	return fmt.Sprintf("session:%s:deadline", sessionID)
}

var CacheKey = NewCacheKeyStruct()
