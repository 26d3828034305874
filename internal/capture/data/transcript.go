package data

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tetherproject/tether/internal/capture"
)

// Transcript is the persisted record of one harness session: every payload
// that crossed the wire while a client was connected.
type Transcript struct {
	ID        uint64 `gorm:"primaryKey"`
	SessionID string `gorm:"index;not null"`
	StartedAt time.Time
	EndedAt   time.Time

	Entries []TranscriptEntry `gorm:"foreignKey:TranscriptID"`
}

// TranscriptEntry is a single recorded payload within a Transcript. Seq
// preserves arrival order independently of row IDs.
type TranscriptEntry struct {
	ID           uint64 `gorm:"primaryKey"`
	TranscriptID uint64 `gorm:"index"`
	Seq          int    `gorm:"not null"`
	Direction    string `gorm:"not null"`
	Payload      []byte
	RecordedAt   time.Time
}

// FromEntries builds a Transcript from a recorder snapshot, preserving the
// recorded order.
func FromEntries(sessionID string, entries []capture.Entry) *Transcript {
	t := &Transcript{SessionID: sessionID}

	for i, entry := range entries {
		t.Entries = append(t.Entries, TranscriptEntry{
			Seq:        i,
			Direction:  string(entry.Direction),
			Payload:    entry.Payload,
			RecordedAt: entry.RecordedAt,
		})
	}

	if len(entries) > 0 {
		t.StartedAt = entries[0].RecordedAt
		t.EndedAt = entries[len(entries)-1].RecordedAt
	}
	return t
}

// SaveTranscript persists the transcript and its entries.
func SaveTranscript(db *gorm.DB, t *Transcript) error {
	return db.Create(t).Error
}

// FindTranscriptsBySession returns all transcripts recorded for sessionID
// with their entries loaded, or an empty slice if there are none.
func FindTranscriptsBySession(db *gorm.DB, sessionID string) ([]Transcript, error) {
	var transcripts []Transcript
	err := db.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq")
	}).Where("session_id = ?", sessionID).Find(&transcripts).Error

	if err != nil {
		return nil, err
	}
	return transcripts, nil
}

// FindTranscriptByID returns the transcript with the given row ID, or nil if
// there is no match.
func FindTranscriptByID(db *gorm.DB, id uint64) (*Transcript, error) {
	var transcript Transcript
	err := db.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq")
	}).First(&transcript, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transcript, nil
}
