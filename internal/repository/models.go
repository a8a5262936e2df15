package repository

import "time"

// GatherRound is the GORM model for one front-end gather round (spec.md
// §4.10), recorded independently of the DOT file C6 emits so a history of
// rounds survives even if output files are later archived or deleted.
type GatherRound struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement"`
	StartedAt       time.Time  `gorm:"column:started_at"`
	FinishedAt      *time.Time `gorm:"column:finished_at"`
	DaemonCount     int        `gorm:"column:daemon_count"`
	RespondingCount int        `gorm:"column:responding_count"`
	WidthWords      int        `gorm:"column:width_words"`
	OutputPath      string     `gorm:"column:output_path;type:varchar(512)"`
	Kind            string     `gorm:"column:kind;type:varchar(8)"` // "2D" or "3D"
	Status          string     `gorm:"column:status;type:varchar(32)"`
	Version         string     `gorm:"column:version;type:varchar(32)"`
}

// TableName returns the table name for GatherRound.
func (GatherRound) TableName() string {
	return "gather_round"
}
