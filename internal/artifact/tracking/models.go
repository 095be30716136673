package tracking

import "time"

// Run statuses
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// RunRecord is one tracked execution of a pipeline step
type RunRecord struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	JobType    string     `gorm:"type:varchar(100);not null;index" json:"job_type"`
	Project    string     `gorm:"type:varchar(100);not null;index" json:"project"`
	Entity     string     `gorm:"type:varchar(100)" json:"entity,omitempty"`
	Config     string     `gorm:"type:text" json:"config"`
	Status     string     `gorm:"type:varchar(20);not null;default:'running'" json:"status"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TableName pins the table name
func (RunRecord) TableName() string {
	return "runs"
}

// ArtifactRecord is one immutable version of a named artifact
type ArtifactRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Project     string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_artifact_version" json:"project"`
	Name        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_artifact_version" json:"name"`
	Version     int       `gorm:"not null;uniqueIndex:idx_artifact_version" json:"version"`
	Type        string    `gorm:"type:varchar(100);not null" json:"type"`
	Description string    `gorm:"type:text" json:"description"`
	Digest      string    `gorm:"type:varchar(128);not null" json:"digest"`
	Size        int64     `json:"size"`
	FileName    string    `gorm:"type:varchar(255);not null" json:"file_name"`
	BlobKey     string    `gorm:"type:text;not null" json:"blob_key"`
	URI         string    `gorm:"type:text;not null" json:"uri"`
	RunID       string    `gorm:"type:varchar(36);index" json:"run_id"`
	Latest      bool      `gorm:"not null;default:false;index" json:"latest"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName pins the table name
func (ArtifactRecord) TableName() string {
	return "artifacts"
}

// UsageRecord links a run to an artifact version it consumed
type UsageRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID      string    `gorm:"type:varchar(36);not null;index" json:"run_id"`
	ArtifactID uint      `gorm:"not null;index" json:"artifact_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName pins the table name
func (UsageRecord) TableName() string {
	return "artifact_usages"
}
