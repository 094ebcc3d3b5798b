package model

import "time"

// Annotation flags the data of one camera of one visit.
type Annotation struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	VisitID   int64     `gorm:"not null;uniqueIndex:idx_visit_camera" json:"visit_id"`
	Camera    string    `gorm:"not null;uniqueIndex:idx_visit_camera" json:"camera"`
	DataFlag  int       `json:"data_flag"`
	Notes     string    `json:"notes"`
	Operator  string    `json:"operator"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (*Annotation) TableName() string {
	return "seqpanel_annotation"
}
