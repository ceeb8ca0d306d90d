package model

// 缺勤范围
const (
	AbsenceFull = "FULL"
	AbsenceAM   = "AM"
	AbsencePM   = "PM"
)

// 缺勤来源
const (
	AbsenceSourceManual = "manual"
	AbsenceSourceICS    = "ics"
)

// Absence 缺勤表 — 对应 absences
// 覆盖 (user, date, period) 的检测要求；FULL 同时覆盖 AM 与 PM
type Absence struct {
	AbsenceID   string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"absence_id"`
	UserID      string  `gorm:"type:uuid;not null"                             json:"user_id"`
	AbsenceDate Date    `gorm:"type:date;not null"                             json:"absence_date"`
	Period      string  `gorm:"type:varchar(4);not null;default:'FULL'"        json:"period"` // FULL | AM | PM
	Reason      *string `gorm:"type:varchar(255)"                              json:"reason,omitempty"`
	Source      string  `gorm:"type:varchar(20);not null;default:'manual'"     json:"source"`
	BaseModel
}

// TableName 指定表名
func (Absence) TableName() string { return "absences" }
