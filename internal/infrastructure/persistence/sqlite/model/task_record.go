package model

type TaskRecord struct {
	TaskID       string  `gorm:"column:task_id;primaryKey"`
	Repo         string  `gorm:"column:repo;type:text;not null"`
	Number       int     `gorm:"column:number;not null"`
	Action       string  `gorm:"column:action;type:text;not null"`
	DispatchedAt string  `gorm:"column:dispatched_at;type:text;not null"`
	CompletedAt  *string `gorm:"column:completed_at;type:text"`
	ExitCode     *int    `gorm:"column:exit_code"`
	SessionID    *string `gorm:"column:session_id;type:text"`
}

func (TaskRecord) TableName() string {
	return "task_records"
}
