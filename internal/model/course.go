package model

import "time"

// Provider 对应 providers 表，一所院校。
type Provider struct {
	ID                uint   `gorm:"primaryKey;autoIncrement;column:id"`
	ProviderName      string `gorm:"type:varchar(255);not null;uniqueIndex;column:provider_name"`
	CompanyName       string `gorm:"type:varchar(255);column:company_name"`
	ProviderType      string `gorm:"type:varchar(64);column:provider_type"`
	PublicPrivate     string `gorm:"type:varchar(16);column:public_private"`
	AustralianRanking int    `gorm:"column:australian_ranking"`
	GlobalRanking     int    `gorm:"column:global_ranking"`
	WebsiteURL        string `gorm:"type:varchar(512);column:website_url"`
	ScholarshipURL    string `gorm:"type:varchar(512);column:scholarship_url"`
}

func (Provider) TableName() string {
	return "providers"
}

// Course 对应 courses 表，一门课程。
type Course struct {
	ID                uint   `gorm:"primaryKey;autoIncrement;column:id"`
	ProviderID        uint   `gorm:"not null;index;column:provider_id"`
	CourseName        string `gorm:"type:varchar(255);not null;column:course_name"`
	ProviderName      string `gorm:"type:varchar(255);index;column:provider_name"`
	StudyLevel        string `gorm:"type:varchar(64);column:study_level"`
	AreaOfStudyBroad  string `gorm:"type:varchar(128);index;column:area_of_study_broad"`
	AreaOfStudyNarrow string `gorm:"type:varchar(128);column:area_of_study_narrow"`
	DurationMonths    int    `gorm:"column:duration_months"`
	HasScholarship    bool   `gorm:"not null;default:false;column:has_scholarship"`
	HasInternship     bool   `gorm:"not null;default:false;column:has_internship"`
	Description       string `gorm:"type:text;column:description"`
	URLCourseInfo     string `gorm:"type:varchar(512);column:url_course_info"`
	IsActive          bool   `gorm:"not null;default:true;column:is_active"`
}

func (Course) TableName() string {
	return "courses"
}

// Fee 对应 fees 表，一门课程某年度的学费。
type Fee struct {
	ID             uint    `gorm:"primaryKey;autoIncrement;column:id"`
	CourseID       uint    `gorm:"not null;index;column:course_id"`
	Year           int     `gorm:"column:year"`
	TotalAnnualFee float64 `gorm:"column:total_annual_fee"`
	TotalCourseFee float64 `gorm:"column:total_course_fee"`
}

func (Fee) TableName() string {
	return "fees"
}

// CampusLocation 对应 campus_locations 表，院校的一个校区。
type CampusLocation struct {
	ID           uint   `gorm:"primaryKey;autoIncrement;column:id"`
	ProviderID   uint   `gorm:"not null;index;column:provider_id"`
	CampusName   string `gorm:"type:varchar(255);column:campus_name"`
	AddressCity  string `gorm:"type:varchar(128);index;column:address_city"`
	AddressState string `gorm:"type:varchar(128);column:address_state"`
}

func (CampusLocation) TableName() string {
	return "campus_locations"
}

// Intake 对应 intakes 表，院校的开学与申请时间。
type Intake struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement;column:id"`
	ProviderID          uint      `gorm:"not null;index;column:provider_id"`
	ProviderName        string    `gorm:"type:varchar(255);column:provider_name"`
	Year                int       `gorm:"column:year"`
	CommencementDate    time.Time `gorm:"column:commencement_date"`
	ApplicationDeadline time.Time `gorm:"column:application_deadline"`
	IsOpen              bool      `gorm:"not null;default:true;column:is_open"`
}

func (Intake) TableName() string {
	return "intakes"
}

// CourseRow 是课程过滤查询的联表结果行。
type CourseRow struct {
	CourseID          uint    `json:"courseId"`
	CourseName        string  `json:"courseName"`
	ProviderName      string  `json:"providerName"`
	StudyLevel        string  `json:"studyLevel"`
	AreaOfStudyBroad  string  `json:"areaOfStudyBroad"`
	TotalAnnualFee    float64 `json:"totalAnnualFee"`
	AustralianRanking int     `json:"australianRanking"`
	AddressCity       string  `json:"addressCity"`
	AddressState      string  `json:"addressState"`
	HasScholarship    bool    `json:"hasScholarship"`
	HasInternship     bool    `json:"hasInternship"`
	Description       string  `json:"description"`
}

// ProviderComparisonRow 是院校对比查询的聚合结果行。
type ProviderComparisonRow struct {
	ProviderName      string  `json:"providerName"`
	AustralianRanking int     `json:"australianRanking"`
	GlobalRanking     int     `json:"globalRanking"`
	TotalCourses      int64   `json:"totalCourses"`
	MinFee            float64 `json:"minFee"`
	MaxFee            float64 `json:"maxFee"`
	AvgFee            float64 `json:"avgFee"`
	CampusCount       int64   `json:"campusCount"`
}
