package service

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"studynet-go/internal/model"
	"studynet-go/internal/repository"
	"studynet-go/pkg/log"
)

// DatasetService 定义了结构化课程数据集的导入操作。
type DatasetService interface {
	// LoadFromDir 从目录读取数据集 CSV 并整体替换数据库内容。
	LoadFromDir(dir string) error
}

type datasetService struct {
	courseRepo repository.CourseRepository
}

// NewDatasetService 创建一个新的 DatasetService 实例。
func NewDatasetService(courseRepo repository.CourseRepository) DatasetService {
	return &datasetService{courseRepo: courseRepo}
}

// 数据集文件名固定。缺失的文件按空表处理。
const (
	providersCSV = "providers.csv"
	coursesCSV   = "courses.csv"
	feesCSV      = "fees.csv"
	locationsCSV = "campus_locations.csv"
	intakesCSV   = "intakes.csv"
)

// LoadFromDir 读取五张 CSV 并在单事务里替换数据库。导入是幂等的。
func (s *datasetService) LoadFromDir(dir string) error {
	providers, err := readCSV(filepath.Join(dir, providersCSV))
	if err != nil {
		return err
	}
	courses, err := readCSV(filepath.Join(dir, coursesCSV))
	if err != nil {
		return err
	}
	fees, err := readCSV(filepath.Join(dir, feesCSV))
	if err != nil {
		return err
	}
	locations, err := readCSV(filepath.Join(dir, locationsCSV))
	if err != nil {
		return err
	}
	intakes, err := readCSV(filepath.Join(dir, intakesCSV))
	if err != nil {
		return err
	}

	providerRows := make([]model.Provider, 0, len(providers))
	for _, row := range providers {
		providerRows = append(providerRows, model.Provider{
			ID:                uint(row.intVal("id")),
			ProviderName:      row.val("provider_name"),
			CompanyName:       row.val("company_name"),
			ProviderType:      row.val("provider_type"),
			PublicPrivate:     row.val("public_private"),
			AustralianRanking: row.intVal("australian_ranking"),
			GlobalRanking:     row.intVal("global_ranking"),
			WebsiteURL:        row.val("website_url"),
			ScholarshipURL:    row.val("scholarship_url"),
		})
	}

	courseRows := make([]model.Course, 0, len(courses))
	for _, row := range courses {
		courseRows = append(courseRows, model.Course{
			ID:                uint(row.intVal("id")),
			ProviderID:        uint(row.intVal("provider_id")),
			CourseName:        row.val("course_name"),
			ProviderName:      row.val("provider_name"),
			StudyLevel:        row.val("study_level"),
			AreaOfStudyBroad:  row.val("area_of_study_broad"),
			AreaOfStudyNarrow: row.val("area_of_study_narrow"),
			DurationMonths:    row.intVal("duration_months"),
			HasScholarship:    row.boolVal("has_scholarship"),
			HasInternship:     row.boolVal("has_internship"),
			Description:       row.val("description"),
			URLCourseInfo:     row.val("url_course_info"),
			IsActive:          row.boolValDefault("is_active", true),
		})
	}

	feeRows := make([]model.Fee, 0, len(fees))
	for _, row := range fees {
		feeRows = append(feeRows, model.Fee{
			ID:             uint(row.intVal("id")),
			CourseID:       uint(row.intVal("course_id")),
			Year:           row.intVal("year"),
			TotalAnnualFee: row.floatVal("total_annual_fee"),
			TotalCourseFee: row.floatVal("total_course_fee"),
		})
	}

	locationRows := make([]model.CampusLocation, 0, len(locations))
	for _, row := range locations {
		locationRows = append(locationRows, model.CampusLocation{
			ID:           uint(row.intVal("id")),
			ProviderID:   uint(row.intVal("provider_id")),
			CampusName:   row.val("campus_name"),
			AddressCity:  row.val("address_city"),
			AddressState: row.val("address_state"),
		})
	}

	intakeRows := make([]model.Intake, 0, len(intakes))
	for _, row := range intakes {
		intakeRows = append(intakeRows, model.Intake{
			ID:                  uint(row.intVal("id")),
			ProviderID:          uint(row.intVal("provider_id")),
			ProviderName:        row.val("provider_name"),
			Year:                row.intVal("year"),
			CommencementDate:    row.dateVal("commencement_date"),
			ApplicationDeadline: row.dateVal("application_deadline"),
			IsOpen:              row.boolValDefault("is_open", true),
		})
	}

	if err := s.courseRepo.ReplaceDataset(providerRows, courseRows, feeRows, locationRows, intakeRows); err != nil {
		return fmt.Errorf("replace dataset failed: %w", err)
	}
	log.Infof("[DatasetService] 数据集导入完成: %d 院校, %d 课程, %d 学费, %d 校区, %d 批次",
		len(providerRows), len(courseRows), len(feeRows), len(locationRows), len(intakeRows))
	return nil
}

// csvRow 带表头映射的一行记录。
type csvRow struct {
	header map[string]int
	fields []string
}

func (r csvRow) val(name string) string {
	idx, ok := r.header[name]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func (r csvRow) intVal(name string) int {
	n, _ := strconv.Atoi(r.val(name))
	return n
}

func (r csvRow) floatVal(name string) float64 {
	f, _ := strconv.ParseFloat(r.val(name), 64)
	return f
}

func (r csvRow) boolVal(name string) bool {
	switch strings.ToLower(r.val(name)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func (r csvRow) boolValDefault(name string, def bool) bool {
	if r.val(name) == "" {
		return def
	}
	return r.boolVal(name)
}

func (r csvRow) dateVal(name string) time.Time {
	v := r.val(name)
	for _, layout := range []string{"2006-01-02", "02/01/2006", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// readCSV 读取一张 CSV，首行作为表头。文件不存在按空表处理。
func readCSV(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("[DatasetService] 数据集文件不存在, 跳过: %s", path)
			return nil, nil
		}
		return nil, fmt.Errorf("open dataset file %s failed: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dataset file %s failed: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	rows := make([]csvRow, 0, len(records)-1)
	for _, fields := range records[1:] {
		rows = append(rows, csvRow{header: header, fields: fields})
	}
	return rows, nil
}
