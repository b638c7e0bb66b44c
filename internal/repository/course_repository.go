package repository

import (
	"fmt"

	"gorm.io/gorm"

	"studynet-go/internal/model"
)

// CourseRepository 定义了结构化课程数据的查询与导入操作。
type CourseRepository interface {
	// SearchCourses 按过滤集检索课程，多条件逻辑与组合，无命中返回空切片。
	SearchCourses(filters model.Filters, limit int) ([]model.CourseRow, error)
	// CompareProviders 对多所院校做聚合对比。
	CompareProviders(providerNames []string) ([]model.ProviderComparisonRow, error)
	// UpcomingIntakes 查询开放中的开学批次。
	UpcomingIntakes(providerName string, limit int) ([]model.Intake, error)
	ReplaceDataset(providers []model.Provider, courses []model.Course, fees []model.Fee, locations []model.CampusLocation, intakes []model.Intake) error
	CountCourses() (int64, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository 创建一个新的 CourseRepository 实例并迁移表结构。
func NewCourseRepository(db *gorm.DB) (CourseRepository, error) {
	err := db.AutoMigrate(
		&model.Provider{},
		&model.Course{},
		&model.Fee{},
		&model.CampusLocation{},
		&model.Intake{},
	)
	if err != nil {
		return nil, fmt.Errorf("迁移课程表结构失败: %w", err)
	}
	return &courseRepository{db: db}, nil
}

// filterClause 是一条 SQL 条件片段及其绑定参数。
type filterClause struct {
	expr string
	args []interface{}
}

// courseFilterClauses 把过滤集展开为 SQL 条件片段。条件之间逻辑与组合；
// 学费区间为闭区间；城市/州为等值匹配；院校名为模糊匹配。
func courseFilterClauses(filters model.Filters) []filterClause {
	clauses := []filterClause{{expr: "c.is_active = ?", args: []interface{}{true}}}

	if len(filters.FieldsOfStudy) > 0 {
		clauses = append(clauses, filterClause{
			expr: "c.area_of_study_broad IN ? OR c.area_of_study_narrow IN ?",
			args: []interface{}{filters.FieldsOfStudy, filters.FieldsOfStudy},
		})
	}
	if filters.Price != nil {
		if filters.Price.Min > 0 {
			clauses = append(clauses, filterClause{expr: "f.total_annual_fee >= ?", args: []interface{}{filters.Price.Min}})
		}
		if filters.Price.Max > 0 {
			clauses = append(clauses, filterClause{expr: "f.total_annual_fee <= ?", args: []interface{}{filters.Price.Max}})
		}
	}
	if filters.Location != nil {
		if filters.Location.City != "" {
			clauses = append(clauses, filterClause{expr: "l.address_city = ?", args: []interface{}{filters.Location.City}})
		}
		if filters.Location.State != "" {
			clauses = append(clauses, filterClause{expr: "l.address_state = ?", args: []interface{}{filters.Location.State}})
		}
	}
	if filters.ProviderName != "" {
		clauses = append(clauses, filterClause{expr: "c.provider_name LIKE ?", args: []interface{}{"%" + filters.ProviderName + "%"}})
	}
	if filters.StudyLevel != "" {
		clauses = append(clauses, filterClause{expr: "c.study_level = ?", args: []interface{}{filters.StudyLevel}})
	}
	if filters.HasScholarship {
		clauses = append(clauses, filterClause{expr: "c.has_scholarship = ?", args: []interface{}{true}})
	}
	if filters.HasInternship {
		clauses = append(clauses, filterClause{expr: "c.has_internship = ?", args: []interface{}{true}})
	}
	if filters.MaxRanking > 0 {
		clauses = append(clauses, filterClause{expr: "p.australian_ranking > 0 AND p.australian_ranking <= ?", args: []interface{}{filters.MaxRanking}})
	}
	return clauses
}

// SearchCourses 以 LEFT JOIN 组合课程、学费、院校与校区四张表。
func (r *courseRepository) SearchCourses(filters model.Filters, limit int) ([]model.CourseRow, error) {
	query := r.db.Table("courses c").
		Select(`c.id AS course_id, c.course_name, c.provider_name, c.study_level,
			c.area_of_study_broad, f.total_annual_fee, p.australian_ranking,
			l.address_city, l.address_state, c.has_scholarship, c.has_internship, c.description`).
		Joins("LEFT JOIN fees f ON f.course_id = c.id").
		Joins("LEFT JOIN providers p ON p.id = c.provider_id").
		Joins("LEFT JOIN campus_locations l ON l.provider_id = c.provider_id")
	for _, clause := range courseFilterClauses(filters) {
		query = query.Where(clause.expr, clause.args...)
	}

	// 带价格约束时按学费升序，否则按排名升序
	if filters.Price != nil {
		query = query.Order("f.total_annual_fee ASC")
	} else {
		query = query.Order("p.australian_ranking ASC, f.total_annual_fee ASC")
	}

	var rows []model.CourseRow
	if err := query.Limit(limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("课程过滤查询失败: %w", err)
	}
	return rows, nil
}

// CompareProviders 聚合每所院校的课程数、学费区间与校区数。
func (r *courseRepository) CompareProviders(providerNames []string) ([]model.ProviderComparisonRow, error) {
	if len(providerNames) == 0 {
		return []model.ProviderComparisonRow{}, nil
	}

	var rows []model.ProviderComparisonRow
	err := r.db.Table("providers p").
		Select(`p.provider_name, p.australian_ranking, p.global_ranking,
			COUNT(DISTINCT c.id) AS total_courses,
			COALESCE(MIN(f.total_annual_fee), 0) AS min_fee,
			COALESCE(MAX(f.total_annual_fee), 0) AS max_fee,
			COALESCE(AVG(f.total_annual_fee), 0) AS avg_fee,
			COUNT(DISTINCT l.id) AS campus_count`).
		Joins("LEFT JOIN courses c ON c.provider_id = p.id AND c.is_active = TRUE").
		Joins("LEFT JOIN fees f ON f.course_id = c.id").
		Joins("LEFT JOIN campus_locations l ON l.provider_id = p.id").
		Where("p.provider_name IN ?", providerNames).
		Group("p.id, p.provider_name, p.australian_ranking, p.global_ranking").
		Order("p.australian_ranking ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("院校对比查询失败: %w", err)
	}
	return rows, nil
}

func (r *courseRepository) UpcomingIntakes(providerName string, limit int) ([]model.Intake, error) {
	query := r.db.Where("is_open = ?", true)
	if providerName != "" {
		query = query.Where("provider_name LIKE ?", "%"+providerName+"%")
	}
	var intakes []model.Intake
	if err := query.Order("commencement_date ASC").Limit(limit).Find(&intakes).Error; err != nil {
		return nil, fmt.Errorf("开学批次查询失败: %w", err)
	}
	return intakes, nil
}

// ReplaceDataset 在单个事务里整体替换课程数据集（CSV 重导入是幂等的）。
func (r *courseRepository) ReplaceDataset(
	providers []model.Provider,
	courses []model.Course,
	fees []model.Fee,
	locations []model.CampusLocation,
	intakes []model.Intake,
) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&model.Fee{}, &model.Intake{}, &model.CampusLocation{}, &model.Course{}, &model.Provider{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("清空旧数据集失败: %w", err)
			}
		}
		if len(providers) > 0 {
			if err := tx.CreateInBatches(providers, 200).Error; err != nil {
				return fmt.Errorf("写入院校数据失败: %w", err)
			}
		}
		if len(courses) > 0 {
			if err := tx.CreateInBatches(courses, 200).Error; err != nil {
				return fmt.Errorf("写入课程数据失败: %w", err)
			}
		}
		if len(fees) > 0 {
			if err := tx.CreateInBatches(fees, 200).Error; err != nil {
				return fmt.Errorf("写入学费数据失败: %w", err)
			}
		}
		if len(locations) > 0 {
			if err := tx.CreateInBatches(locations, 200).Error; err != nil {
				return fmt.Errorf("写入校区数据失败: %w", err)
			}
		}
		if len(intakes) > 0 {
			if err := tx.CreateInBatches(intakes, 200).Error; err != nil {
				return fmt.Errorf("写入开学批次数据失败: %w", err)
			}
		}
		return nil
	})
}

func (r *courseRepository) CountCourses() (int64, error) {
	var count int64
	err := r.db.Model(&model.Course{}).Count(&count).Error
	return count, err
}
