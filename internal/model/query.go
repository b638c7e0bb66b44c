package model

// QueryKind 标识一次查询需要的数据来源。
type QueryKind string

const (
	// QueryStructured 仅需结构化过滤（课程、学费、院校）。
	QueryStructured QueryKind = "structured"
	// QuerySemantic 仅需向量检索（指南类 PDF）。
	QuerySemantic QueryKind = "semantic"
	// QueryHybrid 两者都需要。
	QueryHybrid QueryKind = "hybrid"
	// QueryComparison 多院校对比。
	QueryComparison QueryKind = "comparison"
)

// Intent 标识用户的主要意图。
type Intent string

const (
	IntentSearchCourses    Intent = "search_courses"
	IntentFilterByCriteria Intent = "filter_by_criteria"
	IntentCompareProviders Intent = "compare_providers"
	IntentGetProviderInfo  Intent = "get_provider_info"
	IntentGetGuidance      Intent = "get_guidance"
	IntentGetScholarships  Intent = "get_scholarships"
	IntentGetIntakes       Intent = "get_intakes"
)

// PriceRange 是闭区间学费约束，Max 为 0 表示无上限。
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Location 是归一化后的地理约束，City 可以为空（仅州级过滤）。
type Location struct {
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// Filters 是从查询中抽取出的、可直接转换为 SQL 条件的过滤集。
// 多个过滤条件以逻辑与组合；零值字段表示未指定。
type Filters struct {
	FieldsOfStudy  []string    `json:"fieldsOfStudy,omitempty"`
	Price          *PriceRange `json:"price,omitempty"`
	Location       *Location   `json:"location,omitempty"`
	ProviderName   string      `json:"providerName,omitempty"`
	ProviderNames  []string    `json:"providerNames,omitempty"`
	StudyLevel     string      `json:"studyLevel,omitempty"`
	HasScholarship bool        `json:"hasScholarship,omitempty"`
	HasInternship  bool        `json:"hasInternship,omitempty"`
	MaxRanking     int         `json:"maxRanking,omitempty"`
}

// Empty 判断是否没有任何有效过滤条件。
func (f Filters) Empty() bool {
	return len(f.FieldsOfStudy) == 0 && f.Price == nil && f.Location == nil &&
		f.ProviderName == "" && len(f.ProviderNames) == 0 && f.StudyLevel == "" &&
		!f.HasScholarship && !f.HasInternship && f.MaxRanking == 0
}

// ParsedQuery 是分类器的输出：带判别式 Kind 的标签变体。
// 合并器对 Kind 做穷尽分支，而不是在各调用点散落字符串比较。
type ParsedQuery struct {
	Original        string    `json:"original"`
	Kind            QueryKind `json:"kind"`
	Intent          Intent    `json:"intent"`
	Filters         Filters   `json:"filters"`
	Variants        []string  `json:"variants"`
	SemanticContext string    `json:"semanticContext,omitempty"`
	TopK            int       `json:"topK"`
}
