// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"studynet-go/internal/config"
	"studynet-go/internal/errs"
	"studynet-go/internal/model"
	"studynet-go/pkg/llm"
	"studynet-go/pkg/log"
)

// QueryService 定义了查询理解操作：分类、实体抽取与改写。
type QueryService interface {
	// Classify 解析用户查询，返回类型、意图与结构化过滤条件。
	Classify(ctx context.Context, query string) (model.ParsedQuery, error)
	// Reformulate 生成语义改写变体，原查询始终位于首位。
	Reformulate(ctx context.Context, query string) []string
}

type queryService struct {
	llmClient   llm.Client
	maxVariants int
}

// NewQueryService 创建一个新的 QueryService 实例。
func NewQueryService(llmClient llm.Client, cfg config.RetrievalConfig) QueryService {
	return &queryService{
		llmClient:   llmClient,
		maxVariants: cfg.MaxQueryVariants,
	}
}

// 澳洲主要城市与所属州。实体抽取用等值匹配，键为小写。
var australianCities = map[string]string{
	"sydney":     "NSW",
	"melbourne":  "VIC",
	"brisbane":   "QLD",
	"perth":      "WA",
	"adelaide":   "SA",
	"canberra":   "ACT",
	"hobart":     "TAS",
	"darwin":     "NT",
	"gold coast": "QLD",
	"wollongong": "NSW",
	"newcastle":  "NSW",
	"geelong":    "VIC",
}

var australianStates = map[string]string{
	"new south wales":    "NSW",
	"nsw":                "NSW",
	"victoria":           "VIC",
	"vic":                "VIC",
	"queensland":         "QLD",
	"qld":                "QLD",
	"western australia":  "WA",
	"south australia":    "SA",
	"tasmania":           "TAS",
	"northern territory": "NT",
	"act":                "ACT",
}

// 院校常用别名到正式名称的映射。
var providerAliases = map[string]string{
	"unsw":          "University of New South Wales",
	"usyd":          "University of Sydney",
	"sydney uni":    "University of Sydney",
	"unimelb":       "University of Melbourne",
	"melbourne uni": "University of Melbourne",
	"uq":            "University of Queensland",
	"anu":           "Australian National University",
	"monash":        "Monash University",
	"uts":           "University of Technology Sydney",
	"rmit":          "RMIT University",
	"macquarie":     "Macquarie University",
	"deakin":        "Deakin University",
	"griffith":      "Griffith University",
	"la trobe":      "La Trobe University",
	"curtin":        "Curtin University",
	"qut":           "Queensland University of Technology",
	"uwa":           "University of Western Australia",
	"adelaide uni":  "University of Adelaide",
	"wollongong":    "University of Wollongong",
}

// 学习领域同义词归一化。
var fieldSynonyms = map[string]string{
	"it":                     "Information Technology",
	"information technology": "Information Technology",
	"computer science":       "Information Technology",
	"computing":              "Information Technology",
	"software":               "Information Technology",
	"data science":           "Information Technology",
	"cyber security":         "Information Technology",
	"cybersecurity":          "Information Technology",
	"business":               "Business",
	"commerce":               "Business",
	"mba":                    "Business",
	"accounting":             "Business",
	"finance":                "Business",
	"marketing":              "Business",
	"engineering":            "Engineering",
	"nursing":                "Health",
	"medicine":               "Health",
	"health":                 "Health",
	"psychology":             "Health",
	"law":                    "Law",
	"education":              "Education",
	"teaching":               "Education",
	"design":                 "Creative Arts",
	"architecture":           "Architecture",
	"science":                "Science",
	"arts":                   "Arts",
}

var studyLevels = map[string]string{
	"bachelor":      "Bachelor",
	"bachelors":     "Bachelor",
	"undergraduate": "Bachelor",
	"master":        "Master",
	"masters":       "Master",
	"postgraduate":  "Master",
	"phd":           "Doctorate",
	"doctorate":     "Doctorate",
	"diploma":       "Diploma",
	"certificate":   "Certificate",
}

var (
	// 匹配 "$20,000"、"20000"、"20k" 等价格表达。
	priceUnderRe = regexp.MustCompile(`(?i)(?:under|below|less than|cheaper than|up to|within|max(?:imum)?)\s+\$?\s*([0-9][0-9,]*)\s*(k)?`)
	priceOverRe  = regexp.MustCompile(`(?i)(?:over|above|more than|at least|min(?:imum)?)\s+\$?\s*([0-9][0-9,]*)\s*(k)?`)
	priceRangeRe = regexp.MustCompile(`(?i)(?:between|from)\s+\$?\s*([0-9][0-9,]*)\s*(k)?\s+(?:and|to|-)\s+\$?\s*([0-9][0-9,]*)\s*(k)?`)
	topNRe       = regexp.MustCompile(`(?i)top\s+([0-9]+)`)
)

func parsePrice(digits, suffix string) float64 {
	n, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0
	}
	if strings.EqualFold(suffix, "k") {
		n *= 1000
	}
	return n
}

// ExtractFilters 从查询文本中提取结构化过滤条件。纯规则实现，结果可复现。
func ExtractFilters(query string) model.Filters {
	lower := strings.ToLower(query)
	var filters model.Filters

	// 价格：先试区间，再试上下界
	if m := priceRangeRe.FindStringSubmatch(query); m != nil {
		filters.Price = &model.PriceRange{
			Min: parsePrice(m[1], m[2]),
			Max: parsePrice(m[3], m[4]),
		}
	} else {
		var pr model.PriceRange
		matched := false
		if m := priceUnderRe.FindStringSubmatch(query); m != nil {
			pr.Max = parsePrice(m[1], m[2])
			matched = true
		}
		if m := priceOverRe.FindStringSubmatch(query); m != nil {
			pr.Min = parsePrice(m[1], m[2])
			matched = true
		}
		if matched {
			filters.Price = &pr
		}
	}

	// 地点：城市优先于州
	for city, state := range australianCities {
		if strings.Contains(lower, city) {
			title := strings.Title(city)
			filters.Location = &model.Location{City: title, State: state}
			break
		}
	}
	if filters.Location == nil {
		for name, abbr := range australianStates {
			if containsWord(lower, name) {
				filters.Location = &model.Location{State: abbr}
				break
			}
		}
	}

	// 院校：长别名优先，避免 "uq" 误命中 "unique"
	var matchedProviders []string
	for alias, full := range providerAliases {
		if containsWord(lower, alias) {
			matchedProviders = append(matchedProviders, full)
		}
	}
	if len(matchedProviders) == 1 {
		filters.ProviderName = matchedProviders[0]
	} else if len(matchedProviders) > 1 {
		filters.ProviderNames = matchedProviders
	}

	for synonym, canonical := range fieldSynonyms {
		if containsWord(lower, synonym) {
			if !containsString(filters.FieldsOfStudy, canonical) {
				filters.FieldsOfStudy = append(filters.FieldsOfStudy, canonical)
			}
		}
	}

	for word, level := range studyLevels {
		if containsWord(lower, word) {
			filters.StudyLevel = level
			break
		}
	}

	if strings.Contains(lower, "scholarship") {
		filters.HasScholarship = true
	}
	if strings.Contains(lower, "internship") || strings.Contains(lower, "work placement") {
		filters.HasInternship = true
	}
	if m := topNRe.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			filters.MaxRanking = n
		}
	}

	return filters
}

// containsWord 检查 lower 中是否存在以单词边界分隔的 word。
func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(lower[start-1])
		afterOK := end == len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// 比较类与指导类关键词，分类的确定性快速路径。
var (
	comparisonKeywords = []string{"compare", "versus", " vs ", " vs.", "difference between", "better than", "which is better"}
	guidanceKeywords   = []string{"how do i", "how to", "what is the process", "visa", "application process", "requirements for", "how can i", "advice", "should i"}
	intakeKeywords     = []string{"intake", "commencement", "start date", "when does", "semester start"}
)

// Classify 解析用户查询。空白查询立即拒绝，分类优先走规则路径，
// 规则不命中时回退到 LLM，LLM 失败时落到确定性的默认分类。
func (s *queryService) Classify(ctx context.Context, query string) (model.ParsedQuery, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return model.ParsedQuery{}, fmt.Errorf("empty query: %w", errs.ErrInvalidQuery)
	}

	lower := strings.ToLower(trimmed)
	filters := ExtractFilters(trimmed)

	parsed := model.ParsedQuery{
		Original: trimmed,
		Filters:  filters,
	}

	// 规则快速路径
	switch {
	case matchesAny(lower, comparisonKeywords) && len(filters.ProviderNames) >= 2:
		parsed.Kind = model.QueryComparison
		parsed.Intent = model.IntentCompareProviders
		return parsed, nil
	case matchesAny(lower, intakeKeywords):
		parsed.Kind = model.QueryStructured
		parsed.Intent = model.IntentGetIntakes
		return parsed, nil
	case matchesAny(lower, guidanceKeywords):
		parsed.Kind = model.QuerySemantic
		parsed.Intent = model.IntentGetGuidance
		return parsed, nil
	case filters.HasScholarship && len(filters.FieldsOfStudy) == 0 && filters.Price == nil && filters.Location == nil && filters.ProviderName == "":
		parsed.Kind = model.QueryStructured
		parsed.Intent = model.IntentGetScholarships
		return parsed, nil
	case !filters.Empty() && hasSemanticContext(lower):
		parsed.Kind = model.QueryHybrid
		parsed.Intent = model.IntentFilterByCriteria
		return parsed, nil
	case !filters.Empty():
		parsed.Kind = model.QueryStructured
		parsed.Intent = model.IntentFilterByCriteria
		return parsed, nil
	}

	// LLM 回退
	kind, intent, err := s.classifyWithLLM(ctx, trimmed)
	if err != nil {
		log.Warnf("[QueryService] LLM 分类失败, 回退到语义检索: %v", err)
		parsed.Kind = model.QuerySemantic
		parsed.Intent = model.IntentSearchCourses
		return parsed, nil
	}
	parsed.Kind = kind
	parsed.Intent = intent
	return parsed, nil
}

// hasSemanticContext 判断带过滤条件的查询是否还携带开放式语义诉求。
func hasSemanticContext(lower string) bool {
	semanticHints := []string{"best", "good for", "recommend", "career", "reputation", "worth", "quality", "experience", "why", "what about", "tell me about"}
	return matchesAny(lower, semanticHints)
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

const classifyPrompt = `You are a query classifier for an Australian education assistant.
Classify the user query into exactly one type and one intent.

Types: STRUCTURED, SEMANTIC, HYBRID, COMPARISON
Intents: search_courses, filter_by_criteria, compare_providers, get_provider_info, get_guidance, get_scholarships, get_intakes

Respond with JSON only: {"type": "...", "intent": "..."}

Query: %s`

type classifyResult struct {
	Type   string `json:"type"`
	Intent string `json:"intent"`
}

func (s *queryService) classifyWithLLM(ctx context.Context, query string) (model.QueryKind, model.Intent, error) {
	messages := []llm.Message{
		{Role: "user", Content: fmt.Sprintf(classifyPrompt, query)},
	}
	resp, err := s.llmClient.Chat(ctx, messages, nil)
	if err != nil {
		return "", "", err
	}

	var result classifyResult
	if err := json.Unmarshal([]byte(extractJSON(resp)), &result); err != nil {
		return "", "", fmt.Errorf("failed to parse classification response: %w", err)
	}

	kind := model.QueryKind(strings.ToLower(strings.TrimSpace(result.Type)))
	switch kind {
	case model.QueryStructured, model.QuerySemantic, model.QueryHybrid, model.QueryComparison:
	default:
		kind = model.QuerySemantic
	}

	intent := model.Intent(strings.ToLower(strings.TrimSpace(result.Intent)))
	switch intent {
	case model.IntentSearchCourses, model.IntentFilterByCriteria, model.IntentCompareProviders,
		model.IntentGetProviderInfo, model.IntentGetGuidance, model.IntentGetScholarships, model.IntentGetIntakes:
	default:
		intent = model.IntentSearchCourses
	}
	return kind, intent, nil
}

// extractJSON 从可能带有 markdown 代码块的响应中剥出 JSON 对象。
func extractJSON(resp string) string {
	resp = strings.TrimSpace(resp)
	if start := strings.Index(resp, "{"); start >= 0 {
		if end := strings.LastIndex(resp, "}"); end > start {
			return resp[start : end+1]
		}
	}
	return resp
}

const reformulatePrompt = `Generate %d alternative phrasings of the following search query about studying in Australia.
Each alternative should preserve the meaning but use different wording.
Respond with one alternative per line, no numbering, no extra text.

Query: %s`

// Reformulate 生成查询改写变体。LLM 失败时退化为仅含原查询的单元素切片。
func (s *queryService) Reformulate(ctx context.Context, query string) []string {
	variants := []string{query}
	if s.maxVariants <= 1 {
		return variants
	}

	messages := []llm.Message{
		{Role: "user", Content: fmt.Sprintf(reformulatePrompt, s.maxVariants-1, query)},
	}
	resp, err := s.llmClient.Chat(ctx, messages, nil)
	if err != nil {
		log.Warnf("[QueryService] 查询改写失败, 仅使用原查询: %v", err)
		return variants
	}

	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line == "" || strings.EqualFold(line, query) {
			continue
		}
		variants = append(variants, line)
		if len(variants) >= s.maxVariants {
			break
		}
	}
	return variants
}
