package dialogue

import (
	"strings"

	"github.com/go-ego/gse"

	"tendero/internal/model"
)

// Matcher 商品模糊匹配器
// 用 gse 分词后按 名称/分类/描述 的加权词重合度打分，返回最佳单一候选；
// 处理 "quiero la strix 16" 这类口语化、不完整的商品指称
type Matcher struct {
	seg gse.Segmenter
}

// 低于该分数的最佳候选视为未解析出商品
const minMatchScore = 0.2

var fieldWeights = struct {
	name, category, description float64
}{name: 3, category: 1.5, description: 1}

// NewMatcher 创建匹配器（加载默认词典）
func NewMatcher() (*Matcher, error) {
	m := &Matcher{}
	if err := m.seg.LoadDict(); err != nil {
		return nil, err
	}
	return m, nil
}

// Tokens 分词并归一化
func (m *Matcher) Tokens(text string) []string {
	cut := m.seg.CutSearch(strings.ToLower(text), true)
	tokens := make([]string, 0, len(cut))
	for _, t := range cut {
		t = strings.TrimSpace(t)
		if len([]rune(t)) < 2 && !isCJK(t) {
			continue // 过滤单字母噪声，中文单字保留
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// Score 对单个商品打分，返回 [0, 1]
func (m *Matcher) Score(query string, p *model.Product) float64 {
	queryTokens := m.Tokens(query)
	if len(queryTokens) == 0 {
		return 0
	}

	// 商品名整体出现在用户话术中视为确定命中
	name := strings.ToLower(p.Name)
	if name != "" && strings.Contains(strings.ToLower(query), name) {
		return 1
	}

	total := fieldWeights.name + fieldWeights.category + fieldWeights.description
	score := overlap(queryTokens, m.Tokens(p.Name))*fieldWeights.name +
		overlap(queryTokens, m.Tokens(p.Category))*fieldWeights.category +
		overlap(queryTokens, m.Tokens(p.Description))*fieldWeights.description

	return score / total
}

// Best 返回最佳候选及其分数；分数不足阈值时返回 nil
func (m *Matcher) Best(query string, products []*model.Product) (*model.Product, float64) {
	var best *model.Product
	var bestScore float64

	for _, p := range products {
		if s := m.Score(query, p); s > bestScore {
			best, bestScore = p, s
		}
	}

	if bestScore < minMatchScore {
		return nil, bestScore
	}
	return best, bestScore
}

// overlap 查询词元与字段词元的重合比例
func overlap(queryTokens, fieldTokens []string) float64 {
	if len(queryTokens) == 0 || len(fieldTokens) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(fieldTokens))
	for _, t := range fieldTokens {
		set[t] = struct{}{}
	}

	matched := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(queryTokens))
}

// isCJK 粗略判断词元是否为中日韩字符
func isCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}
